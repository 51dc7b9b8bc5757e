// ABOUTME: The run command: health check, sequential streaming requests, summary
// ABOUTME: Exit code 2 under --strict when any request failed, 130 when interrupted

package main

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mauromedda/streamcheck/internal/config"
	"github.com/mauromedda/streamcheck/internal/harness"
	"github.com/mauromedda/streamcheck/internal/httputil"
	"github.com/mauromedda/streamcheck/internal/report"
)

type runFlags struct {
	model           string
	prompt          string
	system          string
	maxTokens       int
	temperature     float64
	requests        int
	delay           time.Duration
	requestTimeout  time.Duration
	chunkTimeout    time.Duration
	maxDuration     time.Duration
	failOnMalformed bool
	strict          bool
	json            bool
}

func (f *runFlags) register(cmd *cobra.Command) {
	fs := cmd.Flags()
	fs.StringVar(&f.model, "model", config.DefaultModel, "model name sent in each request")
	fs.StringVar(&f.prompt, "prompt", config.DefaultPrompt, "user message")
	fs.StringVar(&f.system, "system", "", "optional system message")
	fs.IntVar(&f.maxTokens, "max-tokens", config.DefaultMaxTokens, "max_tokens per request")
	fs.Float64Var(&f.temperature, "temperature", config.DefaultTemperature, "sampling temperature")
	fs.IntVarP(&f.requests, "requests", "n", config.DefaultRequests, "number of sequential requests")
	fs.DurationVar(&f.delay, "delay", config.DefaultDelay, "pause between requests")
	fs.DurationVar(&f.requestTimeout, "request-timeout", config.DefaultRequestTimeout, "max wait for response headers and for each read of the stream")
	fs.DurationVar(&f.chunkTimeout, "chunk-timeout", 0, "max silence between reads of the stream (0 uses --request-timeout)")
	fs.DurationVar(&f.maxDuration, "max-duration", 0, "cap on one whole request (0 means no cap)")
	fs.BoolVar(&f.failOnMalformed, "fail-on-malformed", false, "count malformed frames as a protocol failure")
	fs.BoolVar(&f.strict, "strict", false, "exit 2 unless every request succeeded")
	fs.BoolVar(&f.json, "json", false, "write the summary as JSON to stdout")
}

func (f *runFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	fs := cmd.Flags()
	if fs.Changed("model") {
		cfg.Model = f.model
	}
	if fs.Changed("prompt") {
		cfg.Prompt = f.prompt
	}
	if fs.Changed("system") {
		cfg.SystemPrompt = f.system
	}
	if fs.Changed("max-tokens") {
		cfg.MaxTokens = f.maxTokens
	}
	if fs.Changed("temperature") {
		cfg.Temperature = f.temperature
	}
	if fs.Changed("requests") {
		cfg.Requests = f.requests
	}
	if fs.Changed("delay") {
		cfg.Delay = f.delay
	}
	if fs.Changed("request-timeout") {
		cfg.RequestTimeout = f.requestTimeout
	}
	if fs.Changed("chunk-timeout") {
		cfg.ChunkTimeout = f.chunkTimeout
	}
	if fs.Changed("max-duration") {
		cfg.MaxDuration = f.maxDuration
	}
	if fs.Changed("fail-on-malformed") {
		cfg.FailOnMalformed = f.failOnMalformed
	}
	if fs.Changed("strict") {
		cfg.Strict = f.strict
	}
}

func newRunCmd(g *globalFlags, stdout, stderr io.Writer) *cobra.Command {
	rf := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Health check, then stream N sequential requests and summarise",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReliability(cmd, g, rf, stdout, stderr)
		},
	}
	rf.register(cmd)
	return cmd
}

func runReliability(cmd *cobra.Command, g *globalFlags, rf *runFlags, stdout, stderr io.Writer) error {
	cfg, err := loadConfig(cmd, g, rf)
	if err != nil {
		return err
	}

	// With --json, stdout carries only the document.
	progress := stdout
	if rf.json {
		progress = stderr
	}
	rep := report.New(progress)
	rep.Banner(httputil.NormalizeBaseURL(cfg.BaseURL), cfg.Requests, cfg.Delay)

	ctx := cmd.Context()
	summary, err := harness.New(cfg, harness.WithObserver(rep)).Run(ctx)
	switch {
	case ctx.Err() != nil:
		if summary != nil && rf.json {
			_ = report.WriteJSON(stdout, summary)
		}
		return &exitError{code: exitInterrupted, err: ctx.Err()}
	case errors.Is(err, harness.ErrUnhealthy):
		fmt.Fprintf(progress, "Make sure an OpenAI-compatible server is listening on %s\n", cfg.BaseURL)
		return &exitError{code: exitFailure, err: err}
	case err != nil:
		return &exitError{code: exitFailure, err: err}
	}

	if rf.json {
		if err := report.WriteJSON(stdout, summary); err != nil {
			return fmt.Errorf("writing summary: %w", err)
		}
	}
	if cfg.Strict && summary.Verdict() != harness.FullPass {
		return &exitError{code: exitNotPassing, err: fmt.Errorf("run verdict is %s", summary.Verdict())}
	}
	return nil
}
