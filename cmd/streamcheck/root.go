// ABOUTME: Root cobra command, persistent flags and configuration loading
// ABOUTME: Flags override the YAML file and environment only when explicitly set

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/mauromedda/streamcheck/internal/config"
	pilog "github.com/mauromedda/streamcheck/internal/log"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool

	baseURL        string
	apiKey         string
	healthTimeout  time.Duration
	healthAttempts int
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	g := &globalFlags{}
	rf := &runFlags{}

	root := &cobra.Command{
		Use:   "streamcheck",
		Short: "Check that an OpenAI-compatible server streams chat completions reliably",
		Long: `streamcheck sends a series of streaming chat-completion requests to an
OpenAI-compatible server, one after another, and reports whether every stream
delivered its content and terminated cleanly.

Without a subcommand it behaves like "streamcheck run".`,
		Version:       fmt.Sprintf("%s (%s) built %s", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		PersistentPreRun: func(*cobra.Command, []string) {
			pilog.SetOutput(stderr)
			if g.verbose {
				pilog.SetLevel(pilog.LevelDebug)
			}
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReliability(cmd, g, rf, stdout, stderr)
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML configuration file")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "log every frame and state change")
	pf.StringVar(&g.baseURL, "base-url", config.DefaultBaseURL, "server base URL")
	pf.StringVar(&g.apiKey, "api-key", "", "bearer token sent with every request")
	pf.DurationVar(&g.healthTimeout, "health-timeout", config.DefaultHealthTimeout, "timeout of one health probe")
	pf.IntVar(&g.healthAttempts, "health-attempts", 1, "health probes before giving up")

	rf.register(root)
	root.AddCommand(newRunCmd(g, stdout, stderr), newHealthCmd(g, stderr), newMockCmd())

	return root
}

// loadConfig layers defaults, the config file, the environment and explicitly set
// flags, then validates the result.
func loadConfig(cmd *cobra.Command, g *globalFlags, rf *runFlags) (*config.Config, error) {
	cfg, err := config.Load(g.configPath)
	if err != nil {
		return nil, &exitError{code: exitFailure, err: err}
	}

	fs := cmd.Flags()
	if fs.Changed("base-url") {
		cfg.BaseURL = g.baseURL
	}
	if fs.Changed("api-key") {
		cfg.APIKey = g.apiKey
	}
	if fs.Changed("health-timeout") {
		cfg.HealthTimeout = g.healthTimeout
	}
	if fs.Changed("health-attempts") {
		cfg.HealthAttempts = g.healthAttempts
	}
	if rf != nil {
		rf.apply(cmd, cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, &exitError{code: exitFailure, err: fmt.Errorf("invalid configuration: %w", err)}
	}
	return cfg, nil
}
