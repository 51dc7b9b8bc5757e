// ABOUTME: The mock command: serve a fake streaming completion endpoint
// ABOUTME: Faults can be injected into chosen requests to rehearse failure reports

package main

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/mauromedda/streamcheck/internal/mockserver"
)

func newMockCmd() *cobra.Command {
	var (
		addr       string
		cfg        mockserver.Config
		faultSpecs []string
	)

	cmd := &cobra.Command{
		Use:   "mock",
		Short: "Run a mock OpenAI-compatible streaming server",
		Example: `  streamcheck mock --addr 127.0.0.1:8080 --fault 2=drop --fault 4=server_error
  streamcheck run --base-url http://127.0.0.1:8080`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			faults, err := mockserver.ParseFaults(faultSpecs)
			if err != nil {
				return &exitError{code: exitFailure, err: err}
			}
			cfg.Faults = faults

			gin.SetMode(gin.ReleaseMode)
			return mockserver.New(cfg).Serve(cmd.Context(), addr)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&addr, "addr", "127.0.0.1:8080", "listen address")
	fs.StringVar(&cfg.Reply, "reply", mockserver.DefaultReply, "text streamed word by word")
	fs.DurationVar(&cfg.ChunkDelay, "chunk-delay", 20*time.Millisecond, "pause between content frames")
	fs.DurationVar(&cfg.StallFor, "stall", time.Minute, "how long a stall fault hangs")
	fs.BoolVar(&cfg.Unhealthy, "unhealthy", false, "answer 503 on /health")
	fs.StringArrayVar(&faultSpecs, "fault", nil, "inject a fault as <request>=<kind>; repeatable")

	return cmd
}
