// ABOUTME: The health command: probe the server's liveness endpoint and exit
// ABOUTME: Exit code 1 when the server never answered 2xx

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/mauromedda/streamcheck/internal/harness"
	"github.com/mauromedda/streamcheck/internal/report"
)

func newHealthCmd(g *globalFlags, out io.Writer) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Probe the health endpoint only",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := loadConfig(cmd, g, nil)
			if err != nil {
				return err
			}

			client := harness.NewClient(cfg)
			defer client.CloseIdleConnections()

			h := harness.NewProber(client, cfg).Wait(cmd.Context())
			report.New(out).HealthChecked(h)
			if cmd.Context().Err() != nil {
				return &exitError{code: exitInterrupted, err: cmd.Context().Err()}
			}
			if !h.Healthy {
				return &exitError{code: exitFailure, err: fmt.Errorf("%w: %v", harness.ErrUnhealthy, h.Err)}
			}
			return nil
		},
	}
}
