package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/sidekick-sh/sidekick/internal/probe"
)

type statusReport struct {
	Backend  string `json:"backend"`
	Endpoint string `json:"endpoint"`
	Running  bool   `json:"running"`
}

func newStatusCmd(ctx *context) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Probe the backend endpoint and report whether it is serving",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadManifest()
			if err != nil {
				return err
			}

			prober, err := probe.New(cfg.Backend)
			if err != nil {
				return err
			}
			running := probe.IsRunning(cmd.Context(), prober, cfg.Backend.Probe.Timeout.Duration)

			report := statusReport{
				Backend:  cfg.Backend.Name,
				Endpoint: cfg.Backend.Endpoint,
				Running:  running,
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				if err := enc.Encode(report); err != nil {
					return err
				}
			} else if running {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is serving on %s\n", report.Backend, report.Endpoint)
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "%s is not reachable on %s\n", report.Backend, report.Endpoint)
			}

			if !running {
				return errNotRunning
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Emit the status report as JSON")

	return cmd
}

var errNotRunning = fmt.Errorf("backend not running")
