package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newConfigCmd(ctx *context) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the sidekick manifest",
	}

	check := &cobra.Command{
		Use:   "check",
		Short: "Validate the manifest and print a summary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadManifest()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Manifest %s is valid.\n", *ctx.manifestFile)
			fmt.Fprintf(out, "  backend:  %s\n", cfg.Backend.Name)
			fmt.Fprintf(out, "  endpoint: %s\n", cfg.Backend.Endpoint)
			fmt.Fprintf(out, "  runtime:  %s\n", cfg.Backend.Runtime)
			fmt.Fprintf(out, "  probe:    %s (timeout %s)\n", cfg.Backend.Probe.Kind, cfg.Backend.Probe.Timeout.Duration)
			fmt.Fprintf(out, "  shutdown: %s\n", cfg.Shutdown.Policy)
			return nil
		},
	}

	cmd.AddCommand(check)
	return cmd
}
