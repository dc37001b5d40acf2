package cli

import (
	stdcontext "context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/sidekick-sh/sidekick/internal/config"
	"github.com/sidekick-sh/sidekick/internal/runtime"
	"github.com/sidekick-sh/sidekick/internal/runtime/docker"
	"github.com/sidekick-sh/sidekick/internal/runtime/process"
)

func NewRootCmd() *cobra.Command {
	var manifestFile string

	root := &cobra.Command{
		Use:   "sidekick",
		Short: "Session supervisor for a sidecar backend process",
		Long: "sidekick keeps exactly one instance of a backend server process alive\n" +
			"for the duration of an interactive session and guarantees it is\n" +
			"terminated exactly once when the session ends.",
	}

	root.PersistentFlags().
		StringVarP(&manifestFile, "file", "f", "sidekick.yaml", "Path to the sidekick manifest")

	ctx := &context{manifestFile: &manifestFile}
	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newStatusCmd(ctx))
	root.AddCommand(newConfigCmd(ctx))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root
}

// Execute runs the CLI entrypoint. The signal context doubles as the
// application-exit notification: once it ends, every registered shutdown
// hook has had its chance to fire.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type context struct {
	manifestFile *string
}

func (c *context) loadManifest() (*config.File, error) {
	return config.Load(*c.manifestFile)
}

func (c *context) runtimes() runtime.Registry {
	return runtime.Registry{
		config.RuntimeProcess: process.New(),
		config.RuntimeDocker:  docker.New(),
	}
}

func (c *context) runtimeFor(cfg *config.File) (runtime.Runtime, error) {
	rt, ok := c.runtimes()[cfg.Backend.Runtime]
	if !ok {
		return nil, fmt.Errorf("unknown runtime %q", cfg.Backend.Runtime)
	}
	return rt, nil
}
