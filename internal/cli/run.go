package cli

import (
	stdcontext "context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/sidekick-sh/sidekick/internal/cliutil"
	"github.com/sidekick-sh/sidekick/internal/lifecycle"
	"github.com/sidekick-sh/sidekick/internal/metrics"
	"github.com/sidekick-sh/sidekick/internal/probe"
	"github.com/sidekick-sh/sidekick/internal/shell"
	"github.com/sidekick-sh/sidekick/internal/supervisor"
)

const shutdownTimeout = 10 * time.Second

func newRunCmd(ctx *context) *cobra.Command {
	var headless bool
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Start the session: ensure the backend is serving, supervise it until exit",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.loadManifest()
			if err != nil {
				return err
			}

			rt, err := ctx.runtimeFor(cfg)
			if err != nil {
				return err
			}
			prober, err := probe.New(cfg.Backend)
			if err != nil {
				return err
			}

			events := make(chan supervisor.Event, 256)
			sup := supervisor.New(cfg, rt, prober, events)

			hooks := lifecycle.NewRegistry()
			hooks.Register(lifecycle.EventWindowClosed, sup.Shutdown)
			hooks.Register(lifecycle.EventAppExit, sup.Shutdown)

			if metricsAddr != "" {
				startMetricsServer(cmd, metricsAddr)
			}

			// Startup failures abort the session before the host surface
			// appears; the application has no value without its backend.
			if err := sup.EnsureStarted(cmd.Context()); err != nil {
				return err
			}

			interactive := !headless && supportsInteractiveOutput(cmd)
			if !interactive {
				runHeadless(cmd, events)
			} else {
				window := shell.New(cfg.Backend.Name, cfg.Backend.Endpoint, sup.Managed)
				if err := window.Run(cmd.Context(), events); err != nil {
					fmt.Fprintf(cmd.ErrOrStderr(), "shell error: %v\n", err)
				}
				dispatchShutdown(cmd, hooks, lifecycle.EventWindowClosed)
			}

			// Shutdown failures never block host exit; they are reported and
			// dropped.
			dispatchShutdown(cmd, hooks, lifecycle.EventAppExit)
			if !interactive {
				drainEvents(cmd, events)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&headless, "headless", false, "Run without the session window, streaming JSON log records")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Address to expose Prometheus metrics on (disabled when empty)")

	return cmd
}

func dispatchShutdown(cmd *cobra.Command, hooks *lifecycle.Registry, event lifecycle.Event) {
	stopCtx, cancel := stdcontext.WithTimeout(stdcontext.WithoutCancel(cmd.Context()), shutdownTimeout)
	defer cancel()
	if err := hooks.Dispatch(stopCtx, event); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "shutdown error: %v\n", err)
	}
}

func runHeadless(cmd *cobra.Command, events <-chan supervisor.Event) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for {
		select {
		case <-cmd.Context().Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			cliutil.EncodeLogEvent(enc, cmd.ErrOrStderr(), evt)
		}
	}
}

// drainEvents flushes records emitted during shutdown itself, after the
// streaming loop has already stopped.
func drainEvents(cmd *cobra.Command, events <-chan supervisor.Event) {
	enc := json.NewEncoder(cmd.OutOrStdout())
	for {
		select {
		case evt := <-events:
			cliutil.EncodeLogEvent(enc, cmd.ErrOrStderr(), evt)
		default:
			return
		}
	}
}

func startMetricsServer(cmd *cobra.Command, addr string) {
	handler := promhttp.HandlerFor(metrics.Registry(), promhttp.HandlerOpts{})
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)
	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			fmt.Fprintf(cmd.ErrOrStderr(), "metrics server error: %v\n", err)
		}
	}()
	go func() {
		<-cmd.Context().Done()
		closeCtx, cancel := stdcontext.WithTimeout(stdcontext.Background(), time.Second)
		defer cancel()
		_ = server.Shutdown(closeCtx)
	}()
}
