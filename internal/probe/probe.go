// Package probe answers a single question: is the backend endpoint accepting
// connections right now? Probes are single-shot; there is no watch loop,
// thresholds or retry policy.
package probe

import (
	"context"
	"fmt"
	"time"

	"github.com/sidekick-sh/sidekick/internal/config"
)

// Prober defines a single liveness attempt against the backend endpoint.
type Prober interface {
	Probe(ctx context.Context) error
}

// New constructs a Prober for the supplied backend specification.
func New(spec *config.BackendSpec) (Prober, error) {
	if spec == nil {
		return nil, fmt.Errorf("probe: missing backend specification")
	}
	switch spec.Probe.Kind {
	case config.ProbeKindTCP, "":
		return newTCPProber(spec.Endpoint), nil
	case config.ProbeKindHTTP:
		return newHTTPProber(spec.Probe.URL, spec.Probe.ExpectStatus), nil
	default:
		return nil, fmt.Errorf("probe: unknown kind %q", spec.Probe.Kind)
	}
}

// IsRunning reports whether a single probe attempt succeeds within the given
// timeout. Any failure cause collapses into "not reachable now".
func IsRunning(ctx context.Context, p Prober, timeout time.Duration) bool {
	if p == nil {
		return false
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return p.Probe(ctx) == nil
}
