// Package supervisor owns the single backend process handle for the lifetime
// of a desktop-shell session. It guarantees at most one handle exists at any
// time and that the backend is terminated at most once, no matter how many
// host lifecycle events request a shutdown.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sidekick-sh/sidekick/internal/config"
	"github.com/sidekick-sh/sidekick/internal/metrics"
	"github.com/sidekick-sh/sidekick/internal/probe"
	"github.com/sidekick-sh/sidekick/internal/runtime"
)

// Supervisor launches the backend when no live instance is reachable and
// terminates the one it owns, exactly once, on shutdown.
//
// Liveness is decided empirically via the network probe, never by consulting
// the local handle cell: a backend started by another session (or surviving a
// previous one) is honored as already running and left unmanaged, with no
// handle to shut down later.
type Supervisor struct {
	name         string
	spec         runtime.StartSpec
	rt           runtime.Runtime
	prober       probe.Prober
	probeTimeout time.Duration
	strict       bool
	events       chan<- Event

	mu     sync.Mutex
	handle runtime.Handle
}

// New constructs a supervisor for the backend described by the manifest. The
// events channel is optional; when set it should be buffered and drained,
// events that cannot be delivered immediately are dropped.
func New(cfg *config.File, rt runtime.Runtime, prober probe.Prober, events chan<- Event) *Supervisor {
	b := cfg.Backend
	return &Supervisor{
		name: b.Name,
		spec: runtime.StartSpec{
			Name:    b.Name,
			Command: append([]string(nil), b.Command...),
			Image:   b.Image,
			Env:     b.Env,
			Workdir: b.ResolvedWorkdir,
			Ports:   append([]string(nil), b.Ports...),
		},
		rt:           rt,
		prober:       prober,
		probeTimeout: b.Probe.Timeout.Duration,
		strict:       cfg.Shutdown.Policy == config.ShutdownStrict,
		events:       events,
	}
}

// Name returns the configured backend name.
func (s *Supervisor) Name() string {
	return s.name
}

// Managed reports whether the supervisor currently holds a backend handle.
func (s *Supervisor) Managed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.handle != nil
}

// EnsureStarted probes the backend endpoint and launches the backend when it
// is not reachable. A reachable endpoint is not an error: the backend is
// treated as externally owned and nothing is spawned. Launch failure is
// fatal to startup and is returned to the caller.
func (s *Supervisor) EnsureStarted(ctx context.Context) error {
	probeStart := time.Now()
	running := probe.IsRunning(ctx, s.prober, s.probeTimeout)
	metrics.ObserveProbeLatency(s.name, time.Since(probeStart))

	if running {
		metrics.SetBackendUp(s.name, true)
		s.emit(newEvent(s.name, EventTypeAlreadyRunning, "backend already serving", nil))
		return nil
	}

	s.emit(newEvent(s.name, EventTypeStarting, "starting backend", nil))
	handle, err := s.rt.Start(ctx, s.spec)
	if err != nil {
		s.emit(newEvent(s.name, EventTypeError, "backend start failed", err))
		return fmt.Errorf("start backend %s: %w", s.name, err)
	}

	metrics.IncrementBackendSpawn(s.name)
	metrics.SetBackendUp(s.name, true)

	s.mu.Lock()
	s.handle = handle
	s.mu.Unlock()

	if logs := handle.Logs(); logs != nil {
		go s.streamLogs(logs)
	}

	s.emit(newEvent(s.name, EventTypeStarted, "backend started", nil))
	return nil
}

// Shutdown terminates the managed backend, if any, and clears the handle
// cell. It is idempotent: any number of callers, concurrent or sequential,
// result in at most one kill, and every call observes an empty cell on
// return. When no backend was ever started (or the running backend is
// externally owned) the call is a no-op.
//
// The kill is issued while the lock is held so no caller can ever observe a
// stored handle that has not been asked to terminate. Under the strict
// policy a termination failure is returned; under the lenient default it is
// logged and swallowed so host shutdown is never blocked on cleanup.
func (s *Supervisor) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	handle := s.handle
	s.handle = nil
	if handle == nil {
		s.mu.Unlock()
		return nil
	}
	s.emit(newEvent(s.name, EventTypeStopping, "shutting down backend", nil))
	err := handle.Kill(ctx)
	s.mu.Unlock()

	metrics.IncrementBackendShutdown(s.name)
	metrics.SetBackendUp(s.name, false)

	if err != nil {
		if s.strict {
			s.emit(newEvent(s.name, EventTypeError, "backend termination failed", err))
			return fmt.Errorf("terminate backend %s: %w", s.name, err)
		}
		s.emit(newEvent(s.name, EventTypeError, "backend termination failed; continuing", err))
		return nil
	}

	s.emit(newEvent(s.name, EventTypeStopped, "backend shut down", nil))
	return nil
}

func (s *Supervisor) streamLogs(logs <-chan runtime.LogEntry) {
	var dropped int
	for entry := range logs {
		if entry.Message == "" {
			continue
		}
		if dropped > 0 {
			if !s.emit(s.droppedEvent(dropped)) {
				dropped++
				continue
			}
			dropped = 0
		}
		if !s.emit(s.normalizeLog(entry)) {
			dropped++
		}
	}
	if dropped > 0 {
		s.emit(s.droppedEvent(dropped))
	}
}

func (s *Supervisor) normalizeLog(entry runtime.LogEntry) Event {
	level := entry.Level
	source := entry.Source
	if source == "" {
		source = runtime.LogSourceStdout
	}
	if level == "" {
		if source == runtime.LogSourceStderr {
			level = "warn"
		} else {
			level = "info"
		}
	}
	ts := entry.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return Event{
		Timestamp: ts,
		Backend:   s.name,
		Type:      EventTypeLog,
		Message:   entry.Message,
		Level:     level,
		Source:    source,
	}
}

func (s *Supervisor) droppedEvent(count int) Event {
	return Event{
		Timestamp: time.Now(),
		Backend:   s.name,
		Type:      EventTypeLog,
		Message:   fmt.Sprintf("dropped=%d", count),
		Level:     "warn",
		Source:    runtime.LogSourceSystem,
	}
}

func (s *Supervisor) emit(evt Event) bool {
	if s.events == nil {
		return true
	}
	select {
	case s.events <- evt:
		return true
	default:
		return false
	}
}
