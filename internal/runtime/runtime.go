package runtime

import (
	"context"
	"time"
)

// Log source identifiers attached to entries emitted by runtime handles.
const (
	LogSourceStdout = "stdout"
	LogSourceStderr = "stderr"
	LogSourceSystem = "system"
)

// LogEntry represents a single log line produced by a running backend.
type LogEntry struct {
	Timestamp time.Time
	Message   string
	Source    string
	Level     string
}

// StartSpec describes the backend a runtime should launch.
type StartSpec struct {
	Name    string
	Command []string
	Image   string
	Env     map[string]string
	Workdir string
	Ports   []string
}

// Handle represents a backend launched by a runtime adapter.
type Handle interface {
	// Kill forcefully terminates the backend. Implementations must be
	// idempotent and tolerate the process having already exited.
	Kill(ctx context.Context) error

	// Wait blocks until the backend exits or the context is cancelled. A
	// nil error indicates a clean exit.
	Wait(ctx context.Context) error

	// Logs returns a channel of log lines associated with the backend. The
	// channel is closed once the backend has stopped. A nil channel
	// indicates that the runtime does not provide log streaming.
	Logs() <-chan LogEntry
}

// Runtime describes an adapter capable of launching the backend.
type Runtime interface {
	// Start launches the described backend and returns a handle to it.
	// Implementations should respect context cancellation and surface
	// failures via returned errors.
	Start(ctx context.Context, spec StartSpec) (Handle, error)
}

// Registry maps runtime identifiers to their concrete implementations.
type Registry map[string]Runtime
