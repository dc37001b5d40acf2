package supervisor

import (
	"time"

	"github.com/sidekick-sh/sidekick/internal/runtime"
)

// EventType captures high level lifecycle notifications emitted by the
// supervisor.
type EventType string

const (
	EventTypeStarting       EventType = "starting"
	EventTypeStarted        EventType = "started"
	EventTypeAlreadyRunning EventType = "already-running"
	EventTypeStopping       EventType = "stopping"
	EventTypeStopped        EventType = "stopped"
	EventTypeLog            EventType = "log"
	EventTypeError          EventType = "error"
)

// Event represents a single lifecycle or log notification.
type Event struct {
	Timestamp time.Time
	Backend   string
	Type      EventType
	Message   string
	Level     string
	Source    string
	Err       error
}

func newEvent(backend string, t EventType, message string, err error) Event {
	level := "info"
	if err != nil {
		level = "error"
	}
	return Event{
		Timestamp: time.Now(),
		Backend:   backend,
		Type:      t,
		Message:   message,
		Level:     level,
		Source:    runtime.LogSourceSystem,
		Err:       err,
	}
}
