// Package shell renders the interactive session window that hosts the
// supervisor: a status header and a scrolling view of backend output. The
// window never terminates the backend itself; closing it only returns
// control to the host, which dispatches the window-closed lifecycle event.
package shell

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"github.com/sidekick-sh/sidekick/internal/supervisor"
)

const defaultLogRetention = 500

// Option configures window behaviour.
type Option func(*Window)

// WithMaxLogs sets the maximum number of log lines retained in the view.
func WithMaxLogs(n int) Option {
	return func(w *Window) {
		if n > 0 {
			w.maxLogs = n
		}
	}
}

// Window is the interactive session window.
type Window struct {
	app    *tview.Application
	header *tview.TextView
	logs   *tview.TextView

	backend  string
	endpoint string
	managed  func() bool

	maxLogs int
	lines   []string

	stopOnce sync.Once
	done     chan struct{}
}

// New constructs a session window for the named backend. The managed
// callback reports whether the supervisor currently owns a backend handle
// and drives the header state.
func New(backend, endpoint string, managed func() bool, opts ...Option) *Window {
	w := &Window{
		app:      tview.NewApplication(),
		header:   tview.NewTextView().SetDynamicColors(true),
		logs:     tview.NewTextView().SetDynamicColors(true).SetScrollable(true),
		backend:  backend,
		endpoint: endpoint,
		managed:  managed,
		maxLogs:  defaultLogRetention,
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}

	w.header.SetBorder(true).SetTitle(" sidekick ")
	w.logs.SetBorder(true).SetTitle(" backend output ")
	w.logs.SetChangedFunc(func() {
		w.app.Draw()
	})

	layout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(w.header, 3, 0, false).
		AddItem(w.logs, 0, 1, true)

	w.app.SetRoot(layout, true)
	w.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch {
		case event.Key() == tcell.KeyCtrlC, event.Key() == tcell.KeyEscape:
			w.Close()
			return nil
		case event.Rune() == 'q' || event.Rune() == 'Q':
			w.Close()
			return nil
		}
		return event
	})

	w.renderHeader()
	return w
}

// Run displays the window and consumes supervisor events until the window is
// closed or the context is cancelled.
func (w *Window) Run(ctx context.Context, events <-chan supervisor.Event) error {
	go func() {
		select {
		case <-ctx.Done():
			w.Close()
		case <-w.done:
		}
	}()

	go func() {
		for {
			select {
			case <-w.done:
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				w.app.QueueUpdateDraw(func() {
					w.appendEvent(evt)
					w.renderHeader()
				})
			}
		}
	}()

	defer w.Close()
	return w.app.Run()
}

// Close stops the window. Safe to call multiple times and from any
// goroutine.
func (w *Window) Close() {
	w.stopOnce.Do(func() {
		close(w.done)
		w.app.Stop()
	})
}

func (w *Window) renderHeader() {
	state := "unmanaged"
	if w.managed != nil && w.managed() {
		state = "managed"
	}
	w.header.SetText(fmt.Sprintf("[::b]%s[-::-]  endpoint=%s  state=%s  (q to close)",
		tview.Escape(w.backend), tview.Escape(w.endpoint), state))
}

func (w *Window) appendEvent(evt supervisor.Event) {
	line := formatEvent(evt)
	if line == "" {
		return
	}
	w.lines = append(w.lines, line)
	if len(w.lines) > w.maxLogs {
		w.lines = w.lines[len(w.lines)-w.maxLogs:]
	}
	w.logs.SetText(strings.Join(w.lines, "\n"))
	w.logs.ScrollToEnd()
}

func formatEvent(evt supervisor.Event) string {
	message := evt.Message
	if evt.Err != nil {
		message = fmt.Sprintf("%s: %v", evt.Message, evt.Err)
	}
	if message == "" {
		return ""
	}
	color := ""
	switch evt.Level {
	case "warn":
		color = "[yellow]"
	case "error":
		color = "[red]"
	}
	ts := evt.Timestamp.Format("15:04:05")
	return fmt.Sprintf("%s%s %-7s %s[-]", color, ts, evt.Source, tview.Escape(message))
}
