package process

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/sidekick-sh/sidekick/internal/runtime"
)

type runtimeImpl struct{}

// New constructs a runtime that executes the backend as a local process.
func New() runtime.Runtime {
	return &runtimeImpl{}
}

func (r *runtimeImpl) Start(ctx context.Context, spec runtime.StartSpec) (runtime.Handle, error) {
	if len(spec.Command) == 0 {
		return nil, fmt.Errorf("process runtime for %s requires a command", spec.Name)
	}

	cmd := exec.Command(spec.Command[0], spec.Command[1:]...)
	if spec.Workdir != "" {
		cmd.Dir = spec.Workdir
	}

	env := os.Environ()
	if spec.Env != nil {
		overrides := make([]string, 0, len(spec.Env))
		for k, v := range spec.Env {
			overrides = append(overrides, fmt.Sprintf("%s=%s", k, v))
		}
		env = append(env, overrides...)
	}
	cmd.Env = env

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("backend %s stdout: %w", spec.Name, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("backend %s stderr: %w", spec.Name, err)
	}

	configureCmdSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start backend %s: %w", spec.Name, err)
	}

	h := &handle{
		name:     spec.Name,
		cmd:      cmd,
		logs:     make(chan runtime.LogEntry, 64),
		waitDone: make(chan struct{}),
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go h.streamLogs(stdout, runtime.LogSourceStdout, &wg)
	go h.streamLogs(stderr, runtime.LogSourceStderr, &wg)

	// Wait must not run until both pipes have been drained, or exec closes
	// them under the scanners and drops buffered output.
	go func() {
		wg.Wait()
		close(h.logs)
		h.waitErr = cmd.Wait()
		close(h.waitDone)
	}()

	return h, nil
}

type handle struct {
	name string
	cmd  *exec.Cmd
	logs chan runtime.LogEntry

	waitDone chan struct{}
	waitErr  error
}

func (h *handle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.waitDone:
		return h.exitError()
	}
}

func (h *handle) Logs() <-chan runtime.LogEntry {
	return h.logs
}

func (h *handle) exitError() error {
	if h.waitErr != nil {
		return fmt.Errorf("backend %s exited: %w", h.name, h.waitErr)
	}
	return nil
}

func (h *handle) streamLogs(r io.Reader, source string, wg *sync.WaitGroup) {
	defer wg.Done()
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\n")
		entry := runtime.LogEntry{Message: line, Source: source}
		if source == runtime.LogSourceStderr {
			entry.Level = "warn"
		}
		h.logs <- entry
	}
}
