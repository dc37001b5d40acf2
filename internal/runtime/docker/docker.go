package docker

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/docker/docker/api/types"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/api/types/strslice"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"

	"github.com/sidekick-sh/sidekick/internal/runtime"
)

type runtimeImpl struct {
	client     *client.Client
	clientOnce sync.Once
	clientErr  error
}

// New returns a Docker backed runtime adapter.
func New() runtime.Runtime {
	return &runtimeImpl{}
}

func (r *runtimeImpl) getClient() (*client.Client, error) {
	r.clientOnce.Do(func() {
		cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
		if err != nil {
			r.clientErr = err
			return
		}
		r.client = cli
	})
	return r.client, r.clientErr
}

func (r *runtimeImpl) Start(ctx context.Context, spec runtime.StartSpec) (runtime.Handle, error) {
	if spec.Image == "" {
		return nil, errors.New("docker runtime requires an image")
	}

	cli, err := r.getClient()
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	if err := ensureImage(ctx, cli, spec.Image); err != nil {
		return nil, err
	}

	containerCfg, hostCfg, err := buildConfigs(spec)
	if err != nil {
		return nil, err
	}

	createResp, err := cli.ContainerCreate(ctx, containerCfg, hostCfg, &network.NetworkingConfig{}, nil, "")
	if err != nil {
		return nil, fmt.Errorf("container create: %w", err)
	}
	containerID := createResp.ID

	if err := cli.ContainerStart(ctx, containerID, types.ContainerStartOptions{}); err != nil {
		return nil, fmt.Errorf("container start: %w", err)
	}

	h := newHandle(cli, spec.Name, containerID)
	h.startLogStreamer()
	h.startWaiter()

	return h, nil
}

type dockerHandle struct {
	cli         *client.Client
	name        string
	containerID string

	logs    chan runtime.LogEntry
	logCtx  context.Context
	logStop context.CancelFunc
	logDone chan struct{}

	waitOnce   sync.Once
	waitDone   chan struct{}
	waitResult waitOutcome

	killOnce sync.Once
	killErr  error
}

type waitOutcome struct {
	status container.WaitResponse
	err    error
}

func newHandle(cli *client.Client, name, id string) *dockerHandle {
	logCtx, logCancel := context.WithCancel(context.Background())
	return &dockerHandle{
		cli:         cli,
		name:        name,
		containerID: id,
		logs:        make(chan runtime.LogEntry, 128),
		logCtx:      logCtx,
		logStop:     logCancel,
		logDone:     make(chan struct{}),
		waitDone:    make(chan struct{}),
	}
}

func (h *dockerHandle) startLogStreamer() {
	go func() {
		defer close(h.logs)
		defer close(h.logDone)
		reader, err := h.cli.ContainerLogs(h.logCtx, h.containerID, types.ContainerLogsOptions{
			ShowStdout: true,
			ShowStderr: true,
			Follow:     true,
			Tail:       "all",
		})
		if err != nil {
			return
		}
		defer reader.Close()

		stdout := newLogWriter(h.logCtx, h.logs, runtime.LogSourceStdout, "")
		stderr := newLogWriter(h.logCtx, h.logs, runtime.LogSourceStderr, "warn")
		_, _ = stdcopy.StdCopy(stdout, stderr, reader)
		stdout.Close()
		stderr.Close()
	}()
}

func (h *dockerHandle) startWaiter() {
	go func() {
		statusCh, errCh := h.cli.ContainerWait(context.Background(), h.containerID, container.WaitConditionNextExit)
		var outcome waitOutcome
		select {
		case err := <-errCh:
			if err != nil {
				outcome.err = err
			}
		case resp := <-statusCh:
			outcome.status = resp
		}
		h.waitOnce.Do(func() {
			h.waitResult = outcome
			close(h.waitDone)
		})
	}()
}

func (h *dockerHandle) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-h.waitDone:
		return h.waitResult.exitError(h.name)
	}
}

func (h *dockerHandle) Kill(ctx context.Context) error {
	h.killOnce.Do(func() {
		defer h.shutdownStreams()
		if err := h.cli.ContainerKill(ctx, h.containerID, "SIGKILL"); err != nil && !client.IsErrNotFound(err) {
			h.killErr = fmt.Errorf("container kill %s: %w", h.name, err)
			return
		}
		removeOpts := types.ContainerRemoveOptions{Force: true}
		if err := h.cli.ContainerRemove(ctx, h.containerID, removeOpts); err != nil && !client.IsErrNotFound(err) {
			h.killErr = fmt.Errorf("container remove %s: %w", h.name, err)
		}
	})
	return h.killErr
}

func (h *dockerHandle) shutdownStreams() {
	if h.logStop != nil {
		h.logStop()
	}
	<-h.logDone
}

func (h *dockerHandle) Logs() <-chan runtime.LogEntry {
	return h.logs
}

func (o waitOutcome) exitError(name string) error {
	if o.err != nil {
		return o.err
	}
	if o.status.StatusCode != 0 {
		return fmt.Errorf("container %s exited with status %d", name, o.status.StatusCode)
	}
	if o.status.Error != nil {
		return errors.New(o.status.Error.Message)
	}
	return nil
}

type logWriter struct {
	ctx    context.Context
	ch     chan<- runtime.LogEntry
	source string
	level  string
	buf    bytes.Buffer
	mu     sync.Mutex
}

func newLogWriter(ctx context.Context, ch chan<- runtime.LogEntry, source, level string) *logWriter {
	return &logWriter{ctx: ctx, ch: ch, source: source, level: level}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	total := len(p)
	reader := bufio.NewReader(bytes.NewReader(p))
	for {
		segment, err := reader.ReadBytes('\n')
		if len(segment) > 0 {
			if segment[len(segment)-1] == '\n' {
				w.buf.Write(segment[:len(segment)-1])
				w.emit(w.buf.String())
				w.buf.Reset()
			} else {
				w.buf.Write(segment)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return total, err
		}
	}
	return total, nil
}

func (w *logWriter) emit(line string) {
	if line == "" {
		return
	}
	select {
	case w.ch <- runtime.LogEntry{Message: line, Source: w.source, Level: w.level}:
	case <-w.ctx.Done():
	}
}

func (w *logWriter) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.buf.Len() == 0 {
		return
	}
	w.emit(w.buf.String())
	w.buf.Reset()
}

func ensureImage(ctx context.Context, cli *client.Client, imageName string) error {
	_, _, err := cli.ImageInspectWithRaw(ctx, imageName)
	if err == nil {
		return nil
	}
	if !client.IsErrNotFound(err) {
		return fmt.Errorf("inspect image: %w", err)
	}
	reader, err := cli.ImagePull(ctx, imageName, types.ImagePullOptions{})
	if err != nil {
		return fmt.Errorf("pull image: %w", err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

func buildConfigs(spec runtime.StartSpec) (*container.Config, *container.HostConfig, error) {
	env := make([]string, 0, len(spec.Env))
	for k, v := range spec.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	sort.Strings(env)

	exposed := nat.PortSet{}
	bindings := nat.PortMap{}
	for _, portSpec := range spec.Ports {
		mappings, err := nat.ParsePortSpec(portSpec)
		if err != nil {
			return nil, nil, fmt.Errorf("parse port %q: %w", portSpec, err)
		}
		for _, mapping := range mappings {
			exposed[mapping.Port] = struct{}{}
			bindings[mapping.Port] = append(bindings[mapping.Port], mapping.Binding)
		}
	}

	containerCfg := &container.Config{
		Image:        spec.Image,
		Env:          env,
		ExposedPorts: exposed,
		WorkingDir:   spec.Workdir,
	}
	if len(spec.Command) > 0 {
		containerCfg.Cmd = strslice.StrSlice(spec.Command)
	}

	hostCfg := &container.HostConfig{
		PortBindings: bindings,
	}
	return containerCfg, hostCfg, nil
}
