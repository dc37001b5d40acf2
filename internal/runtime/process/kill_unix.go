//go:build !windows

package process

import (
	"context"
	"errors"
	"fmt"
	"syscall"
)

func (h *handle) Kill(ctx context.Context) error {
	if h.cmd.Process == nil {
		return nil
	}

	// Signal the whole process group so grandchildren do not outlive the
	// backend. ESRCH means everything already exited.
	if err := syscall.Kill(-h.cmd.Process.Pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
		return fmt.Errorf("kill process group %s: %w", h.name, err)
	}

	select {
	case <-h.waitDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
