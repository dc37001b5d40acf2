//go:build windows

package process

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func (h *handle) Kill(ctx context.Context) error {
	if h.cmd.Process == nil {
		return nil
	}

	if err := h.cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
		return fmt.Errorf("kill process %s: %w", h.name, err)
	}

	select {
	case <-h.waitDone:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
