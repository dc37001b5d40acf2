package lifecycle

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
)

func TestDispatchInvokesHandlersInOrder(t *testing.T) {
	reg := NewRegistry()
	var order []string
	reg.Register(EventWindowClosed, func(ctx context.Context) error {
		order = append(order, "first")
		return nil
	})
	reg.Register(EventWindowClosed, func(ctx context.Context) error {
		order = append(order, "second")
		return nil
	})

	if err := reg.Dispatch(context.Background(), EventWindowClosed); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if len(order) != 2 || order[0] != "first" || order[1] != "second" {
		t.Fatalf("expected registration order, got %v", order)
	}
}

func TestDispatchWithoutHandlersIsNoop(t *testing.T) {
	reg := NewRegistry()
	if err := reg.Dispatch(context.Background(), EventAppExit); err != nil {
		t.Fatalf("expected no-op dispatch to succeed, got %v", err)
	}
}

func TestDispatchJoinsHandlerErrors(t *testing.T) {
	reg := NewRegistry()
	errA := errors.New("a failed")
	errB := errors.New("b failed")
	reg.Register(EventAppExit, func(ctx context.Context) error { return errA })
	reg.Register(EventAppExit, func(ctx context.Context) error { return nil })
	reg.Register(EventAppExit, func(ctx context.Context) error { return errB })

	err := reg.Dispatch(context.Background(), EventAppExit)
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Fatalf("expected both handler errors, got %v", err)
	}
}

func TestEventsAreIndependentlyRegistered(t *testing.T) {
	reg := NewRegistry()
	var windowCalls, exitCalls int
	reg.Register(EventWindowClosed, func(ctx context.Context) error {
		windowCalls++
		return nil
	})
	reg.Register(EventAppExit, func(ctx context.Context) error {
		exitCalls++
		return nil
	})

	if err := reg.Dispatch(context.Background(), EventWindowClosed); err != nil {
		t.Fatalf("dispatch: %v", err)
	}
	if windowCalls != 1 || exitCalls != 0 {
		t.Fatalf("expected only window handler to fire, got window=%d exit=%d", windowCalls, exitCalls)
	}
}

func TestConcurrentDispatchIsSafe(t *testing.T) {
	reg := NewRegistry()
	var calls atomic.Int32
	reg.Register(EventAppExit, func(ctx context.Context) error {
		calls.Add(1)
		return nil
	})

	const dispatchers = 8
	var wg sync.WaitGroup
	for i := 0; i < dispatchers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := reg.Dispatch(context.Background(), EventAppExit); err != nil {
				t.Errorf("dispatch: %v", err)
			}
		}()
	}
	wg.Wait()

	if got := calls.Load(); got != dispatchers {
		t.Fatalf("expected %d handler invocations, got %d", dispatchers, got)
	}
}
