package retry

import (
	"context"
	"errors"
	"testing"
	"time"
)

func fastConfig(attempts int) Config {
	return Config{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestWithRetry_SucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		if calls < 3 {
			return errors.New("blip")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected 3 calls, got %d", calls)
	}
}

func TestWithRetry_ExhaustsBudget(t *testing.T) {
	calls := 0
	sentinel := errors.New("still broken")
	err := WithRetry(context.Background(), fastConfig(3), func() error {
		calls++
		return sentinel
	})
	if err == nil {
		t.Fatal("Expected error after exhausting attempts")
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected wrapped sentinel, got %v", err)
	}
	if calls != 3 {
		t.Errorf("Expected exactly 3 calls, got %d", calls)
	}
}

func TestWithRetry_PermanentShortCircuits(t *testing.T) {
	calls := 0
	sentinel := errors.New("no listings under any selector")
	err := WithRetry(context.Background(), fastConfig(5), func() error {
		calls++
		return Stop(sentinel)
	})
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Errorf("Expected unwrapped sentinel, got %v", err)
	}
}

func TestWithRetry_ClassifierStopsRetry(t *testing.T) {
	cfg := fastConfig(5)
	cfg.Retryable = func(err error) bool { return false }

	calls := 0
	err := WithRetry(context.Background(), cfg, func() error {
		calls++
		return errors.New("structural")
	})
	if calls != 1 {
		t.Errorf("Expected 1 call, got %d", calls)
	}
	if err == nil {
		t.Error("Expected error to propagate")
	}
}

func TestWithRetry_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cfg := fastConfig(10)
	cfg.InitialBackoff = time.Hour // would block forever without cancellation

	done := make(chan error, 1)
	go func() {
		done <- WithRetry(ctx, cfg, func() error { return errors.New("blip") })
	}()
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("Expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("WithRetry did not observe cancellation")
	}
}

func TestIsTimeout(t *testing.T) {
	if !IsTimeout(context.DeadlineExceeded) {
		t.Error("Expected DeadlineExceeded to be a timeout")
	}
	if IsTimeout(errors.New("other")) {
		t.Error("Expected plain error to not be a timeout")
	}
}
