package queue

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestWithRetrySucceedsFirstAttempt(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func(context.Context) error {
		calls++
		return nil
	}, 3, time.Millisecond)
	if err != nil {
		t.Fatalf("expected success, got err=%v", err)
	}
	if calls != 1 {
		t.Fatalf("expected 1 call, got %d", calls)
	}
}

func TestWithRetryRecoversAfterFailures(t *testing.T) {
	calls := 0
	err := WithRetry(context.Background(), func(context.Context) error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	}, 5, time.Millisecond)
	if err != nil {
		t.Fatalf("expected success after retries, got err=%v", err)
	}
	if calls != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestWithRetryExhaustionSurfacesLastError(t *testing.T) {
	sentinel := errors.New("always failing")
	calls := 0
	err := WithRetry(context.Background(), func(context.Context) error {
		calls++
		return sentinel
	}, 3, time.Millisecond)
	if calls != 3 {
		t.Fatalf("expected exactly 3 invocations, got %d", calls)
	}
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected wrapped sentinel error, got %v", err)
	}
}

func TestWithRetryStopsOnCanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := WithRetry(ctx, func(context.Context) error {
		calls++
		cancel()
		return errors.New("failing")
	}, 3, 10*time.Second)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected retry loop to stop after cancellation, got %d calls", calls)
	}
}
