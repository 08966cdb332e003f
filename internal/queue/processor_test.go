package queue

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// recorder collects execution order across goroutines.
type recorder struct {
	mu    sync.Mutex
	order []string
	done  chan struct{}
	want  int
}

func newRecorder(want int) *recorder {
	return &recorder{done: make(chan struct{}), want: want}
}

func (r *recorder) task(name string) func(context.Context) error {
	return func(context.Context) error {
		r.mu.Lock()
		r.order = append(r.order, name)
		if len(r.order) == r.want {
			close(r.done)
		}
		r.mu.Unlock()
		return nil
	}
}

func (r *recorder) wait(t *testing.T) []string {
	t.Helper()
	select {
	case <-r.done:
	case <-time.After(5 * time.Second):
		t.Fatalf("timed out waiting for tasks, got %v", r.snapshot())
	}
	return r.snapshot()
}

func (r *recorder) snapshot() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.order...)
}

func fastOutbox() *Outbox {
	return NewOutbox(Config{
		MaxAttempts:  2,
		RetryDelay:   time.Millisecond,
		MessageDelay: time.Millisecond,
		GroupDelay:   time.Millisecond,
	}, nil)
}

func TestProcessorExecutesFIFOPerDestination(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(3)
	outbox := fastOutbox()

	// Hold the drain loop on a gate so A, B, C are all queued before any runs.
	gate := make(chan struct{})
	outbox.Enqueue(ctx, 1, func(context.Context) error {
		<-gate
		return nil
	}, "gate", Options{})

	outbox.Enqueue(ctx, 1, rec.task("A"), "A", Options{})
	outbox.Enqueue(ctx, 1, rec.task("B"), "B", Options{})
	outbox.Enqueue(ctx, 1, rec.task("C"), "C", Options{})
	close(gate)

	order := rec.wait(t)
	want := []string{"A", "B", "C"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected FIFO order %v, got %v", want, order)
		}
	}
}

func TestProcessorPriorityTaskOvertakesQueued(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(2)
	outbox := fastOutbox()

	gate := make(chan struct{})
	outbox.Enqueue(ctx, 1, func(context.Context) error {
		<-gate
		return nil
	}, "gate", Options{})

	outbox.Enqueue(ctx, 1, rec.task("normal"), "normal", Options{})
	outbox.Enqueue(ctx, 1, rec.task("urgent"), "urgent", Options{Priority: true})
	close(gate)

	order := rec.wait(t)
	if order[0] != "urgent" || order[1] != "normal" {
		t.Fatalf("expected priority task first, got %v", order)
	}
}

func TestProcessorFailedTaskDoesNotBlockQueue(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(2)
	outbox := fastOutbox()

	var failures int
	var mu sync.Mutex

	outbox.Enqueue(ctx, 1, rec.task("first"), "first", Options{})
	outbox.Enqueue(ctx, 1, func(context.Context) error {
		mu.Lock()
		failures++
		mu.Unlock()
		return errors.New("permanent failure")
	}, "second", Options{})
	outbox.Enqueue(ctx, 1, rec.task("third"), "third", Options{})

	order := rec.wait(t)
	if order[0] != "first" || order[1] != "third" {
		t.Fatalf("expected surviving tasks in order, got %v", order)
	}

	mu.Lock()
	got := failures
	mu.Unlock()
	if got != 2 {
		t.Fatalf("expected the failing task to use its full attempt budget (2), got %d", got)
	}
}

func TestProcessorMarksDestinationIdleAfterDrain(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(1)
	outbox := fastOutbox()

	outbox.Enqueue(ctx, 1, rec.task("only"), "only", Options{})
	rec.wait(t)

	deadline := time.After(2 * time.Second)
	for outbox.IsBusy(1) {
		select {
		case <-deadline:
			t.Fatalf("destination still busy after drain")
		case <-time.After(5 * time.Millisecond):
		}
	}
	if outbox.Len(1) != 0 {
		t.Fatalf("expected empty queue, got %d", outbox.Len(1))
	}
}

func TestProcessorSingleFlightPerDestination(t *testing.T) {
	ctx := context.Background()
	outbox := fastOutbox()

	var mu sync.Mutex
	running := 0
	maxRunning := 0
	done := make(chan struct{})
	total := 10

	var completed int
	for i := 0; i < total; i++ {
		outbox.Enqueue(ctx, 1, func(context.Context) error {
			mu.Lock()
			running++
			if running > maxRunning {
				maxRunning = running
			}
			mu.Unlock()

			time.Sleep(2 * time.Millisecond)

			mu.Lock()
			running--
			completed++
			if completed == total {
				close(done)
			}
			mu.Unlock()
			return nil
		}, "concurrent probe", Options{})
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("tasks did not finish")
	}

	mu.Lock()
	defer mu.Unlock()
	if maxRunning != 1 {
		t.Fatalf("expected at most one task in flight per destination, saw %d", maxRunning)
	}
}
