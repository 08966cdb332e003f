package queue

import (
	"context"
	"errors"
	"testing"
)

func TestGroupsAddAndTake(t *testing.T) {
	g := NewGroups(nil)
	g.Add("g1", task(1, "first", false))
	g.Add("g1", task(1, "second", false))

	tasks, ok := g.take("g1")
	if !ok {
		t.Fatalf("expected bucket g1")
	}
	if len(tasks) != 2 || tasks[0].Description != "first" || tasks[1].Description != "second" {
		t.Fatalf("expected insertion order, got %+v", tasks)
	}
	if _, ok := g.take("g1"); ok {
		t.Fatalf("a taken bucket must not be retrievable again")
	}
}

func TestCompleteGroupUnknownIsNoOp(t *testing.T) {
	outbox := fastOutbox()
	outbox.CompleteGroup(context.Background(), "never-created", 1, false)
	if outbox.Len(1) != 0 {
		t.Fatalf("unknown group must not enqueue anything")
	}
}

func TestCompleteGroupDeliversContiguously(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(4)
	outbox := fastOutbox()

	gate := make(chan struct{})
	outbox.Enqueue(ctx, 1, func(context.Context) error {
		<-gate
		return nil
	}, "gate", Options{})

	outbox.Enqueue(ctx, 1, rec.task("g1"), "g1", Options{GroupID: "grp"})
	outbox.Enqueue(ctx, 1, rec.task("other-a"), "other-a", Options{})
	outbox.Enqueue(ctx, 1, rec.task("g2"), "g2", Options{GroupID: "grp"})
	outbox.Enqueue(ctx, 1, rec.task("other-b"), "other-b", Options{})
	outbox.CompleteGroup(ctx, "grp", 1, false)
	close(gate)

	order := rec.wait(t)

	// The group may be delayed relative to other tasks, but once started its
	// items run back to back with nothing interleaved.
	g1 := index(order, "g1")
	g2 := index(order, "g2")
	if g1 == -1 || g2 == -1 {
		t.Fatalf("group items missing from %v", order)
	}
	if g2 != g1+1 {
		t.Fatalf("expected g1 and g2 adjacent, got %v", order)
	}
}

func TestCompleteGroupWithPriorityOvertakesQueued(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(3)
	outbox := fastOutbox()

	gate := make(chan struct{})
	outbox.Enqueue(ctx, 1, func(context.Context) error {
		<-gate
		return nil
	}, "gate", Options{})

	outbox.Enqueue(ctx, 1, rec.task("plain"), "plain", Options{})
	outbox.Enqueue(ctx, 1, rec.task("g1"), "g1", Options{GroupID: "urgent"})
	outbox.Enqueue(ctx, 1, rec.task("g2"), "g2", Options{GroupID: "urgent"})
	outbox.CompleteGroup(ctx, "urgent", 1, true)
	close(gate)

	order := rec.wait(t)
	want := []string{"g1", "g2", "plain"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("expected priority group first, got %v", order)
		}
	}
}

func TestCompleteGroupContainsItemFailures(t *testing.T) {
	ctx := context.Background()
	rec := newRecorder(2)
	outbox := fastOutbox()

	outbox.Enqueue(ctx, 1, rec.task("before"), "before", Options{GroupID: "grp"})
	outbox.Enqueue(ctx, 1, func(context.Context) error {
		return errors.New("boom")
	}, "failing item", Options{GroupID: "grp"})
	outbox.Enqueue(ctx, 1, rec.task("after"), "after", Options{GroupID: "grp"})
	outbox.CompleteGroup(ctx, "grp", 1, false)

	order := rec.wait(t)
	if order[0] != "before" || order[1] != "after" {
		t.Fatalf("expected items around the failure to run, got %v", order)
	}
}

func TestPendingGroupsReportsBufferedSizes(t *testing.T) {
	outbox := fastOutbox()
	ctx := context.Background()

	outbox.Enqueue(ctx, 1, func(context.Context) error { return nil }, "a", Options{GroupID: "g1"})
	outbox.Enqueue(ctx, 1, func(context.Context) error { return nil }, "b", Options{GroupID: "g1"})
	outbox.Enqueue(ctx, 2, func(context.Context) error { return nil }, "c", Options{GroupID: "g2"})

	pending := outbox.PendingGroups()
	if pending["g1"] != 2 || pending["g2"] != 1 {
		t.Fatalf("unexpected pending groups: %v", pending)
	}

	outbox.CompleteGroup(ctx, "g1", 1, false)
	if got := outbox.PendingGroups(); got["g1"] != 0 {
		t.Fatalf("completed group should leave the buffer, got %v", got)
	}
}

func index(values []string, target string) int {
	for i, v := range values {
		if v == target {
			return i
		}
	}
	return -1
}
