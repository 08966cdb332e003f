package queue

import "context"

// Task is one pending send operation. The queue owns it after enqueue; it is
// dropped after execution, successful or not.
type Task struct {
	ChatID      int64
	Run         func(context.Context) error
	Description string
	GroupID     string
	Priority    bool
}

// Options adjusts how a task is queued.
type Options struct {
	// GroupID buffers the task under the named group instead of queueing it
	// directly; the whole group is queued as one unit on CompleteGroup.
	GroupID string
	// Priority inserts the task at the head of the destination queue. The most
	// recently enqueued priority task jumps the line.
	Priority bool
}
