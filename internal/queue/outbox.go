package queue

import (
	"context"
	"fmt"
	"log"
	"time"
)

const defaultGroupDelay = 50 * time.Millisecond

// Config tunes the outbox and the processor behind it.
type Config struct {
	MaxAttempts  int
	RetryDelay   time.Duration
	MessageDelay time.Duration
	// GroupDelay is the short pacing pause between the items of a completed
	// group while the composite task runs.
	GroupDelay time.Duration
}

// Outbox is the single outbound-message coordinator: an ordered
// per-destination queue, a group buffer and the processor that drains them.
// One instance is built at startup and injected into every producer.
type Outbox struct {
	queue      *Queue
	groups     *Groups
	processor  *Processor
	groupDelay time.Duration
	logger     *log.Logger
}

func NewOutbox(config Config, logger *log.Logger) *Outbox {
	if config.GroupDelay <= 0 {
		config.GroupDelay = defaultGroupDelay
	}
	q := NewQueue(logger)
	return &Outbox{
		queue:  q,
		groups: NewGroups(logger),
		processor: NewProcessor(q, ProcessorConfig{
			MaxAttempts:  config.MaxAttempts,
			RetryDelay:   config.RetryDelay,
			MessageDelay: config.MessageDelay,
		}, logger),
		groupDelay: config.GroupDelay,
		logger:     logger,
	}
}

// Enqueue queues one send operation for the destination. Tasks carrying a
// group id are buffered until their group completes; everything else is queued
// directly, and processing starts if the destination is idle.
func (o *Outbox) Enqueue(ctx context.Context, chatID int64, run func(context.Context) error, description string, opts Options) {
	task := &Task{
		ChatID:      chatID,
		Run:         run,
		Description: description,
		GroupID:     opts.GroupID,
		Priority:    opts.Priority,
	}
	if task.GroupID != "" {
		o.groups.Add(task.GroupID, task)
		return
	}
	o.queue.Push(task)
	o.processor.Kick(ctx, chatID)
}

// CompleteGroup folds the named group into one composite task appended to the
// destination queue. The composite runs the grouped tasks in insertion order
// with a short pacing pause between them; a failing item is logged and the
// rest of the group still runs. Completing an unknown group is a logged no-op.
func (o *Outbox) CompleteGroup(ctx context.Context, groupID string, chatID int64, priority bool) {
	tasks, ok := o.groups.take(groupID)
	if !ok {
		o.logf("warn: message group %s not found for completion", groupID)
		return
	}

	composite := &Task{
		ChatID:      chatID,
		Priority:    priority,
		Description: fmt.Sprintf("message group %s (%d messages)", groupID, len(tasks)),
		Run: func(ctx context.Context) error {
			o.logf("processing message group %s (%d messages)", groupID, len(tasks))
			for _, item := range tasks {
				if err := item.Run(ctx); err != nil {
					o.logf("group %s item failed desc=%q err=%v", groupID, item.Description, err)
				}
				if err := sleepContext(ctx, o.groupDelay); err != nil {
					return err
				}
			}
			return nil
		},
	}

	o.queue.Push(composite)
	o.processor.Kick(ctx, chatID)
	o.logf("message group %s completed and queued chat=%d", groupID, chatID)
}

// Clear discards every pending task for the destination and marks it idle.
func (o *Outbox) Clear(chatID int64) int {
	return o.queue.Clear(chatID)
}

func (o *Outbox) Len(chatID int64) int {
	return o.queue.Len(chatID)
}

func (o *Outbox) IsBusy(chatID int64) bool {
	return o.queue.IsBusy(chatID)
}

// PendingGroups reports the sizes of groups still being buffered.
func (o *Outbox) PendingGroups() map[string]int {
	return o.groups.Pending()
}

func (o *Outbox) logf(format string, args ...any) {
	if o.logger != nil {
		o.logger.Printf(format, args...)
	}
}
