package queue

import (
	"context"
	"log"
	"time"
)

const (
	defaultMaxAttempts  = 3
	defaultRetryDelay   = time.Second
	defaultMessageDelay = 200 * time.Millisecond
)

// ProcessorConfig tunes the drain loop. Zero values take the defaults.
type ProcessorConfig struct {
	// MaxAttempts is the total invocation budget per task, including the first.
	MaxAttempts int
	// RetryDelay is the initial wait between attempts.
	RetryDelay time.Duration
	// MessageDelay is the fixed pause between consecutive messages to the same
	// destination, to stay inside the transport's rate limits.
	MessageDelay time.Duration
}

// Processor drains one destination at a time: pop, execute with retry, pause,
// repeat until the queue is empty, then mark the destination idle. A task that
// exhausts its retries is logged and dropped so it never blocks the messages
// behind it.
type Processor struct {
	queue        *Queue
	maxAttempts  int
	retryDelay   time.Duration
	messageDelay time.Duration
	logger       *log.Logger
}

func NewProcessor(q *Queue, config ProcessorConfig, logger *log.Logger) *Processor {
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaultMaxAttempts
	}
	if config.RetryDelay <= 0 {
		config.RetryDelay = defaultRetryDelay
	}
	if config.MessageDelay <= 0 {
		config.MessageDelay = defaultMessageDelay
	}
	return &Processor{
		queue:        q,
		maxAttempts:  config.MaxAttempts,
		retryDelay:   config.RetryDelay,
		messageDelay: config.MessageDelay,
		logger:       logger,
	}
}

// Kick starts a drain loop for the destination unless one is already running.
// Enqueues onto a busy destination rely on the running loop's repeat-until-
// empty check instead of starting a second loop.
func (p *Processor) Kick(ctx context.Context, chatID int64) {
	if !p.queue.claim(chatID) {
		return
	}
	go p.drain(ctx, chatID)
}

func (p *Processor) drain(ctx context.Context, chatID int64) {
	for {
		task := p.queue.popOrRelease(chatID)
		if task == nil {
			return
		}

		p.logf("processing message chat=%d desc=%q remaining=%d", chatID, task.Description, p.queue.Len(chatID))
		if err := WithRetry(ctx, task.Run, p.maxAttempts, p.retryDelay); err != nil {
			// The task is dropped; the queue head advances regardless.
			p.logf("message dropped chat=%d desc=%q err=%v", chatID, task.Description, err)
		}

		if err := sleepContext(ctx, p.messageDelay); err != nil {
			p.queue.release(chatID)
			return
		}
	}
}

func (p *Processor) logf(format string, args ...any) {
	if p.logger != nil {
		p.logger.Printf(format, args...)
	}
}
