// Package handler routes incoming Telegram updates: an allow-list gate, a
// capability-tagged registry for messages and a parser for decision
// callbacks.
package handler

import (
	"context"
	"log"

	"github.com/gruasmx/dispatch-bot/internal/domain"
)

// MessageHandler pairs a capability check with its processing function. The
// registry asks each handler in order and the first match wins.
type MessageHandler struct {
	Name      string
	CanHandle func(msg *domain.Message) bool
	Handle    func(ctx context.Context, msg *domain.Message) error
}

type Registry struct {
	handlers []MessageHandler
	logger   *log.Logger
}

func NewRegistry(logger *log.Logger, handlers ...MessageHandler) *Registry {
	return &Registry{handlers: handlers, logger: logger}
}

// Dispatch runs the first handler whose CanHandle accepts the message.
// Handler errors are contained here: one bad update must not take the
// polling loop down.
func (r *Registry) Dispatch(ctx context.Context, msg *domain.Message) bool {
	for _, h := range r.handlers {
		if !h.CanHandle(msg) {
			continue
		}
		if err := h.Handle(ctx, msg); err != nil {
			r.logf("warn: handler %s failed for chat %d: %v", h.Name, msg.ChatID, err)
		}
		return true
	}
	return false
}

func (r *Registry) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
