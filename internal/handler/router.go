package handler

import (
	"context"
	"log"

	"github.com/gruasmx/dispatch-bot/internal/auth"
	"github.com/gruasmx/dispatch-bot/internal/domain"
)

// Router is the single entry point for updates coming off the polling loop.
// Unauthorized chats are dropped before any handler sees them.
type Router struct {
	auth      *auth.Service
	registry  *Registry
	callbacks *CallbackHandler
	logger    *log.Logger
}

func NewRouter(authService *auth.Service, registry *Registry, callbacks *CallbackHandler, logger *log.Logger) *Router {
	return &Router{
		auth:      authService,
		registry:  registry,
		callbacks: callbacks,
		logger:    logger,
	}
}

func (r *Router) Route(ctx context.Context, update domain.Update) {
	if update.Callback != nil {
		if !r.auth.IsAllowed(update.Callback.ChatID) {
			r.logf("dropped callback from unauthorized chat %d", update.Callback.ChatID)
			return
		}
		r.callbacks.Handle(ctx, update.Callback)
		return
	}

	if update.Message == nil || update.Message.Text == "" {
		return
	}
	if !r.auth.IsAllowed(update.Message.ChatID) {
		r.logf("dropped message from unauthorized chat %d", update.Message.ChatID)
		return
	}
	if !r.registry.Dispatch(ctx, update.Message) {
		r.logf("no handler matched message from chat %d", update.Message.ChatID)
	}
}

func (r *Router) logf(format string, args ...any) {
	if r.logger != nil {
		r.logger.Printf(format, args...)
	}
}
