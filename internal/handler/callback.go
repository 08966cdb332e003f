package handler

import (
	"context"
	"log"
	"strconv"
	"strings"

	"github.com/gruasmx/dispatch-bot/internal/domain"
)

// DecisionFlow is the slice of the dispatch service driven by keyboard
// callbacks.
type DecisionFlow interface {
	Take(ctx context.Context, cb *domain.Callback, serviceID string)
	TakeWithDuration(ctx context.Context, cb *domain.Callback, serviceID string, minutes int)
	Reject(ctx context.Context, cb *domain.Callback, serviceID string)
}

// CallbackHandler parses decision keyboard data: "take_service:<id>",
// "take_minutes:<id>:<minutes>" and "reject_service:<id>".
type CallbackHandler struct {
	flow   DecisionFlow
	logger *log.Logger
}

func NewCallbackHandler(flow DecisionFlow, logger *log.Logger) *CallbackHandler {
	return &CallbackHandler{flow: flow, logger: logger}
}

func (h *CallbackHandler) Handle(ctx context.Context, cb *domain.Callback) {
	parts := strings.Split(cb.Data, ":")

	switch {
	case parts[0] == "take_service" && len(parts) == 2:
		h.flow.Take(ctx, cb, parts[1])
	case parts[0] == "take_minutes" && len(parts) == 3:
		minutes, err := strconv.Atoi(parts[2])
		if err != nil {
			h.logf("warn: malformed duration in callback %q: %v", cb.Data, err)
			return
		}
		h.flow.TakeWithDuration(ctx, cb, parts[1], minutes)
	case parts[0] == "reject_service" && len(parts) == 2:
		h.flow.Reject(ctx, cb, parts[1])
	default:
		h.logf("warn: unrecognized callback data %q from chat %d", cb.Data, cb.ChatID)
	}
}

func (h *CallbackHandler) logf(format string, args ...any) {
	if h.logger != nil {
		h.logger.Printf(format, args...)
	}
}
