package telegram

import (
	"context"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/gruasmx/dispatch-bot/internal/domain"
)

// DispatchFunc receives every inbound update. Implementations must not block
// for long; slow work belongs on the outbox.
type DispatchFunc func(context.Context, domain.Update)

// Runner polls Telegram for updates and forwards them, converted to domain
// types, to the dispatch function.
type Runner struct {
	api      *tgbotapi.BotAPI
	dispatch DispatchFunc
	logger   *log.Logger
}

func NewRunner(api *tgbotapi.BotAPI, dispatch DispatchFunc, logger *log.Logger) *Runner {
	return &Runner{api: api, dispatch: dispatch, logger: logger}
}

func (r *Runner) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := r.api.GetUpdatesChan(updateConfig)

	if r.logger != nil {
		r.logger.Printf("polling for updates as @%s", r.api.Self.UserName)
	}

	for {
		select {
		case <-ctx.Done():
			r.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			converted, ok := convert(update)
			if !ok {
				continue
			}
			r.dispatch(ctx, converted)
		}
	}
}

func convert(update tgbotapi.Update) (domain.Update, bool) {
	switch {
	case update.Message != nil:
		msg := update.Message
		converted := &domain.Message{
			ChatID:    msg.Chat.ID,
			MessageID: msg.MessageID,
			Text:      msg.Text,
			IsGroup:   msg.Chat.IsGroup() || msg.Chat.IsSuperGroup(),
		}
		if msg.From != nil {
			converted.FromID = msg.From.ID
			converted.FromName = msg.From.FirstName
		}
		return domain.Update{Message: converted}, true
	case update.CallbackQuery != nil:
		cb := update.CallbackQuery
		if cb.Message == nil {
			return domain.Update{}, false
		}
		converted := &domain.Callback{
			ID:          cb.ID,
			Data:        cb.Data,
			ChatID:      cb.Message.Chat.ID,
			MessageID:   cb.Message.MessageID,
			MessageText: cb.Message.Text,
		}
		if cb.From != nil {
			converted.FromID = cb.From.ID
			converted.FromName = cb.From.FirstName
		}
		return domain.Update{Callback: converted}, true
	default:
		return domain.Update{}, false
	}
}
