package telegram

import (
	"context"
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"
)

// Button is one inline keyboard button carrying callback data.
type Button struct {
	Text string
	Data string
}

// Buttons is an inline keyboard: rows of buttons. An empty non-nil value
// strips the keyboard from a message.
type Buttons [][]Button

// SendOptions adjusts message formatting.
type SendOptions struct {
	Markdown       bool
	DisablePreview bool
	Buttons        Buttons
}

// Sender is the outbound chat transport the rest of the bot depends on.
// Failures surface as errors; the outbox retry loop is their sole consumer.
type Sender interface {
	SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error)
	EditMessageText(ctx context.Context, chatID int64, messageID int, text string, opts SendOptions) error
	EditMessageButtons(ctx context.Context, chatID int64, messageID int, buttons Buttons) error
	DeleteMessage(ctx context.Context, chatID int64, messageID int) error
	AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error
}

// RateConfig bounds outbound API calls; Telegram enforces roughly 30
// messages per second across all chats.
type RateConfig struct {
	PerSecond float64
	Burst     int
}

// Bot adapts the Telegram Bot API to the Sender contract, pacing every call
// through a shared rate limiter.
type Bot struct {
	api     *tgbotapi.BotAPI
	limiter *rate.Limiter
	logger  *log.Logger
}

func NewBot(api *tgbotapi.BotAPI, rateConfig RateConfig, logger *log.Logger) *Bot {
	if rateConfig.PerSecond <= 0 {
		rateConfig.PerSecond = 25
	}
	if rateConfig.Burst <= 0 {
		rateConfig.Burst = 5
	}
	return &Bot{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(rateConfig.PerSecond), rateConfig.Burst),
		logger:  logger,
	}
}

func (b *Bot) SendMessage(ctx context.Context, chatID int64, text string, opts SendOptions) (int, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	msg := tgbotapi.NewMessage(chatID, text)
	if opts.Markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	msg.DisableWebPagePreview = opts.DisablePreview
	if opts.Buttons != nil {
		msg.ReplyMarkup = keyboard(opts.Buttons)
	}

	sent, err := b.api.Send(msg)
	if err != nil {
		return 0, fmt.Errorf("send message chat=%d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

func (b *Bot) EditMessageText(ctx context.Context, chatID int64, messageID int, text string, opts SendOptions) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	markup := keyboard(opts.Buttons)
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	if opts.Markdown {
		edit.ParseMode = tgbotapi.ModeMarkdown
	}
	edit.DisableWebPagePreview = opts.DisablePreview

	if _, err := b.api.Send(edit); err != nil {
		return fmt.Errorf("edit message chat=%d message=%d: %w", chatID, messageID, err)
	}
	return nil
}

func (b *Bot) EditMessageButtons(ctx context.Context, chatID int64, messageID int, buttons Buttons) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	edit := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID, keyboard(buttons))
	if _, err := b.api.Send(edit); err != nil {
		return fmt.Errorf("edit message buttons chat=%d message=%d: %w", chatID, messageID, err)
	}
	return nil
}

func (b *Bot) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	if _, err := b.api.Request(tgbotapi.NewDeleteMessage(chatID, messageID)); err != nil {
		return fmt.Errorf("delete message chat=%d message=%d: %w", chatID, messageID, err)
	}
	return nil
}

func (b *Bot) AnswerCallback(ctx context.Context, callbackID, text string, alert bool) error {
	if err := b.limiter.Wait(ctx); err != nil {
		return err
	}

	answer := tgbotapi.CallbackConfig{
		CallbackQueryID: callbackID,
		Text:            text,
		ShowAlert:       alert,
	}
	if _, err := b.api.Request(answer); err != nil {
		return fmt.Errorf("answer callback %s: %w", callbackID, err)
	}
	return nil
}

func keyboard(buttons Buttons) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(buttons))
	for _, row := range buttons {
		converted := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, button := range row {
			converted = append(converted, tgbotapi.NewInlineKeyboardButtonData(button.Text, button.Data))
		}
		rows = append(rows, converted)
	}
	return tgbotapi.InlineKeyboardMarkup{InlineKeyboard: rows}
}
