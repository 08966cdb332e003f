package handler

import (
	"context"
	"log"
	"strings"

	"github.com/gruasmx/dispatch-bot/internal/domain"
	"github.com/gruasmx/dispatch-bot/internal/geo"
	"github.com/gruasmx/dispatch-bot/internal/queue"
	"github.com/gruasmx/dispatch-bot/internal/state"
	"github.com/gruasmx/dispatch-bot/internal/telegram"
)

// Extractor is the slice of the AI client the service-text handler needs.
type Extractor interface {
	Available() bool
	Extract(ctx context.Context, text string) (domain.ExtractedService, error)
}

// ServiceFlow is the slice of the dispatch service the message handlers
// drive.
type ServiceFlow interface {
	ServiceTextExtracted(ctx context.Context, originChatID int64, extracted domain.ExtractedService)
	MapLinkReceived(ctx context.Context, originChatID int64, url string, coordinates []string)
	TimingObserved(ctx context.Context)
}

// Dependencies wires the message handlers.
type Dependencies struct {
	Extractor Extractor
	Flow      ServiceFlow
	Outbox    *queue.Outbox
	Sender    telegram.Sender
	State     *state.Tracker
	Logger    *log.Logger
}

// NewServiceTextHandler recognizes pasted service pages: long text carrying
// the towing keywords. Extraction runs as a priority task on the origin
// chat's queue so the later map link cannot overtake it.
func NewServiceTextHandler(deps Dependencies) MessageHandler {
	return MessageHandler{
		Name: "service-text",
		CanHandle: func(msg *domain.Message) bool {
			text := msg.Text
			if len(text) <= 200 {
				return false
			}
			return strings.Contains(text, "GRUAS") ||
				strings.Contains(text, "Servicio") ||
				strings.Contains(text, "Vehículo")
		},
		Handle: func(ctx context.Context, msg *domain.Message) error {
			chatID := msg.ChatID
			text := msg.Text

			if !deps.Extractor.Available() {
				_, err := deps.Sender.SendMessage(ctx, chatID, "❌ El procesamiento de texto no está disponible: falta configurar OPENAI_API_KEY.", telegram.SendOptions{})
				return err
			}

			deps.State.SetExtracting(chatID, true)
			deps.Outbox.Enqueue(ctx, chatID, func(ctx context.Context) error {
				defer deps.State.SetExtracting(chatID, false)
				return processServiceText(ctx, deps, chatID, text)
			}, "procesamiento de texto de servicio con ChatGPT", queue.Options{Priority: true})
			return nil
		},
	}
}

// processServiceText reports extraction failures to the operator instead of
// returning them: a malformed page must not trigger queue retries.
func processServiceText(ctx context.Context, deps Dependencies, chatID int64, text string) error {
	noticeID, err := deps.Sender.SendMessage(ctx, chatID, "🧠 Procesando texto con ChatGPT... esto puede tomar unos segundos ⏳", telegram.SendOptions{})
	if err != nil {
		return err
	}

	extracted, err := deps.Extractor.Extract(ctx, text)

	if deleteErr := deps.Sender.DeleteMessage(ctx, chatID, noticeID); deleteErr != nil {
		logf(deps.Logger, "warn: failed to delete the processing notice in chat %d: %v", chatID, deleteErr)
	}

	if err != nil {
		logf(deps.Logger, "warn: extraction failed for chat %d: %v", chatID, err)
		if _, sendErr := deps.Sender.SendMessage(ctx, chatID, "❌ Error al procesar el texto: "+err.Error(), telegram.SendOptions{}); sendErr != nil {
			logf(deps.Logger, "warn: failed to report extraction error to chat %d: %v", chatID, sendErr)
		}
		return nil
	}

	deps.Flow.ServiceTextExtracted(ctx, chatID, extracted)

	if _, err := deps.Sender.SendMessage(ctx, chatID, "✅ Los datos del vehículo han sido enviados correctamente al grupo de control.", telegram.SendOptions{}); err != nil {
		logf(deps.Logger, "warn: failed to confirm extraction to chat %d: %v", chatID, err)
	}
	return nil
}

// NewMapsHandler recognizes Google Maps links. A link arriving during an
// extraction is queued behind it without priority, so both halves reach the
// cache in the order the operator sent them.
func NewMapsHandler(deps Dependencies) MessageHandler {
	return MessageHandler{
		Name: "maps-link",
		CanHandle: func(msg *domain.Message) bool {
			text := msg.Text
			return strings.Contains(text, "google.com/maps") ||
				strings.Contains(text, "google.com.mx/maps") ||
				strings.Contains(text, "maps.app.goo.gl")
		},
		Handle: func(ctx context.Context, msg *domain.Message) error {
			chatID := msg.ChatID
			text := msg.Text

			extracting := deps.State.IsExtracting(chatID)
			if extracting {
				if _, err := deps.Sender.SendMessage(ctx, chatID, "⏳ Tu enlace de Google Maps se procesará después de que termine el análisis actual de ChatGPT...", telegram.SendOptions{}); err != nil {
					logf(deps.Logger, "warn: failed to send the wait notice to chat %d: %v", chatID, err)
				}
			}

			deps.Outbox.Enqueue(ctx, chatID, func(ctx context.Context) error {
				return processMapLink(ctx, deps, chatID, text)
			}, "procesamiento de URL de Google Maps", queue.Options{Priority: !extracting})
			return nil
		},
	}
}

func processMapLink(ctx context.Context, deps Dependencies, chatID int64, text string) error {
	coordinates := geo.ExtractCoordinates(text)
	if len(coordinates) == 0 {
		_, err := deps.Sender.SendMessage(ctx, chatID, "No pude encontrar coordenadas en el enlace proporcionado.", telegram.SendOptions{})
		return err
	}

	logf(deps.Logger, "coordinates found in chat %d: %s", chatID, strings.Join(coordinates, ", "))
	deps.Flow.MapLinkReceived(ctx, chatID, text, coordinates)

	if _, err := deps.Sender.SendMessage(ctx, chatID, "✅ URL y coordenadas enviadas correctamente al grupo de control.", telegram.SendOptions{}); err != nil {
		logf(deps.Logger, "warn: failed to confirm coordinates to chat %d: %v", chatID, err)
	}
	return nil
}

// NewTimingDetectorHandler recognizes the arrival-time report the timing
// provider posts into the control group. There is no correlation id on the
// report, so matching it to a record happens heuristically in the cache.
func NewTimingDetectorHandler(flow ServiceFlow) MessageHandler {
	return MessageHandler{
		Name: "timing-detector",
		CanHandle: func(msg *domain.Message) bool {
			text := msg.Text
			if !strings.Contains(text, "Reporte General de Timing") {
				return false
			}
			return strings.Contains(text, "ASÍS VIAL") ||
				strings.Contains(text, "SEGUIMIENTO") ||
				strings.Contains(text, "HERE MATRIX")
		},
		Handle: func(ctx context.Context, msg *domain.Message) error {
			flow.TimingObserved(ctx)
			return nil
		},
	}
}

func logf(logger *log.Logger, format string, args ...any) {
	if logger != nil {
		logger.Printf(format, args...)
	}
}
