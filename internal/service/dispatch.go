package service

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/google/uuid"

	"github.com/gruasmx/dispatch-bot/internal/cache"
	"github.com/gruasmx/dispatch-bot/internal/domain"
	"github.com/gruasmx/dispatch-bot/internal/queue"
	"github.com/gruasmx/dispatch-bot/internal/telegram"
)

// Callback data prefixes for the decision keyboard.
const (
	ActionTake        = "take_service"
	ActionTakeMinutes = "take_minutes"
	ActionReject      = "reject_service"
)

// DurationChoices are the take durations offered to the operator, in minutes.
var DurationChoices = []int{60, 90, 120}

const unavailableNotice = "⚠️ Este servicio ya no está disponible."

// TimingRequester asks the external timing provider for an arrival-time
// report. The report itself arrives later as a group message.
type TimingRequester interface {
	RequestReport(ctx context.Context, coordinate string, chatID int64) error
}

// Dependencies wires the dispatch service.
type Dependencies struct {
	Cache       *cache.ServiceCache
	Outbox      *queue.Outbox
	Sender      telegram.Sender
	Timing      TimingRequester
	GroupChatID int64
	Logger      *log.Logger
}

// Dispatch drives a service record through its lifecycle: collecting halves,
// requesting timing, showing the take/reject keyboard and delivering the full
// detail set once an operator commits. All rendering goes through the outbox
// so the control group sees every notification in order.
type Dispatch struct {
	cache       *cache.ServiceCache
	outbox      *queue.Outbox
	sender      telegram.Sender
	timing      TimingRequester
	groupChatID int64
	logger      *log.Logger
}

func NewDispatch(deps Dependencies) *Dispatch {
	return &Dispatch{
		cache:       deps.Cache,
		outbox:      deps.Outbox,
		sender:      deps.Sender,
		timing:      deps.Timing,
		groupChatID: deps.GroupChatID,
		logger:      deps.Logger,
	}
}

// ServiceTextExtracted merges freshly extracted service fields into the
// matching pending record (or a new one) and announces them to the control
// group as one atomic block.
func (d *Dispatch) ServiceTextExtracted(ctx context.Context, originChatID int64, extracted domain.ExtractedService) {
	messages := extracted.Messages()
	record, created := d.cache.MergeExtracted(originChatID, messages)
	d.logf("service %s fields extracted created=%t state=%s", record.ID, created, record.State())

	groupID := "service_" + uuid.NewString()
	d.enqueueGroupText(ctx, groupID, "🚨👀 Oigan...", false, "alerta inicial")
	d.enqueueGroupText(ctx, groupID, "⚠️📍 Hay un posible servicio de *CHUBB*", true, "alerta CHUBB")
	d.enqueueGroupText(ctx, groupID, "🚗💨 ¿A alguien le queda?", true, "pregunta disponibilidad")
	for i, message := range messages {
		d.enqueueGroupText(ctx, groupID, message, false, fmt.Sprintf("dato %d: %s", i+1, truncate(message, 30)))
	}
	d.appendTimingStage(ctx, groupID, record)
	d.outbox.CompleteGroup(ctx, groupID, d.groupChatID, true)
}

// MapLinkReceived is the symmetric entry for the url+coordinates half.
func (d *Dispatch) MapLinkReceived(ctx context.Context, originChatID int64, url string, coordinates []string) {
	record, created := d.cache.MergeMapLink(originChatID, url, coordinates)
	d.logf("service %s map link received created=%t state=%s", record.ID, created, record.State())

	groupID := "coords_" + uuid.NewString()
	d.enqueueGroupText(ctx, groupID, url, false, "envío de URL original")
	for _, coordinate := range coordinates {
		d.enqueueGroupText(ctx, groupID, coordinate, false, "coordenada "+coordinate)
	}
	d.appendTimingStage(ctx, groupID, record)
	d.outbox.CompleteGroup(ctx, groupID, d.groupChatID, false)
}

// appendTimingStage, once a record has both halves, appends the decision
// message render and the timing request to the group being built, so the
// whole announcement lands as one block.
func (d *Dispatch) appendTimingStage(ctx context.Context, groupID string, record *domain.ServiceRecord) {
	if !record.Complete() || record.HasTimings || record.WaitingForTiming {
		return
	}
	if !d.cache.MarkWaitingForTiming(record.ID) {
		return
	}

	recordID := record.ID
	vehicle := vehicleLine(record)
	mapURL := record.MapURL
	coordinate := record.Coordinates[0]

	d.outbox.Enqueue(ctx, d.groupChatID, func(ctx context.Context) error {
		messageID, err := d.sender.SendMessage(ctx, d.groupChatID, pendingMessage(vehicle, mapURL), telegram.SendOptions{Markdown: true})
		if err != nil {
			return err
		}
		if !d.cache.SetRenderedMessage(recordID, messageID) {
			d.logf("warn: service %s vanished before its message was rendered", recordID)
		}
		return nil
	}, "mensaje de servicio pendiente", queue.Options{GroupID: groupID})

	d.outbox.Enqueue(ctx, d.groupChatID, func(ctx context.Context) error {
		if _, err := d.sender.SendMessage(ctx, d.groupChatID, "⏱️ *Calculando tiempos de llegada...*", telegram.SendOptions{Markdown: true}); err != nil {
			return err
		}
		// Timing failure must not block the record: the fallback matching
		// heuristic can still move it to ready if a report shows up.
		if err := d.timing.RequestReport(ctx, coordinate, d.groupChatID); err != nil {
			d.logf("warn: timing request failed for service %s: %v", recordID, err)
		}
		return nil
	}, "solicitud de timing", queue.Options{GroupID: groupID})
}

// TimingObserved reacts to a timing report seen in the control group: the
// matched record becomes ready and its message gains the take/reject keyboard.
func (d *Dispatch) TimingObserved(ctx context.Context) {
	record, ok := d.cache.ObserveTiming()
	if !ok {
		d.logf("warn: timing report observed with no matching service")
		return
	}
	if record.RenderedMessageID == 0 {
		d.logf("warn: service %s has timing but no rendered message to update", record.ID)
		return
	}

	err := d.sender.EditMessageText(ctx, d.groupChatID, record.RenderedMessageID, readyMessage(record), telegram.SendOptions{
		Markdown: true,
		Buttons: telegram.Buttons{{
			{Text: "✅ Tomar Servicio", Data: ActionTake + ":" + record.ID},
			{Text: "❌ Rechazar", Data: ActionReject + ":" + record.ID},
		}},
	})
	if err != nil {
		d.logf("warn: failed to attach decision buttons for service %s: %v", record.ID, err)
		return
	}
	d.logf("service %s ready, decision buttons shown", record.ID)
}

// Take reacts to the take button: the operator first picks a duration.
func (d *Dispatch) Take(ctx context.Context, cb *domain.Callback, serviceID string) {
	record, ok := d.cache.BeginDurationSelection(serviceID)
	if !ok {
		d.answerUnavailable(ctx, cb)
		return
	}

	if err := d.sender.AnswerCallback(ctx, cb.ID, "Selecciona la duración del servicio", false); err != nil {
		d.logf("warn: answer callback failed: %v", err)
	}

	rows := make(telegram.Buttons, 0, 1)
	row := make([]telegram.Button, 0, len(DurationChoices))
	for _, minutes := range DurationChoices {
		row = append(row, telegram.Button{
			Text: fmt.Sprintf("⏱ %d min", minutes),
			Data: fmt.Sprintf("%s:%s:%d", ActionTakeMinutes, record.ID, minutes),
		})
	}
	rows = append(rows, row)

	if err := d.sender.EditMessageButtons(ctx, cb.ChatID, cb.MessageID, rows); err != nil {
		d.logf("warn: failed to show duration keyboard for service %s: %v", record.ID, err)
	}
}

// TakeWithDuration finalizes a take: first committer wins, the message loses
// its buttons and the full detail set is delivered as one high-priority group.
func (d *Dispatch) TakeWithDuration(ctx context.Context, cb *domain.Callback, serviceID string, minutes int) {
	record, ok := d.cache.Decide(serviceID, domain.Decision{
		State:   domain.DecisionTaken,
		By:      cb.FromName,
		Minutes: minutes,
	})
	if !ok {
		d.answerUnavailable(ctx, cb)
		return
	}
	d.logf("service %s taken by %s for %d minutes", record.ID, cb.FromName, minutes)

	if err := d.sender.AnswerCallback(ctx, cb.ID, "✅ Servicio tomado! Mostrando detalles completos...", false); err != nil {
		d.logf("warn: answer callback failed: %v", err)
	}

	updated := fmt.Sprintf("%s\n\n✅ *SERVICIO TOMADO POR %s (%d min)*", cb.MessageText, cb.FromName, minutes)
	if err := d.sender.EditMessageText(ctx, cb.ChatID, cb.MessageID, updated, telegram.SendOptions{Markdown: true, Buttons: telegram.Buttons{}}); err != nil {
		// Keep going: delivering the details matters more than the banner.
		d.logf("warn: failed to update taken message for service %s: %v", record.ID, err)
	}

	d.deliverDetails(ctx, cb.ChatID, record)
}

// Reject reacts to the reject button: first committer wins and the record
// leaves the cache with no detail delivery.
func (d *Dispatch) Reject(ctx context.Context, cb *domain.Callback, serviceID string) {
	record, ok := d.cache.Decide(serviceID, domain.Decision{
		State: domain.DecisionRejected,
		By:    cb.FromName,
	})
	if !ok {
		d.answerUnavailable(ctx, cb)
		return
	}
	d.logf("service %s rejected by %s", record.ID, cb.FromName)

	if err := d.sender.AnswerCallback(ctx, cb.ID, "❌ Servicio rechazado.", false); err != nil {
		d.logf("warn: answer callback failed: %v", err)
	}

	updated := fmt.Sprintf("%s\n\n❌ *SERVICIO RECHAZADO POR %s*\n\n⚠️ *Este servicio ha sido rechazado y no será procesado.*", cb.MessageText, cb.FromName)
	if err := d.sender.EditMessageText(ctx, cb.ChatID, cb.MessageID, updated, telegram.SendOptions{Markdown: true, Buttons: telegram.Buttons{}}); err != nil {
		d.logf("warn: failed to update rejected message for service %s: %v", record.ID, err)
	}
}

// deliverDetails sends the full detail set in the canonical order: header,
// extracted fields, coordinates, confirmation.
func (d *Dispatch) deliverDetails(ctx context.Context, chatID int64, record *domain.ServiceRecord) {
	groupID := "details_" + uuid.NewString()

	d.enqueueGroupTo(ctx, chatID, groupID, "📋 *INFORMACIÓN COMPLETA DEL SERVICIO:*", true, "cabecera de detalles")
	for i, message := range record.Messages {
		d.enqueueGroupTo(ctx, chatID, groupID, message, false, fmt.Sprintf("dato %d: %s", i+1, truncate(message, 20)))
	}
	if len(record.Coordinates) > 0 {
		d.enqueueGroupTo(ctx, chatID, groupID, "📍 *COORDENADAS:*", true, "cabecera de coordenadas")
		for _, coordinate := range record.Coordinates {
			d.enqueueGroupTo(ctx, chatID, groupID, coordinate, false, "coordenada "+coordinate)
		}
	}
	d.enqueueGroupTo(ctx, chatID, groupID, "✅ *Todos los datos han sido enviados correctamente.*", true, "confirmación final")

	d.outbox.CompleteGroup(ctx, groupID, chatID, true)
	d.logf("service %s detail group %s queued", record.ID, groupID)
}

func (d *Dispatch) answerUnavailable(ctx context.Context, cb *domain.Callback) {
	d.logf("warn: action %q on a service that is no longer available", cb.Data)
	if err := d.sender.AnswerCallback(ctx, cb.ID, unavailableNotice, true); err != nil {
		d.logf("warn: answer callback failed: %v", err)
	}
}

func (d *Dispatch) enqueueGroupText(ctx context.Context, groupID, text string, markdown bool, description string) {
	d.enqueueGroupTo(ctx, d.groupChatID, groupID, text, markdown, description)
}

func (d *Dispatch) enqueueGroupTo(ctx context.Context, chatID int64, groupID, text string, markdown bool, description string) {
	d.outbox.Enqueue(ctx, chatID, func(ctx context.Context) error {
		_, err := d.sender.SendMessage(ctx, chatID, text, telegram.SendOptions{Markdown: markdown})
		return err
	}, description, queue.Options{GroupID: groupID})
}

func pendingMessage(vehicle, mapURL string) string {
	var b strings.Builder
	b.WriteString("🚨 *Nuevo Servicio Disponible*\n\n")
	b.WriteString("🚗 *Vehículo:* " + vehicle + "\n\n")
	if mapURL != "" {
		b.WriteString("🗺️ [Ver en Google Maps](" + mapURL + ")\n\n")
	}
	b.WriteString("⏳ *Esperando tiempos de llegada...*")
	return b.String()
}

func readyMessage(record *domain.ServiceRecord) string {
	var b strings.Builder
	b.WriteString("🚨 *Nuevo Servicio Disponible*\n\n")
	b.WriteString("🚗 *Vehículo:* " + vehicleLine(record) + "\n\n")
	if record.MapURL != "" {
		b.WriteString("🗺️ [Ver en Google Maps](" + record.MapURL + ")\n\n")
	}
	b.WriteString("⚡ *Tiempos recibidos ✓*\n\n")
	b.WriteString("¿Desea tomar este servicio?")
	return b.String()
}

// vehicleLine picks the vehicle field out of the positional message list.
func vehicleLine(record *domain.ServiceRecord) string {
	if len(record.Messages) > 1 {
		return record.Messages[1]
	}
	return "No hay información del vehículo"
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

func (d *Dispatch) logf(format string, args ...any) {
	if d.logger != nil {
		d.logger.Printf(format, args...)
	}
}
