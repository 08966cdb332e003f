package handler

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/gruasmx/dispatch-bot/internal/domain"
	"github.com/gruasmx/dispatch-bot/internal/queue"
	"github.com/gruasmx/dispatch-bot/internal/telegram"
)

// TimingTester is the slice of the timing client /testtiming needs.
type TimingTester interface {
	RequestReport(ctx context.Context, coordinate string, chatID int64) error
}

type CommandDependencies struct {
	Outbox      *queue.Outbox
	Sender      telegram.Sender
	Timing      TimingTester
	GroupChatID int64
	Logger      *log.Logger
}

// NewCommandHandler serves the slash commands. It goes first in the registry
// so a long /help reply can never be mistaken for service text.
func NewCommandHandler(deps CommandDependencies) MessageHandler {
	commands := &commandSet{deps: deps}
	return MessageHandler{
		Name: "commands",
		CanHandle: func(msg *domain.Message) bool {
			return strings.HasPrefix(msg.Text, "/")
		},
		Handle: commands.handle,
	}
}

type commandSet struct {
	deps CommandDependencies
}

func (c *commandSet) handle(ctx context.Context, msg *domain.Message) error {
	fields := strings.Fields(msg.Text)
	if len(fields) == 0 {
		return nil
	}
	command := strings.ToLower(fields[0])
	// Commands in groups arrive as /cmd@botname.
	if at := strings.Index(command, "@"); at >= 0 {
		command = command[:at]
	}

	switch command {
	case "/start":
		return c.start(ctx, msg)
	case "/help", "/ayuda":
		return c.help(ctx, msg)
	case "/chatid":
		return c.chatID(ctx, msg)
	case "/colaestado":
		return c.queueStatus(ctx, msg)
	case "/colalimpiar":
		return c.queueClear(ctx, msg)
	case "/testtiming":
		return c.testTiming(ctx, msg, fields[1:])
	default:
		logf(c.deps.Logger, "unknown command %q from chat %d", command, msg.ChatID)
		return nil
	}
}

func (c *commandSet) start(ctx context.Context, msg *domain.Message) error {
	_, err := c.deps.Sender.SendMessage(ctx, msg.ChatID,
		"¡Hola! Soy un bot que puede:\n\n"+
			"1. Extraer coordenadas de enlaces de Google Maps\n"+
			"2. Procesar texto copiado de la página web usando ChatGPT\n\n"+
			"Simplemente envíame un enlace de Google Maps o copia y pega el texto completo de la página.",
		telegram.SendOptions{})
	return err
}

func (c *commandSet) help(ctx context.Context, msg *domain.Message) error {
	_, err := c.deps.Sender.SendMessage(ctx, msg.ChatID,
		"📍 *COORDENADAS*\n"+
			"Envíame cualquier enlace de Google Maps y extraeré las coordenadas.\n\n"+
			"📋 *TEXTO DE LA PÁGINA*\n"+
			"Haz lo siguiente:\n"+
			"1. Una vez que hayas atorado el servicio en la página web\n"+
			"2. Selecciona todo el texto (Ctrl+A o Cmd+A)\n"+
			"3. Copia el texto (Ctrl+C o Cmd+C)\n"+
			"4. Pega el texto en este chat (Ctrl+V o Cmd+V)\n\n"+
			"ChatGPT extraerá la siguiente información y te la enviaré en mensajes separados:\n"+
			"• Número de expediente\n"+
			"• Datos del vehículo\n"+
			"• Placas\n"+
			"• Usuario/Cliente\n"+
			"• Cuenta\n"+
			"• Entre calles (si está disponible)\n"+
			"• Referencia (si está disponible)\n\n"+
			"⚠️ *IMPORTANTE*\n"+
			"Si estás procesando texto con ChatGPT, cualquier enlace o mensaje adicional se pondrá en cola y se enviará después de que se complete el procesamiento actual.",
		telegram.SendOptions{Markdown: true})
	return err
}

func (c *commandSet) chatID(ctx context.Context, msg *domain.Message) error {
	var b strings.Builder
	b.WriteString("📢 *Información del chat:*\n\n")
	fmt.Fprintf(&b, "• *ID del chat:* `%d`\n", msg.ChatID)
	if msg.IsGroup {
		b.WriteString("• *Tipo de chat:* grupo\n")
	} else {
		b.WriteString("• *Tipo de chat:* privado\n")
	}
	if msg.FromName != "" {
		fmt.Fprintf(&b, "• *Enviado por:* %s\n", msg.FromName)
	}
	_, err := c.deps.Sender.SendMessage(ctx, msg.ChatID, b.String(), telegram.SendOptions{Markdown: true})
	return err
}

func (c *commandSet) queueStatus(ctx context.Context, msg *domain.Message) error {
	var b strings.Builder
	b.WriteString("📊 *Estado de la cola de mensajes:*\n\n")
	fmt.Fprintf(&b, "• *Chat ID:* `%d`\n", msg.ChatID)
	fmt.Fprintf(&b, "• *Estado:* %s\n", busyLabel(c.deps.Outbox.IsBusy(msg.ChatID)))
	fmt.Fprintf(&b, "• *Mensajes en cola:* %d\n", c.deps.Outbox.Len(msg.ChatID))

	if c.deps.GroupChatID != 0 && c.deps.GroupChatID != msg.ChatID {
		b.WriteString("\n📊 *Estado de la cola del grupo:*\n\n")
		fmt.Fprintf(&b, "• *Grupo ID:* `%d`\n", c.deps.GroupChatID)
		fmt.Fprintf(&b, "• *Estado:* %s\n", busyLabel(c.deps.Outbox.IsBusy(c.deps.GroupChatID)))
		fmt.Fprintf(&b, "• *Mensajes en cola:* %d\n", c.deps.Outbox.Len(c.deps.GroupChatID))
	}

	if pending := c.deps.Outbox.PendingGroups(); len(pending) > 0 {
		fmt.Fprintf(&b, "\n• *Grupos de mensajes abiertos:* %d\n", len(pending))
	}

	_, err := c.deps.Sender.SendMessage(ctx, msg.ChatID, b.String(), telegram.SendOptions{Markdown: true})
	return err
}

func (c *commandSet) queueClear(ctx context.Context, msg *domain.Message) error {
	dropped := c.deps.Outbox.Clear(msg.ChatID)
	logf(c.deps.Logger, "queue cleared for chat %d, %d tasks dropped", msg.ChatID, dropped)
	_, err := c.deps.Sender.SendMessage(ctx, msg.ChatID, "🧹 Cola de mensajes limpiada correctamente.", telegram.SendOptions{Markdown: true})
	return err
}

func (c *commandSet) testTiming(ctx context.Context, msg *domain.Message, args []string) error {
	if len(args) == 0 {
		_, err := c.deps.Sender.SendMessage(ctx, msg.ChatID, "Uso: /testtiming <latitud,longitud>", telegram.SendOptions{})
		return err
	}
	coordinate := args[0]

	if _, err := c.deps.Sender.SendMessage(ctx, msg.ChatID, "Probando integración con RecLocation API...\nCoordenadas: "+coordinate, telegram.SendOptions{Markdown: true}); err != nil {
		return err
	}

	if err := c.deps.Timing.RequestReport(ctx, coordinate, c.deps.GroupChatID); err != nil {
		_, sendErr := c.deps.Sender.SendMessage(ctx, msg.ChatID, "❌ Error al probar integración: "+err.Error(), telegram.SendOptions{Markdown: true})
		if sendErr != nil {
			return sendErr
		}
		return nil
	}

	_, err := c.deps.Sender.SendMessage(ctx, msg.ChatID, "✅ Solicitud enviada con éxito a RecLocation.", telegram.SendOptions{Markdown: true})
	return err
}

func busyLabel(busy bool) string {
	if busy {
		return "🔄 Procesando"
	}
	return "✅ Libre"
}
