// Package notify tells managers about booking request activity over Telegram.
package notify

import (
	"fmt"
	"strings"

	"charterly/internal/domain"
	"charterly/internal/events"
	"charterly/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

type Notifier struct {
	bot    domain.TelegramSender
	chats  []int64
	logger zerolog.Logger
}

func NewNotifier(bot domain.TelegramSender, chats []int64, logger *zerolog.Logger) *Notifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "notifier").Logger()
	}
	return &Notifier{bot: bot, chats: chats, logger: l}
}

// Register subscribes the notifier to booking request events.
func (n *Notifier) Register(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventBookingRequestCreated,
		events.EventBookingRequestStatusChanged,
		events.EventBookingRequestPaymentUpdate,
	} {
		bus.Subscribe(eventType, n.HandleBookingRequestEvent)
	}
}

// HandleBookingRequestEvent sends one message per manager chat. A failed chat
// does not stop delivery to the others; the last error is returned.
func (n *Notifier) HandleBookingRequestEvent(ev *events.Event) error {
	var payload events.BookingRequestPayload
	if err := ev.Decode(&payload); err != nil {
		return fmt.Errorf("decode %s payload: %w", ev.Type, err)
	}

	text := formatBookingRequestMessage(ev.Type, payload)
	var lastErr error
	for _, chatID := range n.chats {
		if _, err := n.SendMarkdown(chatID, text); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Str("event", ev.Type).Msg("notify: send error")
			lastErr = err
		}
	}
	return lastErr
}

func (n *Notifier) SendMarkdown(chatID int64, text string) (tgbotapi.Message, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = models.ParseModeMarkdown
	return n.bot.Send(msg)
}

func escape(s string) string {
	return tgbotapi.EscapeText(models.ParseModeMarkdown, s)
}

func formatBookingRequestMessage(eventType string, p events.BookingRequestPayload) string {
	var b strings.Builder

	switch eventType {
	case events.EventBookingRequestCreated:
		b.WriteString("*New booking request*\n")
	case events.EventBookingRequestStatusChanged:
		fmt.Fprintf(&b, "*Booking request %s → %s*\n", escape(p.PreviousStatus), escape(p.Status))
	case events.EventBookingRequestPaymentUpdate:
		b.WriteString("*Payment link updated*\n")
	default:
		fmt.Fprintf(&b, "*%s*\n", escape(eventType))
	}

	fmt.Fprintf(&b, "ID: %s\n", escape(p.BookingRequestID))
	fmt.Fprintf(&b, "Boat: %s\n", escape(p.BoatID))
	if p.CustomerName != "" {
		fmt.Fprintf(&b, "Customer: %s\n", escape(p.CustomerName))
	}
	if p.EndDate != "" && p.EndDate != p.StartDate {
		fmt.Fprintf(&b, "Dates: %s to %s\n", p.StartDate, p.EndDate)
	} else {
		fmt.Fprintf(&b, "Date: %s\n", p.StartDate)
	}
	fmt.Fprintf(&b, "Amount: %.2f %s\n", p.TotalAmount, p.Currency)
	fmt.Fprintf(&b, "Status: %s", escape(p.Status))
	if p.ReviewNotes != "" {
		fmt.Fprintf(&b, "\nNotes: %s", escape(p.ReviewNotes))
	}
	return b.String()
}
