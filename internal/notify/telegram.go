package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"carshare/internal/domain"
	"carshare/internal/events"
	"carshare/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	lookupTimeout    = 5 * time.Second
	defaultQueueSize = 100
)

type notification struct {
	eventType string
	bookingID string
	userID    string
	text      string
}

// TelegramNotifier tells owners and customers about booking changes.
// Bus handlers only enqueue; Run delivers. Delivery is best effort: failures
// are logged and a full queue drops the message.
type TelegramNotifier struct {
	sender domain.TelegramSender
	users  domain.UserRepository
	logger zerolog.Logger
	queue  chan notification
}

func NewTelegramNotifier(sender domain.TelegramSender, users domain.UserRepository, logger *zerolog.Logger) *TelegramNotifier {
	l := zerolog.Nop()
	if logger != nil {
		l = logger.With().Str("component", "telegram_notifier").Logger()
	}
	return &TelegramNotifier{
		sender: sender,
		users:  users,
		logger: l,
		queue:  make(chan notification, defaultQueueSize),
	}
}

// Run delivers queued notifications until ctx is done, then flushes what is
// already queued and returns.
func (n *TelegramNotifier) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			for {
				select {
				case msg := <-n.queue:
					n.deliver(msg)
				default:
					return
				}
			}
		case msg := <-n.queue:
			n.deliver(msg)
		}
	}
}

// Subscribe attaches the notifier to the booking events it reports on.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	bus.Subscribe(n.HandleBookingEvent,
		events.EventBookingCreated,
		events.EventBookingConfirmed,
		events.EventBookingRejected,
		events.EventBookingCancelled,
	)
}

func (n *TelegramNotifier) HandleBookingEvent(event *events.Event) error {
	var p events.BookingEventPayload
	if err := event.Decode(&p); err != nil {
		n.logger.Error().Err(err).Str("event", event.Type).Msg("failed to decode booking event")
		return nil
	}

	var recipientID, text string
	switch event.Type {
	case events.EventBookingCreated:
		recipientID, text = p.OwnerID, formatCreated(p)
	case events.EventBookingConfirmed:
		recipientID, text = p.CustomerID, formatConfirmed(p)
	case events.EventBookingRejected:
		recipientID, text = p.CustomerID, formatRejected(p)
	case events.EventBookingCancelled:
		recipientID, text = p.OwnerID, formatCancelled(p)
	default:
		return nil
	}

	n.enqueue(notification{eventType: event.Type, bookingID: p.BookingID, userID: recipientID, text: text})
	return nil
}

func (n *TelegramNotifier) enqueue(msg notification) {
	select {
	case n.queue <- msg:
	default:
		n.logger.Warn().Str("event", msg.eventType).Str("booking_id", msg.bookingID).
			Msg("notification queue full, dropping message")
	}
}

func (n *TelegramNotifier) deliver(msg notification) {
	logger := n.logger.With().Str("event", msg.eventType).Str("booking_id", msg.bookingID).Str("user_id", msg.userID).Logger()

	ctx, cancel := context.WithTimeout(context.Background(), lookupTimeout)
	defer cancel()

	user, err := n.users.GetUser(ctx, msg.userID)
	if err != nil {
		logger.Warn().Err(err).Msg("notification recipient lookup failed")
		return
	}
	if user.TelegramChatID == 0 {
		logger.Debug().Msg("recipient has no telegram chat, skipping")
		return
	}

	if _, err := n.sender.Send(tgbotapi.NewMessage(user.TelegramChatID, msg.text)); err != nil {
		logger.Error().Err(err).Int64("chat_id", user.TelegramChatID).Msg("failed to send telegram notification")
		return
	}
	logger.Debug().Int64("chat_id", user.TelegramChatID).Msg("telegram notification sent")
}

func formatCreated(p events.BookingEventPayload) string {
	return fmt.Sprintf("New booking request for %s\n%s\nTotal: %s\nBooking: %s",
		carLabel(p), formatPeriod(p), FormatCents(p.TotalPriceCents), p.BookingID)
}

func formatConfirmed(p events.BookingEventPayload) string {
	return fmt.Sprintf("Your booking of %s is confirmed\n%s\nTotal: %s",
		carLabel(p), formatPeriod(p), FormatCents(p.TotalPriceCents))
}

func formatRejected(p events.BookingEventPayload) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Your booking of %s was rejected\n%s", carLabel(p), formatPeriod(p))
	if p.RejectionReason != "" {
		fmt.Fprintf(&b, "\nReason: %s", p.RejectionReason)
	}
	return b.String()
}

func formatCancelled(p events.BookingEventPayload) string {
	return fmt.Sprintf("Booking of %s was cancelled by the customer\n%s", carLabel(p), formatPeriod(p))
}

func carLabel(p events.BookingEventPayload) string {
	if p.CarName != "" {
		return p.CarName
	}
	return "car " + p.CarID
}

func formatPeriod(p events.BookingEventPayload) string {
	return fmt.Sprintf("%s to %s", models.FormatDate(p.StartDate), models.FormatDate(p.EndDate))
}

// FormatCents renders an amount in cents as "123.45".
func FormatCents(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d", sign, cents/100, cents%100)
}
