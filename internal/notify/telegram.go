package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"turfhub/internal/config"
	"turfhub/internal/domain"
	"turfhub/internal/events"
	"turfhub/internal/logging"
	"turfhub/internal/models"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const timeLayout = "02.01.2006 15:04"

// ErrQueueFull is returned by Handle when the notification had to be dropped.
var ErrQueueFull = errors.New("notification queue is full")

// TelegramNotifier forwards selected domain events to staff chats.
// Handle only enqueues; Start does the sending.
type TelegramNotifier struct {
	bot     domain.TelegramSender
	chatIDs []int64
	queue   chan *events.Event
	logger  *zerolog.Logger
}

func NewTelegramNotifier(bot domain.TelegramSender, chatIDs []int64, logger *zerolog.Logger) *TelegramNotifier {
	return &TelegramNotifier{
		bot:     bot,
		chatIDs: chatIDs,
		queue:   make(chan *events.Event, models.NotifyQueueSize),
		logger:  logging.Component(logger, "telegram_notifier"),
	}
}

// NewBotAPI connects to Telegram with the configured token.
func NewBotAPI(cfg config.TelegramConfig) (*tgbotapi.BotAPI, error) {
	bot, err := tgbotapi.NewBotAPI(cfg.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	bot.Debug = cfg.Debug
	return bot, nil
}

// Subscribe registers the notifier for the events staff care about.
func (n *TelegramNotifier) Subscribe(bus *events.EventBus) {
	for _, eventType := range []string{
		events.EventBookingCreated,
		events.EventBookingCancelled,
		events.EventOrderCreated,
		events.EventOrderCancelled,
	} {
		bus.Subscribe(eventType, n.Handle)
	}
}

// Handle queues the event without blocking the publisher.
func (n *TelegramNotifier) Handle(event *events.Event) error {
	select {
	case n.queue <- event:
		return nil
	default:
		return ErrQueueFull
	}
}

// Start sends queued notifications until ctx is done. Whatever is still
// queued at that point is dropped.
func (n *TelegramNotifier) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			if dropped := len(n.queue); dropped > 0 {
				n.logger.Warn().Int("dropped", dropped).Msg("notifier stopped with pending messages")
			}
			return
		case event := <-n.queue:
			if err := n.deliver(event); err != nil {
				n.logger.Warn().Err(err).Str("event_type", event.Type).Msg("notification not delivered")
			}
		}
	}
}

// deliver sends the rendered text to every chat. Failures for one chat do not
// stop delivery to the others; the first error is returned.
func (n *TelegramNotifier) deliver(event *events.Event) error {
	text, err := Render(event)
	if err != nil {
		return err
	}
	if text == "" {
		return nil
	}

	var firstErr error
	for _, chatID := range n.chatIDs {
		msg := tgbotapi.NewMessage(chatID, text)
		if _, err := n.bot.Send(msg); err != nil {
			n.logger.Error().Err(err).Int64("chat_id", chatID).Str("event_type", event.Type).Msg("telegram send failed")
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// Render formats an event for staff; unknown event types render as "".
func Render(event *events.Event) (string, error) {
	switch event.Type {
	case events.EventBookingCreated, events.EventBookingCancelled:
		var p events.BookingEventPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return "", fmt.Errorf("decode booking payload: %w", err)
		}
		title := "Новая бронь"
		if event.Type == events.EventBookingCancelled {
			title = "Бронь отменена"
		}
		turf := p.TurfName
		if turf == "" {
			turf = p.TurfID
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s\n", title)
		fmt.Fprintf(&b, "Площадка: %s\n", turf)
		fmt.Fprintf(&b, "Клиент: %s\n", p.CustomerName)
		fmt.Fprintf(&b, "Время: %s - %s\n", p.StartTime.Format(timeLayout), p.EndTime.Format(timeLayout))
		fmt.Fprintf(&b, "Сумма: %s", p.TotalAmount.StringFixed(models.MoneyPlaces))
		return b.String(), nil

	case events.EventOrderCreated, events.EventOrderCancelled:
		var p events.OrderEventPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil {
			return "", fmt.Errorf("decode order payload: %w", err)
		}
		title := "Новый заказ"
		if event.Type == events.EventOrderCancelled {
			title = "Заказ отменен"
		}
		return fmt.Sprintf("%s %s\nКлиент: %s\nПозиций: %d\nИтого: %s",
			title, p.OrderID, p.CustomerName, p.Items, p.TotalAmount.StringFixed(models.MoneyPlaces)), nil
	}
	return "", nil
}
