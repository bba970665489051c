// Package broker forwards reservation lifecycle events to downstream consumers.
package broker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	amqp "github.com/rabbitmq/amqp091-go"
)

const publishTimeout = 5 * time.Second

type channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

// RabbitNotifier publishes reservation events to a durable topic exchange,
// routed by event type.
type RabbitNotifier struct {
	conn     *amqp.Connection
	mu       sync.Mutex
	ch       channel
	exchange string
	logger   *slog.Logger
}

func NewRabbitNotifier(url, exchange string, logger *slog.Logger) (*RabbitNotifier, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("dial amqp: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("open amqp channel: %w", err)
	}

	notifier, err := newRabbitNotifier(ch, exchange, logger)
	if err != nil {
		conn.Close()
		return nil, err
	}

	notifier.conn = conn

	return notifier, nil
}

func newRabbitNotifier(ch channel, exchange string, logger *slog.Logger) (*RabbitNotifier, error) {
	err := ch.ExchangeDeclare(exchange, amqp.ExchangeTopic, true, false, false, false, nil)
	if err != nil {
		return nil, fmt.Errorf("declare exchange %s: %w", exchange, err)
	}

	return &RabbitNotifier{
		ch:       ch,
		exchange: exchange,
		logger:   logger,
	}, nil
}

func (n *RabbitNotifier) NotifyReservation(ctx context.Context, event domain.ReservationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal reservation event: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	// amqp channels must not be shared by concurrent publishers.
	n.mu.Lock()
	defer n.mu.Unlock()

	err = n.ch.PublishWithContext(ctx, n.exchange, event.Type, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		MessageId:    uuid.NewString(),
		Timestamp:    event.OccurredAt,
		Type:         event.Type,
		Body:         body,
	})
	if err != nil {
		return fmt.Errorf("publish %s to exchange %s: %w", event.Type, n.exchange, err)
	}

	n.logger.Debug("published reservation event", "type", event.Type, "reservation_id", event.ReservationID)

	return nil
}

func (n *RabbitNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	err := n.ch.Close()

	if n.conn != nil {
		if connErr := n.conn.Close(); err == nil {
			err = connErr
		}
	}

	return err
}

// LogNotifier is used when no broker is configured. Events are only logged.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) NotifyReservation(_ context.Context, event domain.ReservationEvent) error {
	n.logger.Info("reservation event",
		"type", event.Type,
		"reservation_id", event.ReservationID,
		"reservation_no", event.ReservationNo,
		"showing_id", event.ShowingID,
		"seats", len(event.SeatIDs))

	return nil
}
