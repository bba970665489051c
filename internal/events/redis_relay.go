package events

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const seatEventsChannel = "seat-events"

// RedisRelay publishes seat changes over Redis pub/sub so that viewers connected
// to any instance receive them. Run must be started for local delivery.
type RedisRelay struct {
	client redis.UniversalClient
	hub    *Hub
	logger *slog.Logger
}

func NewRedisRelay(client redis.UniversalClient, hub *Hub, logger *slog.Logger) *RedisRelay {
	return &RedisRelay{
		client: client,
		hub:    hub,
		logger: logger,
	}
}

func (r *RedisRelay) PublishSeatsChanged(ctx context.Context, showingID int64, seatIDs []int64) error {
	change := NewSeatChange(showingID, seatIDs)

	payload, err := json.Marshal(change)
	if err != nil {
		return err
	}

	err = r.client.Publish(ctx, seatEventsChannel, payload).Err()
	if err != nil {
		r.logger.Warn("failed to publish seat change to redis, delivering locally only",
			"showing_id", showingID,
			"error", err)
		r.hub.Deliver(change)
	}

	return nil
}

// Run forwards changes published by any instance to the local hub until ctx is done.
func (r *RedisRelay) Run(ctx context.Context) error {
	pubsub := r.client.Subscribe(ctx, seatEventsChannel)
	defer pubsub.Close()

	messages := pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return nil
			}

			var change SeatChange
			err := json.Unmarshal([]byte(msg.Payload), &change)
			if err != nil {
				r.logger.Error("discarding malformed seat change", "payload", msg.Payload, "error", err)
				continue
			}

			r.hub.Deliver(change)
		}
	}
}
