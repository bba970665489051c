// Package events fans seat status changes out to live viewers of a showing.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

const (
	// EventName is the server-sent event type of a SeatChange.
	EventName = "seat-status-changed"

	subscriberBuffer = 16
)

// SeatChange tells viewers which seats of a showing changed. Consumers refetch
// the layout, so delivering the same change twice is harmless.
type SeatChange struct {
	EventID   string  `json:"eventId"`
	ShowingID int64   `json:"showingId"`
	SeatIDs   []int64 `json:"seatIds"`
}

func NewSeatChange(showingID int64, seatIDs []int64) SeatChange {
	return SeatChange{
		EventID:   uuid.NewString(),
		ShowingID: showingID,
		SeatIDs:   seatIDs,
	}
}

type Publisher interface {
	PublishSeatsChanged(ctx context.Context, showingID int64, seatIDs []int64) error
}

type Subscription struct {
	showingID int64
	ch        chan SeatChange
	hub       *Hub
}

// Events is closed when the subscription is closed or dropped for falling behind.
func (s *Subscription) Events() <-chan SeatChange {
	return s.ch
}

func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub keeps the subscribers of this process, grouped by showing.
type Hub struct {
	mu          sync.Mutex
	subscribers map[int64]map[*Subscription]struct{}
	logger      *slog.Logger
}

func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		subscribers: make(map[int64]map[*Subscription]struct{}),
		logger:      logger,
	}
}

func (h *Hub) Subscribe(showingID int64) *Subscription {
	sub := &Subscription{
		showingID: showingID,
		ch:        make(chan SeatChange, subscriberBuffer),
		hub:       h,
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	if h.subscribers[showingID] == nil {
		h.subscribers[showingID] = make(map[*Subscription]struct{})
	}
	h.subscribers[showingID][sub] = struct{}{}

	return sub
}

func (h *Hub) PublishSeatsChanged(_ context.Context, showingID int64, seatIDs []int64) error {
	h.Deliver(NewSeatChange(showingID, seatIDs))

	return nil
}

// Deliver hands change to every local subscriber of its showing without blocking.
// A subscriber whose buffer is full is dropped.
func (h *Hub) Deliver(change SeatChange) {
	h.mu.Lock()
	defer h.mu.Unlock()

	for sub := range h.subscribers[change.ShowingID] {
		select {
		case sub.ch <- change:
		default:
			h.logger.Warn("dropping slow seat event subscriber", "showing_id", change.ShowingID)
			h.removeLocked(sub)
		}
	}
}

func (h *Hub) SubscriberCount(showingID int64) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	return len(h.subscribers[showingID])
}

func (h *Hub) remove(sub *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.removeLocked(sub)
}

func (h *Hub) removeLocked(sub *Subscription) {
	subs, ok := h.subscribers[sub.showingID]
	if !ok {
		return
	}

	if _, ok := subs[sub]; !ok {
		return
	}

	delete(subs, sub)
	close(sub.ch)

	if len(subs) == 0 {
		delete(h.subscribers, sub.showingID)
	}
}
