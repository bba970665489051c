package seating

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/coordination"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
)

// QueryService serves seat layouts cache-aside. The cache is never required:
// any cache failure falls through to the database.
type QueryService struct {
	seats    domain.SeatRepository
	showings domain.ShowingRepository
	store    coordination.Store
	ttl      time.Duration
	logger   *slog.Logger
}

func NewQueryService(
	seats domain.SeatRepository,
	showings domain.ShowingRepository,
	store coordination.Store,
	ttl time.Duration,
	logger *slog.Logger) *QueryService {

	return &QueryService{
		seats:    seats,
		showings: showings,
		store:    store,
		ttl:      ttl,
		logger:   logger,
	}
}

func (q *QueryService) GetLayout(ctx context.Context, showingID int64) (*domain.SeatLayout, error) {
	raw, err := q.store.GetLayout(ctx, showingID)

	switch {
	case err == nil:
		var layout domain.SeatLayout
		if err := json.Unmarshal(raw, &layout); err == nil {
			return &layout, nil
		}

		q.logger.Warn("discarding unreadable cached layout", "showing_id", showingID)
	case errors.Is(err, coordination.ErrNotFound):
	default:
		q.logger.Warn("layout cache unavailable, reading from database", "showing_id", showingID, "error", err)
	}

	layout, err := q.loadLayout(ctx, showingID)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(layout)
	if err == nil {
		err = q.store.SetLayout(ctx, showingID, payload, q.ttl)
	}
	if err != nil {
		q.logger.Warn("failed to cache seat layout", "showing_id", showingID, "error", err)
	}

	return layout, nil
}

// GetLayoutFor returns the layout with the caller's own hold tokens attached.
func (q *QueryService) GetLayoutFor(ctx context.Context, showingID, partyID int64) (*domain.SeatLayout, error) {
	layout, err := q.GetLayout(ctx, showingID)
	if err != nil {
		return nil, err
	}

	for i := range layout.Seats {
		item := &layout.Seats[i]
		if item.Status != domain.SeatHold || item.HoldPartyID == nil || *item.HoldPartyID != partyID {
			continue
		}

		entry, err := q.store.GetHold(ctx, coordination.HoldKey{ShowingID: showingID, SeatID: item.SeatID})
		if err != nil {
			if !errors.Is(err, coordination.ErrNotFound) {
				q.logger.Warn("failed to load hold entry", "showing_id", showingID, "seat_id", item.SeatID, "error", err)
			}
			continue
		}

		if entry.PartyID == partyID {
			item.HoldToken = entry.HoldToken
			item.HeldByCaller = true
		}
	}

	return layout, nil
}

// Invalidate drops the cached layout of a showing. Failures only widen the
// staleness window up to the cache TTL.
func (q *QueryService) Invalidate(ctx context.Context, showingID int64) {
	err := q.store.DeleteLayout(ctx, showingID)
	if err != nil {
		q.logger.Warn("failed to invalidate cached layout", "showing_id", showingID, "error", err)
	}
}

func (q *QueryService) loadLayout(ctx context.Context, showingID int64) (*domain.SeatLayout, error) {
	seats, err := q.seats.ListByShowing(ctx, showingID)
	if err != nil {
		return nil, fmt.Errorf("list seats: %w", err)
	}

	if len(seats) == 0 {
		_, err = q.showings.GetByID(ctx, showingID)
		if err != nil {
			return nil, err
		}

		created, err := q.seats.CreateForShowing(ctx, showingID)
		if err != nil {
			return nil, fmt.Errorf("create seat records: %w", err)
		}

		q.logger.Info("created seat records for showing", "showing_id", showingID, "seats", created)

		seats, err = q.seats.ListByShowing(ctx, showingID)
		if err != nil {
			return nil, fmt.Errorf("list seats: %w", err)
		}
	}

	return domain.NewSeatLayout(showingID, seats), nil
}
