// Package seating owns every seat state change of a showing and the read path
// of seat layouts.
package seating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/seat-reservation-system/internal/coordination"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/metinatakli/seat-reservation-system/internal/events"
	"github.com/metinatakli/seat-reservation-system/internal/lock"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type Config struct {
	HoldTTL          time.Duration
	MaxHoldsPerParty int
	LayoutCacheTTL   time.Duration
}

func DefaultConfig() Config {
	return Config{
		HoldTTL:          7 * time.Minute,
		MaxHoldsPerParty: 4,
		LayoutCacheTTL:   5 * time.Minute,
	}
}

type HoldResult struct {
	Token      string
	ExpiresAt  time.Time
	TTLSeconds int64
}

// CommandService is the only writer of seat records. Every operation runs under
// the seat lock: reload, validate, mutate, persist, sync the hold entry and
// invalidate the cached layout.
type CommandService struct {
	seats     domain.SeatRepository
	showings  domain.ShowingRepository
	store     coordination.Store
	locks     *lock.Manager
	query     *QueryService
	publisher events.Publisher
	cfg       Config
	logger    *slog.Logger
	now       func() time.Time

	holdsCreated  metric.Int64Counter
	holdsReleased metric.Int64Counter
}

func NewCommandService(
	seats domain.SeatRepository,
	showings domain.ShowingRepository,
	store coordination.Store,
	locks *lock.Manager,
	query *QueryService,
	publisher events.Publisher,
	cfg Config,
	logger *slog.Logger) *CommandService {

	meter := otel.Meter("github.com/metinatakli/seat-reservation-system/internal/seating")
	holdsCreated, _ := meter.Int64Counter("seat_holds_created_total")
	holdsReleased, _ := meter.Int64Counter("seat_holds_released_total")

	return &CommandService{
		seats:         seats,
		showings:      showings,
		store:         store,
		locks:         locks,
		query:         query,
		publisher:     publisher,
		cfg:           cfg,
		logger:        logger,
		now:           time.Now,
		holdsCreated:  holdsCreated,
		holdsReleased: holdsReleased,
	}
}

// WithClock replaces the time source. Used by tests.
func (c *CommandService) WithClock(now func() time.Time) *CommandService {
	c.now = now
	return c
}

func seatError(showingID, seatID int64, err error) error {
	return &domain.SeatError{ShowingID: showingID, SeatID: seatID, Err: err}
}

// withSeatLock runs fn against the freshly loaded seat while holding its lock.
// The cached layout is invalidated after fn succeeds.
func (c *CommandService) withSeatLock(
	ctx context.Context,
	showingID, seatID int64,
	fn func(seat *domain.ShowingSeat) error) error {

	lease, ok := c.locks.Acquire(ctx, showingID, seatID)

	return c.runLocked(ctx, lease, ok, showingID, seatID, fn)
}

// withSeatLockWait is withSeatLock for transitions that finish a payment or
// cancellation already under way. Short contention is waited out instead of
// failing the caller.
func (c *CommandService) withSeatLockWait(
	ctx context.Context,
	showingID, seatID int64,
	fn func(seat *domain.ShowingSeat) error) error {

	lease, ok := c.locks.AcquireWait(ctx, showingID, seatID, 0)

	return c.runLocked(ctx, lease, ok, showingID, seatID, fn)
}

func (c *CommandService) runLocked(
	ctx context.Context,
	lease lock.Lease,
	acquired bool,
	showingID, seatID int64,
	fn func(seat *domain.ShowingSeat) error) error {

	if !acquired {
		return seatError(showingID, seatID, domain.ErrLockNotAcquired)
	}
	defer c.locks.Release(ctx, lease)

	seat, err := c.seats.Get(ctx, showingID, seatID)
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return seatError(showingID, seatID, domain.ErrRecordNotFound)
		}

		return fmt.Errorf("load seat: %w", err)
	}

	err = fn(seat)
	if err != nil {
		return err
	}

	c.query.Invalidate(ctx, showingID)

	return nil
}

func (c *CommandService) publish(ctx context.Context, showingID int64, seatIDs ...int64) {
	err := c.publisher.PublishSeatsChanged(ctx, showingID, seatIDs)
	if err != nil {
		c.logger.Warn("failed to publish seat change", "showing_id", showingID, "seat_ids", seatIDs, "error", err)
	}
}

func (c *CommandService) deleteHold(ctx context.Context, key coordination.HoldKey) {
	err := c.store.DeleteHold(ctx, key)
	if err != nil {
		c.logger.Warn("failed to delete hold entry", "key", key.String(), "error", err)
	}
}

func (c *CommandService) Hold(ctx context.Context, showingID, seatID, partyID int64) (*HoldResult, error) {
	var result *HoldResult

	err := c.withSeatLock(ctx, showingID, seatID, func(seat *domain.ShowingSeat) error {
		held, err := c.store.CountPartyHolds(ctx, partyID)
		if err != nil {
			return fmt.Errorf("count party holds: %w", err)
		}

		if held >= c.cfg.MaxHoldsPerParty {
			return seatError(showingID, seatID, domain.ErrHoldLimitExceeded)
		}

		showing, err := c.showings.GetByID(ctx, showingID)
		if err != nil {
			return fmt.Errorf("load showing: %w", err)
		}

		now := c.now()
		if !showing.IsBookable(now) {
			return seatError(showingID, seatID, domain.ErrShowingNotBookable)
		}

		token := uuid.NewString()
		expiresAt := now.Add(c.cfg.HoldTTL)

		err = seat.Hold(partyID, token, expiresAt)
		if err != nil {
			return err
		}

		key := coordination.HoldKey{ShowingID: showingID, SeatID: seatID}
		entry := coordination.HoldEntry{HoldToken: token, PartyID: partyID, HeldAt: now}

		err = c.store.SaveHold(ctx, key, entry, c.cfg.HoldTTL)
		if err != nil {
			return fmt.Errorf("save hold entry: %w", err)
		}

		err = c.seats.Update(ctx, seat)
		if err != nil {
			if delErr := c.store.DeleteHoldIfToken(ctx, key, token); delErr != nil {
				c.logger.Warn("failed to roll back hold entry", "key", key.String(), "error", delErr)
			}

			return fmt.Errorf("persist hold: %w", err)
		}

		ttl := c.cfg.HoldTTL
		if remaining, err := c.store.HoldTTL(ctx, key); err == nil {
			ttl = remaining
		}

		result = &HoldResult{
			Token:      token,
			ExpiresAt:  expiresAt,
			TTLSeconds: int64(ttl.Round(time.Second).Seconds()),
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	c.holdsCreated.Add(ctx, 1)
	c.publish(ctx, showingID, seatID)

	return result, nil
}

// RestoreHold writes the hold entry of a seat whose record is still held by
// hold.HoldToken, with the lifetime the record has left. It reports false
// when the seat moved on or the hold already expired.
func (c *CommandService) RestoreHold(ctx context.Context, hold domain.LiveHold) (bool, error) {
	restored := false

	err := c.withSeatLock(ctx, hold.ShowingID, hold.SeatID, func(seat *domain.ShowingSeat) error {
		if seat.Status != domain.SeatHold || seat.HoldToken == nil || *seat.HoldToken != hold.HoldToken ||
			seat.HoldPartyID == nil || seat.HoldExpiresAt == nil {
			return nil
		}

		ttl := seat.HoldExpiresAt.Sub(c.now())
		if ttl <= 0 {
			return nil
		}

		key := coordination.HoldKey{ShowingID: hold.ShowingID, SeatID: hold.SeatID}
		entry := coordination.HoldEntry{
			HoldToken: hold.HoldToken,
			PartyID:   *seat.HoldPartyID,
			HeldAt:    seat.HoldExpiresAt.Add(-c.cfg.HoldTTL),
		}

		err := c.store.SaveHold(ctx, key, entry, ttl)
		if err != nil {
			return fmt.Errorf("save hold entry: %w", err)
		}

		restored = true

		return nil
	})

	return restored, err
}

// Release gives a held seat back. token must match the live hold entry.
func (c *CommandService) Release(ctx context.Context, showingID, seatID int64, token string) error {
	err := c.withSeatLock(ctx, showingID, seatID, func(seat *domain.ShowingSeat) error {
		key := coordination.HoldKey{ShowingID: showingID, SeatID: seatID}

		entry, err := c.store.GetHold(ctx, key)
		if err != nil {
			if errors.Is(err, coordination.ErrNotFound) {
				return seatError(showingID, seatID, domain.ErrInvalidHoldToken)
			}

			return fmt.Errorf("load hold entry: %w", err)
		}

		if !domain.TokensEqual(entry.HoldToken, token) {
			return seatError(showingID, seatID, domain.ErrInvalidHoldToken)
		}

		if seat.Status != domain.SeatHold || seat.HoldToken == nil || !domain.TokensEqual(*seat.HoldToken, token) {
			return seatError(showingID, seatID, domain.ErrInvalidHoldToken)
		}

		seat.Release()

		err = c.seats.Update(ctx, seat)
		if err != nil {
			return fmt.Errorf("persist release: %w", err)
		}

		c.deleteHold(ctx, key)

		return nil
	})
	if err != nil {
		return err
	}

	c.holdsReleased.Add(ctx, 1)
	c.publish(ctx, showingID, seatID)

	return nil
}

// StartPaymentForReservation moves a seat held by partyID with token to PAYMENT_PENDING.
func (c *CommandService) StartPaymentForReservation(ctx context.Context, showingID, seatID, partyID int64, token string) error {
	return c.withSeatLock(ctx, showingID, seatID, func(seat *domain.ShowingSeat) error {
		err := seat.ValidateHold(partyID, token, c.now())
		if err != nil {
			return seatError(showingID, seatID, err)
		}

		err = seat.StartPayment()
		if err != nil {
			return err
		}

		return c.seats.Update(ctx, seat)
	})
}

// ReserveForPayment confirms a paid seat for partyID. A seat now held or paid
// for by another party fails with ErrHoldLost.
func (c *CommandService) ReserveForPayment(ctx context.Context, showingID, seatID, partyID int64) error {
	return c.withSeatLockWait(ctx, showingID, seatID, func(seat *domain.ShowingSeat) error {
		if seat.HoldPartyID != nil && *seat.HoldPartyID != partyID {
			return seatError(showingID, seatID, domain.ErrHoldLost)
		}

		err := seat.Reserve(partyID)
		if err != nil {
			return err
		}

		err = c.seats.Update(ctx, seat)
		if err != nil {
			return err
		}

		c.deleteHold(ctx, coordination.HoldKey{ShowingID: showingID, SeatID: seatID})

		return nil
	})
}

// VerifyPaymentPending checks that the seat is still PAYMENT_PENDING for partyID.
func (c *CommandService) VerifyPaymentPending(ctx context.Context, showingID, seatID, partyID int64) error {
	return c.withSeatLockWait(ctx, showingID, seatID, func(seat *domain.ShowingSeat) error {
		if seat.Status != domain.SeatPaymentPending || seat.HoldPartyID == nil || *seat.HoldPartyID != partyID {
			return seatError(showingID, seatID, domain.ErrHoldLost)
		}

		return nil
	})
}

// ReleaseOnPaymentFailure returns a seat partyID was paying for to AVAILABLE.
// Seats in any other status or paid for by another party are left untouched.
// A partyID of zero matches any party.
func (c *CommandService) ReleaseOnPaymentFailure(ctx context.Context, showingID, seatID, partyID int64) error {
	return c.withSeatLockWait(ctx, showingID, seatID, func(seat *domain.ShowingSeat) error {
		if seat.Status != domain.SeatPaymentPending {
			return nil
		}

		if partyID != 0 && seat.HoldPartyID != nil && *seat.HoldPartyID != partyID {
			return nil
		}

		seat.FailPayment()

		err := c.seats.Update(ctx, seat)
		if err != nil {
			return err
		}

		c.deleteHold(ctx, coordination.HoldKey{ShowingID: showingID, SeatID: seatID})

		return nil
	})
}

func (c *CommandService) CancelForReservation(ctx context.Context, showingID, seatID int64) error {
	return c.withSeatLockWait(ctx, showingID, seatID, func(seat *domain.ShowingSeat) error {
		err := seat.Cancel()
		if err != nil {
			return err
		}

		return c.seats.Update(ctx, seat)
	})
}

// SetOperatorStatus blocks, disables or re-enables a seat on behalf of an operator.
func (c *CommandService) SetOperatorStatus(ctx context.Context, showingID, seatID int64, status domain.OperatorStatus) error {
	err := c.withSeatLock(ctx, showingID, seatID, func(seat *domain.ShowingSeat) error {
		err := seat.ApplyOperatorStatus(status)
		if err != nil {
			return err
		}

		return c.seats.Update(ctx, seat)
	})
	if err != nil {
		return err
	}

	c.publish(ctx, showingID, seatID)

	return nil
}

// OpenShowing creates the seat records of a showing. Existing records are kept.
func (c *CommandService) OpenShowing(ctx context.Context, showingID int64) (int64, error) {
	_, err := c.showings.GetByID(ctx, showingID)
	if err != nil {
		return 0, err
	}

	created, err := c.seats.CreateForShowing(ctx, showingID)
	if err != nil {
		return 0, fmt.Errorf("create seat records: %w", err)
	}

	c.query.Invalidate(ctx, showingID)

	return created, nil
}
