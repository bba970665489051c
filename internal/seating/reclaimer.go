package seating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/coordination"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/metinatakli/seat-reservation-system/internal/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

type ReclaimerConfig struct {
	// Interval between two sweeps.
	Interval time.Duration
	// PendingGrace is how long a payment-pending seat without a confirmed
	// reservation is left alone before it is returned to AVAILABLE.
	PendingGrace time.Duration
}

func DefaultReclaimerConfig() ReclaimerConfig {
	return ReclaimerConfig{
		Interval:     60 * time.Second,
		PendingGrace: 5 * time.Minute,
	}
}

// Reclaimer returns expired holds to AVAILABLE and repairs seats left behind by
// interrupted payment or cancellation flows.
type Reclaimer struct {
	seats     domain.SeatRepository
	store     coordination.Store
	query     *QueryService
	commands  *CommandService
	publisher events.Publisher
	cfg       ReclaimerConfig
	logger    *slog.Logger
	now       func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	reclaimed metric.Int64Counter
}

func NewReclaimer(
	seats domain.SeatRepository,
	store coordination.Store,
	query *QueryService,
	commands *CommandService,
	publisher events.Publisher,
	cfg ReclaimerConfig,
	logger *slog.Logger) *Reclaimer {

	meter := otel.Meter("github.com/metinatakli/seat-reservation-system/internal/seating")
	reclaimed, _ := meter.Int64Counter("seat_holds_reclaimed_total")

	return &Reclaimer{
		seats:     seats,
		store:     store,
		query:     query,
		commands:  commands,
		publisher: publisher,
		cfg:       cfg,
		logger:    logger,
		now:       time.Now,
		stopCh:    make(chan struct{}),
		reclaimed: reclaimed,
	}
}

func (r *Reclaimer) WithClock(now func() time.Time) *Reclaimer {
	r.now = now
	return r
}

func (r *Reclaimer) Start(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return errors.New("reclaimer already running")
	}
	r.running = true

	r.logger.Info("starting hold reclaimer", "interval", r.cfg.Interval)

	r.wg.Add(1)
	go r.loop(ctx)

	return nil
}

func (r *Reclaimer) Stop() {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return
	}
	r.running = false
	r.mu.Unlock()

	close(r.stopCh)
	r.wg.Wait()

	r.logger.Info("hold reclaimer stopped")
}

func (r *Reclaimer) loop(ctx context.Context) {
	defer r.wg.Done()

	ticker := time.NewTicker(r.cfg.Interval)
	defer ticker.Stop()

	r.runOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.stopCh:
			return
		case <-ticker.C:
			r.runOnce(ctx)
		}
	}
}

// runOnce is the error boundary of one cycle: nothing escapes into the loop.
func (r *Reclaimer) runOnce(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("hold reclaimer sweep panicked", "panic", fmt.Sprint(rec))
		}
	}()

	_, err := r.Sweep(ctx)
	if err != nil {
		r.logger.Error("hold reclaimer sweep failed", "error", err)
	}

	_, err = r.Reconcile(ctx)
	if err != nil {
		r.logger.Error("stranded seat reconciliation failed", "error", err)
	}
}

// Sweep returns every hold past its expiry to AVAILABLE and reports how many seats it released.
func (r *Reclaimer) Sweep(ctx context.Context) (int, error) {
	now := r.now()

	expired, err := r.seats.FindExpiredHolds(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("find expired holds: %w", err)
	}

	if len(expired) == 0 {
		return 0, nil
	}

	// Hold entries go first so that no reader sees an AVAILABLE seat that still looks held.
	for _, hold := range expired {
		key := coordination.HoldKey{ShowingID: hold.ShowingID, SeatID: hold.SeatID}

		err := r.store.DeleteHoldIfToken(ctx, key, hold.HoldToken)
		if err != nil {
			r.logger.Warn("failed to delete expired hold entry", "key", key.String(), "error", err)
		}
	}

	released, err := r.seats.ReleaseExpiredHolds(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("release expired holds: %w", err)
	}

	r.notify(ctx, released)
	r.reclaimed.Add(ctx, int64(len(released)))

	if len(released) > 0 {
		r.logger.Info("reclaimed expired holds", "seats", len(released))
	}

	return len(released), nil
}

// Reconcile finishes seat transitions that a crashed or partially failed
// payment or cancellation left behind.
func (r *Reclaimer) Reconcile(ctx context.Context) (int, error) {
	stranded, err := r.seats.FindStranded(ctx)
	if err != nil {
		return 0, fmt.Errorf("find stranded seats: %w", err)
	}

	repaired := make([]domain.SeatRef, 0, len(stranded))

	for _, seat := range stranded {
		var err error

		switch {
		case seat.Status == domain.SeatPaymentPending && isReservation(seat, domain.ReservationConfirmed):
			err = r.commands.ReserveForPayment(ctx, seat.ShowingID, seat.SeatID, *seat.PartyID)
		case seat.Status == domain.SeatReserved && isReservation(seat, domain.ReservationCancelled):
			err = r.commands.CancelForReservation(ctx, seat.ShowingID, seat.SeatID)
		case seat.Status == domain.SeatPaymentPending && r.now().Sub(seat.UpdatedAt) > r.cfg.PendingGrace:
			err = r.commands.ReleaseOnPaymentFailure(ctx, seat.ShowingID, seat.SeatID, 0)
		default:
			continue
		}

		if err != nil {
			r.logger.Warn("failed to repair stranded seat",
				"showing_id", seat.ShowingID,
				"seat_id", seat.SeatID,
				"status", seat.Status,
				"error", err)
			continue
		}

		repaired = append(repaired, seat.SeatRef)
	}

	r.notify(ctx, repaired)

	if len(repaired) > 0 {
		r.logger.Info("repaired stranded seats", "seats", len(repaired))
	}

	return len(repaired), nil
}

func isReservation(seat domain.StrandedSeat, status domain.ReservationStatus) bool {
	return seat.ReservationStatus != nil && *seat.ReservationStatus == status && seat.PartyID != nil
}

// notify invalidates and publishes once per affected showing.
func (r *Reclaimer) notify(ctx context.Context, refs []domain.SeatRef) {
	byShowing := make(map[int64][]int64)
	for _, ref := range refs {
		byShowing[ref.ShowingID] = append(byShowing[ref.ShowingID], ref.SeatID)
	}

	showingIDs := make([]int64, 0, len(byShowing))
	for showingID := range byShowing {
		showingIDs = append(showingIDs, showingID)
	}
	slices.Sort(showingIDs)

	for _, showingID := range showingIDs {
		r.query.Invalidate(ctx, showingID)

		err := r.publisher.PublishSeatsChanged(ctx, showingID, byShowing[showingID])
		if err != nil {
			r.logger.Warn("failed to publish reclaimed seats", "showing_id", showingID, "error", err)
		}
	}
}
