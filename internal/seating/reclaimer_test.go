package seating_test

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/coordination"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/metinatakli/seat-reservation-system/internal/mocks"
	"github.com/metinatakli/seat-reservation-system/internal/seating"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func newTestReclaimer(h *harness, now time.Time) *seating.Reclaimer {
	return seating.NewReclaimer(
		h.seats,
		h.store,
		h.query,
		h.commands,
		h.hub,
		seating.DefaultReclaimerConfig(),
		discardLogger(),
	).WithClock(func() time.Time { return now })
}

func ptr[T any](v T) *T {
	return &v
}

func TestReclaimer_Sweep(t *testing.T) {
	ctx := context.Background()

	h := newHarness(
		newSeatStore(
			availableSeat(showingID, 1, domain.SeatTypeNormal),
			availableSeat(showingID, 2, domain.SeatTypeNormal),
			availableSeat(showingID, 3, domain.SeatTypeNormal),
		),
		showingStore{showingID: scheduledShowing(showingID)},
	)

	_, err := h.commands.Hold(ctx, showingID, 1, partyA)
	require.NoError(t, err)
	_, err = h.commands.Hold(ctx, showingID, 2, partyB)
	require.NoError(t, err)

	sub := h.hub.Subscribe(showingID)
	defer sub.Close()

	t.Run("should leave live holds alone", func(t *testing.T) {
		released, err := newTestReclaimer(h, time.Now()).Sweep(ctx)

		require.NoError(t, err)
		assert.Zero(t, released)
		assert.Equal(t, domain.SeatHold, h.seats.seat(showingID, 1).Status)
	})

	t.Run("should release every expired hold", func(t *testing.T) {
		_, err := h.query.GetLayout(ctx, showingID)
		require.NoError(t, err)

		released, err := newTestReclaimer(h, time.Now().Add(8*time.Minute)).Sweep(ctx)

		require.NoError(t, err)
		assert.Equal(t, 2, released)

		for _, seatID := range []int64{1, 2} {
			seat := h.seats.seat(showingID, seatID)
			assert.Equal(t, domain.SeatAvailable, seat.Status)
			assert.Nil(t, seat.HoldToken)

			_, err := h.store.GetHold(ctx, coordination.HoldKey{ShowingID: showingID, SeatID: seatID})
			assert.ErrorIs(t, err, coordination.ErrNotFound)
		}

		assert.Equal(t, domain.SeatAvailable, h.seats.seat(showingID, 3).Status)

		_, err = h.store.GetLayout(ctx, showingID)
		assert.ErrorIs(t, err, coordination.ErrNotFound)

		select {
		case change := <-sub.Events():
			assert.ElementsMatch(t, []int64{1, 2}, change.SeatIDs)
		default:
			t.Fatal("expected a seat change for the released seats")
		}
	})

	t.Run("should be idempotent", func(t *testing.T) {
		released, err := newTestReclaimer(h, time.Now().Add(8*time.Minute)).Sweep(ctx)

		require.NoError(t, err)
		assert.Zero(t, released)
	})
}

func TestReclaimer_Reconcile(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	pending := availableSeat(showingID, 1, domain.SeatTypeNormal)
	pending.Status = domain.SeatPaymentPending
	pending.HoldPartyID = ptr(partyA)
	pending.HoldToken = ptr("token-1")

	reserved := availableSeat(showingID, 2, domain.SeatTypeNormal)
	reserved.Status = domain.SeatReserved
	reserved.ReservedPartyID = ptr(partyA)

	abandoned := availableSeat(showingID, 3, domain.SeatTypeNormal)
	abandoned.Status = domain.SeatPaymentPending
	abandoned.HoldPartyID = ptr(partyB)
	abandoned.HoldToken = ptr("token-3")

	inFlight := availableSeat(showingID, 4, domain.SeatTypeNormal)
	inFlight.Status = domain.SeatPaymentPending
	inFlight.HoldPartyID = ptr(partyB)
	inFlight.HoldToken = ptr("token-4")

	seats := newSeatStore(pending, reserved, abandoned, inFlight)
	seats.stranded = []domain.StrandedSeat{
		{
			SeatRef:           domain.SeatRef{ShowingID: showingID, SeatID: 1},
			Status:            domain.SeatPaymentPending,
			PartyID:           ptr(partyA),
			ReservationStatus: ptr(domain.ReservationConfirmed),
			UpdatedAt:         now.Add(-time.Second),
		},
		{
			SeatRef:           domain.SeatRef{ShowingID: showingID, SeatID: 2},
			Status:            domain.SeatReserved,
			PartyID:           ptr(partyA),
			ReservationStatus: ptr(domain.ReservationCancelled),
			UpdatedAt:         now.Add(-time.Second),
		},
		{
			SeatRef:   domain.SeatRef{ShowingID: showingID, SeatID: 3},
			Status:    domain.SeatPaymentPending,
			UpdatedAt: now.Add(-10 * time.Minute),
		},
		{
			SeatRef:   domain.SeatRef{ShowingID: showingID, SeatID: 4},
			Status:    domain.SeatPaymentPending,
			UpdatedAt: now.Add(-time.Minute),
		},
	}

	h := newHarness(seats, showingStore{showingID: scheduledShowing(showingID)})

	repaired, err := newTestReclaimer(h, now).Reconcile(ctx)

	require.NoError(t, err)
	assert.Equal(t, 3, repaired)

	tests := []struct {
		name       string
		seatID     int64
		wantStatus domain.SeatStatus
	}{
		{name: "should finish reservation of confirmed seat", seatID: 1, wantStatus: domain.SeatReserved},
		{name: "should finish cancellation of cancelled reservation", seatID: 2, wantStatus: domain.SeatCancelled},
		{name: "should release abandoned payment after grace period", seatID: 3, wantStatus: domain.SeatAvailable},
		{name: "should leave payment within grace period alone", seatID: 4, wantStatus: domain.SeatPaymentPending},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.wantStatus, h.seats.seat(showingID, tt.seatID).Status)
		})
	}

	assert.Equal(t, partyA, *h.seats.seat(showingID, 1).ReservedPartyID)
}

func TestReclaimer_SurvivesPanickingSweep(t *testing.T) {
	seatRepo := new(mocks.MockSeatRepo)
	seatRepo.On("FindExpiredHolds", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { panic("unexpected nil row") }).
		Return(nil, nil)

	store := coordination.NewMemoryStore()
	logger := discardLogger()
	query := seating.NewQueryService(seatRepo, new(mocks.MockShowingRepo), store, time.Minute, logger)

	reclaimer := seating.NewReclaimer(
		seatRepo,
		store,
		query,
		nil,
		new(mocks.MockPublisher),
		seating.ReclaimerConfig{Interval: time.Hour, PendingGrace: time.Minute},
		logger,
	)

	require.NoError(t, reclaimer.Start(context.Background()))
	assert.Error(t, reclaimer.Start(context.Background()), "second start must be rejected")

	reclaimer.Stop()
	reclaimer.Stop()

	seatRepo.AssertCalled(t, "FindExpiredHolds", mock.Anything, mock.Anything)
}

func TestReclaimer_StopsWithContext(t *testing.T) {
	seatRepo := new(mocks.MockSeatRepo)
	seatRepo.On("FindExpiredHolds", mock.Anything, mock.Anything).Return([]domain.ExpiredHold{}, nil)
	var cycles atomic.Int32
	seatRepo.On("FindStranded", mock.Anything).
		Run(func(mock.Arguments) { cycles.Add(1) }).
		Return([]domain.StrandedSeat{}, nil)

	publisher := new(mocks.MockPublisher)
	store := coordination.NewMemoryStore()
	logger := discardLogger()
	query := seating.NewQueryService(seatRepo, new(mocks.MockShowingRepo), store, time.Minute, logger)

	reclaimer := seating.NewReclaimer(seatRepo, store, query, nil, publisher,
		seating.ReclaimerConfig{Interval: 10 * time.Millisecond, PendingGrace: time.Minute}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, reclaimer.Start(ctx))

	assert.Eventually(t, func() bool {
		return cycles.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	cancel()
	reclaimer.Stop()

	publisher.AssertNotCalled(t, "PublishSeatsChanged", mock.Anything, mock.Anything, mock.Anything)
}
