// Package booking turns held seats into paid reservations and cancels them again.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/metinatakli/seat-reservation-system/internal/events"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// SeatCommands is the part of the seat command service a payment drives.
type SeatCommands interface {
	StartPaymentForReservation(ctx context.Context, showingID, seatID, partyID int64, token string) error
	VerifyPaymentPending(ctx context.Context, showingID, seatID, partyID int64) error
	ReserveForPayment(ctx context.Context, showingID, seatID, partyID int64) error
	ReleaseOnPaymentFailure(ctx context.Context, showingID, seatID, partyID int64) error
	CancelForReservation(ctx context.Context, showingID, seatID int64) error
}

type LayoutInvalidator interface {
	Invalidate(ctx context.Context, showingID int64)
}

// DefaultChargeTimeout bounds one call to the payment gateway. It must stay below
// the reclaimer's grace period for payment-pending seats.
const DefaultChargeTimeout = 2 * time.Minute

type SeatHoldItem struct {
	SeatID    int64
	HoldToken string
}

type PayCommand struct {
	PartyID   int64
	ShowingID int64
	Items     []SeatHoldItem
	Method    domain.PaymentMethod
}

type PayResult struct {
	ReservationID int64
	ReservationNo string
	TotalSeats    int
	TotalAmount   decimal.Decimal
}

type Service struct {
	seats         domain.SeatRepository
	showings      domain.ShowingRepository
	reservations  domain.ReservationRepository
	commands      SeatCommands
	layouts       LayoutInvalidator
	publisher     events.Publisher
	gateway       domain.PaymentGateway
	notifier      domain.ReservationNotifier
	prices        domain.PriceTable
	chargeTimeout time.Duration
	logger        *slog.Logger
	now           func() time.Time

	payments metric.Int64Counter
}

type Deps struct {
	Seats        domain.SeatRepository
	Showings     domain.ShowingRepository
	Reservations domain.ReservationRepository
	Commands     SeatCommands
	Layouts      LayoutInvalidator
	Publisher    events.Publisher
	Gateway      domain.PaymentGateway
	Notifier     domain.ReservationNotifier
	Prices       domain.PriceTable
	// ChargeTimeout defaults to DefaultChargeTimeout.
	ChargeTimeout time.Duration
}

func NewService(deps Deps, logger *slog.Logger) *Service {
	meter := otel.Meter("github.com/metinatakli/seat-reservation-system/internal/booking")
	payments, _ := meter.Int64Counter("reservation_payments_total",
		metric.WithDescription("Payment attempts by outcome"))

	prices := deps.Prices
	if prices == nil {
		prices = domain.DefaultPriceTable()
	}

	chargeTimeout := deps.ChargeTimeout
	if chargeTimeout <= 0 {
		chargeTimeout = DefaultChargeTimeout
	}

	return &Service{
		seats:         deps.Seats,
		showings:      deps.Showings,
		reservations:  deps.Reservations,
		commands:      deps.Commands,
		layouts:       deps.Layouts,
		publisher:     deps.Publisher,
		gateway:       deps.Gateway,
		notifier:      deps.Notifier,
		prices:        prices,
		chargeTimeout: chargeTimeout,
		logger:        logger,
		now:           time.Now,
		payments:      payments,
	}
}

func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

func validateItems(items []SeatHoldItem) error {
	if len(items) == 0 {
		return domain.ErrNoSeatsSelected
	}

	seen := make(map[int64]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.SeatID]; ok {
			return domain.ErrDuplicateSeat
		}
		seen[item.SeatID] = struct{}{}
	}

	return nil
}

// Pay books every held seat of cmd in one reservation or none of them.
func (s *Service) Pay(ctx context.Context, cmd PayCommand) (*PayResult, error) {
	err := validateItems(cmd.Items)
	if err != nil {
		return nil, err
	}

	showing, err := s.showings.GetByID(ctx, cmd.ShowingID)
	if err != nil {
		return nil, err
	}

	if !showing.IsBookable(s.now()) {
		return nil, domain.ErrShowingNotBookable
	}

	seatIDs := make([]int64, len(cmd.Items))
	seats := make([]domain.ShowingSeat, len(cmd.Items))

	for i, item := range cmd.Items {
		seat, err := s.seats.Get(ctx, cmd.ShowingID, item.SeatID)
		if err != nil {
			if errors.Is(err, domain.ErrRecordNotFound) {
				return nil, &domain.SeatError{ShowingID: cmd.ShowingID, SeatID: item.SeatID, Err: err}
			}

			return nil, fmt.Errorf("load seat: %w", err)
		}

		seatIDs[i] = item.SeatID
		seats[i] = *seat
	}

	quote, err := s.prices.Quote(seats)
	if err != nil {
		return nil, err
	}

	moved := make([]int64, 0, len(cmd.Items))
	for _, item := range cmd.Items {
		err := s.commands.StartPaymentForReservation(ctx, cmd.ShowingID, item.SeatID, cmd.PartyID, item.HoldToken)
		if err != nil {
			s.rollback(ctx, cmd.ShowingID, cmd.PartyID, moved)
			return nil, err
		}

		moved = append(moved, item.SeatID)
	}

	reservation := domain.NewConfirmedReservation(cmd.PartyID, cmd.ShowingID, quote, seatIDs)

	chargeCtx, cancel := context.WithTimeout(ctx, s.chargeTimeout)
	charge, err := s.gateway.Charge(chargeCtx, domain.ChargeRequest{
		Reference: reservation.ReservationNo,
		PartyID:   cmd.PartyID,
		Amount:    quote.Total,
		Method:    cmd.Method,
	})
	cancel()

	if err != nil {
		s.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "declined")))

		if !errors.Is(err, domain.ErrPaymentFailed) {
			// The gateway may have charged the party before the call failed.
			s.logger.Error("payment outcome unknown, refund manually if the charge went through",
				"reservation_no", reservation.ReservationNo,
				"idempotency_key", reservation.ReservationNo,
				"party_id", cmd.PartyID,
				"amount", quote.Total.String(),
				"error", err)
		}

		s.rollback(ctx, cmd.ShowingID, cmd.PartyID, moved)

		if errors.Is(err, domain.ErrPaymentFailed) {
			return nil, err
		}

		return nil, fmt.Errorf("%w: %w", domain.ErrPaymentFailed, err)
	}

	for _, seatID := range seatIDs {
		err := s.commands.VerifyPaymentPending(ctx, cmd.ShowingID, seatID, cmd.PartyID)
		if err != nil {
			s.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "refunded")))
			s.refund(ctx, reservation, charge, err)
			s.rollback(ctx, cmd.ShowingID, cmd.PartyID, moved)

			return nil, err
		}
	}

	payment := domain.NewSuccessfulPayment(cmd.Method, quote.Total, charge)

	err = s.reservations.CreateConfirmed(ctx, reservation, payment)
	if err != nil {
		s.refund(ctx, reservation, charge, err)
		s.rollback(ctx, cmd.ShowingID, cmd.PartyID, moved)

		return nil, fmt.Errorf("store reservation: %w", err)
	}

	s.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "approved")))

	var lost []int64
	for _, seatID := range seatIDs {
		err := s.commands.ReserveForPayment(ctx, cmd.ShowingID, seatID, cmd.PartyID)
		if err == nil {
			continue
		}

		if errors.Is(err, domain.ErrHoldLost) {
			lost = append(lost, seatID)
			continue
		}

		s.logger.Warn("seat not reserved after payment, leaving it to reconciliation",
			"reservation_id", reservation.ID,
			"showing_id", cmd.ShowingID,
			"seat_id", seatID,
			"error", err)
	}

	if len(lost) > 0 {
		return nil, s.compensate(ctx, reservation, charge, lost)
	}

	s.afterChange(ctx, reservation, domain.ReservationEventConfirmed)

	return &PayResult{
		ReservationID: reservation.ID,
		ReservationNo: reservation.ReservationNo,
		TotalSeats:    reservation.TotalSeats,
		TotalAmount:   reservation.TotalAmount,
	}, nil
}

// rollback returns seats partyID moved to PAYMENT_PENDING back to AVAILABLE and tells viewers.
func (s *Service) rollback(ctx context.Context, showingID, partyID int64, seatIDs []int64) {
	if len(seatIDs) == 0 {
		return
	}

	// The seats must not stay pending because the caller went away.
	ctx = context.WithoutCancel(ctx)

	for _, seatID := range seatIDs {
		err := s.commands.ReleaseOnPaymentFailure(ctx, showingID, seatID, partyID)
		if err != nil {
			s.logger.Error("failed to release seat after payment failure",
				"showing_id", showingID,
				"seat_id", seatID,
				"error", err)
		}
	}

	s.layouts.Invalidate(ctx, showingID)
	s.publish(ctx, showingID, seatIDs)
}

// refund returns an approved charge whose reservation could not be completed.
func (s *Service) refund(ctx context.Context, reservation *domain.Reservation, charge *domain.ChargeResult, cause error) {
	ctx = context.WithoutCancel(ctx)

	err := s.gateway.Refund(ctx, charge.TransactionRef)
	if err != nil {
		s.logger.Error("charge approved but reservation failed and refund failed, refund manually",
			"reservation_no", reservation.ReservationNo,
			"transaction_ref", charge.TransactionRef,
			"amount", reservation.TotalAmount.String(),
			"cause", cause,
			"error", err)
		return
	}

	s.logger.Warn("charge refunded, reservation not completed",
		"reservation_no", reservation.ReservationNo,
		"transaction_ref", charge.TransactionRef,
		"cause", cause)
}

// compensate undoes a stored reservation after some of its seats went to
// another party mid-payment. The charge is refunded, the reservation cancelled
// and the seats it did reserve follow the cancellation.
func (s *Service) compensate(ctx context.Context, reservation *domain.Reservation, charge *domain.ChargeResult, lost []int64) error {
	ctx = context.WithoutCancel(ctx)
	lostErr := &domain.SeatError{ShowingID: reservation.ShowingID, SeatID: lost[0], Err: domain.ErrHoldLost}

	s.logger.Error("seats went to another party after payment, compensating",
		"reservation_id", reservation.ID,
		"reservation_no", reservation.ReservationNo,
		"transaction_ref", charge.TransactionRef,
		"lost_seat_ids", lost)

	s.payments.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "refunded")))
	s.refund(ctx, reservation, charge, lostErr)

	err := s.reservations.Cancel(ctx, reservation.ID)
	if err != nil {
		s.logger.Error("failed to cancel compensated reservation",
			"reservation_id", reservation.ID,
			"error", err)
	}

	seatIDs := reservation.SeatIDs()
	for _, seatID := range seatIDs {
		if slices.Contains(lost, seatID) {
			continue
		}

		err := s.commands.CancelForReservation(ctx, reservation.ShowingID, seatID)
		if err != nil {
			s.logger.Warn("seat not cancelled, leaving it to reconciliation",
				"reservation_id", reservation.ID,
				"showing_id", reservation.ShowingID,
				"seat_id", seatID,
				"error", err)
		}
	}

	s.layouts.Invalidate(ctx, reservation.ShowingID)
	s.publish(ctx, reservation.ShowingID, seatIDs)

	return lostErr
}

func (s *Service) publish(ctx context.Context, showingID int64, seatIDs []int64) {
	err := s.publisher.PublishSeatsChanged(ctx, showingID, seatIDs)
	if err != nil {
		s.logger.Warn("failed to publish seat change", "showing_id", showingID, "error", err)
	}
}

func (s *Service) afterChange(ctx context.Context, reservation *domain.Reservation, eventType string) {
	seatIDs := reservation.SeatIDs()

	s.layouts.Invalidate(ctx, reservation.ShowingID)
	s.publish(ctx, reservation.ShowingID, seatIDs)

	err := s.notifier.NotifyReservation(ctx, domain.ReservationEvent{
		Type:          eventType,
		ReservationID: reservation.ID,
		ReservationNo: reservation.ReservationNo,
		PartyID:       reservation.PartyID,
		ShowingID:     reservation.ShowingID,
		SeatIDs:       seatIDs,
		TotalAmount:   reservation.TotalAmount,
		OccurredAt:    s.now().UTC(),
	})
	if err != nil {
		s.logger.Warn("failed to notify reservation change",
			"reservation_id", reservation.ID,
			"type", eventType,
			"error", err)
	}
}

func (s *Service) Get(ctx context.Context, partyID, reservationID int64) (*domain.Reservation, error) {
	reservation, err := s.reservations.GetByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}

	if reservation.PartyID != partyID {
		return nil, domain.ErrNotReservationOwner
	}

	return reservation, nil
}

// Cancel cancels a confirmed reservation of partyID. Its seats end CANCELLED
// and are not offered again.
func (s *Service) Cancel(ctx context.Context, partyID, reservationID int64) error {
	reservation, err := s.Get(ctx, partyID, reservationID)
	if err != nil {
		return err
	}

	if reservation.Status != domain.ReservationConfirmed {
		return domain.ErrReservationNotCancellable
	}

	err = s.reservations.Cancel(ctx, reservationID)
	if err != nil {
		return err
	}

	for _, seatID := range reservation.SeatIDs() {
		err := s.commands.CancelForReservation(ctx, reservation.ShowingID, seatID)
		if err != nil {
			s.logger.Warn("seat not cancelled, leaving it to reconciliation",
				"reservation_id", reservationID,
				"showing_id", reservation.ShowingID,
				"seat_id", seatID,
				"error", err)
		}
	}

	s.afterChange(ctx, reservation, domain.ReservationEventCancelled)

	return nil
}
