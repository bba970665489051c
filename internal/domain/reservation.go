package domain

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type ReservationStatus string

const (
	ReservationPending        ReservationStatus = "PENDING"
	ReservationPaymentPending ReservationStatus = "PAYMENT_PENDING"
	ReservationConfirmed      ReservationStatus = "CONFIRMED"
	ReservationCancelled      ReservationStatus = "CANCELLED"
	ReservationRefunded       ReservationStatus = "REFUNDED"
)

type Reservation struct {
	ID            int64
	ReservationNo string
	PartyID       int64
	ShowingID     int64
	Status        ReservationStatus
	TotalSeats    int
	TotalAmount   decimal.Decimal
	Seats         []ReservationSeat
	Payment       *Payment
	CreatedAt     time.Time
	UpdatedAt     time.Time
	CancelledAt   *time.Time
}

// ReservationSeat is one booked seat with the price charged for it.
type ReservationSeat struct {
	ReservationID int64
	ShowingID     int64
	SeatID        int64
	Price         decimal.Decimal
}

func NewConfirmedReservation(partyID, showingID int64, quote *Quote, seatIDs []int64) *Reservation {
	seats := make([]ReservationSeat, len(seatIDs))
	for i, seatID := range seatIDs {
		seats[i] = ReservationSeat{
			ShowingID: showingID,
			SeatID:    seatID,
			Price:     quote.PerSeat[seatID],
		}
	}

	return &Reservation{
		ReservationNo: GenerateNumber("R"),
		PartyID:       partyID,
		ShowingID:     showingID,
		Status:        ReservationConfirmed,
		TotalSeats:    len(seats),
		TotalAmount:   quote.Total,
		Seats:         seats,
	}
}

func (r *Reservation) SeatIDs() []int64 {
	ids := make([]int64, len(r.Seats))
	for i, seat := range r.Seats {
		ids[i] = seat.SeatID
	}

	return ids
}

// GenerateNumber builds a human readable business number such as R1718000000000A1B2C3D4.
func GenerateNumber(prefix string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])

	return fmt.Sprintf("%s%d%s", prefix, time.Now().UnixMilli(), suffix)
}

type ReservationRepository interface {
	CreateConfirmed(ctx context.Context, reservation *Reservation, payment *Payment) error
	GetByID(ctx context.Context, id int64) (*Reservation, error)
	Cancel(ctx context.Context, id int64) error
}

// ReservationEvent is emitted to downstream consumers after a reservation changes state.
type ReservationEvent struct {
	Type          string          `json:"type"`
	ReservationID int64           `json:"reservationId"`
	ReservationNo string          `json:"reservationNo"`
	PartyID       int64           `json:"partyId"`
	ShowingID     int64           `json:"showingId"`
	SeatIDs       []int64         `json:"seatIds"`
	TotalAmount   decimal.Decimal `json:"totalAmount"`
	OccurredAt    time.Time       `json:"occurredAt"`
}

const (
	ReservationEventConfirmed = "reservation.confirmed"
	ReservationEventCancelled = "reservation.cancelled"
)

type ReservationNotifier interface {
	NotifyReservation(ctx context.Context, event ReservationEvent) error
}
