package domain

import (
	"context"
	"crypto/subtle"
	"time"
)

type SeatStatus string

const (
	SeatAvailable      SeatStatus = "AVAILABLE"
	SeatHold           SeatStatus = "HOLD"
	SeatPaymentPending SeatStatus = "PAYMENT_PENDING"
	SeatReserved       SeatStatus = "RESERVED"
	SeatCancelled      SeatStatus = "CANCELLED"
	SeatBlocked        SeatStatus = "BLOCKED"
	SeatDisabled       SeatStatus = "DISABLED"
)

type SeatType string

const (
	SeatTypeNormal     SeatType = "NORMAL"
	SeatTypePremium    SeatType = "PREMIUM"
	SeatTypeVIP        SeatType = "VIP"
	SeatTypeCouple     SeatType = "COUPLE"
	SeatTypeWheelchair SeatType = "WHEELCHAIR"
)

// ShowingSeat is the authoritative state of one physical seat within one showing.
type ShowingSeat struct {
	ShowingID       int64
	SeatID          int64
	RowLabel        string
	SeatNo          int
	Type            SeatType
	Status          SeatStatus
	HoldToken       *string
	HoldPartyID     *int64
	HoldExpiresAt   *time.Time
	ReservedPartyID *int64
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// SeatRef identifies a seat record without its state.
type SeatRef struct {
	ShowingID int64
	SeatID    int64
}

// ExpiredHold is a seat record still in HOLD past its expiry.
type ExpiredHold struct {
	SeatRef
	HoldToken string
}

// LiveHold is a seat record in HOLD whose expiry is still ahead.
type LiveHold struct {
	SeatRef
	HoldToken string
	PartyID   int64
	ExpiresAt time.Time
}

// StrandedSeat is a seat left mid-transition by an interrupted payment or cancellation.
type StrandedSeat struct {
	SeatRef
	Status            SeatStatus
	PartyID           *int64
	ReservationStatus *ReservationStatus
	UpdatedAt         time.Time
}

type SeatRepository interface {
	Get(ctx context.Context, showingID, seatID int64) (*ShowingSeat, error)
	ListByShowing(ctx context.Context, showingID int64) ([]ShowingSeat, error)
	Update(ctx context.Context, seat *ShowingSeat) error
	CreateForShowing(ctx context.Context, showingID int64) (int64, error)
	FindExpiredHolds(ctx context.Context, now time.Time) ([]ExpiredHold, error)
	ListLiveHolds(ctx context.Context, now time.Time) ([]LiveHold, error)
	ReleaseExpiredHolds(ctx context.Context, now time.Time) ([]SeatRef, error)
	FindStranded(ctx context.Context) ([]StrandedSeat, error)
}

func (s *ShowingSeat) stateError(action string) error {
	return &SeatStateError{ShowingID: s.ShowingID, SeatID: s.SeatID, Action: action, Status: s.Status}
}

func (s *ShowingSeat) clearHold() {
	s.HoldToken = nil
	s.HoldPartyID = nil
	s.HoldExpiresAt = nil
}

func (s *ShowingSeat) Hold(partyID int64, token string, expiresAt time.Time) error {
	if s.Status != SeatAvailable {
		return s.stateError("hold")
	}

	s.Status = SeatHold
	s.HoldToken = &token
	s.HoldPartyID = &partyID
	s.HoldExpiresAt = &expiresAt

	return nil
}

// Release returns a held seat to AVAILABLE. It does nothing for any other status.
func (s *ShowingSeat) Release() {
	if s.Status != SeatHold {
		return
	}

	s.Status = SeatAvailable
	s.clearHold()
}

func (s *ShowingSeat) StartPayment() error {
	if s.Status != SeatHold {
		return s.stateError("start payment for")
	}

	s.Status = SeatPaymentPending

	return nil
}

// Reserve confirms the seat for partyID. Both HOLD and PAYMENT_PENDING are accepted.
func (s *ShowingSeat) Reserve(partyID int64) error {
	if s.Status != SeatPaymentPending && s.Status != SeatHold {
		return s.stateError("reserve")
	}

	s.Status = SeatReserved
	s.ReservedPartyID = &partyID
	s.clearHold()

	return nil
}

// FailPayment returns a payment-pending seat to AVAILABLE. It does nothing for any other status.
func (s *ShowingSeat) FailPayment() {
	if s.Status != SeatPaymentPending {
		return
	}

	s.Status = SeatAvailable
	s.clearHold()
}

func (s *ShowingSeat) Cancel() error {
	if s.Status != SeatReserved {
		return s.stateError("cancel")
	}

	s.Status = SeatCancelled

	return nil
}

// IsHeldBy reports whether partyID owns the current hold.
func (s *ShowingSeat) IsHeldBy(partyID int64) bool {
	return s.Status == SeatHold && s.HoldPartyID != nil && *s.HoldPartyID == partyID
}

// ValidateHold checks that token and partyID match a live hold on the seat.
func (s *ShowingSeat) ValidateHold(partyID int64, token string, now time.Time) error {
	if !s.IsHeldBy(partyID) || s.HoldToken == nil {
		return ErrInvalidHoldToken
	}

	if !TokensEqual(*s.HoldToken, token) {
		return ErrInvalidHoldToken
	}

	if s.HoldExpiresAt != nil && !now.Before(*s.HoldExpiresAt) {
		return ErrInvalidHoldToken
	}

	return nil
}

// TokensEqual compares hold tokens in constant time.
func TokensEqual(a, b string) bool {
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}
