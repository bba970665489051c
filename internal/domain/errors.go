package domain

import (
	"errors"
	"fmt"
)

var (
	ErrRecordNotFound            = errors.New("record not found")
	ErrEditConflict              = errors.New("edit conflict")
	ErrLockNotAcquired           = errors.New("seat is being modified by another request, please try again")
	ErrInvalidSeatTransition     = errors.New("seat status does not allow this action")
	ErrInvalidHoldToken          = errors.New("hold token is invalid or has expired")
	ErrHoldLost                  = errors.New("seat was taken by another party before the payment completed")
	ErrHoldLimitExceeded         = errors.New("maximum number of seats on hold reached")
	ErrShowingNotBookable        = errors.New("showing is not open for booking")
	ErrUnknownSeatType           = errors.New("unknown seat type")
	ErrPaymentFailed             = errors.New("payment was declined")
	ErrNotReservationOwner       = errors.New("reservation belongs to another party")
	ErrReservationNotCancellable = errors.New("only confirmed reservations can be cancelled")
	ErrUnknownOperatorStatus     = errors.New("unknown operator seat status")
	ErrNoSeatsSelected           = errors.New("at least one seat must be selected")
	ErrDuplicateSeat             = errors.New("the same seat was selected more than once")
)

// SeatError attaches the seat a failure refers to, so callers can retry deliberately.
type SeatError struct {
	ShowingID int64
	SeatID    int64
	Err       error
}

func (e *SeatError) Error() string {
	return fmt.Sprintf("showing %d seat %d: %s", e.ShowingID, e.SeatID, e.Err)
}

func (e *SeatError) Unwrap() error {
	return e.Err
}

// SeatStateError is returned when a transition is not allowed from the seat's current status.
type SeatStateError struct {
	ShowingID int64
	SeatID    int64
	Action    string
	Status    SeatStatus
}

func (e *SeatStateError) Error() string {
	return fmt.Sprintf("showing %d seat %d: cannot %s a seat in status %s", e.ShowingID, e.SeatID, e.Action, e.Status)
}

func (e *SeatStateError) Unwrap() error {
	return ErrInvalidSeatTransition
}
