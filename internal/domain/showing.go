package domain

import (
	"context"
	"time"
)

type ShowingStatus string

const (
	ShowingScheduled  ShowingStatus = "SCHEDULED"
	ShowingNowShowing ShowingStatus = "NOW_SHOWING"
	ShowingEnded      ShowingStatus = "ENDED"
	ShowingCancelled  ShowingStatus = "CANCELLED"
)

type Showing struct {
	ID         int64
	ScreenID   int64
	MovieTitle string
	StartTime  time.Time
	Status     ShowingStatus
}

// IsBookable reports whether seats of the showing can still be held or paid for.
func (s *Showing) IsBookable(now time.Time) bool {
	return s.Status == ShowingScheduled && s.StartTime.After(now)
}

type ShowingRepository interface {
	GetByID(ctx context.Context, id int64) (*Showing, error)
}

// SeatLayout is the status snapshot of every seat of a showing.
type SeatLayout struct {
	ShowingID int64            `json:"showingId"`
	Seats     []SeatStatusItem `json:"seats"`
}

type SeatStatusItem struct {
	SeatID        int64      `json:"seatId"`
	RowLabel      string     `json:"rowLabel"`
	SeatNo        int        `json:"seatNo"`
	SeatType      SeatType   `json:"seatType"`
	Status        SeatStatus `json:"status"`
	HoldExpiresAt *time.Time `json:"holdExpiresAt,omitempty"`
	HoldPartyID   *int64     `json:"holdPartyId,omitempty"`
	HoldToken     string     `json:"-"`
	HeldByCaller  bool       `json:"-"`
}

func NewSeatLayout(showingID int64, seats []ShowingSeat) *SeatLayout {
	items := make([]SeatStatusItem, len(seats))

	for i, seat := range seats {
		item := SeatStatusItem{
			SeatID:   seat.SeatID,
			RowLabel: seat.RowLabel,
			SeatNo:   seat.SeatNo,
			SeatType: seat.Type,
			Status:   seat.Status,
		}

		if seat.Status == SeatHold {
			item.HoldExpiresAt = seat.HoldExpiresAt
			item.HoldPartyID = seat.HoldPartyID
		}

		items[i] = item
	}

	return &SeatLayout{
		ShowingID: showingID,
		Seats:     items,
	}
}
