// Package coordination holds short-lived shared state: hold entries, cached seat
// layouts and seat locks. Nothing stored here is authoritative.
package coordination

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrNotFound = errors.New("coordination: key not found")

// HoldKey identifies the hold entry of one seat in one showing.
type HoldKey struct {
	ShowingID int64
	SeatID    int64
}

func (k HoldKey) String() string {
	return fmt.Sprintf("seat:hold:%d:%d", k.ShowingID, k.SeatID)
}

func (k HoldKey) member() string {
	return fmt.Sprintf("%d:%d", k.ShowingID, k.SeatID)
}

type HoldEntry struct {
	HoldToken string    `json:"holdToken"`
	PartyID   int64     `json:"partyId"`
	HeldAt    time.Time `json:"heldAt"`
}

type Store interface {
	SaveHold(ctx context.Context, key HoldKey, entry HoldEntry, ttl time.Duration) error
	GetHold(ctx context.Context, key HoldKey) (*HoldEntry, error)
	HoldTTL(ctx context.Context, key HoldKey) (time.Duration, error)
	DeleteHold(ctx context.Context, key HoldKey) error
	// DeleteHoldIfToken removes the entry only while it still carries token.
	DeleteHoldIfToken(ctx context.Context, key HoldKey, token string) error
	// CountPartyHolds returns the number of live hold entries owned by partyID.
	CountPartyHolds(ctx context.Context, partyID int64) (int, error)

	GetLayout(ctx context.Context, showingID int64) ([]byte, error)
	SetLayout(ctx context.Context, showingID int64, payload []byte, ttl time.Duration) error
	DeleteLayout(ctx context.Context, showingID int64) error
}

// StoredHold is a hold entry together with its key and remaining lifetime.
type StoredHold struct {
	Key   HoldKey
	Entry HoldEntry
	TTL   time.Duration
}

func partyHoldsKey(partyID int64) string {
	return fmt.Sprintf("seat:holds:party:%d", partyID)
}

func layoutKey(showingID int64) string {
	return fmt.Sprintf("seat:layout:%d", showingID)
}

// LockKey names the mutual exclusion lock of one seat in one showing.
func LockKey(showingID, seatID int64) string {
	return fmt.Sprintf("lock:showing:%d:seat:%d", showingID, seatID)
}
