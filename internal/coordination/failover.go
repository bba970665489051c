package coordination

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Failover serves hold operations from secondary whenever primary fails with an
// infrastructure error. Layout operations are not failed over: the caller is
// expected to fall back to the store of record instead.
type Failover struct {
	primary   Store
	secondary Store
	logger    *slog.Logger
}

func NewFailover(primary, secondary Store, logger *slog.Logger) *Failover {
	return &Failover{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (f *Failover) degraded(op string, err error) bool {
	if err == nil || errors.Is(err, ErrNotFound) {
		return false
	}

	f.logger.Warn("coordination store unavailable, using local fallback", "op", op, "error", err)

	return true
}

func (f *Failover) SaveHold(ctx context.Context, key HoldKey, entry HoldEntry, ttl time.Duration) error {
	err := f.primary.SaveHold(ctx, key, entry, ttl)
	if f.degraded("save_hold", err) {
		return f.secondary.SaveHold(ctx, key, entry, ttl)
	}

	return err
}

func (f *Failover) GetHold(ctx context.Context, key HoldKey) (*HoldEntry, error) {
	entry, err := f.primary.GetHold(ctx, key)
	if f.degraded("get_hold", err) {
		return f.secondary.GetHold(ctx, key)
	}

	if errors.Is(err, ErrNotFound) {
		// The hold may have been written locally during an outage.
		return f.secondary.GetHold(ctx, key)
	}

	return entry, err
}

func (f *Failover) HoldTTL(ctx context.Context, key HoldKey) (time.Duration, error) {
	ttl, err := f.primary.HoldTTL(ctx, key)
	if f.degraded("hold_ttl", err) || errors.Is(err, ErrNotFound) {
		return f.secondary.HoldTTL(ctx, key)
	}

	return ttl, err
}

func (f *Failover) DeleteHold(ctx context.Context, key HoldKey) error {
	err := f.primary.DeleteHold(ctx, key)
	f.degraded("delete_hold", err)

	return f.secondary.DeleteHold(ctx, key)
}

func (f *Failover) DeleteHoldIfToken(ctx context.Context, key HoldKey, token string) error {
	err := f.primary.DeleteHoldIfToken(ctx, key, token)
	f.degraded("delete_hold_if_token", err)

	return f.secondary.DeleteHoldIfToken(ctx, key, token)
}

func (f *Failover) CountPartyHolds(ctx context.Context, partyID int64) (int, error) {
	local, err := f.secondary.CountPartyHolds(ctx, partyID)
	if err != nil {
		return 0, err
	}

	remote, err := f.primary.CountPartyHolds(ctx, partyID)
	if f.degraded("count_party_holds", err) {
		return local, nil
	}

	return remote + local, err
}

type holdDrainer interface {
	DrainHolds() []StoredHold
}

// FlushSecondary moves the hold entries written locally during an outage to
// primary. Entries rejected by keep are dropped. When primary fails, the
// entries not yet moved are put back into secondary.
func (f *Failover) FlushSecondary(ctx context.Context, keep func(key HoldKey, entry HoldEntry) bool) (int, error) {
	drainer, ok := f.secondary.(holdDrainer)
	if !ok {
		return 0, nil
	}

	holds := drainer.DrainHolds()
	moved := 0

	for i, hold := range holds {
		if keep != nil && !keep(hold.Key, hold.Entry) {
			continue
		}

		err := f.primary.SaveHold(ctx, hold.Key, hold.Entry, hold.TTL)
		if err != nil {
			f.restore(ctx, holds[i:], keep)
			return moved, fmt.Errorf("flush hold %s: %w", hold.Key, err)
		}

		moved++
	}

	return moved, nil
}

func (f *Failover) restore(ctx context.Context, holds []StoredHold, keep func(key HoldKey, entry HoldEntry) bool) {
	for _, hold := range holds {
		if keep != nil && !keep(hold.Key, hold.Entry) {
			continue
		}

		err := f.secondary.SaveHold(ctx, hold.Key, hold.Entry, hold.TTL)
		if err != nil {
			f.logger.Warn("failed to put hold entry back", "key", hold.Key.String(), "error", err)
		}
	}
}

func (f *Failover) GetLayout(ctx context.Context, showingID int64) ([]byte, error) {
	return f.primary.GetLayout(ctx, showingID)
}

func (f *Failover) SetLayout(ctx context.Context, showingID int64, payload []byte, ttl time.Duration) error {
	return f.primary.SetLayout(ctx, showingID, payload, ttl)
}

func (f *Failover) DeleteLayout(ctx context.Context, showingID int64) error {
	return f.primary.DeleteLayout(ctx, showingID)
}
