package seating

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/coordination"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
)

const DefaultResyncInterval = 30 * time.Second

type healthChecker interface {
	Ping(ctx context.Context) error
}

type secondaryFlusher interface {
	FlushSecondary(ctx context.Context, keep func(key coordination.HoldKey, entry coordination.HoldEntry) bool) (int, error)
}

// HoldResync watches the shared coordination store. Whenever it becomes
// reachable again, and once at startup, hold entries are rebuilt from the
// seat records: entries written locally during the outage are moved over and
// every live hold the store lost is written back.
type HoldResync struct {
	seats    domain.SeatRepository
	commands *CommandService
	health   healthChecker
	flusher  secondaryFlusher
	interval time.Duration
	logger   *slog.Logger
	now      func() time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool
	healthy bool
}

// NewHoldResync builds the worker. flusher may be nil when there is no local
// fallback store to drain.
func NewHoldResync(
	seats domain.SeatRepository,
	commands *CommandService,
	health healthChecker,
	flusher secondaryFlusher,
	interval time.Duration,
	logger *slog.Logger) *HoldResync {

	if interval <= 0 {
		interval = DefaultResyncInterval
	}

	return &HoldResync{
		seats:    seats,
		commands: commands,
		health:   health,
		flusher:  flusher,
		interval: interval,
		logger:   logger,
		now:      time.Now,
		stopCh:   make(chan struct{}),
	}
}

func (h *HoldResync) WithClock(now func() time.Time) *HoldResync {
	h.now = now
	return h
}

func (h *HoldResync) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.running {
		return errors.New("hold resync already running")
	}
	h.running = true

	h.logger.Info("starting hold resync", "interval", h.interval)

	h.wg.Add(1)
	go h.loop(ctx)

	return nil
}

func (h *HoldResync) Stop() {
	h.mu.Lock()
	if !h.running {
		h.mu.Unlock()
		return
	}
	h.running = false
	h.mu.Unlock()

	close(h.stopCh)
	h.wg.Wait()

	h.logger.Info("hold resync stopped")
}

func (h *HoldResync) loop(ctx context.Context) {
	defer h.wg.Done()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	h.Check(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-h.stopCh:
			return
		case <-ticker.C:
			h.Check(ctx)
		}
	}
}

// Check pings the store and resyncs on the transition from unreachable, or
// unchecked, to reachable. A failed resync is retried on the next check.
func (h *HoldResync) Check(ctx context.Context) {
	defer func() {
		if rec := recover(); rec != nil {
			h.logger.Error("hold resync panicked", "panic", fmt.Sprint(rec))
		}
	}()

	err := h.health.Ping(ctx)
	if err != nil {
		if h.healthy {
			h.logger.Warn("coordination store unreachable, holds are kept locally", "error", err)
		}
		h.healthy = false
		return
	}

	if h.healthy {
		return
	}

	_, err = h.Resync(ctx)
	if err != nil {
		h.logger.Error("hold resync failed", "error", err)
		return
	}

	h.healthy = true
}

// Resync rebuilds hold entries from the live seat holds and reports how many
// entries it wrote back.
func (h *HoldResync) Resync(ctx context.Context) (int, error) {
	live, err := h.seats.ListLiveHolds(ctx, h.now())
	if err != nil {
		return 0, fmt.Errorf("list live holds: %w", err)
	}

	byKey := make(map[coordination.HoldKey]string, len(live))
	for _, hold := range live {
		byKey[coordination.HoldKey{ShowingID: hold.ShowingID, SeatID: hold.SeatID}] = hold.HoldToken
	}

	flushed := 0
	if h.flusher != nil {
		flushed, err = h.flusher.FlushSecondary(ctx, func(key coordination.HoldKey, entry coordination.HoldEntry) bool {
			token, ok := byKey[key]
			return ok && token == entry.HoldToken
		})
		if err != nil {
			return 0, fmt.Errorf("flush local holds: %w", err)
		}
	}

	restored := 0
	for _, hold := range live {
		ok, err := h.commands.RestoreHold(ctx, hold)
		if err != nil {
			h.logger.Warn("failed to restore hold entry",
				"showing_id", hold.ShowingID,
				"seat_id", hold.SeatID,
				"error", err)
			continue
		}

		if ok {
			restored++
		}
	}

	if flushed > 0 || restored > 0 {
		h.logger.Info("hold entries resynced", "flushed", flushed, "restored", restored)
	}

	return restored, nil
}
