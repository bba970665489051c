// Package lock provides fail-fast mutual exclusion per (showing, seat) pair.
package lock

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/seat-reservation-system/internal/coordination"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
)

const DefaultLease = 10 * time.Second

const (
	minBackoff = 10 * time.Millisecond
	maxBackoff = 250 * time.Millisecond
)

// Backend is a shared lock service. TryLock must never wait for the lock.
type Backend interface {
	TryLock(ctx context.Context, key, owner string, lease time.Duration) (bool, error)
	Unlock(ctx context.Context, key, owner string) error
}

// Lease is a held lock. It is passed back to Release.
type Lease struct {
	key   string
	owner string
	local *sync.Mutex
}

type Manager struct {
	backend Backend
	lease   time.Duration
	logger  *slog.Logger
	local   sync.Map

	contended     metric.Int64Counter
	localFallback metric.Int64Counter
}

func NewManager(backend Backend, lease time.Duration, logger *slog.Logger) *Manager {
	if lease <= 0 {
		lease = DefaultLease
	}

	meter := otel.Meter("github.com/metinatakli/seat-reservation-system/internal/lock")
	contended, _ := meter.Int64Counter("seat_lock_contended_total",
		metric.WithDescription("Seat lock acquisitions rejected because the lock was held"))
	localFallback, _ := meter.Int64Counter("seat_lock_local_fallback_total",
		metric.WithDescription("Seat lock acquisitions served by the process-local mutex"))

	return &Manager{
		backend:       backend,
		lease:         lease,
		logger:        logger,
		contended:     contended,
		localFallback: localFallback,
	}
}

// Acquire makes exactly one attempt to take the lock of the seat. It returns
// false on contention. When the backend is unreachable the attempt is made on a
// process-local mutex for the same key instead.
func (m *Manager) Acquire(ctx context.Context, showingID, seatID int64) (Lease, bool) {
	key := coordination.LockKey(showingID, seatID)
	owner := uuid.NewString()

	ok, err := m.backend.TryLock(ctx, key, owner, m.lease)
	if err == nil {
		if !ok {
			m.contended.Add(ctx, 1)
		}

		return Lease{key: key, owner: owner}, ok
	}

	m.logger.Warn("lock backend unavailable, using local mutex",
		"showing_id", showingID,
		"seat_id", seatID,
		"error", err)
	m.localFallback.Add(ctx, 1)

	value, _ := m.local.LoadOrStore(key, &sync.Mutex{})
	mu := value.(*sync.Mutex)

	if !mu.TryLock() {
		m.contended.Add(ctx, 1)
		return Lease{}, false
	}

	return Lease{key: key, local: mu}, true
}

// AcquireWait retries Acquire with a growing backoff until the lock is taken,
// maxWait has passed or ctx ends. A maxWait of zero waits for one lease period,
// after which any lock left behind by a crashed holder has expired.
func (m *Manager) AcquireWait(ctx context.Context, showingID, seatID int64, maxWait time.Duration) (Lease, bool) {
	if maxWait <= 0 {
		maxWait = m.lease
	}

	deadline := time.Now().Add(maxWait)
	backoff := minBackoff

	for {
		lease, ok := m.Acquire(ctx, showingID, seatID)
		if ok {
			return lease, true
		}

		wait := min(backoff, time.Until(deadline))
		if wait <= 0 {
			return Lease{}, false
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return Lease{}, false
		case <-timer.C:
		}

		backoff = min(backoff*2, maxBackoff)
	}
}

// Release frees a lease returned by a successful Acquire. It is safe to call with a zero Lease.
func (m *Manager) Release(ctx context.Context, lease Lease) {
	if lease.local != nil {
		lease.local.Unlock()
		return
	}

	if lease.owner == "" {
		return
	}

	// The lease runs out on its own if this fails.
	err := m.backend.Unlock(context.WithoutCancel(ctx), lease.key, lease.owner)
	if err != nil {
		m.logger.Warn("failed to release seat lock", "key", lease.key, "error", err)
	}
}
