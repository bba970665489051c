// Package ratelimit counts requests per key in fixed windows.
package ratelimit

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Decision is the outcome of one counted request.
type Decision struct {
	Allowed    bool
	Limit      int
	Remaining  int
	RetryAfter time.Duration
}

func decide(count int64, limit int, resetIn time.Duration) Decision {
	remaining := limit - int(count)
	if remaining < 0 {
		remaining = 0
	}

	d := Decision{
		Allowed:   count <= int64(limit),
		Limit:     limit,
		Remaining: remaining,
	}

	if !d.Allowed {
		d.RetryAfter = resetIn
	}

	return d
}

type Limiter interface {
	// Allow counts one request against key and reports whether it fits in the
	// current window of limit requests.
	Allow(ctx context.Context, key string, limit int, window time.Duration) (Decision, error)
}

// RedisLimiter shares its windows between every instance through Redis INCR
// and a window-long expiry set by the first request.
type RedisLimiter struct {
	client redis.UniversalClient
}

func NewRedisLimiter(client redis.UniversalClient) *RedisLimiter {
	return &RedisLimiter{
		client: client,
	}
}

func redisKey(key string) string {
	return "rate:" + key
}

func (l *RedisLimiter) Allow(ctx context.Context, key string, limit int, size time.Duration) (Decision, error) {
	k := redisKey(key)

	pipe := l.client.TxPipeline()
	incr := pipe.Incr(ctx, k)
	pipe.ExpireNX(ctx, k, size)
	ttl := pipe.PTTL(ctx, k)

	_, err := pipe.Exec(ctx)
	if err != nil {
		return Decision{}, fmt.Errorf("count request %s: %w", key, err)
	}

	resetIn := ttl.Val()
	if resetIn < 0 {
		resetIn = size
	}

	return decide(incr.Val(), limit, resetIn), nil
}

type fixedWindow struct {
	count   int64
	resetAt time.Time
}

// MemoryLimiter keeps windows inside the process.
type MemoryLimiter struct {
	mu      sync.Mutex
	windows map[string]*fixedWindow
	now     func() time.Time
}

func NewMemoryLimiter() *MemoryLimiter {
	return NewMemoryLimiterWithClock(time.Now)
}

func NewMemoryLimiterWithClock(now func() time.Time) *MemoryLimiter {
	return &MemoryLimiter{
		windows: make(map[string]*fixedWindow),
		now:     now,
	}
}

func (l *MemoryLimiter) Allow(_ context.Context, key string, limit int, size time.Duration) (Decision, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()

	w, ok := l.windows[key]
	if !ok || !now.Before(w.resetAt) {
		l.evict(now)

		w = &fixedWindow{resetAt: now.Add(size)}
		l.windows[key] = w
	}

	w.count++

	return decide(w.count, limit, w.resetAt.Sub(now)), nil
}

// evict must be called with mu held.
func (l *MemoryLimiter) evict(now time.Time) {
	for key, w := range l.windows {
		if !now.Before(w.resetAt) {
			delete(l.windows, key)
		}
	}
}

// Failover counts in primary and falls back to secondary while primary fails.
type Failover struct {
	primary   Limiter
	secondary Limiter
	logger    *slog.Logger
}

func NewFailover(primary, secondary Limiter, logger *slog.Logger) *Failover {
	return &Failover{
		primary:   primary,
		secondary: secondary,
		logger:    logger,
	}
}

func (f *Failover) Allow(ctx context.Context, key string, limit int, size time.Duration) (Decision, error) {
	d, err := f.primary.Allow(ctx, key, limit, size)
	if err == nil {
		return d, nil
	}

	f.logger.Warn("rate limit store unavailable, counting locally", "key", key, "error", err)

	return f.secondary.Allow(ctx, key, limit, size)
}
