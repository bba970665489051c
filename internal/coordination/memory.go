package coordination

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type memoryItem struct {
	value     any
	expiresAt time.Time
}

// MemoryStore keeps coordination state inside the process. It backs single-instance
// deployments without Redis and serves as the failover target when Redis is unreachable.
type MemoryStore struct {
	mu    sync.Mutex
	items map[string]memoryItem
	now   func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return NewMemoryStoreWithClock(time.Now)
}

func NewMemoryStoreWithClock(now func() time.Time) *MemoryStore {
	return &MemoryStore{
		items: make(map[string]memoryItem),
		now:   now,
	}
}

// get must be called with mu held. Expired items are evicted on access.
func (s *MemoryStore) get(key string) (any, bool) {
	item, ok := s.items[key]
	if !ok {
		return nil, false
	}

	if !item.expiresAt.IsZero() && !s.now().Before(item.expiresAt) {
		delete(s.items, key)
		return nil, false
	}

	return item.value, true
}

func (s *MemoryStore) set(key string, value any, ttl time.Duration) {
	item := memoryItem{value: value}
	if ttl > 0 {
		item.expiresAt = s.now().Add(ttl)
	}

	s.items[key] = item
}

func (s *MemoryStore) SaveHold(_ context.Context, key HoldKey, entry HoldEntry, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.set(key.String(), entry, ttl)

	return nil
}

func (s *MemoryStore) GetHold(_ context.Context, key HoldKey) (*HoldEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.get(key.String())
	if !ok {
		return nil, ErrNotFound
	}

	entry := value.(HoldEntry)

	return &entry, nil
}

func (s *MemoryStore) HoldTTL(_ context.Context, key HoldKey) (time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.get(key.String()); !ok {
		return 0, ErrNotFound
	}

	return s.items[key.String()].expiresAt.Sub(s.now()), nil
}

func (s *MemoryStore) DeleteHold(_ context.Context, key HoldKey) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, key.String())

	return nil
}

func (s *MemoryStore) DeleteHoldIfToken(_ context.Context, key HoldKey, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.get(key.String())
	if ok && value.(HoldEntry).HoldToken == token {
		delete(s.items, key.String())
	}

	return nil
}

func (s *MemoryStore) CountPartyHolds(_ context.Context, partyID int64) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for key := range s.items {
		value, ok := s.get(key)
		if !ok {
			continue
		}

		if entry, isHold := value.(HoldEntry); isHold && entry.PartyID == partyID {
			count++
		}
	}

	return count, nil
}

// DrainHolds removes every live hold entry and returns it with its remaining TTL.
func (s *MemoryStore) DrainHolds() []StoredHold {
	s.mu.Lock()
	defer s.mu.Unlock()

	holds := make([]StoredHold, 0)
	for name := range s.items {
		value, ok := s.get(name)
		if !ok {
			continue
		}

		entry, isHold := value.(HoldEntry)
		if !isHold {
			continue
		}

		var key HoldKey
		_, err := fmt.Sscanf(name, "seat:hold:%d:%d", &key.ShowingID, &key.SeatID)
		if err != nil {
			continue
		}

		expiresAt := s.items[name].expiresAt
		delete(s.items, name)

		if expiresAt.IsZero() {
			continue
		}

		holds = append(holds, StoredHold{Key: key, Entry: entry, TTL: expiresAt.Sub(s.now())})
	}

	return holds
}

func (s *MemoryStore) GetLayout(_ context.Context, showingID int64) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.get(layoutKey(showingID))
	if !ok {
		return nil, ErrNotFound
	}

	return value.([]byte), nil
}

func (s *MemoryStore) SetLayout(_ context.Context, showingID int64, payload []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := make([]byte, len(payload))
	copy(stored, payload)
	s.set(layoutKey(showingID), stored, ttl)

	return nil
}

func (s *MemoryStore) DeleteLayout(_ context.Context, showingID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.items, layoutKey(showingID))

	return nil
}

func (s *MemoryStore) TryLock(_ context.Context, key, owner string, lease time.Duration) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.get(key); ok {
		return false, nil
	}

	s.set(key, owner, lease)

	return true, nil
}

func (s *MemoryStore) Unlock(_ context.Context, key, owner string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	value, ok := s.get(key)
	if ok && value.(string) == owner {
		delete(s.items, key)
	}

	return nil
}
