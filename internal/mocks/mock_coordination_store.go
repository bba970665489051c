package mocks

import (
	"context"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/coordination"
	"github.com/stretchr/testify/mock"
)

type MockCoordinationStore struct {
	mock.Mock
}

func (m *MockCoordinationStore) SaveHold(ctx context.Context, key coordination.HoldKey, entry coordination.HoldEntry, ttl time.Duration) error {
	args := m.Called(ctx, key, entry, ttl)
	return args.Error(0)
}

func (m *MockCoordinationStore) GetHold(ctx context.Context, key coordination.HoldKey) (*coordination.HoldEntry, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*coordination.HoldEntry), args.Error(1)
}

func (m *MockCoordinationStore) HoldTTL(ctx context.Context, key coordination.HoldKey) (time.Duration, error) {
	args := m.Called(ctx, key)
	return args.Get(0).(time.Duration), args.Error(1)
}

func (m *MockCoordinationStore) DeleteHold(ctx context.Context, key coordination.HoldKey) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockCoordinationStore) DeleteHoldIfToken(ctx context.Context, key coordination.HoldKey, token string) error {
	args := m.Called(ctx, key, token)
	return args.Error(0)
}

func (m *MockCoordinationStore) CountPartyHolds(ctx context.Context, partyID int64) (int, error) {
	args := m.Called(ctx, partyID)
	return args.Int(0), args.Error(1)
}

func (m *MockCoordinationStore) GetLayout(ctx context.Context, showingID int64) ([]byte, error) {
	args := m.Called(ctx, showingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockCoordinationStore) SetLayout(ctx context.Context, showingID int64, payload []byte, ttl time.Duration) error {
	args := m.Called(ctx, showingID, payload, ttl)
	return args.Error(0)
}

func (m *MockCoordinationStore) DeleteLayout(ctx context.Context, showingID int64) error {
	args := m.Called(ctx, showingID)
	return args.Error(0)
}

type MockLockBackend struct {
	mock.Mock
}

func (m *MockLockBackend) TryLock(ctx context.Context, key, owner string, lease time.Duration) (bool, error) {
	args := m.Called(ctx, key, owner, lease)
	return args.Bool(0), args.Error(1)
}

func (m *MockLockBackend) Unlock(ctx context.Context, key, owner string) error {
	args := m.Called(ctx, key, owner)
	return args.Error(0)
}
