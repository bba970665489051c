package mocks

import (
	"context"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockSeatRepo struct {
	mock.Mock
}

func (m *MockSeatRepo) Get(ctx context.Context, showingID, seatID int64) (*domain.ShowingSeat, error) {
	args := m.Called(ctx, showingID, seatID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ShowingSeat), args.Error(1)
}

func (m *MockSeatRepo) ListByShowing(ctx context.Context, showingID int64) ([]domain.ShowingSeat, error) {
	args := m.Called(ctx, showingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ShowingSeat), args.Error(1)
}

func (m *MockSeatRepo) Update(ctx context.Context, seat *domain.ShowingSeat) error {
	args := m.Called(ctx, seat)
	return args.Error(0)
}

func (m *MockSeatRepo) CreateForShowing(ctx context.Context, showingID int64) (int64, error) {
	args := m.Called(ctx, showingID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockSeatRepo) FindExpiredHolds(ctx context.Context, now time.Time) ([]domain.ExpiredHold, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.ExpiredHold), args.Error(1)
}

func (m *MockSeatRepo) ListLiveHolds(ctx context.Context, now time.Time) ([]domain.LiveHold, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.LiveHold), args.Error(1)
}

func (m *MockSeatRepo) ReleaseExpiredHolds(ctx context.Context, now time.Time) ([]domain.SeatRef, error) {
	args := m.Called(ctx, now)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.SeatRef), args.Error(1)
}

func (m *MockSeatRepo) FindStranded(ctx context.Context) ([]domain.StrandedSeat, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]domain.StrandedSeat), args.Error(1)
}

type MockShowingRepo struct {
	mock.Mock
}

func (m *MockShowingRepo) GetByID(ctx context.Context, id int64) (*domain.Showing, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Showing), args.Error(1)
}
