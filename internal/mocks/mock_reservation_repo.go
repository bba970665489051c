package mocks

import (
	"context"

	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockReservationRepo struct {
	mock.Mock
}

func (m *MockReservationRepo) CreateConfirmed(ctx context.Context, reservation *domain.Reservation, payment *domain.Payment) error {
	args := m.Called(ctx, reservation, payment)
	return args.Error(0)
}

func (m *MockReservationRepo) GetByID(ctx context.Context, id int64) (*domain.Reservation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockReservationRepo) Cancel(ctx context.Context, id int64) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

type MockReservationNotifier struct {
	mock.Mock
}

func (m *MockReservationNotifier) NotifyReservation(ctx context.Context, event domain.ReservationEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}
