package mocks

import (
	"context"

	"github.com/metinatakli/seat-reservation-system/internal/booking"
	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/metinatakli/seat-reservation-system/internal/seating"
	"github.com/stretchr/testify/mock"
)

type MockSeatCommandService struct {
	mock.Mock
}

func (m *MockSeatCommandService) Hold(ctx context.Context, showingID, seatID, partyID int64) (*seating.HoldResult, error) {
	args := m.Called(ctx, showingID, seatID, partyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*seating.HoldResult), args.Error(1)
}

func (m *MockSeatCommandService) Release(ctx context.Context, showingID, seatID int64, token string) error {
	args := m.Called(ctx, showingID, seatID, token)
	return args.Error(0)
}

func (m *MockSeatCommandService) SetOperatorStatus(ctx context.Context, showingID, seatID int64, status domain.OperatorStatus) error {
	args := m.Called(ctx, showingID, seatID, status)
	return args.Error(0)
}

func (m *MockSeatCommandService) OpenShowing(ctx context.Context, showingID int64) (int64, error) {
	args := m.Called(ctx, showingID)
	return args.Get(0).(int64), args.Error(1)
}

type MockSeatLayoutService struct {
	mock.Mock
}

func (m *MockSeatLayoutService) GetLayout(ctx context.Context, showingID int64) (*domain.SeatLayout, error) {
	args := m.Called(ctx, showingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatLayout), args.Error(1)
}

func (m *MockSeatLayoutService) GetLayoutFor(ctx context.Context, showingID, partyID int64) (*domain.SeatLayout, error) {
	args := m.Called(ctx, showingID, partyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.SeatLayout), args.Error(1)
}

type MockBookingService struct {
	mock.Mock
}

func (m *MockBookingService) Pay(ctx context.Context, cmd booking.PayCommand) (*booking.PayResult, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.PayResult), args.Error(1)
}

func (m *MockBookingService) Get(ctx context.Context, partyID, reservationID int64) (*domain.Reservation, error) {
	args := m.Called(ctx, partyID, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Reservation), args.Error(1)
}

func (m *MockBookingService) Cancel(ctx context.Context, partyID, reservationID int64) error {
	args := m.Called(ctx, partyID, reservationID)
	return args.Error(0)
}
