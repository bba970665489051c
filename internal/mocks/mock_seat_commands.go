package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockSeatCommands struct {
	mock.Mock
}

func (m *MockSeatCommands) StartPaymentForReservation(ctx context.Context, showingID, seatID, partyID int64, token string) error {
	args := m.Called(ctx, showingID, seatID, partyID, token)
	return args.Error(0)
}

func (m *MockSeatCommands) ReserveForPayment(ctx context.Context, showingID, seatID, partyID int64) error {
	args := m.Called(ctx, showingID, seatID, partyID)
	return args.Error(0)
}

func (m *MockSeatCommands) VerifyPaymentPending(ctx context.Context, showingID, seatID, partyID int64) error {
	args := m.Called(ctx, showingID, seatID, partyID)
	return args.Error(0)
}

func (m *MockSeatCommands) ReleaseOnPaymentFailure(ctx context.Context, showingID, seatID, partyID int64) error {
	args := m.Called(ctx, showingID, seatID, partyID)
	return args.Error(0)
}

func (m *MockSeatCommands) CancelForReservation(ctx context.Context, showingID, seatID int64) error {
	args := m.Called(ctx, showingID, seatID)
	return args.Error(0)
}

type MockLayoutInvalidator struct {
	mock.Mock
}

func (m *MockLayoutInvalidator) Invalidate(ctx context.Context, showingID int64) {
	m.Called(ctx, showingID)
}
