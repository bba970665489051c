package mocks

import (
	"context"

	"github.com/metinatakli/seat-reservation-system/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ChargeResult), args.Error(1)
}

func (m *MockPaymentGateway) Refund(ctx context.Context, transactionRef string) error {
	args := m.Called(ctx, transactionRef)
	return args.Error(0)
}
