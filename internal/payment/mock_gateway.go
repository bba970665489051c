// Package payment holds the payment gateways a reservation can be charged through.
package payment

import (
	"context"
	"fmt"
	"time"

	"github.com/metinatakli/seat-reservation-system/internal/domain"
)

// MockGateway approves every charge except those paid with one of its fail methods.
type MockGateway struct {
	failMethods map[domain.PaymentMethod]struct{}
	now         func() time.Time
}

func NewMockGateway(failMethods ...domain.PaymentMethod) *MockGateway {
	fail := make(map[domain.PaymentMethod]struct{}, len(failMethods))
	for _, method := range failMethods {
		fail[method] = struct{}{}
	}

	return &MockGateway{
		failMethods: fail,
		now:         time.Now,
	}
}

func (g *MockGateway) Charge(ctx context.Context, req domain.ChargeRequest) (*domain.ChargeResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if _, fail := g.failMethods[req.Method]; fail {
		return nil, fmt.Errorf("%w: %s payments are rejected", domain.ErrPaymentFailed, req.Method)
	}

	now := g.now()

	return &domain.ChargeResult{
		TransactionRef: fmt.Sprintf("MOCK-PG-%d", now.UnixMilli()),
		ApprovedAt:     now,
	}, nil
}

func (g *MockGateway) Refund(ctx context.Context, transactionRef string) error {
	return ctx.Err()
}
