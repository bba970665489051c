package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishSeatsChanged(ctx context.Context, showingID int64, seatIDs []int64) error {
	args := m.Called(ctx, showingID, seatIDs)
	return args.Error(0)
}
