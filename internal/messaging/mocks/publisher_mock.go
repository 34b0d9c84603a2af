package mocks

import (
	"context"
	"testing"

	"simulation-server/internal/messaging"

	"github.com/stretchr/testify/mock"
)

// MockEventPublisher is a mock type for messaging.EventPublisher.
type MockEventPublisher struct {
	mock.Mock
}

var _ messaging.EventPublisher = (*MockEventPublisher)(nil)

func (m *MockEventPublisher) PublishTurnCreated(ctx context.Context, event messaging.TurnCreatedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

func (m *MockEventPublisher) PublishVideoStatusChanged(ctx context.Context, event messaging.VideoStatusChangedEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

// NewMockEventPublisher creates a new instance of MockEventPublisher and registers cleanup.
func NewMockEventPublisher(t *testing.T) *MockEventPublisher {
	m := &MockEventPublisher{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
