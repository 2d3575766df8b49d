package events

import (
	"context"
	"sync"
)

// MockPublisher is a mock implementation of Publisher for testing.
type MockPublisher struct {
	mu              sync.RWMutex
	publishedEvents []*WorkflowEvent
	publishError    error
	closed          bool
}

// NewMockPublisher creates a new mock publisher for testing.
func NewMockPublisher() *MockPublisher {
	return &MockPublisher{
		publishedEvents: make([]*WorkflowEvent, 0),
	}
}

// PublishWorkflowEvent records the event, or returns the configured error.
func (m *MockPublisher) PublishWorkflowEvent(ctx context.Context, event *WorkflowEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.publishError != nil {
		return m.publishError
	}
	m.publishedEvents = append(m.publishedEvents, event)
	return nil
}

// Close marks the publisher closed.
func (m *MockPublisher) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetPublishError configures PublishWorkflowEvent to fail.
func (m *MockPublisher) SetPublishError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publishError = err
}

// Events returns a copy of the published events.
func (m *MockPublisher) Events() []*WorkflowEvent {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*WorkflowEvent, len(m.publishedEvents))
	copy(out, m.publishedEvents)
	return out
}

// Closed reports whether Close was called.
func (m *MockPublisher) Closed() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.closed
}
