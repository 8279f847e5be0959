package task

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// MockTask is a simple implementation of the Task interface for testing
type MockTask struct {
	TaskID    uuid.UUID
	ExecuteFn func(ctx context.Context) error

	mu       sync.Mutex
	failures []error
}

// NewMockTask creates a MockTask whose Execute succeeds immediately.
func NewMockTask() *MockTask {
	return &MockTask{
		TaskID:    uuid.New(),
		ExecuteFn: func(ctx context.Context) error { return nil },
	}
}

// ID returns the task's unique identifier
func (t *MockTask) ID() uuid.UUID {
	return t.TaskID
}

// Type returns the task type identifier
func (t *MockTask) Type() string {
	return "mock"
}

// Execute runs the task logic
func (t *MockTask) Execute(ctx context.Context) error {
	return t.ExecuteFn(ctx)
}

// HandleFailure records err.
func (t *MockTask) HandleFailure(_ context.Context, err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.failures = append(t.failures, err)
}

// Failures returns the errors passed to HandleFailure.
func (t *MockTask) Failures() []error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]error(nil), t.failures...)
}
