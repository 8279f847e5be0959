package events

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mealplan-api/internal/domain"
)

// TaskStatusChanged records that a task moved from one status to another.
// From is empty for the initial pending status of a newly created task.
type TaskStatusChanged struct {
	// ID is a unique identifier for this event
	ID uuid.UUID `json:"id"`

	// TaskID identifies the task that changed
	TaskID uuid.UUID `json:"task_id"`

	From domain.TaskStatus `json:"from,omitempty"`
	To   domain.TaskStatus `json:"to"`

	// Error carries the redacted failure message when To is failed
	Error string `json:"error,omitempty"`

	// CreatedAt is the timestamp when the event was created
	CreatedAt time.Time `json:"created_at"`
}

// NewTaskStatusChanged creates an event for a transition of taskID.
func NewTaskStatusChanged(taskID uuid.UUID, from, to domain.TaskStatus) *TaskStatusChanged {
	return &TaskStatusChanged{
		ID:        uuid.New(),
		TaskID:    taskID,
		From:      from,
		To:        to,
		CreatedAt: time.Now().UTC(),
	}
}

// IsTerminal reports whether the transition ended the task.
func (e *TaskStatusChanged) IsTerminal() bool {
	return e.To.IsTerminal()
}

// EventHandler defines an interface for components that can handle events.
// Handlers are responsible for processing events and taking appropriate actions.
type EventHandler interface {
	// HandleEvent processes the given event within the provided context.
	// Returns an error if the event cannot be handled successfully.
	HandleEvent(ctx context.Context, event *TaskStatusChanged) error
}

// EventHandlerFunc adapts a function to EventHandler.
type EventHandlerFunc func(ctx context.Context, event *TaskStatusChanged) error

// HandleEvent calls f.
func (f EventHandlerFunc) HandleEvent(ctx context.Context, event *TaskStatusChanged) error {
	return f(ctx, event)
}

// EventEmitter defines an interface for components that can emit events.
// This allows services to publish events without direct knowledge of handlers.
type EventEmitter interface {
	// EmitEvent publishes the given event to all registered handlers.
	// Returns an error if the event cannot be emitted.
	EmitEvent(ctx context.Context, event *TaskStatusChanged) error
}

// NopEmitter discards every event.
type NopEmitter struct{}

// EmitEvent does nothing.
func (NopEmitter) EmitEvent(context.Context, *TaskStatusChanged) error {
	return nil
}
