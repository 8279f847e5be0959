package task

import (
	"context"

	"github.com/google/uuid"
)

// TaskTypeMealPlan is the type of meal-plan generation tasks.
const TaskTypeMealPlan = "meal_plan_generation"

// Task represents a unit of background work to be processed
type Task interface {
	// ID returns the task's unique identifier
	ID() uuid.UUID

	// Type returns the task type identifier
	Type() string

	// Execute runs the task logic
	Execute(ctx context.Context) error
}

// FailureHandler is implemented by tasks that record their own failure.
// TaskRunner calls it when Execute panics.
type FailureHandler interface {
	HandleFailure(ctx context.Context, err error)
}
