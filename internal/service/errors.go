package service

import (
	"errors"
	"fmt"

	"github.com/phrazzld/mealplan-api/internal/store"
)

// Common service errors - sentinel errors used across service implementations.
// Callers check for them with errors.Is().
var (
	// ErrTaskNotFound indicates that the task does not exist or could not be read.
	// API layer should map this to HTTP 404 Not Found.
	ErrTaskNotFound = store.ErrTaskNotFound

	// ErrInvalidWait indicates invalid long-poll parameters (unknown target
	// status or negative timeout).
	// API layer should map this to HTTP 400 Bad Request.
	ErrInvalidWait = errors.New("invalid wait parameters")
)

// MealPlanServiceError wraps errors from the meal plan service with context.
type MealPlanServiceError struct {
	// Operation is the operation that failed (e.g., "start_generation")
	Operation string
	// Message is a human-readable description of the error
	Message string
	// Err is the underlying error that caused the failure
	Err error
}

// Error implements the error interface for MealPlanServiceError.
func (e *MealPlanServiceError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("meal plan service %s failed: %s: %v", e.Operation, e.Message, e.Err)
	}
	return fmt.Sprintf("meal plan service %s failed: %s", e.Operation, e.Message)
}

// Unwrap returns the wrapped error to support errors.Is/errors.As.
func (e *MealPlanServiceError) Unwrap() error {
	return e.Err
}

// NewMealPlanServiceError creates a new MealPlanServiceError.
// It returns known sentinel errors directly without wrapping.
func NewMealPlanServiceError(operation, message string, err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, ErrTaskNotFound) {
		return ErrTaskNotFound
	}

	return &MealPlanServiceError{
		Operation: operation,
		Message:   message,
		Err:       err,
	}
}
