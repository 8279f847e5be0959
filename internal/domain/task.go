package domain

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// TaskStatus represents the current state of a meal-plan generation task.
type TaskStatus string

// Possible task status values, in lifecycle order.
const (
	TaskStatusPending            TaskStatus = "pending"
	TaskStatusInProgressPlan     TaskStatus = "in_progress_plan"
	TaskStatusInProgressShopping TaskStatus = "in_progress_shopping"
	TaskStatusCompleted          TaskStatus = "completed"
	TaskStatusFailed             TaskStatus = "failed"
)

// statusOrder is the position of each non-failed status in the lifecycle.
var statusOrder = map[TaskStatus]int{
	TaskStatusPending:            0,
	TaskStatusInProgressPlan:     1,
	TaskStatusInProgressShopping: 2,
	TaskStatusCompleted:          3,
}

// IsValid reports whether s is a known status.
func (s TaskStatus) IsValid() bool {
	if s == TaskStatusFailed {
		return true
	}
	_, ok := statusOrder[s]
	return ok
}

// IsTerminal reports whether no further transitions can occur from s.
func (s TaskStatus) IsTerminal() bool {
	return s == TaskStatusCompleted || s == TaskStatusFailed
}

// CanTransition reports whether a task may move from one status to another.
// Tasks advance one step at a time along the lifecycle, may fail from any
// non-terminal status and never leave a terminal status.
func CanTransition(from, to TaskStatus) bool {
	if !from.IsValid() || !to.IsValid() || from.IsTerminal() {
		return false
	}
	if to == TaskStatusFailed {
		return true
	}
	return statusOrder[to] == statusOrder[from]+1
}

// TokenUsage holds token accounting reported by the completion service.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Usage groups token accounting per pipeline stage.
type Usage struct {
	MealPlan     *TokenUsage `json:"meal_plan,omitempty"`
	ShoppingList *TokenUsage `json:"shopping_list,omitempty"`
}

// Result is the payload of a completed task.
type Result struct {
	Days         []Day        `json:"days"`
	ShoppingList []Ingredient `json:"shopping_list"`
}

// Task is the lifecycle record of one meal-plan generation request.
type Task struct {
	ID        uuid.UUID  `json:"id"`
	Status    TaskStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	Result    *Result    `json:"result,omitempty"`
	Error     string     `json:"error,omitempty"`
	Usage     *Usage     `json:"usage,omitempty"`
}

// NewTask creates a pending task with a fresh identifier. The timestamp is
// truncated to microseconds so it survives a round-trip through the store
// unchanged.
func NewTask(now time.Time) *Task {
	return &Task{
		ID:        uuid.New(),
		Status:    TaskStatusPending,
		CreatedAt: now.UTC().Truncate(time.Microsecond),
	}
}

// Advance moves the task to the next in-progress status.
// Use Complete and Fail for the terminal statuses.
func (t *Task) Advance(next TaskStatus) error {
	if next.IsTerminal() {
		return fmt.Errorf("%w: use Complete or Fail to reach %s", ErrInvalidTransition, next)
	}
	if !CanTransition(t.Status, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, next)
	}
	t.Status = next
	return nil
}

// Complete attaches the result and marks the task completed.
func (t *Task) Complete(result Result) error {
	if !CanTransition(t.Status, TaskStatusCompleted) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskStatusCompleted)
	}
	if result.ShoppingList == nil {
		result.ShoppingList = []Ingredient{}
	}
	t.Status = TaskStatusCompleted
	t.Result = &result
	t.Error = ""
	return nil
}

// Fail marks the task failed with a human-readable message.
func (t *Task) Fail(message string) error {
	if !CanTransition(t.Status, TaskStatusFailed) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.Status, TaskStatusFailed)
	}
	if message == "" {
		message = "unknown error"
	}
	t.Status = TaskStatusFailed
	t.Error = message
	t.Result = nil
	return nil
}

// Validate checks the structural invariants of a task:
// a result exists only when completed and an error only when failed.
func (t *Task) Validate() error {
	if t.ID == uuid.Nil {
		return NewValidationError("id", "cannot be empty", ErrValidation)
	}
	if !t.Status.IsValid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, t.Status)
	}
	if t.CreatedAt.IsZero() {
		return NewValidationError("created_at", "cannot be zero", ErrValidation)
	}
	if (t.Status == TaskStatusCompleted) != (t.Result != nil) {
		return fmt.Errorf("%w: result must be present if and only if the task is completed", ErrValidation)
	}
	if (t.Status == TaskStatusFailed) != (t.Error != "") {
		return fmt.Errorf("%w: error must be present if and only if the task failed", ErrValidation)
	}
	return nil
}
