package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mealplan-api/internal/domain"
)

// TaskStore is the Task Status Store: the durable mapping from task
// identifier to task state. The identifier itself is the storage key.
type TaskStore interface {
	// Save creates or replaces the row for task.ID. It is idempotent. The
	// result payload is persisted only while the task is completed; for
	// every other status the stored result is cleared.
	//
	// Returns ErrInvalidEntity if the task violates its invariants and
	// ErrWriteFailed for any database failure.
	Save(ctx context.Context, task *domain.Task) error

	// Get returns the task stored under id. A missing row and any read
	// failure both yield ErrTaskNotFound.
	Get(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// ListStale returns non-terminal tasks whose last update happened before
	// olderThan, oldest first.
	ListStale(ctx context.Context, olderThan time.Time) ([]*domain.Task, error)

	// WithTx returns a TaskStore that runs its statements in tx.
	WithTx(tx *sql.Tx) TaskStore
}
