package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/platform/logger"
	"github.com/phrazzld/mealplan-api/internal/store"
)

// TaskStore implements store.TaskStore on database/sql.
type TaskStore struct {
	db  store.DBTX
	now func() time.Time
}

var _ store.TaskStore = (*TaskStore)(nil)

// NewTaskStore creates a TaskStore that runs its statements on db.
func NewTaskStore(db store.DBTX) *TaskStore {
	return &TaskStore{
		db:  db,
		now: time.Now,
	}
}

// WithTx returns a store bound to tx.
func (s *TaskStore) WithTx(tx *sql.Tx) store.TaskStore {
	return &TaskStore{
		db:  tx,
		now: s.now,
	}
}

const upsertTaskQuery = `
	INSERT INTO meal_plan_tasks (id, status, error_message, token_usage, plan_json, created_at, updated_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7)
	ON CONFLICT (id) DO UPDATE SET
		status = excluded.status,
		error_message = excluded.error_message,
		token_usage = excluded.token_usage,
		plan_json = excluded.plan_json,
		updated_at = excluded.updated_at
`

const selectTaskColumns = `SELECT id, status, error_message, token_usage, plan_json, created_at FROM meal_plan_tasks`

// Save creates or replaces the row of task.ID. The plan column is written only
// for completed tasks and cleared otherwise.
func (s *TaskStore) Save(ctx context.Context, task *domain.Task) error {
	log := logger.FromContext(ctx)

	if err := task.Validate(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrInvalidEntity, err)
	}

	usage, err := encodeJSON(task.Usage)
	if err != nil {
		return fmt.Errorf("%w: encode usage: %v", store.ErrInvalidEntity, err)
	}

	var plan sql.NullString
	if task.Status == domain.TaskStatusCompleted {
		plan, err = encodeJSON(task.Result)
		if err != nil {
			return fmt.Errorf("%w: encode plan: %v", store.ErrInvalidEntity, err)
		}
	}

	_, err = s.db.ExecContext(ctx, upsertTaskQuery,
		task.ID,
		string(task.Status),
		task.Error,
		usage,
		plan,
		task.CreatedAt.UTC(),
		s.now().UTC(),
	)
	if err != nil {
		log.Error("failed to save task",
			"task_id", task.ID,
			"status", task.Status,
			"error", err)
		return fmt.Errorf("%w: %w", store.ErrWriteFailed,
			store.NewStoreError("task", "save", "upsert failed", MapError(err)))
	}

	return nil
}

// Get reads one task. Every failure, including a missing row, is reported as
// store.ErrTaskNotFound; the cause is only logged.
func (s *TaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	log := logger.FromContext(ctx)

	row := s.db.QueryRowContext(ctx, selectTaskColumns+` WHERE id = $1`, id)
	task, err := scanTask(row)
	if err != nil {
		if IsNotFoundError(err) {
			log.Debug("task not found", "task_id", id)
		} else {
			log.Error("failed to read task", "task_id", id, "error", MapError(err))
		}
		return nil, store.ErrTaskNotFound
	}

	return task, nil
}

// ListStale returns non-terminal tasks last updated before olderThan, oldest
// first.
func (s *TaskStore) ListStale(ctx context.Context, olderThan time.Time) ([]*domain.Task, error) {
	query := selectTaskColumns + `
		WHERE status IN ($1, $2, $3) AND updated_at < $4
		ORDER BY updated_at
	`

	rows, err := s.db.QueryContext(ctx, query,
		string(domain.TaskStatusPending),
		string(domain.TaskStatusInProgressPlan),
		string(domain.TaskStatusInProgressShopping),
		olderThan.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query stale tasks: %w", MapError(err))
	}
	defer func() {
		_ = rows.Close()
	}()

	var tasks []*domain.Task
	for rows.Next() {
		task, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan stale task: %w", err)
		}
		tasks = append(tasks, task)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating stale tasks: %w", MapError(err))
	}

	return tasks, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanTask(row rowScanner) (*domain.Task, error) {
	var (
		task   domain.Task
		status string
		usage  sql.NullString
		plan   sql.NullString
	)

	if err := row.Scan(&task.ID, &status, &task.Error, &usage, &plan, &task.CreatedAt); err != nil {
		return nil, err
	}

	task.Status = domain.TaskStatus(status)
	task.CreatedAt = task.CreatedAt.UTC()

	if usage.Valid {
		task.Usage = &domain.Usage{}
		if err := json.Unmarshal([]byte(usage.String), task.Usage); err != nil {
			return nil, fmt.Errorf("decode usage of task %s: %w", task.ID, err)
		}
	}

	if plan.Valid && task.Status == domain.TaskStatusCompleted {
		task.Result = &domain.Result{}
		if err := json.Unmarshal([]byte(plan.String), task.Result); err != nil {
			return nil, fmt.Errorf("decode plan of task %s: %w", task.ID, err)
		}
	}

	return &task, nil
}

// encodeJSON renders v as a nullable JSON column value; nil pointers map to NULL.
func encodeJSON[T any](v *T) (sql.NullString, error) {
	if v == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return sql.NullString{}, err
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}
