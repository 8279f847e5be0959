package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/events"
	"github.com/phrazzld/mealplan-api/internal/platform/logger"
	"github.com/phrazzld/mealplan-api/internal/store"
	"github.com/phrazzld/mealplan-api/internal/task"
)

// DefaultPollInterval is the delay between status reads while waiting.
const DefaultPollInterval = time.Second

// TaskRunner defines the interface for submitting background tasks
type TaskRunner interface {
	// Submit starts the task without blocking the caller
	Submit(ctx context.Context, task task.Task) error
}

// MealPlanTaskFactory creates the pipeline of a persisted task.
type MealPlanTaskFactory interface {
	CreateTask(id uuid.UUID, req domain.MealPlanRequest) (task.Task, error)
}

// MealPlanService orchestrates meal-plan generation tasks.
type MealPlanService interface {
	// StartGeneration persists a pending task, starts its pipeline in the
	// background and returns the pending task.
	StartGeneration(ctx context.Context, req domain.MealPlanRequest) (*domain.Task, error)

	// GetTask returns the current state of a task or ErrTaskNotFound.
	GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error)

	// WaitForTask polls the task until it reaches target (if not empty) or a
	// terminal status, or until timeout elapses. On timeout the last read is
	// returned, not an error. A task that is not yet visible is polled again.
	WaitForTask(ctx context.Context, id uuid.UUID, target domain.TaskStatus, timeout time.Duration) (*domain.Task, error)
}

// MealPlanServiceConfig tunes the orchestrator.
type MealPlanServiceConfig struct {
	PollInterval time.Duration
}

// mealPlanServiceImpl implements the MealPlanService interface
type mealPlanServiceImpl struct {
	store        store.TaskStore
	taskFactory  MealPlanTaskFactory
	taskRunner   TaskRunner
	eventEmitter events.EventEmitter
	pollInterval time.Duration
	logger       *slog.Logger
	now          func() time.Time
}

// NewMealPlanService creates a new MealPlanService.
// It returns an error if any of the required dependencies are nil.
func NewMealPlanService(
	taskStore store.TaskStore,
	taskFactory MealPlanTaskFactory,
	taskRunner TaskRunner,
	eventEmitter events.EventEmitter,
	cfg MealPlanServiceConfig,
	logger *slog.Logger,
) (MealPlanService, error) {
	if taskStore == nil {
		return nil, &MealPlanServiceError{Operation: "create_service", Message: "taskStore cannot be nil"}
	}
	if taskFactory == nil {
		return nil, &MealPlanServiceError{Operation: "create_service", Message: "taskFactory cannot be nil"}
	}
	if taskRunner == nil {
		return nil, &MealPlanServiceError{Operation: "create_service", Message: "taskRunner cannot be nil"}
	}
	if eventEmitter == nil {
		eventEmitter = events.NopEmitter{}
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &mealPlanServiceImpl{
		store:        taskStore,
		taskFactory:  taskFactory,
		taskRunner:   taskRunner,
		eventEmitter: eventEmitter,
		pollInterval: cfg.PollInterval,
		logger:       logger.With("component", "meal_plan_service"),
		now:          time.Now,
	}, nil
}

// StartGeneration saves the pending row before submitting the pipeline, so
// the first status read by a client can never miss the task.
func (s *mealPlanServiceImpl) StartGeneration(
	ctx context.Context,
	req domain.MealPlanRequest,
) (*domain.Task, error) {
	log := logger.FromContextOrDefault(ctx, s.logger)

	if err := req.Validate(); err != nil {
		return nil, err
	}

	t := domain.NewTask(s.now())

	pipeline, err := s.taskFactory.CreateTask(t.ID, req)
	if err != nil {
		return nil, NewMealPlanServiceError("start_generation", "failed to create pipeline", err)
	}

	if err := s.store.Save(ctx, t); err != nil {
		log.Error("failed to save pending task", "task_id", t.ID, "error", err)
		return nil, NewMealPlanServiceError("start_generation", "failed to save task", err)
	}
	s.emit(ctx, events.NewTaskStatusChanged(t.ID, "", domain.TaskStatusPending))

	if err := s.taskRunner.Submit(ctx, pipeline); err != nil {
		log.Error("failed to submit pipeline", "task_id", t.ID, "error", err)
		s.failUnstarted(ctx, t, err)
		return nil, NewMealPlanServiceError("start_generation", "failed to start pipeline", err)
	}

	log.Info("meal plan generation started",
		"task_id", t.ID,
		"days_count", req.DaysCount,
		"diet", req.Diet)

	return t, nil
}

// failUnstarted records a task whose pipeline never ran as failed.
func (s *mealPlanServiceImpl) failUnstarted(ctx context.Context, t *domain.Task, cause error) {
	failed := *t
	if err := failed.Fail(fmt.Sprintf("pipeline could not be started: %v", cause)); err != nil {
		return
	}
	if err := s.store.Save(context.WithoutCancel(ctx), &failed); err != nil {
		s.logger.Error("failed to record unstarted task", "task_id", t.ID, "error", err)
		return
	}
	event := events.NewTaskStatusChanged(t.ID, domain.TaskStatusPending, domain.TaskStatusFailed)
	event.Error = failed.Error
	s.emit(ctx, event)
}

// GetTask is a single read-through to the store.
func (s *mealPlanServiceImpl) GetTask(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	t, err := s.store.Get(ctx, id)
	if err != nil {
		if store.IsNotFoundError(err) {
			return nil, ErrTaskNotFound
		}
		return nil, NewMealPlanServiceError("get_task", "failed to read task", err)
	}
	return t, nil
}

// WaitForTask runs the poll loop on the caller's goroutine; nothing outlives
// the call.
func (s *mealPlanServiceImpl) WaitForTask(
	ctx context.Context,
	id uuid.UUID,
	target domain.TaskStatus,
	timeout time.Duration,
) (*domain.Task, error) {
	if target != "" && !target.IsValid() {
		return nil, fmt.Errorf("%w: unknown target status %q", ErrInvalidWait, target)
	}
	if timeout < 0 {
		return nil, fmt.Errorf("%w: timeout must not be negative", ErrInvalidWait)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	for {
		t, err := s.GetTask(ctx, id)
		switch {
		case err == nil:
			if reached(t, target) {
				return t, nil
			}
		case errors.Is(err, ErrTaskNotFound):
			// Not visible yet; keep polling.
		default:
			return nil, err
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return s.GetTask(ctx, id)
		case <-ticker.C:
		}
	}
}

// reached reports whether waiting can stop: the target status, or any
// terminal status.
func reached(t *domain.Task, target domain.TaskStatus) bool {
	return t.Status.IsTerminal() || (target != "" && t.Status == target)
}

func (s *mealPlanServiceImpl) emit(ctx context.Context, event *events.TaskStatusChanged) {
	if err := s.eventEmitter.EmitEvent(ctx, event); err != nil {
		s.logger.Warn("failed to emit status event", "task_id", event.TaskID, "error", err)
	}
}
