package task

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
	"github.com/phrazzld/mealplan-api/internal/platform/metrics"
	"github.com/phrazzld/mealplan-api/internal/redact"
	"github.com/phrazzld/mealplan-api/internal/store"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// failureWriteTimeout bounds the FAILED write, which runs on a fresh context
// because the pipeline context may already be cancelled.
const failureWriteTimeout = 10 * time.Second

// Common errors
var (
	ErrNilStore      = errors.New("task store cannot be nil")
	ErrNilGenerator  = errors.New("generator cannot be nil")
	ErrNilAggregator = errors.New("aggregator cannot be nil")
	ErrNilLogger     = errors.New("logger cannot be nil")
)

// PlanGenerator produces the meal plan for a request.
type PlanGenerator interface {
	Generate(ctx context.Context, req domain.MealPlanRequest) (*domain.MealPlan, *domain.TokenUsage, error)
}

// ShoppingListAggregator consolidates the ingredients of a plan. It never
// fails; a degraded run returns an empty list.
type ShoppingListAggregator interface {
	Aggregate(ctx context.Context, plan *domain.MealPlan) ([]domain.Ingredient, *domain.TokenUsage)
}

// MealPlanTaskDeps are the collaborators shared by every MealPlanTask.
// Emitter, Metrics and Tracer are optional.
type MealPlanTaskDeps struct {
	Store      store.TaskStore
	Generator  PlanGenerator
	Aggregator ShoppingListAggregator
	Emitter    events.EventEmitter
	Metrics    *metrics.Metrics
	Tracer     trace.Tracer
	Logger     *slog.Logger
}

func (d *MealPlanTaskDeps) validate() error {
	switch {
	case d.Store == nil:
		return ErrNilStore
	case d.Generator == nil:
		return ErrNilGenerator
	case d.Aggregator == nil:
		return ErrNilAggregator
	case d.Logger == nil:
		return ErrNilLogger
	}
	if d.Emitter == nil {
		d.Emitter = events.NopEmitter{}
	}
	if d.Tracer == nil {
		d.Tracer = noop.NewTracerProvider().Tracer("")
	}
	return nil
}

// MealPlanTask is the background pipeline of one meal-plan request.
type MealPlanTask struct {
	id      uuid.UUID
	request domain.MealPlanRequest
	deps    MealPlanTaskDeps
	logger  *slog.Logger
}

var (
	_ Task           = (*MealPlanTask)(nil)
	_ FailureHandler = (*MealPlanTask)(nil)
)

// NewMealPlanTask creates the pipeline for the already persisted task id.
func NewMealPlanTask(id uuid.UUID, req domain.MealPlanRequest, deps MealPlanTaskDeps) (*MealPlanTask, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	return &MealPlanTask{
		id:      id,
		request: req,
		deps:    deps,
		logger:  deps.Logger.With("task_type", TaskTypeMealPlan, "task_id", id),
	}, nil
}

// ID returns the task's unique identifier
func (t *MealPlanTask) ID() uuid.UUID {
	return t.id
}

// Type returns the task type identifier
func (t *MealPlanTask) Type() string {
	return TaskTypeMealPlan
}

// Execute runs the pipeline once. Any error is recorded on the task as
// FAILED before it is returned.
func (t *MealPlanTask) Execute(ctx context.Context) error {
	ctx = logger.WithLogger(ctx, t.logger)
	ctx, span := t.deps.Tracer.Start(ctx, "mealplan.pipeline",
		trace.WithAttributes(
			attribute.String("task.id", t.id.String()),
			attribute.Int("mealplan.days_count", t.request.DaysCount),
			attribute.String("mealplan.diet", string(t.request.Diet)),
		))
	defer span.End()

	t.deps.Metrics.PipelineStarted()
	defer t.deps.Metrics.PipelineFinished()

	t.logger.Info("starting meal plan pipeline")

	if err := t.run(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "pipeline failed")
		t.HandleFailure(ctx, err)
		return err
	}

	t.logger.Info("meal plan pipeline completed")
	return nil
}

func (t *MealPlanTask) run(ctx context.Context) error {
	task, err := t.deps.Store.Get(ctx, t.id)
	if err != nil {
		return fmt.Errorf("failed to read task: %w", err)
	}

	if err := t.advance(ctx, task, domain.TaskStatusInProgressPlan); err != nil {
		return err
	}

	plan, err := t.generatePlan(ctx, task)
	if err != nil {
		return err
	}

	if err := t.advance(ctx, task, domain.TaskStatusInProgressShopping); err != nil {
		return err
	}

	shoppingList := t.aggregate(ctx, task, plan)

	from := task.Status
	if err := task.Complete(domain.Result{Days: plan.Days, ShoppingList: shoppingList}); err != nil {
		return err
	}
	if err := t.deps.Store.Save(ctx, task); err != nil {
		return fmt.Errorf("failed to save completed task: %w", err)
	}
	t.emit(ctx, events.NewTaskStatusChanged(t.id, from, task.Status))
	return nil
}

// advance moves task to next and persists it. Entering the plan stage resets
// the usage record.
func (t *MealPlanTask) advance(ctx context.Context, task *domain.Task, next domain.TaskStatus) error {
	from := task.Status
	if err := task.Advance(next); err != nil {
		return err
	}
	if next == domain.TaskStatusInProgressPlan {
		task.Usage = &domain.Usage{}
	}
	if err := t.deps.Store.Save(ctx, task); err != nil {
		return fmt.Errorf("failed to save task status %s: %w", next, err)
	}
	t.emit(ctx, events.NewTaskStatusChanged(t.id, from, next))
	return nil
}

func (t *MealPlanTask) generatePlan(ctx context.Context, task *domain.Task) (*domain.MealPlan, error) {
	ctx, span := t.deps.Tracer.Start(ctx, "generate_plan")
	defer span.End()

	start := time.Now()
	plan, usage, err := t.deps.Generator.Generate(ctx, t.request)
	task.Usage.MealPlan = usage
	t.deps.Metrics.AddTokens(metrics.StagePlan, usage)

	if err != nil {
		t.deps.Metrics.ObserveStage(metrics.StagePlan, metrics.OutcomeFailure, time.Since(start))
		span.RecordError(err)
		span.SetStatus(codes.Error, "plan generation failed")
		return nil, fmt.Errorf("meal plan generation failed: %w", err)
	}

	t.deps.Metrics.ObserveStage(metrics.StagePlan, metrics.OutcomeSuccess, time.Since(start))
	t.logger.Info("meal plan generated", "days", len(plan.Days))
	return plan, nil
}

func (t *MealPlanTask) aggregate(ctx context.Context, task *domain.Task, plan *domain.MealPlan) []domain.Ingredient {
	ctx, span := t.deps.Tracer.Start(ctx, "generate_shopping_list")
	defer span.End()

	start := time.Now()
	list, usage := t.deps.Aggregator.Aggregate(ctx, plan)
	task.Usage.ShoppingList = usage
	t.deps.Metrics.AddTokens(metrics.StageShoppingList, usage)

	outcome := metrics.OutcomeSuccess
	if usage == nil && len(plan.Ingredients()) > 0 {
		// usage is only dropped by a degraded run
		outcome = metrics.OutcomeFailure
	}
	t.deps.Metrics.ObserveStage(metrics.StageShoppingList, outcome, time.Since(start))
	span.SetAttributes(attribute.Int("mealplan.shopping_list_items", len(list)))

	t.logger.Info("shopping list aggregated", "items", len(list))
	return list
}

// HandleFailure re-reads the task and marks it FAILED with a redacted
// message. Terminal tasks are left untouched.
func (t *MealPlanTask) HandleFailure(ctx context.Context, cause error) {
	log := t.logger
	log.Error("meal plan pipeline failed", "error", redact.Error(cause))

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureWriteTimeout)
	defer cancel()

	task, err := t.deps.Store.Get(ctx, t.id)
	if err != nil {
		log.Error("failed to read task while recording failure", "error", err)
		return
	}
	if task.Status.IsTerminal() {
		log.Warn("task already terminal, not recording failure", "status", task.Status)
		return
	}

	from := task.Status
	message := redact.Error(cause)
	if err := task.Fail(message); err != nil {
		log.Error("failed to mark task as failed", "error", err)
		return
	}
	if err := t.deps.Store.Save(ctx, task); err != nil {
		log.Error("failed to save failed task", "error", err)
		return
	}

	event := events.NewTaskStatusChanged(t.id, from, domain.TaskStatusFailed)
	event.Error = message
	t.emit(ctx, event)
}

func (t *MealPlanTask) emit(ctx context.Context, event *events.TaskStatusChanged) {
	if err := t.deps.Emitter.EmitEvent(ctx, event); err != nil {
		t.logger.Warn("failed to emit status event", "to", event.To, "error", err)
	}
}

// MealPlanTaskFactory creates MealPlanTask instances sharing one set of
// collaborators.
type MealPlanTaskFactory struct {
	deps MealPlanTaskDeps
}

// NewMealPlanTaskFactory validates deps once for every task it creates.
func NewMealPlanTaskFactory(deps MealPlanTaskDeps) (*MealPlanTaskFactory, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	deps.Logger = deps.Logger.With("component", "meal_plan_task")
	return &MealPlanTaskFactory{deps: deps}, nil
}

// CreateTask creates the pipeline for task id.
func (f *MealPlanTaskFactory) CreateTask(id uuid.UUID, req domain.MealPlanRequest) (Task, error) {
	return NewMealPlanTask(id, req, f.deps)
}
