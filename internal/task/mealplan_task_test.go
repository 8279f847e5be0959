package task

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/platform/metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

type fakeGenerator struct {
	GenerateFn func(ctx context.Context, req domain.MealPlanRequest) (*domain.MealPlan, *domain.TokenUsage, error)
	calls      atomic.Int32
}

func (g *fakeGenerator) Generate(ctx context.Context, req domain.MealPlanRequest) (*domain.MealPlan, *domain.TokenUsage, error) {
	g.calls.Add(1)
	return g.GenerateFn(ctx, req)
}

type fakeAggregator struct {
	AggregateFn func(ctx context.Context, plan *domain.MealPlan) ([]domain.Ingredient, *domain.TokenUsage)
	calls       atomic.Int32
}

func (a *fakeAggregator) Aggregate(ctx context.Context, plan *domain.MealPlan) ([]domain.Ingredient, *domain.TokenUsage) {
	a.calls.Add(1)
	return a.AggregateFn(ctx, plan)
}

func testRequest() domain.MealPlanRequest {
	return domain.MealPlanRequest{
		DaysCount: 1,
		Meals:     []domain.MealType{domain.MealTypeBreakfast},
		Diet:      domain.DietVegetarian,
	}
}

func testMealPlan() *domain.MealPlan {
	return &domain.MealPlan{
		Days: []domain.Day{{
			Date: "2025-05-05",
			Meals: []domain.Meal{{
				MealType: domain.MealTypeBreakfast,
				Recipes: []domain.RecipeItem{{
					RecipeType: domain.RecipeTypeCollation,
					Recipe: domain.Recipe{
						Name:        "Porridge",
						Ingredients: []domain.Ingredient{{Label: "oats", Quantity: 80, Unit: "g"}},
						Steps:       domain.Steps{{Number: "1", Text: "Cook the oats"}},
					},
				}},
			}},
		}},
	}
}

var (
	planUsage     = &domain.TokenUsage{PromptTokens: 100, CompletionTokens: 400, TotalTokens: 500}
	shoppingUsage = &domain.TokenUsage{PromptTokens: 50, CompletionTokens: 20, TotalTokens: 70}
)

func succeedingGenerator() *fakeGenerator {
	return &fakeGenerator{GenerateFn: func(context.Context, domain.MealPlanRequest) (*domain.MealPlan, *domain.TokenUsage, error) {
		return testMealPlan(), planUsage, nil
	}}
}

func succeedingAggregator() *fakeAggregator {
	return &fakeAggregator{AggregateFn: func(context.Context, *domain.MealPlan) ([]domain.Ingredient, *domain.TokenUsage) {
		return []domain.Ingredient{{Label: "oats", Quantity: 80, Unit: "g"}}, shoppingUsage
	}}
}

type pipelineFixture struct {
	store      *MockTaskStore
	generator  *fakeGenerator
	aggregator *fakeAggregator
	emitter    *recordingEmitter
	task       *domain.Task
}

func newPipelineFixture(t *testing.T) *pipelineFixture {
	t.Helper()
	f := &pipelineFixture{
		store:      NewMockTaskStore(),
		generator:  succeedingGenerator(),
		aggregator: succeedingAggregator(),
		emitter:    &recordingEmitter{},
		task:       domain.NewTask(time.Now()),
	}
	require.NoError(t, f.store.Save(context.Background(), f.task))
	return f
}

func (f *pipelineFixture) deps() MealPlanTaskDeps {
	return MealPlanTaskDeps{
		Store:      f.store,
		Generator:  f.generator,
		Aggregator: f.aggregator,
		Emitter:    f.emitter,
		Logger:     testLogger(),
	}
}

func (f *pipelineFixture) run(t *testing.T, deps MealPlanTaskDeps) error {
	t.Helper()
	task, err := NewMealPlanTask(f.task.ID, testRequest(), deps)
	require.NoError(t, err)
	return task.Execute(context.Background())
}

func (f *pipelineFixture) stored(t *testing.T) *domain.Task {
	t.Helper()
	got, err := f.store.Get(context.Background(), f.task.ID)
	require.NoError(t, err)
	return got
}

func TestMealPlanTask_Success(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t)
	require.NoError(t, f.run(t, f.deps()))

	got := f.stored(t)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.Equal(t, testMealPlan().Days, got.Result.Days)
	assert.Equal(t, []domain.Ingredient{{Label: "oats", Quantity: 80, Unit: "g"}}, got.Result.ShoppingList)
	assert.Empty(t, got.Error)
	require.NoError(t, got.Validate())

	require.NotNil(t, got.Usage)
	assert.Equal(t, planUsage, got.Usage.MealPlan)
	assert.Equal(t, shoppingUsage, got.Usage.ShoppingList)

	assert.Equal(t, []domain.TaskStatus{
		domain.TaskStatusPending,
		domain.TaskStatusInProgressPlan,
		domain.TaskStatusInProgressShopping,
		domain.TaskStatusCompleted,
	}, f.store.History(f.task.ID))

	recorded := f.emitter.recorded()
	require.Len(t, recorded, 3)
	assert.Equal(t, domain.TaskStatusPending, recorded[0].From)
	assert.Equal(t, domain.TaskStatusInProgressPlan, recorded[0].To)
	assert.Equal(t, domain.TaskStatusCompleted, recorded[2].To)
}

func TestMealPlanTask_GeneratorFailure(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t)
	f.generator.GenerateFn = func(context.Context, domain.MealPlanRequest) (*domain.MealPlan, *domain.TokenUsage, error) {
		return nil, planUsage, errors.New("upstream rejected key sk-abcdefghijklmnopqrstuvwx")
	}

	err := f.run(t, f.deps())
	require.Error(t, err)

	got := f.stored(t)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.NotEmpty(t, got.Error)
	assert.Contains(t, got.Error, "meal plan generation failed")
	assert.NotContains(t, got.Error, "sk-abcdefghijklmnopqrstuvwx")
	assert.Nil(t, got.Result)
	assert.Zero(t, f.aggregator.calls.Load(), "aggregator must not run after a failed plan")

	assert.Equal(t, []domain.TaskStatus{
		domain.TaskStatusPending,
		domain.TaskStatusInProgressPlan,
		domain.TaskStatusFailed,
	}, f.store.History(f.task.ID))

	recorded := f.emitter.recorded()
	require.Len(t, recorded, 2)
	assert.Equal(t, domain.TaskStatusFailed, recorded[1].To)
	assert.Equal(t, got.Error, recorded[1].Error)
}

func TestMealPlanTask_AggregatorDegradation(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t)
	f.aggregator.AggregateFn = func(context.Context, *domain.MealPlan) ([]domain.Ingredient, *domain.TokenUsage) {
		return []domain.Ingredient{}, nil
	}

	require.NoError(t, f.run(t, f.deps()))

	got := f.stored(t)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	require.NotNil(t, got.Result)
	assert.NotNil(t, got.Result.ShoppingList)
	assert.Empty(t, got.Result.ShoppingList)
	assert.Nil(t, got.Usage.ShoppingList)
	assert.Equal(t, planUsage, got.Usage.MealPlan)
}

func TestMealPlanTask_PersistenceFailure(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t)
	f.store.SaveFn = func(ctx context.Context, task *domain.Task) error {
		if task.Status == domain.TaskStatusInProgressShopping {
			return errors.New("connection reset")
		}
		f.store.Put(task, time.Now())
		return nil
	}

	err := f.run(t, f.deps())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection reset")

	got := f.stored(t)
	assert.Equal(t, domain.TaskStatusFailed, got.Status)
	assert.Equal(t, []domain.TaskStatus{
		domain.TaskStatusPending,
		domain.TaskStatusInProgressPlan,
		domain.TaskStatusFailed,
	}, f.store.History(f.task.ID))
	assert.Zero(t, f.aggregator.calls.Load())
}

func TestMealPlanTask_MissingTask(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t)
	task, err := NewMealPlanTask(uuid.New(), testRequest(), f.deps())
	require.NoError(t, err)

	err = task.Execute(context.Background())
	require.Error(t, err)
	assert.Zero(t, f.generator.calls.Load())
	assert.Empty(t, f.emitter.recorded())
}

func TestMealPlanTask_CancelledContextStillRecordsFailure(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	f.generator.GenerateFn = func(context.Context, domain.MealPlanRequest) (*domain.MealPlan, *domain.TokenUsage, error) {
		cancel()
		return nil, nil, context.Canceled
	}

	task, err := NewMealPlanTask(f.task.ID, testRequest(), f.deps())
	require.NoError(t, err)
	require.Error(t, task.Execute(ctx))

	assert.Equal(t, domain.TaskStatusFailed, f.stored(t).Status)
}

func TestMealPlanTask_HandleFailureKeepsTerminalTasks(t *testing.T) {
	t.Parallel()

	f := newPipelineFixture(t)
	require.NoError(t, f.run(t, f.deps()))

	task, err := NewMealPlanTask(f.task.ID, testRequest(), f.deps())
	require.NoError(t, err)
	task.HandleFailure(context.Background(), errors.New("late panic"))

	got := f.stored(t)
	assert.Equal(t, domain.TaskStatusCompleted, got.Status)
	assert.Empty(t, got.Error)
}

func TestMealPlanTask_SpansAndMetrics(t *testing.T) {
	t.Parallel()

	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	reg := prometheus.NewRegistry()

	f := newPipelineFixture(t)
	deps := f.deps()
	deps.Tracer = provider.Tracer("test")
	deps.Metrics = metrics.MustNewMetrics(reg)

	require.NoError(t, f.run(t, deps))

	var names []string
	for _, span := range recorder.Ended() {
		names = append(names, span.Name())
	}
	assert.ElementsMatch(t, []string{"mealplan.pipeline", "generate_plan", "generate_shopping_list"}, names)

	count, err := testutil.GatherAndCount(reg, "mealplan_stage_duration_seconds")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	count, err = testutil.GatherAndCount(reg, "mealplan_llm_tokens_total")
	require.NoError(t, err)
	assert.Equal(t, 4, count)
}

func TestNewMealPlanTask_Validation(t *testing.T) {
	t.Parallel()

	valid := MealPlanTaskDeps{
		Store:      NewMockTaskStore(),
		Generator:  succeedingGenerator(),
		Aggregator: succeedingAggregator(),
		Logger:     testLogger(),
	}

	tests := []struct {
		name    string
		mutate  func(d *MealPlanTaskDeps)
		wantErr error
	}{
		{"nil store", func(d *MealPlanTaskDeps) { d.Store = nil }, ErrNilStore},
		{"nil generator", func(d *MealPlanTaskDeps) { d.Generator = nil }, ErrNilGenerator},
		{"nil aggregator", func(d *MealPlanTaskDeps) { d.Aggregator = nil }, ErrNilAggregator},
		{"nil logger", func(d *MealPlanTaskDeps) { d.Logger = nil }, ErrNilLogger},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := valid
			tt.mutate(&deps)
			_, err := NewMealPlanTask(uuid.New(), testRequest(), deps)
			assert.ErrorIs(t, err, tt.wantErr)

			_, err = NewMealPlanTaskFactory(deps)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	factory, err := NewMealPlanTaskFactory(valid)
	require.NoError(t, err)
	id := uuid.New()
	task, err := factory.CreateTask(id, testRequest())
	require.NoError(t, err)
	assert.Equal(t, id, task.ID())
	assert.Equal(t, TaskTypeMealPlan, task.Type())
}
