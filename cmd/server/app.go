package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/phrazzld/mealplan-api/internal/config"
	"github.com/phrazzld/mealplan-api/internal/events"
	"github.com/phrazzld/mealplan-api/internal/generation"
	"github.com/phrazzld/mealplan-api/internal/mealplan"
	"github.com/phrazzld/mealplan-api/internal/platform/metrics"
	"github.com/phrazzld/mealplan-api/internal/platform/postgres"
	"github.com/phrazzld/mealplan-api/internal/platform/tracing"
	"github.com/phrazzld/mealplan-api/internal/service"
	"github.com/phrazzld/mealplan-api/internal/service/auth"
	"github.com/phrazzld/mealplan-api/internal/store"
	"github.com/phrazzld/mealplan-api/internal/task"
	"github.com/prometheus/client_golang/prometheus"
)

// application holds all the shared application dependencies to simplify management
// and ensure proper cleanup on shutdown.
type application struct {
	config *config.Config
	logger *slog.Logger
	db     *sql.DB

	taskStore store.TaskStore

	// Authentication; either may be nil when not configured
	jwtService  auth.JWTService
	keyVerifier auth.APIKeyVerifier

	mealPlanService service.MealPlanService

	eventEmitter *events.InMemoryEventEmitter
	registry     *prometheus.Registry
	metrics      *metrics.Metrics
	tracing      *tracing.Provider

	taskRunner *task.TaskRunner
}

// newApplication creates a new application instance with all dependencies
// initialized and the task runner started. Connections that must exist
// beforehand (database, completion service) are passed in.
func newApplication(
	ctx context.Context,
	cfg *config.Config,
	logger *slog.Logger,
	db *sql.DB,
	completer generation.Completer,
) (*application, error) {
	app := &application{
		config: cfg,
		logger: logger,
		db:     db,
	}

	var err error
	if cfg.Auth.JWTSecret != "" {
		app.jwtService, err = auth.NewJWTService(cfg.Auth.JWTSecret)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize JWT service: %w", err)
		}
	}
	if cfg.Auth.APIKeyHash != "" {
		verifier, err := auth.NewBcryptVerifier(cfg.Auth.APIKeyHash)
		if err != nil {
			return nil, fmt.Errorf("invalid API key hash: %w", err)
		}
		app.keyVerifier = verifier
	}
	logger.Info("Authentication configured",
		"jwt", app.jwtService != nil,
		"api_key", app.keyVerifier != nil)

	// Stores
	var taskStore store.TaskStore = postgres.NewTaskStore(db)
	if cfg.Cache.Size > 0 {
		taskStore, err = store.NewCachedTaskStore(taskStore, cfg.Cache.Size)
		if err != nil {
			return nil, fmt.Errorf("failed to create task cache: %w", err)
		}
	}
	app.taskStore = taskStore

	// Observability
	app.registry = metrics.NewRegistry()
	app.metrics = metrics.MustNewMetrics(app.registry)
	app.tracing, err = tracing.NewProvider(ctx, cfg.Tracing)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize tracing: %w", err)
	}

	// Event system
	app.eventEmitter = events.NewInMemoryEventEmitter(logger)
	app.eventEmitter.RegisterHandler(app.metrics)
	app.eventEmitter.RegisterHandler(task.NewTransitionLogHandler(logger))

	// Pipeline stages
	generator, err := mealplan.NewGenerator(completer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create meal plan generator: %w", err)
	}
	aggregator, err := mealplan.NewAggregator(completer, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create shopping list aggregator: %w", err)
	}

	taskFactory, err := task.NewMealPlanTaskFactory(task.MealPlanTaskDeps{
		Store:      app.taskStore,
		Generator:  generator,
		Aggregator: aggregator,
		Emitter:    app.eventEmitter,
		Metrics:    app.metrics,
		Tracer:     app.tracing.Tracer(),
		Logger:     logger,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create task factory: %w", err)
	}

	app.taskRunner = task.NewTaskRunner(app.taskStore, db, app.eventEmitter, task.TaskRunnerConfig{
		PipelineTimeout:    cfg.Task.PipelineTimeout(),
		StaleTaskAge:       cfg.Task.StaleTaskAge(),
		StaleCheckInterval: cfg.Task.StaleCheckInterval(),
	}, logger)
	if err := app.taskRunner.Start(); err != nil {
		return nil, fmt.Errorf("failed to start task runner: %w", err)
	}

	app.mealPlanService, err = service.NewMealPlanService(
		app.taskStore,
		taskFactory,
		app.taskRunner,
		app.eventEmitter,
		service.MealPlanServiceConfig{PollInterval: cfg.Task.PollInterval()},
		logger,
	)
	if err != nil {
		app.cleanup(ctx)
		return nil, fmt.Errorf("failed to create meal plan service: %w", err)
	}

	logger.Info("Application initialized successfully")
	return app, nil
}

// Run serves HTTP until ctx is cancelled, then shuts everything down.
func (app *application) Run(ctx context.Context) error {
	router := app.setupRouter()

	if err := app.startHTTPServer(ctx, router); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// cleanup handles graceful shutdown of application resources. In-flight
// pipelines get until ctx ends to finish before they are cancelled.
func (app *application) cleanup(ctx context.Context) {
	if app.taskRunner != nil {
		if err := app.taskRunner.Stop(ctx); err != nil {
			app.logger.Warn("Task runner stopped before all pipelines finished", "error", err)
		}
	}

	if app.tracing != nil {
		if err := app.tracing.Shutdown(ctx); err != nil {
			app.logger.Error("Error shutting down tracer provider", "error", err)
		}
	}

	if app.db != nil {
		if err := app.db.Close(); err != nil {
			app.logger.Error("Error closing database connection", "error", err)
		}
	}

	app.logger.Info("Application shutdown completed")
}
