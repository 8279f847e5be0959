package task

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/events"
	"github.com/phrazzld/mealplan-api/internal/platform/logger"
	"github.com/phrazzld/mealplan-api/internal/store"
)

// ErrRunnerStopped is returned by Submit after Stop was called.
var ErrRunnerStopped = errors.New("task runner stopped")

// StaleTaskMessage is the error recorded on tasks failed by the sweeper.
const StaleTaskMessage = "task interrupted: no progress before the stale task deadline"

// TaskRunnerConfig holds configuration for the task runner
type TaskRunnerConfig struct {
	// PipelineTimeout bounds a single Execute call. Zero means no limit.
	PipelineTimeout time.Duration

	// StaleTaskAge defines how long a non-terminal task may go without an
	// update before the sweeper fails it
	StaleTaskAge time.Duration

	// StaleCheckInterval defines how often to sweep for stale tasks.
	// Zero disables the sweeper.
	StaleCheckInterval time.Duration
}

// DefaultTaskRunnerConfig returns a TaskRunnerConfig with reasonable defaults
func DefaultTaskRunnerConfig() TaskRunnerConfig {
	return TaskRunnerConfig{
		PipelineTimeout:    10 * time.Minute,
		StaleTaskAge:       30 * time.Minute,
		StaleCheckInterval: 5 * time.Minute,
	}
}

// TaskRunner spawns one goroutine per submitted task. There is no queue and
// no concurrency cap.
type TaskRunner struct {
	store      store.TaskStore
	db         *sql.DB
	emitter    events.EventEmitter
	ctx        context.Context
	cancelFunc context.CancelFunc
	wg         sync.WaitGroup
	monitorWG  sync.WaitGroup
	mu         sync.RWMutex
	stopped    bool
	config     TaskRunnerConfig
	logger     *slog.Logger
	errHandler func(task Task, err error)
	now        func() time.Time
}

// NewTaskRunner creates a new TaskRunner. db is used to fail stale tasks
// atomically and may be nil, in which case the sweeper writes through
// taskStore directly.
func NewTaskRunner(
	taskStore store.TaskStore,
	db *sql.DB,
	emitter events.EventEmitter,
	config TaskRunnerConfig,
	logger *slog.Logger,
) *TaskRunner {
	if emitter == nil {
		emitter = events.NopEmitter{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	logger = logger.With("component", "task_runner")

	return &TaskRunner{
		store:      taskStore,
		db:         db,
		emitter:    emitter,
		ctx:        ctx,
		cancelFunc: cancel,
		config:     config,
		logger:     logger,
		errHandler: func(task Task, err error) {
			logger.Error("task execution failed",
				"task_id", task.ID(),
				"task_type", task.Type(),
				"error", err)
		},
		now: time.Now,
	}
}

// SetErrorHandler allows setting a custom error handler function
func (r *TaskRunner) SetErrorHandler(handler func(task Task, err error)) {
	r.errHandler = handler
}

// Submit starts task in its own goroutine and returns immediately. Everything
// the caller did before Submit happens-before the task starts, so a task row
// saved first is always visible to the pipeline.
func (r *TaskRunner) Submit(ctx context.Context, task Task) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.stopped {
		return ErrRunnerStopped
	}

	r.wg.Add(1)
	go r.execute(task)

	logger.FromContextOrDefault(ctx, r.logger).Debug("task submitted",
		"task_id", task.ID(),
		"task_type", task.Type())
	return nil
}

// execute runs one task with panic recovery.
func (r *TaskRunner) execute(task Task) {
	defer r.wg.Done()

	ctx := r.ctx
	if r.config.PipelineTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.config.PipelineTimeout)
		defer cancel()
	}

	log := r.logger.With("task_id", task.ID(), "task_type", task.Type())
	ctx = logger.WithLogger(ctx, log)

	defer func() {
		if p := recover(); p != nil {
			err := fmt.Errorf("task panicked: %v", p)
			log.Error("recovered from task panic", "panic", p)
			if handler, ok := task.(FailureHandler); ok {
				handler.HandleFailure(ctx, err)
			}
			r.errHandler(task, err)
		}
	}()

	if err := task.Execute(ctx); err != nil {
		r.errHandler(task, err)
	}
}

// Start runs the stale-task sweeper once and then periodically until Stop.
func (r *TaskRunner) Start() error {
	if r.config.StaleCheckInterval <= 0 {
		return nil
	}

	if err := r.SweepStaleTasks(r.ctx); err != nil {
		return fmt.Errorf("failed to sweep stale tasks: %w", err)
	}

	r.monitorWG.Add(1)
	go r.staleTaskMonitor()
	return nil
}

// Stop prevents new submissions and waits for running tasks. If ctx expires
// first, running tasks are cancelled (their failure is still recorded) and
// Stop waits for them to return.
func (r *TaskRunner) Stop(ctx context.Context) error {
	r.mu.Lock()
	r.stopped = true
	r.mu.Unlock()

	done := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		r.logger.Warn("shutdown deadline reached, cancelling running tasks")
		err = ctx.Err()
	}

	r.cancelFunc()
	<-done
	r.monitorWG.Wait()
	return err
}

// staleTaskMonitor periodically fails tasks that stopped making progress.
func (r *TaskRunner) staleTaskMonitor() {
	defer r.monitorWG.Done()

	ticker := time.NewTicker(r.config.StaleCheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if err := r.SweepStaleTasks(r.ctx); err != nil {
				r.logger.Error("failed to sweep stale tasks", "error", err)
			}
		}
	}
}

// SweepStaleTasks marks non-terminal tasks whose last update is older than
// StaleTaskAge as FAILED, so waiters observe a terminal state after a crash.
func (r *TaskRunner) SweepStaleTasks(ctx context.Context) error {
	cutoff := r.now().Add(-r.config.StaleTaskAge)

	stale, err := r.store.ListStale(ctx, cutoff)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	r.logger.Info("found stale tasks", "count", len(stale))

	for _, candidate := range stale {
		event, err := r.failStale(ctx, candidate)
		if err != nil {
			r.logger.Error("failed to fail stale task",
				"task_id", candidate.ID,
				"error", err)
			continue
		}
		if event != nil {
			if err := r.emitter.EmitEvent(ctx, event); err != nil {
				r.logger.Warn("failed to emit status event", "task_id", candidate.ID, "error", err)
			}
		}
	}
	return nil
}

// failStale re-reads and fails one task, inside a transaction when a
// database handle is available. It returns nil when the task already ended.
func (r *TaskRunner) failStale(ctx context.Context, candidate *domain.Task) (*events.TaskStatusChanged, error) {
	var event *events.TaskStatusChanged

	fail := func(ctx context.Context, s store.TaskStore) error {
		current, err := s.Get(ctx, candidate.ID)
		if err != nil {
			return err
		}
		if current.Status.IsTerminal() {
			return nil
		}
		from := current.Status
		if err := current.Fail(StaleTaskMessage); err != nil {
			return err
		}
		if err := s.Save(ctx, current); err != nil {
			return err
		}
		event = events.NewTaskStatusChanged(current.ID, from, domain.TaskStatusFailed)
		event.Error = StaleTaskMessage
		return nil
	}

	if r.db == nil {
		err := fail(ctx, r.store)
		return event, err
	}

	err := store.RunInTransaction(ctx, r.db, func(ctx context.Context, tx *sql.Tx) error {
		return fail(ctx, r.store.WithTx(tx))
	})
	return event, err
}
