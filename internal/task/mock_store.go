package task

import (
	"context"
	"database/sql"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/store"
)

// MockTaskStore implements store.TaskStore in memory for testing. The
// function fields replace the default behaviour when set.
type MockTaskStore struct {
	mutex     sync.RWMutex
	tasks     map[uuid.UUID]domain.Task
	updatedAt map[uuid.UUID]time.Time
	history   map[uuid.UUID][]domain.TaskStatus

	SaveFn      func(ctx context.Context, task *domain.Task) error
	GetFn       func(ctx context.Context, id uuid.UUID) (*domain.Task, error)
	ListStaleFn func(ctx context.Context, olderThan time.Time) ([]*domain.Task, error)
}

var _ store.TaskStore = (*MockTaskStore)(nil)

// NewMockTaskStore creates an empty MockTaskStore.
func NewMockTaskStore() *MockTaskStore {
	return &MockTaskStore{
		tasks:     make(map[uuid.UUID]domain.Task),
		updatedAt: make(map[uuid.UUID]time.Time),
		history:   make(map[uuid.UUID][]domain.TaskStatus),
	}
}

// Save stores a copy of task and appends its status to the history.
func (s *MockTaskStore) Save(ctx context.Context, task *domain.Task) error {
	if s.SaveFn != nil {
		return s.SaveFn(ctx, task)
	}
	s.Put(task, time.Now())
	return nil
}

// Put stores task as if it had been saved at updatedAt.
func (s *MockTaskStore) Put(task *domain.Task, updatedAt time.Time) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.tasks[task.ID] = cloneTask(task)
	s.updatedAt[task.ID] = updatedAt
	s.history[task.ID] = append(s.history[task.ID], task.Status)
}

// Get returns a copy of the stored task or store.ErrTaskNotFound.
func (s *MockTaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if s.GetFn != nil {
		return s.GetFn(ctx, id)
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	task, ok := s.tasks[id]
	if !ok {
		return nil, store.ErrTaskNotFound
	}
	clone := cloneTask(&task)
	return &clone, nil
}

// ListStale returns non-terminal tasks last saved before olderThan.
func (s *MockTaskStore) ListStale(ctx context.Context, olderThan time.Time) ([]*domain.Task, error) {
	if s.ListStaleFn != nil {
		return s.ListStaleFn(ctx, olderThan)
	}
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	var stale []*domain.Task
	for id, task := range s.tasks {
		if !task.Status.IsTerminal() && s.updatedAt[id].Before(olderThan) {
			clone := cloneTask(&task)
			stale = append(stale, &clone)
		}
	}
	return stale, nil
}

// WithTx returns the store itself; the mock has no transactions.
func (s *MockTaskStore) WithTx(*sql.Tx) store.TaskStore {
	return s
}

// History returns every status saved for id, in order.
func (s *MockTaskStore) History(id uuid.UUID) []domain.TaskStatus {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return append([]domain.TaskStatus(nil), s.history[id]...)
}

// cloneTask copies the pointer fields so callers cannot mutate stored state.
func cloneTask(task *domain.Task) domain.Task {
	clone := *task
	if task.Usage != nil {
		usage := *task.Usage
		clone.Usage = &usage
	}
	if task.Result != nil {
		result := *task.Result
		clone.Result = &result
	}
	return clone
}
