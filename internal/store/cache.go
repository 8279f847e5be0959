package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/phrazzld/mealplan-api/internal/domain"
	"golang.org/x/sync/singleflight"
)

// CachedTaskStore decorates a TaskStore with a read-through LRU cache.
// Only terminal tasks are cached: they are immutable, so a cached copy can
// never be stale. Concurrent reads of one id share a single store round-trip,
// which is what many long-polling clients of the same task produce.
type CachedTaskStore struct {
	next  TaskStore
	cache *lru.Cache[uuid.UUID, domain.Task]
	group singleflight.Group
}

var _ TaskStore = (*CachedTaskStore)(nil)

// NewCachedTaskStore wraps next with a cache holding up to size terminal tasks.
func NewCachedTaskStore(next TaskStore, size int) (*CachedTaskStore, error) {
	cache, err := lru.New[uuid.UUID, domain.Task](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create task cache: %w", err)
	}
	return &CachedTaskStore{next: next, cache: cache}, nil
}

// Save writes through and caches the task once it is terminal.
func (s *CachedTaskStore) Save(ctx context.Context, task *domain.Task) error {
	if err := s.next.Save(ctx, task); err != nil {
		s.cache.Remove(task.ID)
		return err
	}
	if task.Status.IsTerminal() {
		s.cache.Add(task.ID, *task)
	} else {
		s.cache.Remove(task.ID)
	}
	return nil
}

// Get serves terminal tasks from the cache and collapses concurrent misses.
// The shared read is detached from any one caller's cancellation; a caller
// whose context ends stops waiting without affecting the others.
func (s *CachedTaskStore) Get(ctx context.Context, id uuid.UUID) (*domain.Task, error) {
	if task, ok := s.cache.Get(id); ok {
		return &task, nil
	}

	shared := context.WithoutCancel(ctx)
	ch := s.group.DoChan(id.String(), func() (any, error) {
		task, err := s.next.Get(shared, id)
		if err != nil {
			return nil, err
		}
		if task.Status.IsTerminal() {
			s.cache.Add(id, *task)
		}
		return *task, nil
	})

	select {
	case <-ctx.Done():
		return nil, ErrTaskNotFound
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		task := res.Val.(domain.Task)
		return &task, nil
	}
}

// ListStale is not cached; stale tasks are never terminal.
func (s *CachedTaskStore) ListStale(ctx context.Context, olderThan time.Time) ([]*domain.Task, error) {
	return s.next.ListStale(ctx, olderThan)
}

// WithTx bypasses the cache so uncommitted writes are never cached.
func (s *CachedTaskStore) WithTx(tx *sql.Tx) TaskStore {
	return s.next.WithTx(tx)
}
