package events

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/stretchr/testify/assert"
)

// recordingHandler remembers every event it receives.
type recordingHandler struct {
	mu     sync.Mutex
	events []*TaskStatusChanged
	err    error
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *TaskStatusChanged) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return h.err
}

func TestNewTaskStatusChanged(t *testing.T) {
	t.Parallel()

	taskID := uuid.New()
	event := NewTaskStatusChanged(taskID, domain.TaskStatusInProgressShopping, domain.TaskStatusCompleted)

	assert.NotEqual(t, uuid.Nil, event.ID)
	assert.Equal(t, taskID, event.TaskID)
	assert.Equal(t, domain.TaskStatusInProgressShopping, event.From)
	assert.Equal(t, domain.TaskStatusCompleted, event.To)
	assert.True(t, event.IsTerminal())
	assert.WithinDuration(t, time.Now(), event.CreatedAt, 2*time.Second)

	assert.False(t, NewTaskStatusChanged(taskID, "", domain.TaskStatusPending).IsTerminal())
}

func TestInMemoryEventEmitter(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	event := NewTaskStatusChanged(uuid.New(), domain.TaskStatusPending, domain.TaskStatusInProgressPlan)

	t.Run("no handlers", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
	})

	t.Run("all handlers receive the event", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		h1, h2 := &recordingHandler{}, &recordingHandler{}
		emitter.RegisterHandler(h1)
		emitter.RegisterHandler(h2)

		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Equal(t, []*TaskStatusChanged{event}, h1.events)
		assert.Equal(t, []*TaskStatusChanged{event}, h2.events)
	})

	t.Run("failing handler does not stop delivery", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		first := errors.New("first")
		failing1 := &recordingHandler{err: first}
		failing2 := &recordingHandler{err: errors.New("second")}
		ok := &recordingHandler{}
		emitter.RegisterHandler(failing1)
		emitter.RegisterHandler(failing2)
		emitter.RegisterHandler(ok)

		err := emitter.EmitEvent(context.Background(), event)
		assert.ErrorIs(t, err, first)
		assert.Len(t, ok.events, 1)
	})

	t.Run("handler func adapter", func(t *testing.T) {
		emitter := NewInMemoryEventEmitter(logger)
		var got *TaskStatusChanged
		emitter.RegisterHandler(EventHandlerFunc(func(_ context.Context, e *TaskStatusChanged) error {
			got = e
			return nil
		}))

		assert.NoError(t, emitter.EmitEvent(context.Background(), event))
		assert.Same(t, event, got)
	})
}

func TestNopEmitter(t *testing.T) {
	t.Parallel()
	assert.NoError(t, NopEmitter{}.EmitEvent(context.Background(), nil))
}
