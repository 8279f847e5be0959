package task

import (
	"context"
	"io"
	"log/slog"
	"sync"

	"github.com/phrazzld/mealplan-api/internal/events"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingEmitter collects emitted events.
type recordingEmitter struct {
	mu     sync.Mutex
	events []*events.TaskStatusChanged
}

func (e *recordingEmitter) EmitEvent(_ context.Context, event *events.TaskStatusChanged) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
	return nil
}

func (e *recordingEmitter) recorded() []*events.TaskStatusChanged {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]*events.TaskStatusChanged(nil), e.events...)
}
