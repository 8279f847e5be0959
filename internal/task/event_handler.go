package task

import (
	"context"
	"log/slog"

	"github.com/phrazzld/mealplan-api/internal/events"
)

// TransitionLogHandler implements events.EventHandler by logging every task
// status transition.
type TransitionLogHandler struct {
	logger *slog.Logger
}

var _ events.EventHandler = (*TransitionLogHandler)(nil)

// NewTransitionLogHandler creates a handler that logs through logger.
func NewTransitionLogHandler(logger *slog.Logger) *TransitionLogHandler {
	return &TransitionLogHandler{
		logger: logger.With("component", "task_transition_log"),
	}
}

// HandleEvent logs the transition. Failures are logged at warn level.
func (h *TransitionLogHandler) HandleEvent(ctx context.Context, event *events.TaskStatusChanged) error {
	attrs := []any{
		"task_id", event.TaskID,
		"from", event.From,
		"to", event.To,
	}
	if event.Error != "" {
		h.logger.WarnContext(ctx, "task failed", append(attrs, "error", event.Error)...)
		return nil
	}
	h.logger.InfoContext(ctx, "task status changed", attrs...)
	return nil
}
