package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/service"
)

// getPathTaskID extracts the task UUID from the URL path. Malformed
// identifiers cannot name a task, so they map to ErrTaskNotFound.
func getPathTaskID(r *http.Request, paramName string) (uuid.UUID, error) {
	pathParam := chi.URLParam(r, paramName)
	if pathParam == "" {
		return uuid.Nil, service.ErrTaskNotFound
	}

	id, err := uuid.Parse(pathParam)
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: malformed id", service.ErrTaskNotFound)
	}

	return id, nil
}

// parseWaitParams reads targetStatus and timeout from the query string.
// timeout is a whole number of seconds no larger than maxWait; an absent
// timeout yields defaultWait.
func parseWaitParams(
	r *http.Request,
	defaultWait, maxWait time.Duration,
) (domain.TaskStatus, time.Duration, error) {
	query := r.URL.Query()

	target := domain.TaskStatus(query.Get("targetStatus"))
	if target != "" && !target.IsValid() {
		return "", 0, fmt.Errorf("%w: unknown targetStatus %q", service.ErrInvalidWait, target)
	}

	raw := query.Get("timeout")
	if raw == "" {
		return target, defaultWait, nil
	}

	seconds, err := strconv.Atoi(raw)
	if err != nil {
		return "", 0, fmt.Errorf("%w: timeout must be an integer number of seconds", service.ErrInvalidWait)
	}
	maxSeconds := int(maxWait / time.Second)
	if seconds < 0 || seconds > maxSeconds {
		return "", 0, fmt.Errorf("%w: timeout must be between 0 and %d seconds", service.ErrInvalidWait, maxSeconds)
	}

	return target, time.Duration(seconds) * time.Second, nil
}
