package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/mealplan-api/internal/api/shared"
	"github.com/phrazzld/mealplan-api/internal/platform/logger"
	"github.com/phrazzld/mealplan-api/internal/service"
)

// TaskIDParam is the chi path parameter naming a task.
const TaskIDParam = "taskId"

// WaitConfig bounds the long-poll endpoint.
type WaitConfig struct {
	DefaultTimeout time.Duration
	MaxTimeout     time.Duration
}

// MealPlanHandler handles meal-plan related HTTP requests
type MealPlanHandler struct {
	mealPlanService service.MealPlanService
	wait            WaitConfig
}

// NewMealPlanHandler creates a new MealPlanHandler
func NewMealPlanHandler(mealPlanService service.MealPlanService, wait WaitConfig) *MealPlanHandler {
	if wait.MaxTimeout <= 0 {
		wait.MaxTimeout = 300 * time.Second
	}
	if wait.DefaultTimeout <= 0 || wait.DefaultTimeout > wait.MaxTimeout {
		wait.DefaultTimeout = min(30*time.Second, wait.MaxTimeout)
	}
	return &MealPlanHandler{
		mealPlanService: mealPlanService,
		wait:            wait,
	}
}

// Generate handles POST /meal-plan/generate. The task is created and its
// pipeline started; the response does not wait for generation.
func (h *MealPlanHandler) Generate(w http.ResponseWriter, r *http.Request) {
	var req GenerateMealPlanRequest
	if err := shared.DecodeJSON(w, r, &req); err != nil {
		if errors.Is(err, shared.ErrBodyTooLarge) {
			HandleAPIError(w, r, err, "")
			return
		}
		shared.RespondWithValidationError(w, r, "Invalid request format", decodeDetails(err))
		return
	}

	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithValidationError(w, r, "Validation failed", shared.ValidationDetails(err))
		return
	}

	task, err := h.mealPlanService.StartGeneration(r.Context(), req.ToDomain())
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	logger.FromContext(r.Context()).Info("meal plan task created", "task_id", task.ID)

	shared.RespondWithJSON(w, r, http.StatusCreated, GenerateMealPlanResponse{
		TaskID: task.ID.String(),
		Status: string(task.Status),
	})
}

// GetStatus handles GET /meal-plan/status/{taskId}.
func (h *MealPlanHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	id, err := getPathTaskID(r, TaskIDParam)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	task, err := h.mealPlanService.GetTask(r.Context(), id)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// Wait handles GET /meal-plan/wait/{taskId}?targetStatus=&timeout=.
// A timeout returns the last snapshot with 200, not an error.
func (h *MealPlanHandler) Wait(w http.ResponseWriter, r *http.Request) {
	id, err := getPathTaskID(r, TaskIDParam)
	if err != nil {
		HandleAPIError(w, r, err, "")
		return
	}

	target, timeout, err := parseWaitParams(r, h.wait.DefaultTimeout, h.wait.MaxTimeout)
	if err != nil {
		HandleAPIError(w, r, err, err.Error())
		return
	}

	task, err := h.mealPlanService.WaitForTask(r.Context(), id, target, timeout)
	if err != nil {
		if r.Context().Err() != nil {
			// The client went away; nobody reads the response.
			logger.FromContext(r.Context()).Debug("wait abandoned by client", "task_id", id)
			return
		}
		HandleAPIError(w, r, err, "")
		return
	}

	shared.RespondWithJSON(w, r, http.StatusOK, taskToResponse(task))
}

// decodeDetails describes a body decoding failure at field level where the
// decoder reports one.
func decodeDetails(err error) []shared.FieldError {
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) && typeErr.Field != "" {
		return []shared.FieldError{{Field: typeErr.Field, Message: "must be of type " + typeErr.Type.String()}}
	}

	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return []shared.FieldError{{Field: strings.Trim(field, `"`), Message: "is not allowed"}}
	}

	if errors.Is(err, ErrInvalidStringList) {
		return []shared.FieldError{{Field: "excludedIngredients", Message: ErrInvalidStringList.Error()}}
	}

	return nil
}
