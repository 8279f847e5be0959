package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"time"

	"github.com/phrazzld/mealplan-api/internal/domain"
)

// ErrInvalidStringList is returned when a StringList value is neither a
// string nor an array of strings.
var ErrInvalidStringList = errors.New("must be a string or an array of strings")

// StringList accepts either a JSON string or an array of strings.
// A single string becomes a one-element list; null or "" becomes empty.
type StringList []string

// UnmarshalJSON implements json.Unmarshaler.
func (l *StringList) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = nil
		return nil
	}

	if len(data) > 0 && data[0] == '"' {
		var single string
		if err := json.Unmarshal(data, &single); err != nil {
			return ErrInvalidStringList
		}
		if single == "" {
			*l = nil
			return nil
		}
		*l = StringList{single}
		return nil
	}

	var list []string
	if err := json.Unmarshal(data, &list); err != nil {
		return ErrInvalidStringList
	}
	*l = list
	return nil
}

// GenerateMealPlanRequest is the payload of POST /meal-plan/generate.
type GenerateMealPlanRequest struct {
	DaysCount           int        `json:"daysCount"                     validate:"required,gt=0"`
	Meals               []string   `json:"meals"                         validate:"required,min=1,dive,oneof=breakfast lunch dinner snack"`
	Diet                string     `json:"diet"                          validate:"required,oneof=standard vegetarian vegan keto paleo gluten-free dairy-free"`
	ExcludedIngredients StringList `json:"excludedIngredients,omitempty" validate:"omitempty,dive,required"`
}

// ToDomain converts the validated payload into a domain request.
func (r GenerateMealPlanRequest) ToDomain() domain.MealPlanRequest {
	meals := make([]domain.MealType, len(r.Meals))
	for i, m := range r.Meals {
		meals[i] = domain.MealType(m)
	}
	return domain.MealPlanRequest{
		DaysCount:           r.DaysCount,
		Meals:               meals,
		Diet:                domain.DietType(r.Diet),
		ExcludedIngredients: []string(r.ExcludedIngredients),
	}
}

// GenerateMealPlanResponse acknowledges a new task.
type GenerateMealPlanResponse struct {
	TaskID string `json:"task_id"`
	Status string `json:"status"`
}

// TaskResponse is the public view of a task.
type TaskResponse struct {
	ID        string         `json:"id"`
	Status    string         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	Result    *domain.Result `json:"result,omitempty"`
	Error     string         `json:"error,omitempty"`
	Usage     *domain.Usage  `json:"usage,omitempty"`
}

// taskToResponse converts a domain.Task to a TaskResponse.
func taskToResponse(t *domain.Task) TaskResponse {
	return TaskResponse{
		ID:        t.ID.String(),
		Status:    string(t.Status),
		CreatedAt: t.CreatedAt,
		Result:    t.Result,
		Error:     t.Error,
		Usage:     t.Usage,
	}
}
