package mealplan

import "errors"

// ErrPlanMismatch is returned when a generated plan does not have the shape
// the request asked for (day count, meal slots, or course structure).
var ErrPlanMismatch = errors.New("generated meal plan does not match request")
