package domain

// MealPlanRequest is a validated meal-plan generation request.
type MealPlanRequest struct {
	DaysCount           int        `json:"daysCount"`
	Meals               []MealType `json:"meals"`
	Diet                DietType   `json:"diet"`
	ExcludedIngredients []string   `json:"excludedIngredients,omitempty"`
}

// RequestedMeals returns the requested meal types with duplicates removed,
// keeping first-seen order.
func (r MealPlanRequest) RequestedMeals() []MealType {
	seen := make(map[MealType]bool, len(r.Meals))
	meals := make([]MealType, 0, len(r.Meals))
	for _, m := range r.Meals {
		if seen[m] {
			continue
		}
		seen[m] = true
		meals = append(meals, m)
	}
	return meals
}

// Validate checks the invariants the generator relies on. The API layer
// performs field-level validation first; this guards other callers.
func (r MealPlanRequest) Validate() error {
	if r.DaysCount <= 0 {
		return NewValidationError("daysCount", "must be a positive integer", ErrValidation)
	}
	if len(r.Meals) == 0 {
		return NewValidationError("meals", "must contain at least one meal type", ErrValidation)
	}
	for _, m := range r.Meals {
		if !m.IsValid() {
			return NewValidationError("meals", "contains unknown meal type "+string(m), ErrValidation)
		}
	}
	if !r.Diet.IsValid() {
		return NewValidationError("diet", "unknown diet "+string(r.Diet), ErrValidation)
	}
	return nil
}

// IsValid reports whether d is one of the supported diets.
func (d DietType) IsValid() bool {
	switch d {
	case DietStandard, DietVegetarian, DietVegan, DietKeto, DietPaleo, DietGlutenFree, DietDairyFree:
		return true
	default:
		return false
	}
}
