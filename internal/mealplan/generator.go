package mealplan

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/generation"
)

const dateLayout = "2006-01-02"

// Generator produces meal plans through a Completer.
type Generator struct {
	completer generation.Completer
	logger    *slog.Logger
	now       func() time.Time
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithClock overrides the clock used to date days the model left undated.
func WithClock(now func() time.Time) GeneratorOption {
	return func(g *Generator) { g.now = now }
}

// NewGenerator creates a Generator.
func NewGenerator(completer generation.Completer, logger *slog.Logger, opts ...GeneratorOption) (*Generator, error) {
	if completer == nil {
		return nil, errors.New("completer cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	g := &Generator{
		completer: completer,
		logger:    logger.With("component", "meal_plan_generator"),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g, nil
}

// Generate asks the completion service for a plan and normalises it.
//
// The returned usage is non-nil whenever the service reported it, including
// when the response was later rejected. Errors wrap
// generation.ErrEmptyResponse, generation.ErrInvalidResponse ("malformed
// JSON"), ErrPlanMismatch, or the completer's own error.
func (g *Generator) Generate(ctx context.Context, req domain.MealPlanRequest) (*domain.MealPlan, *domain.TokenUsage, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}
	meals := req.RequestedMeals()

	system, user, err := planPrompts(req, meals)
	if err != nil {
		return nil, nil, err
	}

	log := g.logger.With("days_count", req.DaysCount, "diet", req.Diet)
	log.InfoContext(ctx, "Requesting meal plan", "meals", meals)

	start := time.Now()
	resp, err := g.completer.Complete(ctx, generation.Request{SystemPrompt: system, UserPrompt: user})
	if err != nil {
		return nil, nil, fmt.Errorf("completion request failed: %w", err)
	}
	log.InfoContext(ctx, "Received meal plan response",
		"duration_ms", time.Since(start).Milliseconds(),
		"content_length", len(resp.Content))

	plan, err := parsePlan(resp.Content)
	if err != nil {
		return nil, resp.Usage, err
	}

	g.normalise(plan, meals)

	if err := checkStructure(plan, req.DaysCount, meals); err != nil {
		log.WarnContext(ctx, "Generated plan rejected", "error", err)
		return nil, resp.Usage, err
	}

	log.InfoContext(ctx, "Meal plan generated", "days", len(plan.Days))
	return plan, resp.Usage, nil
}

func planPrompts(req domain.MealPlanRequest, meals []domain.MealType) (string, string, error) {
	reqJSON, err := json.MarshalIndent(req, "", "  ")
	if err != nil {
		return "", "", fmt.Errorf("failed to encode request: %w", err)
	}

	names := make([]string, len(meals))
	for i, m := range meals {
		names[i] = string(m)
	}

	system, err := render("plan_system.tmpl", nil)
	if err != nil {
		return "", "", err
	}
	user, err := render("plan_user.tmpl", planPromptData{
		RequestJSON:         string(reqJSON),
		DaysCount:           req.DaysCount,
		Meals:               names,
		Diet:                string(req.Diet),
		ExcludedIngredients: req.ExcludedIngredients,
	})
	if err != nil {
		return "", "", err
	}
	return system, user, nil
}

func parsePlan(content string) (*domain.MealPlan, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("%w: no content", generation.ErrEmptyResponse)
	}

	var plan domain.MealPlan
	if err := json.Unmarshal([]byte(content), &plan); err != nil {
		return nil, fmt.Errorf("%w: malformed JSON: %v", generation.ErrInvalidResponse, err)
	}
	if plan.Days == nil {
		return nil, fmt.Errorf("%w: malformed JSON: missing days", generation.ErrInvalidResponse)
	}
	plan.ShoppingList = []domain.Ingredient{}
	return &plan, nil
}

// normalise drops meals that were not requested, orders the remaining meals
// and course recipes canonically, and dates undated days sequentially from
// today.
func (g *Generator) normalise(plan *domain.MealPlan, meals []domain.MealType) {
	rank := make(map[domain.MealType]int, len(meals))
	for i, m := range meals {
		rank[m] = i
	}

	today := g.now().UTC()
	for i := range plan.Days {
		day := &plan.Days[i]
		if strings.TrimSpace(day.Date) == "" {
			day.Date = today.AddDate(0, 0, i).Format(dateLayout)
		}

		kept := make([]domain.Meal, 0, len(day.Meals))
		for _, meal := range day.Meals {
			if _, ok := rank[meal.MealType]; ok {
				kept = append(kept, meal)
			}
		}
		slices.SortStableFunc(kept, func(a, b domain.Meal) int { return rank[a.MealType] - rank[b.MealType] })

		for j := range kept {
			if kept[j].MealType.IsCourseMeal() {
				slices.SortStableFunc(kept[j].Recipes, func(a, b domain.RecipeItem) int {
					return courseRank(a.RecipeType) - courseRank(b.RecipeType)
				})
			}
		}
		day.Meals = kept
	}
}

func courseRank(t domain.RecipeType) int {
	if i := slices.Index(domain.CourseSequence, t); i >= 0 {
		return i
	}
	return len(domain.CourseSequence)
}

// checkStructure verifies the plan has the requested shape.
func checkStructure(plan *domain.MealPlan, daysCount int, meals []domain.MealType) error {
	if len(plan.Days) != daysCount {
		return fmt.Errorf("%w: expected %d days, got %d", ErrPlanMismatch, daysCount, len(plan.Days))
	}

	for i, day := range plan.Days {
		if len(day.Meals) != len(meals) {
			return fmt.Errorf("%w: day %d has %d meals, expected %d", ErrPlanMismatch, i+1, len(day.Meals), len(meals))
		}
		for j, meal := range day.Meals {
			if meal.MealType != meals[j] {
				return fmt.Errorf("%w: day %d is missing %s", ErrPlanMismatch, i+1, meals[j])
			}
			if err := checkMeal(meal); err != nil {
				return fmt.Errorf("%w: day %d %s: %v", ErrPlanMismatch, i+1, meal.MealType, err)
			}
		}
	}
	return nil
}

func checkMeal(meal domain.Meal) error {
	if !meal.MealType.IsCourseMeal() {
		if len(meal.Recipes) != 1 {
			return fmt.Errorf("expected 1 recipe, got %d", len(meal.Recipes))
		}
		return nil
	}

	if len(meal.Recipes) != len(domain.CourseSequence) {
		return fmt.Errorf("expected %d recipes, got %d", len(domain.CourseSequence), len(meal.Recipes))
	}
	for i, want := range domain.CourseSequence {
		if meal.Recipes[i].RecipeType != want {
			return fmt.Errorf("expected recipes tagged starter/main/dessert, missing %s", want)
		}
	}
	return nil
}
