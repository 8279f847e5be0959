package mealplan

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/kaptinlin/jsonrepair"
	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/generation"
)

// Aggregator consolidates a plan's ingredients into a shopping list.
type Aggregator struct {
	completer generation.Completer
	logger    *slog.Logger
}

// NewAggregator creates an Aggregator.
func NewAggregator(completer generation.Completer, logger *slog.Logger) (*Aggregator, error) {
	if completer == nil {
		return nil, errors.New("completer cannot be nil")
	}
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	return &Aggregator{
		completer: completer,
		logger:    logger.With("component", "shopping_list_aggregator"),
	}, nil
}

// Aggregate returns the consolidated shopping list for plan, sorted by label.
// It never fails: any problem degrades to an empty list. Usage is nil when
// the plan has no ingredients, when the call fails, or when the response is
// not JSON even after repair; a JSON response of the wrong shape keeps it.
func (a *Aggregator) Aggregate(ctx context.Context, plan *domain.MealPlan) ([]domain.Ingredient, *domain.TokenUsage) {
	var ingredients []domain.Ingredient
	if plan != nil {
		ingredients = plan.Ingredients()
	}
	if len(ingredients) == 0 {
		a.logger.WarnContext(ctx, "No ingredients found in meal plan")
		return []domain.Ingredient{}, nil
	}

	user, err := shoppingPrompt(ingredients)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to build shopping list prompt", "error", err)
		return []domain.Ingredient{}, nil
	}
	system, err := render("shopping_system.tmpl", nil)
	if err != nil {
		a.logger.ErrorContext(ctx, "Failed to build shopping list prompt", "error", err)
		return []domain.Ingredient{}, nil
	}

	a.logger.InfoContext(ctx, "Requesting shopping list", "ingredient_count", len(ingredients))
	start := time.Now()
	resp, err := a.completer.Complete(ctx, generation.Request{SystemPrompt: system, UserPrompt: user})
	if err != nil {
		a.logger.WarnContext(ctx, "Shopping list generation failed, using empty list", "error", err)
		return []domain.Ingredient{}, nil
	}

	list, err := parseShoppingList(resp.Content)
	switch {
	case errors.Is(err, errNotJSON):
		a.logger.WarnContext(ctx, "Shopping list response is not JSON, using empty list", "error", err)
		return []domain.Ingredient{}, nil
	case err != nil:
		a.logger.WarnContext(ctx, "Unexpected shopping list format, using empty list", "error", err)
		return []domain.Ingredient{}, resp.Usage
	}

	list = consolidate(list)
	a.logger.InfoContext(ctx, "Shopping list generated",
		"items", len(list),
		"duration_ms", time.Since(start).Milliseconds())
	return list, resp.Usage
}

func shoppingPrompt(ingredients []domain.Ingredient) (string, error) {
	data, err := json.Marshal(ingredients)
	if err != nil {
		return "", err
	}
	return render("shopping_user.tmpl", shoppingPromptData{IngredientsJSON: string(data)})
}

var (
	errNotJSON    = errors.New("response is not valid JSON")
	errWrongShape = errors.New("response is neither a list nor an object with a shopping_list array")
)

// parseShoppingList accepts a bare array or {"shopping_list": [...]}.
// Content that is not JSON is passed through jsonrepair once.
func parseShoppingList(content string) ([]domain.Ingredient, error) {
	raw := []byte(strings.TrimSpace(content))
	if !json.Valid(raw) {
		repaired, err := jsonrepair.JSONRepair(string(raw))
		if err != nil || !json.Valid([]byte(repaired)) {
			return nil, errNotJSON
		}
		raw = []byte(repaired)
	}

	var items []domain.Ingredient
	switch {
	case bytes.HasPrefix(raw, []byte("[")):
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, errWrongShape
		}
	case bytes.HasPrefix(raw, []byte("{")):
		var wrapped struct {
			ShoppingList *[]domain.Ingredient `json:"shopping_list"`
		}
		if err := json.Unmarshal(raw, &wrapped); err != nil || wrapped.ShoppingList == nil {
			return nil, errWrongShape
		}
		items = *wrapped.ShoppingList
	default:
		return nil, errWrongShape
	}

	list := make([]domain.Ingredient, 0, len(items))
	for _, item := range items {
		label := strings.TrimSpace(item.Label)
		if label == "" {
			continue
		}
		list = append(list, domain.Ingredient{
			Label:    label,
			Quantity: item.Quantity,
			Unit:     strings.TrimSpace(item.Unit),
		})
	}
	return list, nil
}

// consolidate merges entries that share a label and unit (case-insensitive)
// and sorts the result by label.
func consolidate(list []domain.Ingredient) []domain.Ingredient {
	type key struct{ label, unit string }
	index := make(map[key]int, len(list))
	out := make([]domain.Ingredient, 0, len(list))
	for _, item := range list {
		k := key{strings.ToLower(item.Label), strings.ToLower(item.Unit)}
		if i, ok := index[k]; ok {
			out[i].Quantity += item.Quantity
			continue
		}
		index[k] = len(out)
		out = append(out, item)
	}

	slices.SortStableFunc(out, func(a, b domain.Ingredient) int {
		return strings.Compare(strings.ToLower(a.Label), strings.ToLower(b.Label))
	})
	return out
}
