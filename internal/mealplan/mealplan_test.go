package mealplan

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/generation"
)

// fakeCompleter is a function-field test double for generation.Completer.
type fakeCompleter struct {
	mu         sync.Mutex
	requests   []generation.Request
	CompleteFn func(ctx context.Context, req generation.Request) (*generation.Response, error)
}

func (f *fakeCompleter) Complete(ctx context.Context, req generation.Request) (*generation.Response, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	return f.CompleteFn(ctx, req)
}

func (f *fakeCompleter) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func respondWith(content string, usage *domain.TokenUsage) func(context.Context, generation.Request) (*generation.Response, error) {
	return func(context.Context, generation.Request) (*generation.Response, error) {
		return &generation.Response{Content: content, Usage: usage}, nil
	}
}

func failWith(err error) func(context.Context, generation.Request) (*generation.Response, error) {
	return func(context.Context, generation.Request) (*generation.Response, error) {
		return nil, err
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var errUpstream = errors.New("upstream unavailable")

func recipeJSON(recipeType, name string, ingredients ...string) string {
	items := make([]string, len(ingredients))
	for i, label := range ingredients {
		items[i] = fmt.Sprintf(`{"label": %q, "quantity": 1, "unit": "pc"}`, label)
	}
	return fmt.Sprintf(`{"recipe_type": %q, "recipe": {"name": %q, "ingredients": [%s], "steps": {"1": "Prepare", "2": "Serve"}}}`,
		recipeType, name, strings.Join(items, ","))
}

func mealJSON(mealType string, recipes ...string) string {
	return fmt.Sprintf(`{"meal_type": %q, "recipes": [%s]}`, mealType, strings.Join(recipes, ","))
}

func dayJSON(date string, meals ...string) string {
	if date == "" {
		return fmt.Sprintf(`{"meals": [%s]}`, strings.Join(meals, ","))
	}
	return fmt.Sprintf(`{"date": %q, "meals": [%s]}`, date, strings.Join(meals, ","))
}

func planJSON(days ...string) string {
	return fmt.Sprintf(`{"days": [%s]}`, strings.Join(days, ","))
}

func breakfast() string {
	return mealJSON("breakfast", recipeJSON("collation", "Porridge", "oats", "milk"))
}

func lunch() string {
	return mealJSON("lunch",
		recipeJSON("starter", "Salad", "lettuce"),
		recipeJSON("main", "Risotto", "rice", "mushroom"),
		recipeJSON("dessert", "Sorbet", "lemon"),
	)
}
