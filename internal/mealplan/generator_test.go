package mealplan

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2025, time.May, 4, 22, 0, 0, 0, time.UTC)

func newTestGenerator(t *testing.T, completer *fakeCompleter) *Generator {
	t.Helper()
	g, err := NewGenerator(completer, testLogger(), WithClock(func() time.Time { return fixedNow }))
	require.NoError(t, err)
	return g
}

func validRequest() domain.MealPlanRequest {
	return domain.MealPlanRequest{
		DaysCount: 2,
		Meals:     []domain.MealType{domain.MealTypeBreakfast, domain.MealTypeLunch},
		Diet:      domain.DietVegetarian,
	}
}

func TestGenerator_Generate(t *testing.T) {
	t.Parallel()

	usage := &domain.TokenUsage{PromptTokens: 100, CompletionTokens: 900, TotalTokens: 1000}
	content := planJSON(
		dayJSON("2025-06-01", breakfast(), lunch()),
		dayJSON("", breakfast(), lunch()),
	)
	completer := &fakeCompleter{CompleteFn: respondWith(content, usage)}

	plan, gotUsage, err := newTestGenerator(t, completer).Generate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Equal(t, usage, gotUsage)

	require.Len(t, plan.Days, 2)
	assert.Equal(t, "2025-06-01", plan.Days[0].Date)
	assert.Equal(t, "2025-05-05", plan.Days[1].Date, "undated days get today+index")
	assert.NotNil(t, plan.ShoppingList)
	assert.Empty(t, plan.ShoppingList)

	for _, day := range plan.Days {
		require.Len(t, day.Meals, 2)
		assert.Equal(t, domain.MealTypeBreakfast, day.Meals[0].MealType)
		assert.Len(t, day.Meals[0].Recipes, 1)
		assert.Equal(t, domain.MealTypeLunch, day.Meals[1].MealType)
		require.Len(t, day.Meals[1].Recipes, 3)
		assert.Equal(t, domain.RecipeTypeStarter, day.Meals[1].Recipes[0].RecipeType)
		assert.Equal(t, domain.RecipeTypeMain, day.Meals[1].Recipes[1].RecipeType)
		assert.Equal(t, domain.RecipeTypeDessert, day.Meals[1].Recipes[2].RecipeType)
	}

	assert.Equal(t, domain.Steps{{Number: "1", Text: "Prepare"}, {Number: "2", Text: "Serve"}},
		plan.Days[0].Meals[0].Recipes[0].Recipe.Steps)
}

func TestGenerator_Normalises(t *testing.T) {
	t.Parallel()

	shuffledLunch := mealJSON("lunch",
		recipeJSON("dessert", "Sorbet", "lemon"),
		recipeJSON("starter", "Salad", "lettuce"),
		recipeJSON("main", "Risotto", "rice"),
	)
	dinner := mealJSON("dinner",
		recipeJSON("starter", "Soup", "leek"),
		recipeJSON("main", "Curry", "chickpeas"),
		recipeJSON("dessert", "Fruit", "apple"),
	)
	content := planJSON(
		dayJSON("", shuffledLunch, dinner, breakfast()),
		dayJSON("", breakfast(), lunch()),
	)
	completer := &fakeCompleter{CompleteFn: respondWith(content, nil)}

	plan, usage, err := newTestGenerator(t, completer).Generate(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Nil(t, usage, "missing usage is not an error")

	first := plan.Days[0]
	require.Len(t, first.Meals, 2, "unrequested dinner should be dropped")
	assert.Equal(t, domain.MealTypeBreakfast, first.Meals[0].MealType)
	assert.Equal(t, domain.MealTypeLunch, first.Meals[1].MealType)
	assert.Equal(t, "Salad", first.Meals[1].Recipes[0].Recipe.Name)
	assert.Equal(t, "Risotto", first.Meals[1].Recipes[1].Recipe.Name)
	assert.Equal(t, "Sorbet", first.Meals[1].Recipes[2].Recipe.Name)
	assert.Equal(t, "2025-05-04", first.Date)
}

func TestGenerator_DuplicateMealsInRequest(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.DaysCount = 1
	req.Meals = []domain.MealType{domain.MealTypeLunch, domain.MealTypeLunch}
	completer := &fakeCompleter{CompleteFn: respondWith(planJSON(dayJSON("", lunch())), nil)}

	plan, _, err := newTestGenerator(t, completer).Generate(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, plan.Days[0].Meals, 1)
}

func TestGenerator_StringQuantities(t *testing.T) {
	t.Parallel()

	req := validRequest()
	req.DaysCount = 1
	req.Meals = []domain.MealType{domain.MealTypeBreakfast}
	content := planJSON(dayJSON("2025-06-01", mealJSON("breakfast",
		`{"recipe_type": "collation", "recipe": {"name": "Porridge", "ingredients": [`+
			`{"label": "oats", "quantity": "50", "unit": "g"}, {"label": "milk", "quantity": 200, "unit": "ml"}], `+
			`"steps": {"1": "Simmer"}}}`)))
	completer := &fakeCompleter{CompleteFn: respondWith(content, nil)}

	plan, _, err := newTestGenerator(t, completer).Generate(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, []domain.Ingredient{
		{Label: "oats", Quantity: 50, Unit: "g"},
		{Label: "milk", Quantity: 200, Unit: "ml"},
	}, plan.Ingredients())
}

func TestGenerator_Errors(t *testing.T) {
	t.Parallel()

	usage := &domain.TokenUsage{TotalTokens: 5}

	tests := []struct {
		name        string
		respond     func(context.Context, generation.Request) (*generation.Response, error)
		wantErr     error
		wantMessage string
		wantUsage   bool
	}{
		{
			name:      "empty response",
			respond:   respondWith("  ", usage),
			wantErr:   generation.ErrEmptyResponse,
			wantUsage: true,
		},
		{
			name:        "malformed JSON",
			respond:     respondWith(`{"days": [`, usage),
			wantErr:     generation.ErrInvalidResponse,
			wantMessage: "malformed JSON",
			wantUsage:   true,
		},
		{
			name:        "missing days",
			respond:     respondWith(`{"plan": []}`, usage),
			wantErr:     generation.ErrInvalidResponse,
			wantMessage: "malformed JSON",
			wantUsage:   true,
		},
		{
			name:      "wrong day count",
			respond:   respondWith(planJSON(dayJSON("", breakfast(), lunch())), usage),
			wantErr:   ErrPlanMismatch,
			wantUsage: true,
		},
		{
			name:    "missing requested meal",
			respond: respondWith(planJSON(dayJSON("", lunch()), dayJSON("", breakfast(), lunch())), usage),
			wantErr: ErrPlanMismatch,
		},
		{
			name: "lunch without dessert",
			respond: respondWith(planJSON(
				dayJSON("", breakfast(), mealJSON("lunch", recipeJSON("starter", "a", "x"), recipeJSON("main", "b", "y"))),
				dayJSON("", breakfast(), lunch()),
			), usage),
			wantErr: ErrPlanMismatch,
		},
		{
			name: "breakfast with two recipes",
			respond: respondWith(planJSON(
				dayJSON("", mealJSON("breakfast", recipeJSON("collation", "a", "x"), recipeJSON("collation", "b", "y")), lunch()),
				dayJSON("", breakfast(), lunch()),
			), usage),
			wantErr: ErrPlanMismatch,
		},
		{
			name:    "completion failure",
			respond: failWith(errUpstream),
			wantErr: errUpstream,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			completer := &fakeCompleter{CompleteFn: tc.respond}
			plan, gotUsage, err := newTestGenerator(t, completer).Generate(context.Background(), validRequest())

			require.Error(t, err)
			assert.Nil(t, plan)
			assert.ErrorIs(t, err, tc.wantErr)
			if tc.wantMessage != "" {
				assert.Contains(t, err.Error(), tc.wantMessage)
			}
			if tc.wantUsage {
				assert.Equal(t, usage, gotUsage)
			}
		})
	}
}

func TestGenerator_InvalidRequest(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{CompleteFn: respondWith("{}", nil)}
	req := validRequest()
	req.DaysCount = 0

	_, _, err := newTestGenerator(t, completer).Generate(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, 0, completer.calls())
}

func TestGenerator_Prompt(t *testing.T) {
	t.Parallel()

	completer := &fakeCompleter{CompleteFn: failWith(errUpstream)}
	req := validRequest()
	req.ExcludedIngredients = []string{"peanuts", "shellfish"}

	_, _, _ = newTestGenerator(t, completer).Generate(context.Background(), req)
	require.Equal(t, 1, completer.calls())

	sent := completer.requests[0]
	assert.Contains(t, sent.SystemPrompt, `"recipe_type"`)
	assert.Contains(t, sent.UserPrompt, `"daysCount": 2`)
	assert.Contains(t, sent.UserPrompt, "breakfast, lunch")
	assert.Contains(t, sent.UserPrompt, "peanuts, shellfish")
	assert.Contains(t, sent.UserPrompt, "vegetarian")
	assert.False(t, strings.Contains(sent.UserPrompt, "{{"), "template should be fully rendered")
}

func TestNewGenerator_Validation(t *testing.T) {
	t.Parallel()

	_, err := NewGenerator(nil, testLogger())
	assert.Error(t, err)
	_, err = NewGenerator(&fakeCompleter{}, nil)
	assert.Error(t, err)
}
