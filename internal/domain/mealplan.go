package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// MealType identifies a meal slot within a day.
type MealType string

// Supported meal types
const (
	MealTypeBreakfast MealType = "breakfast"
	MealTypeLunch     MealType = "lunch"
	MealTypeDinner    MealType = "dinner"
	MealTypeSnack     MealType = "snack"
)

// IsValid reports whether m is one of the supported meal types.
func (m MealType) IsValid() bool {
	switch m {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	default:
		return false
	}
}

// IsCourseMeal reports whether the meal is served as starter, main and dessert.
// Lunch and dinner are course meals; breakfast and snacks are a single recipe.
func (m MealType) IsCourseMeal() bool {
	return m == MealTypeLunch || m == MealTypeDinner
}

// RecipeType identifies the role a recipe plays within a meal.
type RecipeType string

// Supported recipe roles
const (
	RecipeTypeCollation RecipeType = "collation"
	RecipeTypeStarter   RecipeType = "starter"
	RecipeTypeMain      RecipeType = "main"
	RecipeTypeDessert   RecipeType = "dessert"
)

// CourseSequence is the ordered set of recipe roles served at a course meal.
var CourseSequence = []RecipeType{RecipeTypeStarter, RecipeTypeMain, RecipeTypeDessert}

// DietType is the dietary regime a plan must follow.
type DietType string

// Supported diets
const (
	DietStandard   DietType = "standard"
	DietVegetarian DietType = "vegetarian"
	DietVegan      DietType = "vegan"
	DietKeto       DietType = "keto"
	DietPaleo      DietType = "paleo"
	DietGlutenFree DietType = "gluten-free"
	DietDairyFree  DietType = "dairy-free"
)

// Ingredient is a single shopping or recipe ingredient.
type Ingredient struct {
	Label    string  `json:"label"`
	Quantity float64 `json:"quantity"`
	Unit     string  `json:"unit"`
}

// UnmarshalJSON accepts the quantity as a number or a numeric string, which
// models emit interchangeably. Any other quantity, null included, decodes as
// zero.
func (i *Ingredient) UnmarshalJSON(data []byte) error {
	var raw struct {
		Label    string          `json:"label"`
		Quantity json.RawMessage `json:"quantity"`
		Unit     string          `json:"unit"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*i = Ingredient{Label: raw.Label, Quantity: parseQuantity(raw.Quantity), Unit: raw.Unit}
	return nil
}

func parseQuantity(raw json.RawMessage) float64 {
	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if v, err := strconv.ParseFloat(strings.TrimSpace(s), 64); err == nil {
			return v
		}
	}
	return 0
}

// Step is one numbered instruction of a recipe.
type Step struct {
	Number string
	Text   string
}

// Steps is an ordered mapping from step number to instruction text.
// It is encoded as a JSON object whose key order is preserved in both
// directions, which a plain map would not guarantee.
type Steps []Step

// MarshalJSON encodes the steps as a JSON object in slice order.
func (s Steps) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, step := range s {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(step.Number)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(step.Text)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into steps, keeping the key order of the
// document. A JSON null leaves the steps empty.
func (s *Steps) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*s = nil
		return nil
	}

	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("steps: expected JSON object, got %v", tok)
	}

	steps := Steps{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("steps: unexpected key %v", keyTok)
		}

		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return err
		}
		// Models occasionally emit numbers or nulls as instruction values.
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			text = string(raw)
		}
		steps = append(steps, Step{Number: key, Text: text})
	}

	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = steps
	return nil
}

// Recipe is a named dish with its ingredients and preparation steps.
type Recipe struct {
	Name        string       `json:"name"`
	Ingredients []Ingredient `json:"ingredients"`
	Steps       Steps        `json:"steps"`
}

// RecipeItem places a recipe within a meal.
type RecipeItem struct {
	RecipeType RecipeType `json:"recipe_type"`
	Recipe     Recipe     `json:"recipe"`
}

// Meal is one meal slot of a day.
type Meal struct {
	MealType MealType     `json:"meal_type"`
	Recipes  []RecipeItem `json:"recipes"`
}

// Day is a calendar date (YYYY-MM-DD) and its meals.
type Day struct {
	Date  string `json:"date"`
	Meals []Meal `json:"meals"`
}

// MealPlan is the output of plan generation. ShoppingList stays empty until
// the aggregation stage fills it.
type MealPlan struct {
	Days         []Day        `json:"days"`
	ShoppingList []Ingredient `json:"shopping_list"`
}

// Ingredients flattens every recipe ingredient of the plan in
// day, meal, recipe order.
func (p *MealPlan) Ingredients() []Ingredient {
	var all []Ingredient
	for _, day := range p.Days {
		for _, meal := range day.Meals {
			for _, item := range meal.Recipes {
				all = append(all, item.Recipe.Ingredients...)
			}
		}
	}
	return all
}
