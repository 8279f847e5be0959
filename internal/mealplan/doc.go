// Package mealplan holds the two LLM-backed pipeline stages: the Generator,
// which turns a MealPlanRequest into a structurally checked MealPlan, and
// the Aggregator, which consolidates the plan's ingredients into a shopping
// list and never fails.
package mealplan
