// Package task runs meal-plan pipelines in the background. TaskRunner spawns
// one goroutine per submitted task, tracks it for graceful shutdown and
// periodically fails tasks that stopped making progress. MealPlanTask is the
// pipeline itself: plan generation, shopping-list aggregation and the status
// writes between them.
package task
