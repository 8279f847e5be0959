// Package service contains the application-specific use cases. Its
// MealPlanService is the task orchestrator: it creates tasks, hands their
// pipelines to the background runner and answers status and long-poll
// queries.
//
// The service layer depends on domain entities and the store interfaces,
// never on a specific infrastructure implementation. The API layer maps the
// sentinel errors declared here to HTTP status codes.
package service
