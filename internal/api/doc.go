// Package api handles incoming HTTP requests for the meal-plan endpoints,
// request validation and response formatting. It translates HTTP concerns
// into calls on the meal plan service and maps service errors back to
// status codes without leaking internal details.
package api
