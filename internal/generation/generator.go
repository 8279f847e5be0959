package generation

import (
	"context"

	"github.com/phrazzld/mealplan-api/internal/domain"
)

// Request is a single chat completion request: one system instruction and
// one user message. Implementations always ask for a JSON object response.
type Request struct {
	SystemPrompt string
	UserPrompt   string
}

// Response is the raw text produced by the model together with the token
// accounting the service reported. Usage is nil when the service reported none.
type Response struct {
	Content string
	Usage   *domain.TokenUsage
}

// Completer is the Completion Service used by the meal-plan pipeline.
// This interface serves as a boundary between the application core and
// external AI/LLM services.
type Completer interface {
	// Complete sends the request and returns the model's text.
	//
	// Errors wrap one of the sentinels in errors.go. Implementations retry
	// transient failures internally and only return ErrTransientFailure once
	// their retry budget is exhausted.
	Complete(ctx context.Context, req Request) (*Response, error)
}
