package mocks

import (
	"context"
	"sync"

	"github.com/phrazzld/mealplan-api/internal/generation"
)

// MockCompleter implements generation.Completer for testing.
type MockCompleter struct {
	// CompleteFn allows test cases to mock the Complete behavior
	CompleteFn func(ctx context.Context, req generation.Request) (*generation.Response, error)

	// Default response values
	Response *generation.Response
	Err      error

	mu       sync.Mutex
	requests []generation.Request
}

// Complete implements the generation.Completer interface
func (m *MockCompleter) Complete(ctx context.Context, req generation.Request) (*generation.Response, error) {
	m.mu.Lock()
	m.requests = append(m.requests, req)
	m.mu.Unlock()

	if m.CompleteFn != nil {
		return m.CompleteFn(ctx, req)
	}
	return m.Response, m.Err
}

// Requests returns a copy of every request received so far.
func (m *MockCompleter) Requests() []generation.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]generation.Request, len(m.requests))
	copy(out, m.requests)
	return out
}

// CallCount returns the number of Complete calls.
func (m *MockCompleter) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

// NewMockCompleterWithContent creates a MockCompleter that always answers with content.
func NewMockCompleterWithContent(content string) *MockCompleter {
	return &MockCompleter{Response: &generation.Response{Content: content}}
}

// NewMockCompleterWithError creates a MockCompleter that always fails with err.
func NewMockCompleterWithError(err error) *MockCompleter {
	return &MockCompleter{Err: err}
}
