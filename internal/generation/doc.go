// Package generation defines the boundary between the application core and
// external LLM completion services. The meal-plan pipeline talks to a
// Completer; concrete implementations for OpenAI-compatible endpoints and
// Gemini live under internal/platform.
//
// The package also owns the error taxonomy shared by all completers and the
// retry helper used to ride out transient failures.
package generation
