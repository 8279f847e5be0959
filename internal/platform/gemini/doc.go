// Package gemini provides an implementation of the generation.Completer interface
// backed by Google's Gemini API.
//
// This package is an infrastructure adapter: it translates completion requests
// into google.golang.org/genai calls, asks for JSON output, maps safety blocks
// and API failures onto the generation error taxonomy, and retries transient
// failures with exponential backoff.
package gemini
