// Package openai implements generation.Completer over the OpenAI-compatible
// chat completions HTTP API. Any endpoint that speaks /chat/completions with
// JSON response_format can be targeted through llm.openai_base_url.
package openai
