package openai

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/phrazzld/mealplan-api/internal/config"
	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, srv *httptest.Server, maxRetries int) *Client {
	t.Helper()
	c, err := NewClient(
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		config.LLMConfig{
			Provider:              "openai",
			OpenAIAPIKey:          "sk-test",
			OpenAIBaseURL:         srv.URL + "/v1/",
			ModelName:             "gpt-4.1-nano",
			Temperature:           0.7,
			MaxTokens:             2048,
			MaxRetries:            maxRetries,
			RetryDelaySeconds:     1,
			RequestTimeoutSeconds: 5,
		},
		srv.Client(),
	)
	require.NoError(t, err)
	c.retry.BaseDelay = 1 // nanosecond backoff keeps retry tests fast
	return c
}

func TestClient_Complete(t *testing.T) {
	t.Parallel()

	var got chatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"choices": [{"message": {"content": "{\"days\": []}"}, "finish_reason": "stop"}],
			"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
		}`)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, 0)
	resp, err := c.Complete(context.Background(), generation.Request{
		SystemPrompt: "system",
		UserPrompt:   "user",
	})
	require.NoError(t, err)

	assert.Equal(t, `{"days": []}`, resp.Content)
	assert.Equal(t, &domain.TokenUsage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}, resp.Usage)

	assert.Equal(t, "gpt-4.1-nano", got.Model)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	assert.Equal(t, 2048, got.MaxTokens)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, chatMessage{Role: "system", Content: "system"}, got.Messages[0])
	assert.Equal(t, chatMessage{Role: "user", Content: "user"}, got.Messages[1])
}

func TestClient_CompleteWithoutUsage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"choices": [{"message": {"content": "[]"}}]}`)
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv, 0).Complete(context.Background(), generation.Request{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "[]", resp.Content)
	assert.Nil(t, resp.Usage)
}

func TestClient_RetriesTransientErrors(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		switch calls.Add(1) {
		case 1:
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = io.WriteString(w, `{"error": {"type": "rate_limit", "message": "slow down"}}`)
		case 2:
			w.WriteHeader(http.StatusBadGateway)
		default:
			_, _ = io.WriteString(w, `{"choices": [{"message": {"content": "{}"}}]}`)
		}
	}))
	defer srv.Close()

	resp, err := newTestClient(t, srv, 3).Complete(context.Background(), generation.Request{UserPrompt: "x"})
	require.NoError(t, err)
	assert.Equal(t, "{}", resp.Content)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_CompleteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		status    int
		body      string
		wantErr   error
		wantCalls int32
	}{
		{"retries exhausted", http.StatusServiceUnavailable, `overloaded`, generation.ErrTransientFailure, 3},
		{"unauthorized", http.StatusUnauthorized, `{"error": {"message": "bad key"}}`, generation.ErrInvalidConfig, 1},
		{"empty choices", http.StatusOK, `{"choices": []}`, generation.ErrEmptyResponse, 1},
		{"blank content", http.StatusOK, `{"choices": [{"message": {"content": ""}}]}`, generation.ErrEmptyResponse, 1},
		{"content filter", http.StatusOK, `{"choices": [{"message": {"content": "x"}, "finish_reason": "content_filter"}]}`, generation.ErrContentBlocked, 1},
		{"undecodable body", http.StatusOK, `<html>`, generation.ErrInvalidResponse, 1},
		{"error envelope", http.StatusOK, `{"error": {"type": "server_error", "message": "oops"}}`, generation.ErrInvalidResponse, 1},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			var calls atomic.Int32
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				calls.Add(1)
				w.WriteHeader(tc.status)
				_, _ = io.WriteString(w, tc.body)
			}))
			defer srv.Close()

			resp, err := newTestClient(t, srv, 2).Complete(context.Background(), generation.Request{UserPrompt: "x"})
			assert.Nil(t, resp)
			assert.ErrorIs(t, err, tc.wantErr)
			assert.Equal(t, tc.wantCalls, calls.Load())
		})
	}
}

func TestClient_BadRequestIsPermanent(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error": {"message": "max_tokens is too large"}}`)
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, 3).Complete(context.Background(), generation.Request{UserPrompt: "x"})
	require.Error(t, err)
	assert.False(t, generation.IsTransient(err))
	assert.Contains(t, err.Error(), "max_tokens is too large")
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := NewClient(logger, config.LLMConfig{ModelName: "m"}, nil)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = NewClient(logger, config.LLMConfig{OpenAIAPIKey: "k"}, nil)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	c, err := NewClient(logger, config.LLMConfig{OpenAIAPIKey: "k", ModelName: "m"}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://api.openai.com/v1", c.baseURL)
}
