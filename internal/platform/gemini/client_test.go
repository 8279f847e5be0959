package gemini

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"

	"github.com/phrazzld/mealplan-api/internal/config"
	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/generation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"
)

type fakeModels struct {
	calls   int
	lastCfg *genai.GenerateContentConfig
	lastIn  []*genai.Content
	respond func(call int) (*genai.GenerateContentResponse, error)
}

func (f *fakeModels) GenerateContent(
	_ context.Context,
	_ string,
	contents []*genai.Content,
	cfg *genai.GenerateContentConfig,
) (*genai.GenerateContentResponse, error) {
	f.calls++
	f.lastCfg = cfg
	f.lastIn = contents
	return f.respond(f.calls)
}

func testConfig() config.LLMConfig {
	return config.LLMConfig{
		Provider:              "gemini",
		GeminiAPIKey:          "test-key",
		ModelName:             "gemini-2.0-flash",
		Temperature:           0.7,
		MaxTokens:             1024,
		MaxRetries:            2,
		RetryDelaySeconds:     1,
		RequestTimeoutSeconds: 5,
	}
}

func newTestClient(t *testing.T, models *fakeModels) *Client {
	t.Helper()
	c, err := newClient(slog.New(slog.NewTextHandler(io.Discard, nil)), testConfig(), models)
	require.NoError(t, err)
	return c
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content:      &genai.Content{Parts: []*genai.Part{{Text: text[:len(text)/2]}, {Text: text[len(text)/2:]}}},
			FinishReason: genai.FinishReasonStop,
		}},
		UsageMetadata: &genai.GenerateContentResponseUsageMetadata{
			PromptTokenCount:     12,
			CandidatesTokenCount: 30,
			TotalTokenCount:      42,
		},
	}
}

func TestClient_Complete(t *testing.T) {
	t.Parallel()

	models := &fakeModels{respond: func(int) (*genai.GenerateContentResponse, error) {
		return textResponse(`{"days":[]}`), nil
	}}
	c := newTestClient(t, models)

	resp, err := c.Complete(context.Background(), generation.Request{
		SystemPrompt: "be a chef",
		UserPrompt:   "plan my week",
	})
	require.NoError(t, err)

	assert.Equal(t, `{"days":[]}`, resp.Content)
	assert.Equal(t, &domain.TokenUsage{PromptTokens: 12, CompletionTokens: 30, TotalTokens: 42}, resp.Usage)

	require.NotNil(t, models.lastCfg)
	assert.Equal(t, "application/json", models.lastCfg.ResponseMIMEType)
	assert.Equal(t, int32(1024), models.lastCfg.MaxOutputTokens)
	require.NotNil(t, models.lastCfg.SystemInstruction)
	assert.Equal(t, "be a chef", models.lastCfg.SystemInstruction.Parts[0].Text)
	require.Len(t, models.lastIn, 1)
	assert.Equal(t, "user", models.lastIn[0].Role)
	assert.Equal(t, "plan my week", models.lastIn[0].Parts[0].Text)
}

func TestClient_CompleteErrors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		respond   func(call int) (*genai.GenerateContentResponse, error)
		wantErr   error
		wantCalls int
	}{
		{
			name: "safety block",
			respond: func(int) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{FinishReason: genai.FinishReasonSafety}}}, nil
			},
			wantErr:   generation.ErrContentBlocked,
			wantCalls: 1,
		},
		{
			name: "prompt blocked",
			respond: func(int) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{
					PromptFeedback: &genai.GenerateContentResponsePromptFeedback{BlockReason: genai.BlockedReasonSafety},
				}, nil
			},
			wantErr:   generation.ErrContentBlocked,
			wantCalls: 1,
		},
		{
			name: "no candidates",
			respond: func(int) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{}, nil
			},
			wantErr:   generation.ErrEmptyResponse,
			wantCalls: 1,
		},
		{
			name: "blank text",
			respond: func(int) (*genai.GenerateContentResponse, error) {
				return &genai.GenerateContentResponse{Candidates: []*genai.Candidate{{
					Content: &genai.Content{Parts: []*genai.Part{{Text: "  "}}},
				}}}, nil
			},
			wantErr:   generation.ErrEmptyResponse,
			wantCalls: 1,
		},
		{
			name: "client error is permanent",
			respond: func(int) (*genai.GenerateContentResponse, error) {
				return nil, genai.APIError{Code: http.StatusBadRequest, Message: "bad model"}
			},
			wantErr:   genai.APIError{Code: http.StatusBadRequest, Message: "bad model"},
			wantCalls: 1,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			models := &fakeModels{respond: tc.respond}
			c := newTestClient(t, models)

			resp, err := c.Complete(context.Background(), generation.Request{UserPrompt: "x"})
			assert.Nil(t, resp)
			require.Error(t, err)
			if apiErr, ok := tc.wantErr.(genai.APIError); ok {
				var got genai.APIError
				require.True(t, errors.As(err, &got))
				assert.Equal(t, apiErr.Code, got.Code)
				assert.False(t, generation.IsTransient(err))
			} else {
				assert.ErrorIs(t, err, tc.wantErr)
			}
			assert.Equal(t, tc.wantCalls, models.calls)
		})
	}
}

func TestClient_ClassifyError(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, &fakeModels{})

	assert.True(t, generation.IsTransient(c.classifyError(context.Background(), genai.APIError{Code: http.StatusTooManyRequests})))
	assert.True(t, generation.IsTransient(c.classifyError(context.Background(), genai.APIError{Code: http.StatusServiceUnavailable})))
	assert.True(t, generation.IsTransient(c.classifyError(context.Background(), errors.New("connection reset by peer"))))
	assert.False(t, generation.IsTransient(c.classifyError(context.Background(), genai.APIError{Code: http.StatusForbidden})))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := c.classifyError(ctx, errors.New("boom"))
	assert.False(t, generation.IsTransient(err))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClient_Validation(t *testing.T) {
	t.Parallel()

	cfg := testConfig()
	cfg.GeminiAPIKey = ""
	_, err := NewClient(context.Background(), slog.New(slog.NewTextHandler(io.Discard, nil)), cfg)
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	cfg = testConfig()
	cfg.ModelName = ""
	_, err = newClient(slog.New(slog.NewTextHandler(io.Discard, nil)), cfg, &fakeModels{})
	assert.ErrorIs(t, err, generation.ErrInvalidConfig)

	_, err = newClient(nil, testConfig(), &fakeModels{})
	assert.Error(t, err)
}
