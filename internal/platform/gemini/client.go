package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/phrazzld/mealplan-api/internal/config"
	"github.com/phrazzld/mealplan-api/internal/domain"
	"github.com/phrazzld/mealplan-api/internal/generation"
	"google.golang.org/genai"
)

// contentGenerator is the subset of *genai.Models the client uses.
type contentGenerator interface {
	GenerateContent(
		ctx context.Context,
		model string,
		contents []*genai.Content,
		config *genai.GenerateContentConfig,
	) (*genai.GenerateContentResponse, error)
}

// Client implements generation.Completer using the Gemini API.
type Client struct {
	logger      *slog.Logger
	models      contentGenerator
	model       string
	temperature float32
	maxTokens   int32
	timeout     time.Duration
	retry       generation.RetryPolicy
}

var _ generation.Completer = (*Client)(nil)

// NewClient creates a Gemini completer from the LLM configuration.
func NewClient(ctx context.Context, logger *slog.Logger, cfg config.LLMConfig) (*Client, error) {
	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("%w: gemini API key cannot be empty", generation.ErrInvalidConfig)
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create Gemini client: %v", generation.ErrInvalidConfig, err)
	}

	return newClient(logger, cfg, client.Models)
}

func newClient(logger *slog.Logger, cfg config.LLMConfig, models contentGenerator) (*Client, error) {
	if logger == nil {
		return nil, errors.New("logger cannot be nil")
	}
	if cfg.ModelName == "" {
		return nil, fmt.Errorf("%w: model name cannot be empty", generation.ErrInvalidConfig)
	}

	return &Client{
		logger:      logger.With("component", "gemini_client", "model", cfg.ModelName),
		models:      models,
		model:       cfg.ModelName,
		temperature: float32(cfg.Temperature),
		maxTokens:   int32(cfg.MaxTokens),
		timeout:     cfg.RequestTimeout(),
		retry:       generation.NewRetryPolicy(cfg.MaxRetries, cfg.RetryDelay()),
	}, nil
}

// Complete sends the request to Gemini, retrying transient failures.
func (c *Client) Complete(ctx context.Context, req generation.Request) (*generation.Response, error) {
	return c.retry.Do(ctx, c.logger, func(ctx context.Context) (*generation.Response, error) {
		return c.generate(ctx, req)
	})
}

func (c *Client) generate(ctx context.Context, req generation.Request) (*generation.Response, error) {
	callCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	cfg := &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
		Temperature:      genai.Ptr(c.temperature),
	}
	if c.maxTokens > 0 {
		cfg.MaxOutputTokens = c.maxTokens
	}
	if req.SystemPrompt != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: req.SystemPrompt}}}
	}
	contents := []*genai.Content{{
		Role:  "user",
		Parts: []*genai.Part{{Text: req.UserPrompt}},
	}}

	start := time.Now()
	resp, err := c.models.GenerateContent(callCtx, c.model, contents, cfg)
	if err != nil {
		return nil, c.classifyError(ctx, err)
	}

	c.logger.DebugContext(ctx, "Gemini API call returned",
		"duration_ms", time.Since(start).Milliseconds())

	return parseResponse(resp)
}

// classifyError maps a failed call onto the generation error taxonomy.
// Rate limits, server errors, timeouts, and transport errors are transient.
func (c *Client) classifyError(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return fmt.Errorf("gemini request cancelled: %w", ctx.Err())
	}

	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		if apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= http.StatusInternalServerError {
			return fmt.Errorf("%w: gemini returned %d: %v", generation.ErrTransientFailure, apiErr.Code, err)
		}
		return fmt.Errorf("gemini request rejected with status %d: %w", apiErr.Code, err)
	}

	return fmt.Errorf("%w: %v", generation.ErrTransientFailure, err)
}

func parseResponse(resp *genai.GenerateContentResponse) (*generation.Response, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: nil response", generation.ErrEmptyResponse)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: prompt blocked (%s)", generation.ErrContentBlocked, resp.PromptFeedback.BlockReason)
	}
	if len(resp.Candidates) == 0 {
		return nil, fmt.Errorf("%w: no candidates", generation.ErrEmptyResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.FinishReason == genai.FinishReasonSafety {
		return nil, fmt.Errorf("%w: content blocked by safety filters", generation.ErrContentBlocked)
	}
	if candidate.Content == nil {
		return nil, fmt.Errorf("%w: empty content in response", generation.ErrEmptyResponse)
	}

	var text strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil {
			text.WriteString(part.Text)
		}
	}
	if strings.TrimSpace(text.String()) == "" {
		return nil, fmt.Errorf("%w: no text in response", generation.ErrEmptyResponse)
	}

	out := &generation.Response{Content: text.String()}
	if u := resp.UsageMetadata; u != nil {
		out.Usage = &domain.TokenUsage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
		}
	}
	return out, nil
}
