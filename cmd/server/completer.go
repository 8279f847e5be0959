package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/phrazzld/mealplan-api/internal/config"
	"github.com/phrazzld/mealplan-api/internal/generation"
	"github.com/phrazzld/mealplan-api/internal/platform/gemini"
	"github.com/phrazzld/mealplan-api/internal/platform/openai"
)

// newCompleter creates the completion client for the configured provider.
func newCompleter(ctx context.Context, cfg config.LLMConfig, logger *slog.Logger) (generation.Completer, error) {
	var (
		completer generation.Completer
		err       error
	)

	switch cfg.Provider {
	case "openai":
		completer, err = openai.NewClient(logger, cfg, nil)
	case "gemini":
		completer, err = gemini.NewClient(ctx, logger, cfg)
	default:
		return nil, fmt.Errorf("%w: unknown llm provider %q", generation.ErrInvalidConfig, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize %s completer: %w", cfg.Provider, err)
	}

	logger.Info("LLM completer initialized", "provider", cfg.Provider, "model", cfg.ModelName)
	return completer, nil
}
