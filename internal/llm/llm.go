// Package llm turns prompts into model completions.
package llm

import (
	"context"
	"fmt"

	"github.com/hyperjump/shitsumon/internal/config"
	"github.com/hyperjump/shitsumon/internal/models"
)

// Client generates a completion for a prompt.
type Client interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// New returns the client selected by cfg.Provider.
func New(ctx context.Context, cfg config.LLMConfig) (Client, error) {
	switch cfg.Provider {
	case "ollama":
		return NewOllama(cfg.Endpoint, cfg.Model, cfg.Temperature, cfg.Timeout), nil
	case "genai":
		return NewGenAI(ctx, cfg.APIKey, cfg.Model, cfg.Temperature)
	default:
		return nil, models.NewConfigurationError("llm.provider", "unknown provider %q", cfg.Provider)
	}
}

func unavailable(provider string, err error) error {
	return fmt.Errorf("%w: %s: %w", models.ErrLLMUnavailable, provider, err)
}
