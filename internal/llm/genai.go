package llm

import (
	"context"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// GenAI generates completions with Google's Gemini API.
type GenAI struct {
	client      *genai.Client
	model       string
	temperature float32
}

// NewGenAI creates a Gemini client. Model defaults to gemini-2.5-flash.
func NewGenAI(ctx context.Context, apiKey, model string, temperature float64) (*GenAI, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai api key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAI{client: client, model: model, temperature: float32(temperature)}, nil
}

// Generate sends prompt as a single user turn.
func (g *GenAI) Generate(ctx context.Context, prompt string) (string, error) {
	cfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(g.temperature)}
	result, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), cfg)
	if err != nil {
		return "", unavailable("genai", err)
	}
	text := result.Text()
	if strings.TrimSpace(text) == "" {
		return "", unavailable("genai", fmt.Errorf("empty response from %s", g.model))
	}
	return text, nil
}
