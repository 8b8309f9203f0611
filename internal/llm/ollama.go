package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// Ollama generates completions with a local Ollama server.
type Ollama struct {
	endpoint    string
	model       string
	temperature float64
	client      *http.Client
}

// NewOllama creates an Ollama client. Empty endpoint and model fall back to
// http://localhost:11434 and llama3.
func NewOllama(endpoint, model string, temperature float64, timeout time.Duration) *Ollama {
	if endpoint == "" {
		endpoint = "http://localhost:11434"
	}
	if model == "" {
		model = "llama3"
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Ollama{
		endpoint:    endpoint,
		model:       model,
		temperature: temperature,
		client:      &http.Client{Timeout: timeout},
	}
}

type ollamaGenerateRequest struct {
	Model   string                 `json:"model"`
	Prompt  string                 `json:"prompt"`
	Stream  bool                   `json:"stream"`
	Options map[string]interface{} `json:"options,omitempty"`
}

// Generate posts prompt to /api/generate without streaming.
func (o *Ollama) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(ollamaGenerateRequest{
		Model:   o.model,
		Prompt:  prompt,
		Options: map[string]interface{}{"temperature": o.temperature},
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint+"/api/generate", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return "", unavailable("ollama", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 16<<20))
	if err != nil {
		return "", unavailable("ollama", fmt.Errorf("failed to read response: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			msg = string(bytes.TrimSpace(data))
		}
		return "", unavailable("ollama", fmt.Errorf("status %d: %s", resp.StatusCode, msg))
	}
	if !gjson.ValidBytes(data) {
		return "", unavailable("ollama", fmt.Errorf("invalid JSON response"))
	}
	out := gjson.GetBytes(data, "response")
	if !out.Exists() {
		return "", unavailable("ollama", fmt.Errorf("response field missing for model %s", o.model))
	}
	return out.String(), nil
}
