package embedding

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAIEmbedder generates embeddings with Google's Gemini API.
type GenAIEmbedder struct {
	client     *genai.Client
	model      string
	dimensions int
	taskType   string
}

// NewGenAIEmbedder creates a Gemini embedder. Model defaults to gemini-embedding-001.
func NewGenAIEmbedder(ctx context.Context, apiKey, model, taskType string, dimensions int) (*GenAIEmbedder, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("genai api key is required")
	}
	if model == "" {
		model = "gemini-embedding-001"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAIEmbedder{
		client:     client,
		model:      model,
		dimensions: dimensions,
		taskType:   parseTaskType(taskType),
	}, nil
}

// parseTaskType maps a configured task type to one the API accepts.
func parseTaskType(s string) string {
	switch s {
	case "RETRIEVAL_DOCUMENT", "RETRIEVAL_QUERY", "QUESTION_ANSWERING",
		"CLASSIFICATION", "CLUSTERING", "SEMANTIC_SIMILARITY":
		return s
	default:
		return "SEMANTIC_SIMILARITY"
	}
}

// Embed generates an embedding for a single text.
func (e *GenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch sends all texts in one EmbedContent call.
func (e *GenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	contents := make([]*genai.Content, len(texts))
	for i, text := range texts {
		contents[i] = genai.NewContentFromText(text, genai.RoleUser)
	}
	cfg := &genai.EmbedContentConfig{TaskType: e.taskType}
	if e.dimensions > 0 {
		dims := int32(e.dimensions)
		cfg.OutputDimensionality = &dims
	}
	result, err := e.client.Models.EmbedContent(ctx, e.model, contents, cfg)
	if err != nil {
		return nil, unavailable("genai", err)
	}
	if len(result.Embeddings) != len(texts) {
		return nil, unavailable("genai", fmt.Errorf("got %d embeddings for %d texts", len(result.Embeddings), len(texts)))
	}
	out := make([][]float32, len(result.Embeddings))
	for i, emb := range result.Embeddings {
		out[i] = emb.Values
	}
	return out, nil
}

// Dimensions returns the configured output dimension.
func (e *GenAIEmbedder) Dimensions() int {
	return e.dimensions
}

// Close is a no-op; the genai client has nothing to release.
func (e *GenAIEmbedder) Close() error {
	return nil
}
