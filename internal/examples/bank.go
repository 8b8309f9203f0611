// Package examples keeps the bank of worked question and SQL pairs that are shown to the
// language model as few-shot examples, and tracks how well each one performs.
package examples

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/embedding"
	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/storage"
)

// Bank stores examples and selects the ones closest to a question.
type Bank struct {
	store    storage.ExampleStore
	embedder embedding.Embedder
	logger   *zap.Logger
}

// Option configures a Bank.
type Option func(*Bank)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bank) { b.logger = l }
}

// NewBank returns a bank over store. embedder may be nil; similarity search then always
// uses keyword matching.
func NewBank(store storage.ExampleStore, embedder embedding.Embedder, opts ...Option) *Bank {
	b := &Bank{store: store, embedder: embedder, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// embed returns the question's embedding, or nil when it cannot be computed.
func (b *Bank) embed(ctx context.Context, question string) models.Vector {
	if b.embedder == nil {
		return nil
	}
	v, err := b.embedder.Embed(ctx, question)
	if err != nil {
		b.logger.Warn("storing example without embedding", zap.String("question", question), zap.Error(err))
		return nil
	}
	return v
}

// Add validates ex, embeds its question and stores it.
func (b *Bank) Add(ctx context.Context, ex *models.QueryExample) error {
	if err := ex.Validate(); err != nil {
		return err
	}
	ex.Embedding = b.embed(ctx, ex.NaturalLanguageQuery)
	return b.store.CreateExample(ctx, ex)
}

// BulkAdd adds every valid example and returns how many were stored. Invalid examples are
// logged and skipped.
func (b *Bank) BulkAdd(ctx context.Context, exs []*models.QueryExample) (int, error) {
	n := 0
	for _, ex := range exs {
		if err := ex.Validate(); err != nil {
			b.logger.Warn("skipping invalid example", zap.String("question", ex.NaturalLanguageQuery), zap.Error(err))
			continue
		}
		if err := b.Add(ctx, ex); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// Get returns an example by ID.
func (b *Bank) Get(ctx context.Context, id int64) (*models.QueryExample, error) {
	return b.store.GetExample(ctx, id)
}

// List returns every example.
func (b *Bank) List(ctx context.Context) ([]*models.QueryExample, error) {
	return b.store.ListExamples(ctx)
}

// Update replaces ex and recomputes its embedding.
func (b *Bank) Update(ctx context.Context, ex *models.QueryExample) error {
	if err := ex.Validate(); err != nil {
		return err
	}
	ex.Embedding = b.embed(ctx, ex.NaturalLanguageQuery)
	return b.store.UpdateExample(ctx, ex)
}

// Delete removes an example.
func (b *Bank) Delete(ctx context.Context, id int64) error {
	return b.store.DeleteExample(ctx, id)
}

// Search filters by keyword and category, best performing first.
func (b *Bank) Search(ctx context.Context, keyword, category string, limit int) ([]*models.QueryExample, error) {
	return b.store.SearchExamples(ctx, keyword, category, limit)
}

// Top returns the n best performing examples, optionally within category.
func (b *Bank) Top(ctx context.Context, category string, n int) ([]*models.QueryExample, error) {
	return b.store.TopExamples(ctx, category, n)
}

// Categories lists the categories in use.
func (b *Bank) Categories(ctx context.Context) ([]string, error) {
	return b.store.ExampleCategories(ctx)
}

// RecordOutcome folds one execution outcome into the example's success rate.
func (b *Bank) RecordOutcome(ctx context.Context, id int64, success bool) (*models.QueryExample, error) {
	return b.store.RecordExampleOutcome(ctx, id, success)
}

// FindSimilar returns up to k examples whose questions are closest to question, dropping
// those below threshold. Without embeddings it falls back to keyword matching, reported by
// models.ModeKeyword, and every similarity is zero.
func (b *Bank) FindSimilar(ctx context.Context, question string, k int, threshold float64) ([]models.ScoredExample, string, error) {
	if k <= 0 || strings.TrimSpace(question) == "" {
		return []models.ScoredExample{}, models.ModeSemantic, nil
	}

	vec, reason := b.queryVector(ctx, question)
	if vec == nil {
		b.logger.Debug("example search falling back to keywords", zap.String("reason", reason))
		out, err := b.keyword(ctx, question, k)
		return out, models.ModeKeyword, err
	}

	scored, err := b.store.NearestExamples(ctx, vec, k)
	if err != nil {
		return nil, "", err
	}
	out := make([]models.ScoredExample, 0, len(scored))
	for _, s := range scored {
		sim := 1 - s.Distance
		if sim < threshold {
			continue
		}
		ex := s.QueryExample
		out = append(out, models.ScoredExample{Example: &ex, Similarity: sim})
	}
	return out, models.ModeSemantic, nil
}

func (b *Bank) queryVector(ctx context.Context, question string) ([]float32, string) {
	if b.embedder == nil {
		return nil, "no embedder configured"
	}
	n, err := b.store.CountEmbeddedExamples(ctx)
	if err != nil {
		return nil, err.Error()
	}
	if n == 0 {
		return nil, "no example has an embedding"
	}
	v, err := b.embedder.Embed(ctx, question)
	if err != nil {
		return nil, err.Error()
	}
	return v, ""
}

// keyword matches the whole question, then each word of two or more runes.
func (b *Bank) keyword(ctx context.Context, question string, k int) ([]models.ScoredExample, error) {
	found, err := b.store.SearchExamples(ctx, question, "", k)
	if err != nil {
		return nil, err
	}
	if len(found) == 0 {
		seen := map[int64]bool{}
		for _, w := range strings.Fields(question) {
			if utf8.RuneCountInString(w) < 2 {
				continue
			}
			more, err := b.store.SearchExamples(ctx, w, "", k)
			if err != nil {
				return nil, err
			}
			for _, ex := range more {
				if !seen[ex.ID] && len(found) < k {
					seen[ex.ID] = true
					found = append(found, ex)
				}
			}
		}
	}
	out := make([]models.ScoredExample, len(found))
	for i, ex := range found {
		out[i] = models.ScoredExample{Example: ex}
	}
	return out, nil
}

// Reembed computes embeddings for every example that lacks one and returns how many were
// filled. It stops at the first embedding failure.
func (b *Bank) Reembed(ctx context.Context) (int, error) {
	if b.embedder == nil {
		return 0, errors.New("no embedder configured")
	}
	all, err := b.store.ListExamples(ctx)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, ex := range all {
		if len(ex.Embedding) > 0 {
			continue
		}
		v, err := b.embedder.Embed(ctx, ex.NaturalLanguageQuery)
		if err != nil {
			return n, fmt.Errorf("failed to embed example %d: %w", ex.ID, err)
		}
		if err := b.store.SetExampleEmbedding(ctx, ex.ID, v); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

// FormatFewShot renders examples for the prompt. It returns "" for no examples.
func FormatFewShot(exs []models.ScoredExample) string {
	if len(exs) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Examples:\n")
	for i, s := range exs {
		fmt.Fprintf(&sb, "\nExample %d:\nQuestion: %s\nSQL: %s\n", i+1,
			s.Example.NaturalLanguageQuery, strings.TrimSpace(s.Example.SQLQuery))
	}
	return sb.String()
}
