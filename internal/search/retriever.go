// Package search retrieves stored documents similar to a question, by embedding
// distance when possible and by keyword match otherwise.
package search

import (
	"context"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/embedding"
	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/storage"
)

// Store is the document access the retriever needs.
type Store interface {
	NearestDocuments(ctx context.Context, query []float32, k int) ([]*storage.ScoredDocument, error)
	KeywordDocuments(ctx context.Context, query string, limit int) ([]*models.Document, error)
	CountEmbeddedDocuments(ctx context.Context) (int64, error)
}

// Retriever finds the stored documents closest to a query.
type Retriever struct {
	store      Store
	embedder   embedding.Embedder
	snippetLen int
	logger     *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger used to report keyword fallbacks.
func WithLogger(l *zap.Logger) Option {
	return func(r *Retriever) { r.logger = l }
}

// WithSnippetLength sets the snippet length in runes; 0 disables snippets.
func WithSnippetLength(n int) Option {
	return func(r *Retriever) { r.snippetLen = n }
}

// NewRetriever returns a retriever over store. embedder may be nil, in which case every
// search uses keyword matching.
func NewRetriever(store Store, embedder embedding.Embedder, opts ...Option) *Retriever {
	r := &Retriever{
		store:      store,
		embedder:   embedder,
		snippetLen: 200,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Search validates q and runs FindSimilar.
func (r *Retriever) Search(ctx context.Context, q *models.SearchQuery) (*models.SearchResponse, error) {
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return r.FindSimilar(ctx, q.Query, q.Limit, q.Threshold)
}

// FindSimilar returns up to k documents ordered by descending cosine similarity to query,
// dropping those below threshold when it is set. Equal similarities keep insertion order.
//
// When no stored document has an embedding, or the query cannot be embedded, it matches
// the query against titles and content instead and reports models.ModeKeyword. That
// fallback is a normal result, not an error; only storage failures are returned.
func (r *Retriever) FindSimilar(ctx context.Context, query string, k int, threshold *float64) (*models.SearchResponse, error) {
	start := time.Now()
	resp := &models.SearchResponse{Query: query, Mode: models.ModeSemantic, Results: []*models.SearchResult{}}
	if k <= 0 || strings.TrimSpace(query) == "" {
		return resp, nil
	}

	vec, reason := r.queryVector(ctx, query)
	if vec == nil {
		r.logger.Info("falling back to keyword retrieval", zap.String("reason", reason))
		results, err := r.keyword(ctx, query, k)
		if err != nil {
			return nil, err
		}
		resp.Mode = models.ModeKeyword
		resp.Results = results
		resp.QueryTime = time.Since(start).Milliseconds()
		return resp, nil
	}

	scored, err := r.store.NearestDocuments(ctx, vec, k)
	if err != nil {
		return nil, err
	}
	for _, sd := range scored {
		sim := 1 - sd.Distance
		if threshold != nil && sim < *threshold {
			continue
		}
		doc := sd.Document
		resp.Results = append(resp.Results, &models.SearchResult{
			Document:   &doc,
			Similarity: sim,
			Snippet:    Highlight(doc.Content, query, r.snippetLen),
			Rank:       len(resp.Results) + 1,
		})
	}
	resp.QueryTime = time.Since(start).Milliseconds()
	return resp, nil
}

// queryVector embeds query, or returns nil and the reason semantic search is not possible.
func (r *Retriever) queryVector(ctx context.Context, query string) ([]float32, string) {
	if r.embedder == nil {
		return nil, "no embedder configured"
	}
	n, err := r.store.CountEmbeddedDocuments(ctx)
	if err != nil {
		return nil, "count embedded documents: " + err.Error()
	}
	if n == 0 {
		return nil, "no stored document has an embedding"
	}
	vec, err := r.embedder.Embed(ctx, query)
	if err != nil {
		return nil, err.Error()
	}
	return vec, ""
}

// keyword matches the whole query first and, when that finds nothing, each of its
// words of two or more runes. Results are in insertion order.
func (r *Retriever) keyword(ctx context.Context, query string, k int) ([]*models.SearchResult, error) {
	docs, err := r.store.KeywordDocuments(ctx, query, k)
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		seen := map[int64]bool{}
		for _, w := range strings.Fields(query) {
			if utf8.RuneCountInString(w) < 2 {
				continue
			}
			found, err := r.store.KeywordDocuments(ctx, w, k)
			if err != nil {
				return nil, err
			}
			for _, d := range found {
				if !seen[d.ID] {
					seen[d.ID] = true
					docs = append(docs, d)
				}
			}
		}
		sort.Slice(docs, func(i, j int) bool { return docs[i].ID < docs[j].ID })
		if len(docs) > k {
			docs = docs[:k]
		}
	}

	results := make([]*models.SearchResult, 0, len(docs))
	for i, d := range docs {
		results = append(results, &models.SearchResult{
			Document: d,
			Snippet:  Highlight(d.Content, query, r.snippetLen),
			Rank:     i + 1,
		})
	}
	return results, nil
}
