package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/shitsumon/internal/models"
)

const exampleColumns = `id, natural_language_query, sql_query, query_category, difficulty, tags,
	success_rate, usage_count, embedding, created_at, updated_at`

// ScoredExample is a query example with its cosine distance to a query vector.
type ScoredExample struct {
	models.QueryExample
	Distance float64 `db:"distance"`
}

// CreateExample inserts ex and sets its ID and timestamps.
func (s *Store) CreateExample(ctx context.Context, ex *models.QueryExample) error {
	now := time.Now().UTC()
	ex.CreatedAt, ex.UpdatedAt = now, now
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO query_examples (natural_language_query, sql_query, query_category, difficulty, tags,
			success_rate, usage_count, embedding, created_at, updated_at)
		 VALUES (:natural_language_query, :sql_query, :query_category, :difficulty, :tags,
			:success_rate, :usage_count, :embedding, :created_at, :updated_at)`, ex)
	if err != nil {
		return fmt.Errorf("failed to insert example: %w", err)
	}
	ex.ID, err = res.LastInsertId()
	return err
}

// GetExample returns an example by ID.
func (s *Store) GetExample(ctx context.Context, id int64) (*models.QueryExample, error) {
	var ex models.QueryExample
	if err := s.db.GetContext(ctx, &ex, `SELECT `+exampleColumns+` FROM query_examples WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "example", id)
	}
	return &ex, nil
}

// ListExamples returns every example in ID order.
func (s *Store) ListExamples(ctx context.Context) ([]*models.QueryExample, error) {
	var out []*models.QueryExample
	if err := s.db.SelectContext(ctx, &out, `SELECT `+exampleColumns+` FROM query_examples ORDER BY id`); err != nil {
		return nil, fmt.Errorf("failed to list examples: %w", err)
	}
	return out, nil
}

// UpdateExample replaces every mutable field of ex.
func (s *Store) UpdateExample(ctx context.Context, ex *models.QueryExample) error {
	ex.UpdatedAt = time.Now().UTC()
	res, err := s.db.NamedExecContext(ctx,
		`UPDATE query_examples SET natural_language_query = :natural_language_query, sql_query = :sql_query,
			query_category = :query_category, difficulty = :difficulty, tags = :tags,
			success_rate = :success_rate, usage_count = :usage_count, embedding = :embedding,
			updated_at = :updated_at
		 WHERE id = :id`, ex)
	if err != nil {
		return fmt.Errorf("failed to update example: %w", err)
	}
	return requireAffected(res, "example", ex.ID)
}

// DeleteExample removes an example by ID.
func (s *Store) DeleteExample(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM query_examples WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete example: %w", err)
	}
	return requireAffected(res, "example", id)
}

// SearchExamples filters by substring of the question or SQL and by category, ordered by
// success rate then usage. Empty filters match everything.
func (s *Store) SearchExamples(ctx context.Context, keyword, category string, limit int) ([]*models.QueryExample, error) {
	if limit <= 0 {
		limit = 10
	}
	var (
		conds []string
		args  []interface{}
	)
	if kw := strings.TrimSpace(keyword); kw != "" {
		p := "%" + escapeLike(strings.ToLower(kw)) + "%"
		conds = append(conds, `(LOWER(natural_language_query) LIKE ? ESCAPE '\' OR LOWER(sql_query) LIKE ? ESCAPE '\')`)
		args = append(args, p, p)
	}
	if category != "" {
		conds = append(conds, `query_category = ?`)
		args = append(args, category)
	}
	q := `SELECT ` + exampleColumns + ` FROM query_examples`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY success_rate DESC, usage_count DESC, id ASC LIMIT ?`
	args = append(args, limit)

	var out []*models.QueryExample
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("failed to search examples: %w", err)
	}
	return out, nil
}

// NearestExamples returns up to k embedded examples by ascending cosine distance.
func (s *Store) NearestExamples(ctx context.Context, query []float32, k int) ([]*ScoredExample, error) {
	if k <= 0 {
		return nil, nil
	}
	var out []*ScoredExample
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+exampleColumns+`, distance FROM (
			SELECT `+exampleColumns+`, vec_distance_cosine(embedding, ?) AS distance
			FROM query_examples WHERE embedding IS NOT NULL
		) WHERE distance IS NOT NULL
		ORDER BY distance ASC, id ASC
		LIMIT ?`, models.EncodeVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search examples by vector: %w", err)
	}
	return out, nil
}

// CountEmbeddedExamples returns the number of examples that carry an embedding.
func (s *Store) CountEmbeddedExamples(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM query_examples WHERE embedding IS NOT NULL`)
	return n, err
}

// TopExamples returns the most reliable examples, optionally within one category.
func (s *Store) TopExamples(ctx context.Context, category string, limit int) ([]*models.QueryExample, error) {
	return s.SearchExamples(ctx, "", category, limit)
}

// RecordExampleOutcome folds one execution outcome into the example's running success
// rate inside a transaction so concurrent updates do not lose counts.
func (s *Store) RecordExampleOutcome(ctx context.Context, id int64, success bool) (*models.QueryExample, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var ex models.QueryExample
	if err := tx.GetContext(ctx, &ex, `SELECT `+exampleColumns+` FROM query_examples WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "example", id)
	}
	ex.RecordOutcome(success)
	ex.UpdatedAt = time.Now().UTC()
	if _, err := tx.ExecContext(ctx,
		`UPDATE query_examples SET success_rate = ?, usage_count = ?, updated_at = ? WHERE id = ?`,
		ex.SuccessRate, ex.UsageCount, ex.UpdatedAt, id); err != nil {
		return nil, fmt.Errorf("failed to update example stats: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return &ex, nil
}

// ExampleCategories returns the distinct non-empty categories, sorted.
func (s *Store) ExampleCategories(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.SelectContext(ctx, &out,
		`SELECT DISTINCT query_category FROM query_examples WHERE query_category != '' ORDER BY query_category`)
	return out, err
}

// SetExampleEmbedding replaces an example's embedding.
func (s *Store) SetExampleEmbedding(ctx context.Context, id int64, emb []float32) error {
	res, err := s.db.ExecContext(ctx, `UPDATE query_examples SET embedding = ? WHERE id = ?`, models.Vector(emb), id)
	if err != nil {
		return fmt.Errorf("failed to update example embedding: %w", err)
	}
	return requireAffected(res, "example", id)
}
