package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/shitsumon/internal/models"
)

const termColumns = `id, business_term, technical_term, synonyms, category, description, created_at, updated_at`

// CreateTerm inserts m and sets its ID. Business terms are unique case-insensitively.
func (s *Store) CreateTerm(ctx context.Context, m *models.TermMapping) error {
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO term_mappings (business_term, technical_term, synonyms, category, description, created_at, updated_at)
		 VALUES (:business_term, :technical_term, :synonyms, :category, :description, :created_at, :updated_at)`, m)
	if err != nil {
		return fmt.Errorf("failed to insert term %q: %w", m.BusinessTerm, err)
	}
	m.ID, err = res.LastInsertId()
	return err
}

// UpsertTerm inserts m or, when the business term exists, replaces its other fields.
func (s *Store) UpsertTerm(ctx context.Context, m *models.TermMapping) error {
	now := time.Now().UTC()
	m.CreatedAt, m.UpdatedAt = now, now
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO term_mappings (business_term, technical_term, synonyms, category, description, created_at, updated_at)
		 VALUES (:business_term, :technical_term, :synonyms, :category, :description, :created_at, :updated_at)
		 ON CONFLICT (business_term) DO UPDATE SET
			technical_term = excluded.technical_term,
			synonyms = excluded.synonyms,
			category = excluded.category,
			description = excluded.description,
			updated_at = excluded.updated_at`, m)
	if err != nil {
		return fmt.Errorf("failed to upsert term %q: %w", m.BusinessTerm, err)
	}
	got, err := s.GetTermByBusiness(ctx, m.BusinessTerm)
	if err != nil {
		return err
	}
	m.ID, m.CreatedAt = got.ID, got.CreatedAt
	return nil
}

// GetTerm returns a mapping by ID.
func (s *Store) GetTerm(ctx context.Context, id int64) (*models.TermMapping, error) {
	var m models.TermMapping
	if err := s.db.GetContext(ctx, &m, `SELECT `+termColumns+` FROM term_mappings WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "term", id)
	}
	return &m, nil
}

// GetTermByBusiness returns the mapping for a business term, case-insensitively.
func (s *Store) GetTermByBusiness(ctx context.Context, businessTerm string) (*models.TermMapping, error) {
	var m models.TermMapping
	err := s.db.GetContext(ctx, &m,
		`SELECT `+termColumns+` FROM term_mappings WHERE business_term = ? COLLATE NOCASE`, businessTerm)
	if err != nil {
		return nil, notFound(err, "term", businessTerm)
	}
	return &m, nil
}

// ListTerms returns every mapping, optionally within one category, ordered by category then term.
func (s *Store) ListTerms(ctx context.Context, category string) ([]*models.TermMapping, error) {
	q := `SELECT ` + termColumns + ` FROM term_mappings`
	var args []interface{}
	if category != "" {
		q += ` WHERE category = ?`
		args = append(args, category)
	}
	q += ` ORDER BY category, business_term`
	var out []*models.TermMapping
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list terms: %w", err)
	}
	return out, nil
}

// SearchTerms matches keyword against the business term, technical term, description
// and synonyms.
func (s *Store) SearchTerms(ctx context.Context, keyword, category string) ([]*models.TermMapping, error) {
	var (
		conds []string
		args  []interface{}
	)
	if kw := strings.TrimSpace(keyword); kw != "" {
		p := "%" + escapeLike(strings.ToLower(kw)) + "%"
		conds = append(conds, `(LOWER(business_term) LIKE ? ESCAPE '\' OR LOWER(technical_term) LIKE ? ESCAPE '\'
			OR LOWER(description) LIKE ? ESCAPE '\' OR LOWER(synonyms) LIKE ? ESCAPE '\')`)
		args = append(args, p, p, p, p)
	}
	if category != "" {
		conds = append(conds, `category = ?`)
		args = append(args, category)
	}
	q := `SELECT ` + termColumns + ` FROM term_mappings`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY business_term`
	var out []*models.TermMapping
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("failed to search terms: %w", err)
	}
	return out, nil
}

// UpdateTerm replaces every mutable field of m.
func (s *Store) UpdateTerm(ctx context.Context, m *models.TermMapping) error {
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NamedExecContext(ctx,
		`UPDATE term_mappings SET business_term = :business_term, technical_term = :technical_term,
			synonyms = :synonyms, category = :category, description = :description, updated_at = :updated_at
		 WHERE id = :id`, m)
	if err != nil {
		return fmt.Errorf("failed to update term: %w", err)
	}
	return requireAffected(res, "term", m.ID)
}

// DeleteTerm removes a mapping by ID.
func (s *Store) DeleteTerm(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM term_mappings WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete term: %w", err)
	}
	return requireAffected(res, "term", id)
}

// TermCategories returns the distinct non-empty categories, sorted.
func (s *Store) TermCategories(ctx context.Context) ([]string, error) {
	var out []string
	err := s.db.SelectContext(ctx, &out,
		`SELECT DISTINCT category FROM term_mappings WHERE category != '' ORDER BY category`)
	return out, err
}
