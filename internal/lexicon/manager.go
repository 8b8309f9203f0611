package lexicon

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/csvio"
	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/storage"
)

// CSV columns for term mappings.
var csvHeader = []string{"business_term", "technical_term", "synonyms", "description", "category"}

// Manager edits term mappings and keeps a Lexicon in step: every successful write reloads
// the lexicon before returning.
type Manager struct {
	store   storage.TermStore
	lexicon *Lexicon
	logger  *zap.Logger
}

// NewManager returns a manager writing through store and reloading lex.
func NewManager(store storage.TermStore, lex *Lexicon, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{store: store, lexicon: lex, logger: logger}
}

// Lexicon returns the managed lexicon.
func (m *Manager) Lexicon() *Lexicon {
	return m.lexicon
}

// Add stores a new mapping.
func (m *Manager) Add(ctx context.Context, t *models.TermMapping) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := m.store.CreateTerm(ctx, t); err != nil {
		return err
	}
	return m.lexicon.Reload(ctx)
}

// BulkAdd upserts every mapping and reloads once. It returns how many were stored; invalid
// mappings are logged and skipped.
func (m *Manager) BulkAdd(ctx context.Context, terms []*models.TermMapping) (int, error) {
	stored := 0
	for _, t := range terms {
		if err := t.Validate(); err != nil {
			m.logger.Warn("skipping invalid term mapping", zap.String("business_term", t.BusinessTerm), zap.Error(err))
			continue
		}
		if err := m.store.UpsertTerm(ctx, t); err != nil {
			return stored, err
		}
		stored++
	}
	return stored, m.lexicon.Reload(ctx)
}

// Get returns a mapping by ID.
func (m *Manager) Get(ctx context.Context, id int64) (*models.TermMapping, error) {
	return m.store.GetTerm(ctx, id)
}

// List returns mappings, optionally only those of category.
func (m *Manager) List(ctx context.Context, category string) ([]*models.TermMapping, error) {
	return m.store.ListTerms(ctx, category)
}

// Search returns mappings whose terms, synonyms or description contain keyword.
func (m *Manager) Search(ctx context.Context, keyword, category string) ([]*models.TermMapping, error) {
	return m.store.SearchTerms(ctx, keyword, category)
}

// Categories lists the distinct categories in use.
func (m *Manager) Categories(ctx context.Context) ([]string, error) {
	return m.store.TermCategories(ctx)
}

// Update replaces the mapping with t.ID.
func (m *Manager) Update(ctx context.Context, t *models.TermMapping) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if err := m.store.UpdateTerm(ctx, t); err != nil {
		return err
	}
	return m.lexicon.Reload(ctx)
}

// Delete removes a mapping.
func (m *Manager) Delete(ctx context.Context, id int64) error {
	if err := m.store.DeleteTerm(ctx, id); err != nil {
		return err
	}
	return m.lexicon.Reload(ctx)
}

// SeedDefaults stores the built-in mappings whose business terms are not present yet and
// returns how many were added.
func (m *Manager) SeedDefaults(ctx context.Context) (int, error) {
	added := 0
	for _, t := range DefaultMappings() {
		_, err := m.store.GetTermByBusiness(ctx, t.BusinessTerm)
		if err == nil {
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			return added, err
		}
		if err := m.store.CreateTerm(ctx, t); err != nil {
			return added, err
		}
		added++
	}
	if added > 0 {
		m.logger.Info("seeded default term mappings", zap.Int("count", added))
	}
	return added, m.lexicon.Reload(ctx)
}

// ExportCSV writes every mapping, or those of category, as CSV.
func (m *Manager) ExportCSV(ctx context.Context, w io.Writer, category string) error {
	terms, err := m.store.ListTerms(ctx, category)
	if err != nil {
		return err
	}
	t := csvio.Table{Header: csvHeader}
	for _, tm := range terms {
		t.Rows = append(t.Rows, []string{
			tm.BusinessTerm, tm.TechnicalTerm, csvio.FormatList(tm.Synonyms), tm.Description, tm.Category,
		})
	}
	return csvio.Write(w, t)
}

// ImportCSV upserts the mappings in r, keyed by business term, and returns how many were stored.
func (m *Manager) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	recs, err := csvio.Read(r, "business_term", "technical_term")
	if err != nil {
		return 0, err
	}
	terms := make([]*models.TermMapping, 0, len(recs))
	for i, rec := range recs {
		syn, err := csvio.ParseList(rec.Get("synonyms"))
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+2, err)
		}
		terms = append(terms, &models.TermMapping{
			BusinessTerm:  rec.Get("business_term"),
			TechnicalTerm: rec.Get("technical_term"),
			Synonyms:      syn,
			Description:   rec.Get("description"),
			Category:      rec.Get("category"),
		})
	}
	return m.BulkAdd(ctx, terms)
}
