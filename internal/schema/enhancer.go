// Package schema describes the target database to the language model, either as a plain
// table and column list or enriched with business descriptions and sample rows.
package schema

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"facette.io/natsort"
	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/storage"
)

// Catalog introspects the target database.
type Catalog interface {
	Tables(ctx context.Context) ([]models.Table, error)
	SampleRows(ctx context.Context, table string, limit int) ([]string, [][]string, error)
}

// Enhancer caches the target schema and its descriptions. Reads are safe for concurrent
// use; every write through the Enhancer reloads the cache before returning.
type Enhancer struct {
	catalog    Catalog
	store      storage.DescriptionStore
	sampleRows int
	logger     *zap.Logger

	mu      sync.RWMutex
	tables  []models.Table
	columns map[string]map[string]*models.ColumnDescription
	purpose map[string]*models.TableDescription
}

// Option configures an Enhancer.
type Option func(*Enhancer)

// WithSampleRows sets how many rows per table the enhanced context shows; 0 shows none.
func WithSampleRows(n int) Option {
	return func(e *Enhancer) {
		if n >= 0 {
			e.sampleRows = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Enhancer) { e.logger = l }
}

// New returns a loaded Enhancer.
func New(ctx context.Context, catalog Catalog, store storage.DescriptionStore, opts ...Option) (*Enhancer, error) {
	e := &Enhancer{
		catalog:    catalog,
		store:      store,
		sampleRows: 3,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	if err := e.Reload(ctx); err != nil {
		return nil, err
	}
	return e, nil
}

// Reload re-reads the table list and every description.
func (e *Enhancer) Reload(ctx context.Context) error {
	tables, err := e.catalog.Tables(ctx)
	if err != nil {
		return err
	}
	sort.SliceStable(tables, func(i, j int) bool { return natsort.Compare(tables[i].Name, tables[j].Name) })

	cols, err := e.store.ListColumnDescriptions(ctx, "")
	if err != nil {
		return err
	}
	columns := make(map[string]map[string]*models.ColumnDescription)
	for _, d := range cols {
		t := strings.ToLower(d.TableName)
		if columns[t] == nil {
			columns[t] = make(map[string]*models.ColumnDescription)
		}
		columns[t][strings.ToLower(d.ColumnName)] = d
	}

	tds, err := e.store.ListTableDescriptions(ctx)
	if err != nil {
		return err
	}
	purpose := make(map[string]*models.TableDescription, len(tds))
	for _, d := range tds {
		purpose[strings.ToLower(d.TableName)] = d
	}

	e.mu.Lock()
	e.tables, e.columns, e.purpose = tables, columns, purpose
	e.mu.Unlock()
	e.logger.Debug("schema loaded", zap.Int("tables", len(tables)), zap.Int("column_descriptions", len(cols)))
	return nil
}

// Tables returns the cached tables.
func (e *Enhancer) Tables() []models.Table {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]models.Table, len(e.tables))
	copy(out, e.tables)
	return out
}

// ColumnDescription returns the description of table.column, or nil.
func (e *Enhancer) ColumnDescription(table, column string) *models.ColumnDescription {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.columns[strings.ToLower(table)][strings.ToLower(column)]
}

// TableDescription returns the description of table, or nil.
func (e *Enhancer) TableDescription(table string) *models.TableDescription {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.purpose[strings.ToLower(table)]
}

// BasicContext lists every table with its columns and declared types.
func (e *Enhancer) BasicContext() string {
	var b strings.Builder
	b.WriteString("Database Schema:\n\n")
	for _, t := range e.Tables() {
		fmt.Fprintf(&b, "Table: %s\n", t.Name)
		b.WriteString("Columns:\n")
		for _, c := range t.Columns {
			fmt.Fprintf(&b, "  - %s (%s)\n", c.Name, typeOrAny(c.Type))
		}
		b.WriteString("\n")
	}
	return b.String()
}

// EnhancedContext renders tables as markdown with their descriptions and sample rows.
// With a table name only that table is shown. Sampling failures are logged and skipped.
func (e *Enhancer) EnhancedContext(ctx context.Context, table string) (string, error) {
	tables := e.Tables()
	if table != "" {
		var found []models.Table
		for _, t := range tables {
			if strings.EqualFold(t.Name, table) {
				found = append(found, t)
			}
		}
		if len(found) == 0 {
			return "", fmt.Errorf("table %s: %w", table, models.ErrNotFound)
		}
		tables = found
	}

	var b strings.Builder
	b.WriteString("# Enhanced Database Schema\n\n")
	for _, t := range tables {
		fmt.Fprintf(&b, "## Table: %s\n\n", t.Name)
		if td := e.TableDescription(t.Name); td != nil {
			if td.Description != "" {
				fmt.Fprintf(&b, "%s\n", td.Description)
			}
			if td.BusinessPurpose != "" {
				fmt.Fprintf(&b, "Purpose: %s\n", td.BusinessPurpose)
			}
			b.WriteString("\n")
		}

		rows := make([][]string, 0, len(t.Columns))
		for _, c := range t.Columns {
			row := []string{c.Name, typeOrAny(c.Type), "", "", ""}
			if d := e.ColumnDescription(t.Name, c.Name); d != nil {
				examples := d.DataExamples
				if len(examples) > 3 {
					examples = examples[:3]
				}
				row[2], row[3], row[4] = d.Description, d.BusinessMeaning, strings.Join(examples, ", ")
			}
			rows = append(rows, row)
		}
		writeMarkdownTable(&b, []string{"Column", "Type", "Description", "Business Meaning", "Examples"}, rows)
		b.WriteString("\n")

		if e.sampleRows == 0 {
			continue
		}
		cols, sample, err := e.catalog.SampleRows(ctx, t.Name, e.sampleRows)
		if err != nil {
			e.logger.Warn("failed to sample table", zap.String("table", t.Name), zap.Error(err))
			continue
		}
		if len(sample) == 0 {
			continue
		}
		fmt.Fprintf(&b, "### Sample Data (%s):\n", t.Name)
		writeMarkdownTable(&b, cols, sample)
		b.WriteString("\n")
	}
	return b.String(), nil
}

// Context returns the enhanced context when enhanced is set and falls back to the basic
// one if rendering it fails.
func (e *Enhancer) Context(ctx context.Context, enhanced bool) string {
	if !enhanced {
		return e.BasicContext()
	}
	s, err := e.EnhancedContext(ctx, "")
	if err != nil {
		e.logger.Warn("enhanced schema unavailable, using basic schema", zap.Error(err))
		return e.BasicContext()
	}
	return s
}

func typeOrAny(t string) string {
	if t == "" {
		return "ANY"
	}
	return t
}

func writeMarkdownTable(b *strings.Builder, header []string, rows [][]string) {
	b.WriteString("| " + strings.Join(escapeCells(header), " | ") + " |\n")
	seps := make([]string, len(header))
	for i, h := range header {
		seps[i] = strings.Repeat("-", max(3, len([]rune(h))))
	}
	b.WriteString("|" + strings.Join(seps, "|") + "|\n")
	for _, r := range rows {
		b.WriteString("| " + strings.Join(escapeCells(r), " | ") + " |\n")
	}
}

func escapeCells(cells []string) []string {
	out := make([]string, len(cells))
	for i, c := range cells {
		c = strings.ReplaceAll(c, "|", `\|`)
		out[i] = strings.Join(strings.Fields(c), " ")
	}
	return out
}
