package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/hyperjump/shitsumon/internal/models"
)

// Catalog introspects the database generated SQL runs against.
type Catalog struct {
	db     *sqlx.DB
	hidden map[string]bool
}

// NewCatalog wraps db for introspection. Tables named in hide are never reported.
func NewCatalog(db *sql.DB, hide ...string) *Catalog {
	h := make(map[string]bool, len(hide))
	for _, t := range hide {
		h[strings.ToLower(t)] = true
	}
	return &Catalog{db: sqlx.NewDb(db, DriverName), hidden: h}
}

// Tables lists user tables with their columns, sorted by name.
func (c *Catalog) Tables(ctx context.Context) ([]models.Table, error) {
	var names []string
	err := c.db.SelectContext(ctx, &names,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list tables: %w", err)
	}
	tables := make([]models.Table, 0, len(names))
	for _, name := range names {
		if c.hidden[strings.ToLower(name)] {
			continue
		}
		cols, err := c.Columns(ctx, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, models.Table{Name: name, Columns: cols})
	}
	return tables, nil
}

// Columns lists a table's columns in declaration order.
func (c *Catalog) Columns(ctx context.Context, table string) ([]models.Column, error) {
	var cols []models.Column
	err := c.db.SelectContext(ctx, &cols,
		`SELECT name, type FROM pragma_table_info(?) ORDER BY cid`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	return cols, nil
}

// SampleRows returns up to limit rows of table as ordered column names and string cells.
func (c *Catalog) SampleRows(ctx context.Context, table string, limit int) ([]string, [][]string, error) {
	rows, err := c.db.QueryxContext(ctx, fmt.Sprintf(`SELECT * FROM %s LIMIT ?`, quoteIdent(table)), limit)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to sample %s: %w", table, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, nil, err
	}
	var out [][]string
	for rows.Next() {
		vals, err := rows.SliceScan()
		if err != nil {
			return nil, nil, err
		}
		cells := make([]string, len(vals))
		for i, v := range vals {
			cells[i] = FormatCell(v)
		}
		out = append(out, cells)
	}
	return cols, out, rows.Err()
}

// FormatCell renders a scanned SQL value for display.
func FormatCell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
