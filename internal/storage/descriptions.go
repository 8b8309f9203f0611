package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/shitsumon/internal/models"
)

// UpsertColumnDescription inserts or replaces the description of (table, column).
func (s *Store) UpsertColumnDescription(ctx context.Context, d *models.ColumnDescription) error {
	d.UpdatedAt = time.Now().UTC()
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO column_descriptions (table_name, column_name, description, business_meaning, data_examples, updated_at)
		 VALUES (:table_name, :column_name, :description, :business_meaning, :data_examples, :updated_at)
		 ON CONFLICT (table_name, column_name) DO UPDATE SET
			description = excluded.description,
			business_meaning = excluded.business_meaning,
			data_examples = excluded.data_examples,
			updated_at = excluded.updated_at`, d)
	if err != nil {
		return fmt.Errorf("failed to upsert description for %s.%s: %w", d.TableName, d.ColumnName, err)
	}
	return nil
}

// ListColumnDescriptions returns descriptions, optionally for one table, by table then column.
func (s *Store) ListColumnDescriptions(ctx context.Context, table string) ([]*models.ColumnDescription, error) {
	q := `SELECT id, table_name, column_name, description, business_meaning, data_examples, updated_at
		FROM column_descriptions`
	var args []interface{}
	if table != "" {
		q += ` WHERE table_name = ?`
		args = append(args, table)
	}
	q += ` ORDER BY table_name, column_name`
	var out []*models.ColumnDescription
	if err := s.db.SelectContext(ctx, &out, q, args...); err != nil {
		return nil, fmt.Errorf("failed to list column descriptions: %w", err)
	}
	return out, nil
}

// DeleteColumnDescription removes the description of (table, column).
func (s *Store) DeleteColumnDescription(ctx context.Context, table, column string) error {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM column_descriptions WHERE table_name = ? AND column_name = ?`, table, column)
	if err != nil {
		return fmt.Errorf("failed to delete column description: %w", err)
	}
	return requireAffected(res, "column description", table+"."+column)
}

// UpsertTableDescription inserts or replaces the description of a table.
func (s *Store) UpsertTableDescription(ctx context.Context, d *models.TableDescription) error {
	d.UpdatedAt = time.Now().UTC()
	_, err := s.db.NamedExecContext(ctx,
		`INSERT INTO table_descriptions (table_name, description, business_purpose, updated_at)
		 VALUES (:table_name, :description, :business_purpose, :updated_at)
		 ON CONFLICT (table_name) DO UPDATE SET
			description = excluded.description,
			business_purpose = excluded.business_purpose,
			updated_at = excluded.updated_at`, d)
	if err != nil {
		return fmt.Errorf("failed to upsert table description for %s: %w", d.TableName, err)
	}
	return nil
}

// ListTableDescriptions returns every table description by name.
func (s *Store) ListTableDescriptions(ctx context.Context) ([]*models.TableDescription, error) {
	var out []*models.TableDescription
	err := s.db.SelectContext(ctx, &out,
		`SELECT table_name, description, business_purpose, updated_at FROM table_descriptions ORDER BY table_name`)
	if err != nil {
		return nil, fmt.Errorf("failed to list table descriptions: %w", err)
	}
	return out, nil
}
