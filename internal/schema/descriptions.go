package schema

import (
	"context"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/csvio"
	"github.com/hyperjump/shitsumon/internal/models"
)

var csvHeader = []string{"table_name", "column_name", "description", "business_meaning", "data_examples"}

func validateColumn(d *models.ColumnDescription) error {
	d.TableName = strings.TrimSpace(d.TableName)
	d.ColumnName = strings.TrimSpace(d.ColumnName)
	if d.TableName == "" || d.ColumnName == "" {
		return models.NewConfigurationError("column", "table_name and column_name are required")
	}
	return nil
}

// DescribeColumn stores or replaces the description of one column.
func (e *Enhancer) DescribeColumn(ctx context.Context, d *models.ColumnDescription) error {
	if err := validateColumn(d); err != nil {
		return err
	}
	if err := e.store.UpsertColumnDescription(ctx, d); err != nil {
		return err
	}
	return e.Reload(ctx)
}

// DescribeColumns stores every valid description and reloads once. Invalid entries are
// logged and skipped.
func (e *Enhancer) DescribeColumns(ctx context.Context, ds []*models.ColumnDescription) (int, error) {
	n := 0
	for _, d := range ds {
		if err := validateColumn(d); err != nil {
			e.logger.Warn("skipping column description", zap.String("table", d.TableName), zap.Error(err))
			continue
		}
		if err := e.store.UpsertColumnDescription(ctx, d); err != nil {
			return n, err
		}
		n++
	}
	return n, e.Reload(ctx)
}

// ForgetColumn deletes the description of table.column.
func (e *Enhancer) ForgetColumn(ctx context.Context, table, column string) error {
	if err := e.store.DeleteColumnDescription(ctx, table, column); err != nil {
		return err
	}
	return e.Reload(ctx)
}

// DescribeTable stores or replaces the description of a table.
func (e *Enhancer) DescribeTable(ctx context.Context, d *models.TableDescription) error {
	d.TableName = strings.TrimSpace(d.TableName)
	if d.TableName == "" {
		return models.NewConfigurationError("table_name", "is required")
	}
	if err := e.store.UpsertTableDescription(ctx, d); err != nil {
		return err
	}
	return e.Reload(ctx)
}

// ExportCSV writes every column description.
func (e *Enhancer) ExportCSV(ctx context.Context, w io.Writer) error {
	ds, err := e.store.ListColumnDescriptions(ctx, "")
	if err != nil {
		return err
	}
	t := csvio.Table{Header: csvHeader}
	for _, d := range ds {
		t.Rows = append(t.Rows, []string{
			d.TableName, d.ColumnName, d.Description, d.BusinessMeaning, csvio.FormatList(d.DataExamples),
		})
	}
	return csvio.Write(w, t)
}

// ImportCSV upserts the column descriptions in r and returns how many were stored.
func (e *Enhancer) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	recs, err := csvio.Read(r, "table_name", "column_name")
	if err != nil {
		return 0, err
	}
	ds := make([]*models.ColumnDescription, 0, len(recs))
	for i, rec := range recs {
		examples, err := csvio.ParseList(rec.Get("data_examples"))
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", i+2, err)
		}
		ds = append(ds, &models.ColumnDescription{
			TableName:       rec.Get("table_name"),
			ColumnName:      rec.Get("column_name"),
			Description:     rec.Get("description"),
			BusinessMeaning: rec.Get("business_meaning"),
			DataExamples:    examples,
		})
	}
	return e.DescribeColumns(ctx, ds)
}
