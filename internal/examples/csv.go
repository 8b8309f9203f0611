package examples

import (
	"context"
	"fmt"
	"io"
	"strconv"

	"github.com/hyperjump/shitsumon/internal/csvio"
	"github.com/hyperjump/shitsumon/internal/models"
)

var csvHeader = []string{
	"id", "natural_language_query", "sql_query", "query_category", "difficulty",
	"tags", "success_rate", "usage_count",
}

// ExportCSV writes every example.
func (b *Bank) ExportCSV(ctx context.Context, w io.Writer) error {
	all, err := b.store.ListExamples(ctx)
	if err != nil {
		return err
	}
	t := csvio.Table{Header: csvHeader}
	for _, ex := range all {
		t.Rows = append(t.Rows, []string{
			strconv.FormatInt(ex.ID, 10),
			ex.NaturalLanguageQuery,
			ex.SQLQuery,
			ex.QueryCategory,
			ex.Difficulty,
			csvio.FormatList(ex.Tags),
			strconv.FormatFloat(ex.SuccessRate, 'g', -1, 64),
			strconv.FormatInt(ex.UsageCount, 10),
		})
	}
	return csvio.Write(w, t)
}

// ImportCSV adds the examples in r as new examples, keeping their statistics, and returns
// how many were stored. The id column is ignored.
func (b *Bank) ImportCSV(ctx context.Context, r io.Reader) (int, error) {
	recs, err := csvio.Read(r, "natural_language_query", "sql_query")
	if err != nil {
		return 0, err
	}
	exs := make([]*models.QueryExample, 0, len(recs))
	for i, rec := range recs {
		line := i + 2
		tags, err := csvio.ParseList(rec.Get("tags"))
		if err != nil {
			return 0, fmt.Errorf("row %d: %w", line, err)
		}
		rate, err := csvio.ParseFloat(rec.Get("success_rate"), 0)
		if err != nil {
			return 0, fmt.Errorf("row %d: success_rate: %w", line, err)
		}
		usage, err := csvio.ParseInt(rec.Get("usage_count"), 0)
		if err != nil {
			return 0, fmt.Errorf("row %d: usage_count: %w", line, err)
		}
		exs = append(exs, &models.QueryExample{
			NaturalLanguageQuery: rec.Get("natural_language_query"),
			SQLQuery:             rec.Get("sql_query"),
			QueryCategory:        rec.Get("query_category"),
			Difficulty:           rec.Get("difficulty"),
			Tags:                 tags,
			SuccessRate:          rate,
			UsageCount:           usage,
		})
	}
	return b.BulkAdd(ctx, exs)
}
