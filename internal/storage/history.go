package storage

import (
	"context"
	"fmt"
	"time"

	"github.com/hyperjump/shitsumon/internal/models"
)

const historyColumns = `id, natural_query, generated_sql, success, execution_time_ms, result_count, error_message, created_at`

// InsertHistory appends rec to the query history and sets its ID and CreatedAt.
func (s *Store) InsertHistory(ctx context.Context, rec *models.QueryHistoryRecord) error {
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO query_history (natural_query, generated_sql, success, execution_time_ms, result_count, error_message, created_at)
		 VALUES (:natural_query, :generated_sql, :success, :execution_time_ms, :result_count, :error_message, :created_at)`, rec)
	if err != nil {
		return fmt.Errorf("failed to insert history: %w", err)
	}
	rec.ID, err = res.LastInsertId()
	return err
}

// GetHistory returns one history record.
func (s *Store) GetHistory(ctx context.Context, id int64) (*models.QueryHistoryRecord, error) {
	var rec models.QueryHistoryRecord
	if err := s.db.GetContext(ctx, &rec, `SELECT `+historyColumns+` FROM query_history WHERE id = ?`, id); err != nil {
		return nil, notFound(err, "history record", id)
	}
	return &rec, nil
}

// HistoryByIDs returns the records with the given IDs, in the order given. Missing IDs are skipped.
func (s *Store) HistoryByIDs(ctx context.Context, ids []int64) ([]*models.QueryHistoryRecord, error) {
	out := make([]*models.QueryHistoryRecord, 0, len(ids))
	for _, id := range ids {
		rec, err := s.GetHistory(ctx, id)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	return out, nil
}

// RecentHistory returns up to limit records, newest first.
func (s *Store) RecentHistory(ctx context.Context, limit int) ([]*models.QueryHistoryRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	var recs []*models.QueryHistoryRecord
	err := s.db.SelectContext(ctx, &recs,
		`SELECT `+historyColumns+` FROM query_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list history: %w", err)
	}
	return recs, nil
}

// HistoryStats aggregates the whole history.
func (s *Store) HistoryStats(ctx context.Context) (*models.HistoryStats, error) {
	var st models.HistoryStats
	err := s.db.GetContext(ctx, &st,
		`SELECT COUNT(*) AS total,
		        COALESCE(SUM(CASE WHEN success THEN 1 ELSE 0 END), 0) AS successes,
		        COALESCE(AVG(execution_time_ms), 0) AS avg_ms
		 FROM query_history`)
	if err != nil {
		return nil, fmt.Errorf("failed to compute history stats: %w", err)
	}
	if st.Total > 0 {
		st.SuccessRate = float64(st.Successes) / float64(st.Total) * 100
	}
	return &st, nil
}
