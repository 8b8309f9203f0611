// Package executor runs generated SQL against the target database and records each
// outcome in the query history.
package executor

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/sqlextract"
	"github.com/hyperjump/shitsumon/internal/storage"
)

// Executor passes SQL straight to the database. It does no rewriting or sandboxing.
type Executor struct {
	db     *sqlx.DB
	logger *zap.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// New returns an executor over db.
func New(db *sql.DB, opts ...Option) *Executor {
	e := &Executor{db: sqlx.NewDb(db, storage.DriverName), logger: zap.NewNop()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs query and returns its rows, or for statements that return no rows the
// number of rows affected. A database rejection is returned as *models.ExecutionError.
func (e *Executor) Execute(ctx context.Context, query string) (*models.QueryResult, error) {
	start := time.Now()
	var (
		res *models.QueryResult
		err error
	)
	if sqlextract.ReadOnly(query) {
		res, err = e.query(ctx, query)
	} else {
		res, err = e.exec(ctx, query)
	}
	elapsed := time.Since(start)
	if err != nil {
		e.logger.Debug("statement failed", zap.String("sql", query), zap.Duration("elapsed", elapsed), zap.Error(err))
		return nil, &models.ExecutionError{SQL: query, Err: err}
	}
	res.ElapsedMS = elapsed.Milliseconds()
	e.logger.Debug("statement executed", zap.String("kind", sqlextract.Kind(query)),
		zap.Int("rows", res.RowCount), zap.Duration("elapsed", elapsed))
	return res, nil
}

func (e *Executor) query(ctx context.Context, query string) (*models.QueryResult, error) {
	rows, err := e.db.QueryxContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	out := &models.QueryResult{Columns: cols, Rows: []map[string]interface{}{}}
	for rows.Next() {
		row := make(map[string]interface{}, len(cols))
		if err := rows.MapScan(row); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		for k, v := range row {
			if b, ok := v.([]byte); ok {
				row[k] = string(b)
			}
		}
		out.Rows = append(out.Rows, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	out.RowCount = len(out.Rows)
	return out, nil
}

func (e *Executor) exec(ctx context.Context, query string) (*models.QueryResult, error) {
	r, err := e.db.ExecContext(ctx, query)
	if err != nil {
		return nil, err
	}
	n, err := r.RowsAffected()
	if err != nil {
		n = 0
	}
	return &models.QueryResult{Columns: []string{}, Rows: []map[string]interface{}{}, RowCount: int(n)}, nil
}
