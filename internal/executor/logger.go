package executor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/storage"
)

// HistoryIndexer receives every logged record for full-text search.
type HistoryIndexer interface {
	IndexHistory(rec *models.QueryHistoryRecord) error
}

// HistoryLogger appends execution outcomes to the query history. Failures never reach
// the caller.
type HistoryLogger struct {
	store  storage.HistoryStore
	index  HistoryIndexer
	logger *zap.Logger
}

// NewHistoryLogger returns a logger writing to store. index may be nil.
func NewHistoryLogger(store storage.HistoryStore, index HistoryIndexer, logger *zap.Logger) *HistoryLogger {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HistoryLogger{store: store, index: index, logger: logger}
}

// Log records rec. It runs to completion even when ctx is already cancelled, so that a
// request aborted after execution is still logged.
func (h *HistoryLogger) Log(ctx context.Context, rec *models.QueryHistoryRecord) {
	ctx = context.WithoutCancel(ctx)
	if err := h.store.InsertHistory(ctx, rec); err != nil {
		h.warn(fmt.Errorf("%w: %w", models.ErrLogging, err), rec)
		return
	}
	if h.index == nil {
		return
	}
	if err := h.index.IndexHistory(rec); err != nil {
		h.warn(fmt.Errorf("%w: index history %d: %w", models.ErrLogging, rec.ID, err), rec)
	}
}

func (h *HistoryLogger) warn(err error, rec *models.QueryHistoryRecord) {
	h.logger.Warn("failed to log query", zap.String("query", rec.NaturalQuery), zap.Error(err))
}
