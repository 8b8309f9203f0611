package main

import (
	"context"
	"database/sql"
	"fmt"

	"go.uber.org/zap"

	"github.com/hyperjump/shitsumon/internal/config"
	"github.com/hyperjump/shitsumon/internal/embedding"
	"github.com/hyperjump/shitsumon/internal/examples"
	"github.com/hyperjump/shitsumon/internal/executor"
	"github.com/hyperjump/shitsumon/internal/indexer"
	"github.com/hyperjump/shitsumon/internal/keyword"
	"github.com/hyperjump/shitsumon/internal/lexicon"
	"github.com/hyperjump/shitsumon/internal/llm"
	"github.com/hyperjump/shitsumon/internal/pipeline"
	"github.com/hyperjump/shitsumon/internal/schema"
	"github.com/hyperjump/shitsumon/internal/search"
	"github.com/hyperjump/shitsumon/internal/storage"
)

// historyRebuildLimit bounds how many history records seed an empty history index.
const historyRebuildLimit = 100000

// Components is the wired application.
type Components struct {
	Store     *storage.Store
	Target    *sql.DB // separate target database; nil when SQL runs against Store
	Embedder  embedding.Embedder
	History   *keyword.HistoryIndex
	Lexicon   *lexicon.Lexicon
	Terms     *lexicon.Manager
	Examples  *examples.Bank
	Schema    *schema.Enhancer
	Indexer   *indexer.Indexer
	Retriever *search.Retriever

	assistant    *pipeline.Assistant
	assistantErr error
}

// Assistant returns the question-answering pipeline, or why it could not be built.
func (c *Components) Assistant() (*pipeline.Assistant, error) {
	if c.assistantErr != nil {
		return nil, fmt.Errorf("assistant unavailable: %w", c.assistantErr)
	}
	return c.assistant, nil
}

// Close releases every component. Safe on a partially built value.
func (c *Components) Close() {
	if c.History != nil {
		_ = c.History.Close()
	}
	if c.Embedder != nil {
		_ = c.Embedder.Close()
	}
	if c.Target != nil {
		_ = c.Target.Close()
	}
	if c.Store != nil {
		_ = c.Store.Close()
	}
}

func initializeComponents(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*Components, error) {
	c := &Components{}
	ok := false
	defer func() {
		if !ok {
			c.Close()
		}
	}()

	store, err := storage.Open(cfg.Storage.DatabasePath)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}
	c.Store = store

	c.Embedder, err = embedding.New(ctx, cfg.Embedding, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embeddings: %w", err)
	}

	c.Lexicon, err = lexicon.New(ctx, store,
		lexicon.WithReplaceMode(cfg.Lexicon.ReplaceMode),
		lexicon.WithOccurrence(cfg.Lexicon.Occurrence),
		lexicon.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to load lexicon: %w", err)
	}
	c.Terms = lexicon.NewManager(store, c.Lexicon, logger)
	if cfg.Lexicon.SeedDefaults {
		if _, err := c.Terms.SeedDefaults(ctx); err != nil {
			return nil, fmt.Errorf("failed to seed term mappings: %w", err)
		}
	}

	targetDB := store.DB()
	hidden := storage.InternalTables
	if cfg.Storage.TargetDatabasePath != "" {
		c.Target, err = storage.OpenTarget(cfg.Storage.TargetDatabasePath)
		if err != nil {
			return nil, err
		}
		targetDB, hidden = c.Target, nil
	}
	c.Schema, err = schema.New(ctx, storage.NewCatalog(targetDB, hidden...), store,
		schema.WithSampleRows(cfg.Schema.SampleRows),
		schema.WithLogger(logger))
	if err != nil {
		return nil, fmt.Errorf("failed to read schema: %w", err)
	}

	chunker, err := indexer.NewChunker(indexer.ChunkOptions{
		MaxSize:  cfg.Chunking.MaxSize,
		Overlap:  cfg.Chunking.Overlap,
		Strategy: cfg.Chunking.Strategy,
	})
	if err != nil {
		return nil, err
	}
	c.Indexer = indexer.New(store, c.Embedder, chunker, nil, indexer.WithLogger(logger))
	c.Retriever = search.NewRetriever(store, c.Embedder, search.WithLogger(logger))
	c.Examples = examples.NewBank(store, c.Embedder, examples.WithLogger(logger))

	c.History, err = keyword.NewHistoryIndex(cfg.Storage.HistoryIndexPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open history index: %w", err)
	}
	if err := rebuildHistoryIndex(ctx, store, c.History, logger); err != nil {
		logger.Warn("history index rebuild failed", zap.Error(err))
	}

	client, err := llm.New(ctx, cfg.LLM)
	if err != nil {
		c.assistantErr = err
		logger.Debug("language model not configured", zap.Error(err))
	} else {
		c.assistant, c.assistantErr = pipeline.New(assistantComponents(cfg, c, client, targetDB, logger),
			pipeline.WithLogger(logger),
			pipeline.WithRetrieval(cfg.Retrieval.TopK, cfg.Retrieval.Threshold),
			pipeline.WithExamples(cfg.Examples.TopK, cfg.Examples.Threshold),
			pipeline.WithEnhancedSchema(config.On(cfg.Schema.Enhanced)),
			pipeline.WithCharts(cfg.Chart.Enabled),
		)
	}

	ok = true
	return c, nil
}

// assistantComponents leaves out the stages the config switches off.
func assistantComponents(cfg *config.Config, c *Components, client llm.Client, target *sql.DB, logger *zap.Logger) pipeline.Components {
	pc := pipeline.Components{
		Schema:   c.Schema,
		LLM:      client,
		Executor: executor.New(target, executor.WithLogger(logger)),
		History:  executor.NewHistoryLogger(c.Store, c.History, logger),
	}
	if config.On(cfg.Lexicon.Enabled) {
		pc.Lexicon = c.Lexicon
	}
	if config.On(cfg.Retrieval.Enabled) {
		pc.Retriever = c.Retriever
	}
	if config.On(cfg.Examples.Enabled) {
		pc.Examples = c.Examples
	}
	return pc
}

// rebuildHistoryIndex fills an empty history index from the stored history, e.g. after
// the index directory was deleted.
func rebuildHistoryIndex(ctx context.Context, store *storage.Store, idx *keyword.HistoryIndex, logger *zap.Logger) error {
	n, err := idx.DocCount()
	if err != nil || n > 0 {
		return err
	}
	recs, err := store.RecentHistory(ctx, historyRebuildLimit)
	if err != nil || len(recs) == 0 {
		return err
	}
	if err := idx.Rebuild(recs); err != nil {
		return err
	}
	logger.Info("history index rebuilt", zap.Int("records", len(recs)))
	return nil
}

// withComponents runs fn with freshly initialized components and closes them afterwards.
func withComponents(ctx context.Context, fn func(*Components) error) error {
	c, err := initializeComponents(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer c.Close()
	return fn(c)
}
