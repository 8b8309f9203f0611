package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/shitsumon/internal/embedding"
	"github.com/hyperjump/shitsumon/internal/extract"
	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/storage"
)

// DefaultCategory is recorded for documents ingested without a category.
const DefaultCategory = "general"

// Store is the persistence the indexer writes to.
type Store interface {
	BatchCreateDocuments(ctx context.Context, docs []*models.Document) error
	CreateDocument(ctx context.Context, doc *models.Document) error
	DeleteDocumentsBySource(ctx context.Context, sourcePath string) (int64, error)
	SourceModTime(ctx context.Context, sourcePath string) (int64, error)
	DocumentsWithoutEmbedding(ctx context.Context, limit int) ([]*models.Document, error)
	SetDocumentEmbedding(ctx context.Context, id int64, emb []float32) error
}

var _ Store = (*storage.Store)(nil)

// Indexer ingests files into the document store.
type Indexer struct {
	store     Store
	embedder  embedding.Embedder
	chunker   *Chunker
	extractor *extract.Extractor
	workers   int
	logger    *zap.Logger
}

// Option configures an Indexer.
type Option func(*Indexer)

// WithLogger sets the logger used for ingestion progress and skipped files or chunks.
func WithLogger(l *zap.Logger) Option {
	return func(idx *Indexer) { idx.logger = l }
}

// WithWorkers bounds how many files a directory ingestion processes at once.
func WithWorkers(n int) Option {
	return func(idx *Indexer) {
		if n > 0 {
			idx.workers = n
		}
	}
}

// New returns an Indexer. extractor may be nil, in which case the default registry is used.
func New(store Store, embedder embedding.Embedder, chunker *Chunker, extractor *extract.Extractor, opts ...Option) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		store:     store,
		embedder:  embedder,
		chunker:   chunker,
		extractor: extractor,
		workers:   4,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// Extractor returns the extraction registry the indexer uses.
func (idx *Indexer) Extractor() *extract.Extractor {
	return idx.extractor
}

// IngestOptions controls one ingestion.
type IngestOptions struct {
	// Category is stored in every chunk's metadata. Empty means DefaultCategory.
	Category string
	// Force re-ingests files whose modification time has not changed.
	Force bool
}

// IngestResult summarizes the ingestion of one file.
type IngestResult struct {
	Path        string  `json:"path"`
	Filename    string  `json:"filename"`
	DocumentIDs []int64 `json:"document_ids"`
	Chunks      int     `json:"chunks"`
	Stored      int     `json:"stored"`
	Embedded    int     `json:"embedded"`
	Replaced    int64   `json:"replaced"`
	Skipped     bool    `json:"skipped"`
}

// IngestFile extracts, chunks, embeds and stores the file at path. Chunks already stored
// for the same path are replaced. Unless opts.Force is set, a file whose modification
// time matches the stored one is skipped.
func (idx *Indexer) IngestFile(ctx context.Context, path string, opts IngestOptions) (*IngestResult, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := filepath.Ext(absPath)
	if !idx.extractor.Supported(ext) {
		return nil, fmt.Errorf("%s: extension %q: %w", absPath, ext, models.ErrUnsupportedFormat)
	}
	info, err := os.Stat(absPath)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", absPath)
	}

	mtime := info.ModTime().Unix()
	if !opts.Force {
		stored, err := idx.store.SourceModTime(ctx, absPath)
		if err != nil {
			return nil, err
		}
		if stored != 0 && stored == mtime {
			idx.logger.Debug("skipping unchanged file", zap.String("path", absPath))
			return &IngestResult{Path: absPath, Filename: info.Name(), Skipped: true}, nil
		}
	}

	sections, err := idx.extractor.Extract(absPath)
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", absPath, err)
	}
	return idx.ingest(ctx, source{
		name:  info.Name(),
		path:  absPath,
		size:  info.Size(),
		mtime: mtime,
	}, sections, opts)
}

// IngestBytes ingests an uploaded file. The filename selects the extractor and names
// the chunks; chunks from an earlier upload of the same filename are replaced.
func (idx *Indexer) IngestBytes(ctx context.Context, filename string, content []byte, opts IngestOptions) (*IngestResult, error) {
	filename = filepath.Base(filename)
	sections, err := idx.extractor.ExtractBytes(content, filepath.Ext(filename))
	if err != nil {
		return nil, fmt.Errorf("extract %s: %w", filename, err)
	}
	return idx.ingest(ctx, source{
		name: filename,
		path: "upload:" + filename,
		size: int64(len(content)),
	}, sections, opts)
}

type source struct {
	name  string
	path  string
	size  int64
	mtime int64
}

func (idx *Indexer) ingest(ctx context.Context, src source, sections []extract.Section, opts IngestOptions) (*IngestResult, error) {
	category := strings.TrimSpace(opts.Category)
	if category == "" {
		category = DefaultCategory
	}
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(src.name)), ".")

	var chunks []models.DocumentChunk
	for _, sec := range sections {
		base := sec.Metadata.Clone()
		base[models.MetaFilename] = src.name
		base[models.MetaFileType] = fileType
		base[models.MetaFileSize] = src.size
		base[models.MetaSourcePath] = src.path
		base[models.MetaCategory] = category
		if src.mtime != 0 {
			base[models.MetaModTime] = src.mtime
		}
		chunks = append(chunks, idx.chunker.Chunk(Preprocess(sec.Content), base)...)
	}

	res := &IngestResult{Path: src.path, Filename: src.name, Chunks: len(chunks)}
	total := len(chunks)
	docs := make([]*models.Document, 0, total)
	embeddings := idx.embedChunks(ctx, chunks)
	for i, ch := range chunks {
		emb, err := embeddings[i].vec, embeddings[i].err
		if err != nil && !errors.Is(err, models.ErrEmbeddingUnavailable) {
			idx.logger.Warn("skipping chunk",
				zap.String("file", src.name), zap.Int("chunk", i), zap.Error(err))
			continue
		}
		md := ch.Metadata
		md[models.MetaChunkIndex] = i
		md[models.MetaTotalChunks] = total
		docs = append(docs, &models.Document{
			Title:     fmt.Sprintf("%s - Part %d/%d", src.name, i+1, total),
			Content:   ch.Content,
			DocType:   fileType,
			Metadata:  md,
			Embedding: emb,
		})
		if emb != nil {
			res.Embedded++
		}
	}
	if res.Embedded < len(docs) {
		idx.logger.Warn("storing chunks without embeddings",
			zap.String("file", src.name), zap.Int("count", len(docs)-res.Embedded))
	}

	replaced, err := idx.store.DeleteDocumentsBySource(ctx, src.path)
	if err != nil {
		return nil, err
	}
	res.Replaced = replaced
	if err := idx.store.BatchCreateDocuments(ctx, docs); err != nil {
		return nil, fmt.Errorf("failed to store chunks of %s: %w", src.name, err)
	}
	for _, d := range docs {
		res.DocumentIDs = append(res.DocumentIDs, d.ID)
	}
	res.Stored = len(docs)
	idx.logger.Info("ingested file",
		zap.String("file", src.name),
		zap.String("category", category),
		zap.Int("chunks", res.Chunks),
		zap.Int("stored", res.Stored),
		zap.Int("embedded", res.Embedded))
	return res, nil
}

type embedded struct {
	vec []float32
	err error
}

// embedChunks embeds all chunks in one batch, falling back to one call per chunk
// when the batch fails so a single bad chunk does not fail its neighbours.
func (idx *Indexer) embedChunks(ctx context.Context, chunks []models.DocumentChunk) []embedded {
	out := make([]embedded, len(chunks))
	if len(chunks) == 0 {
		return out
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Content
	}
	vecs, err := idx.embedder.EmbedBatch(ctx, texts)
	if err == nil && len(vecs) == len(chunks) {
		for i, v := range vecs {
			out[i].vec = v
		}
		return out
	}
	idx.logger.Debug("batch embedding failed, embedding chunks one by one", zap.Error(err))
	for i, text := range texts {
		out[i].vec, out[i].err = idx.embedder.Embed(ctx, text)
		if out[i].err != nil {
			out[i].vec = nil
		}
	}
	return out
}

// AddDocument stores a single document, embedding its content at insert time.
// When the embedding backend is unavailable the document is stored without one.
func (idx *Indexer) AddDocument(ctx context.Context, in *models.DocumentInput) (*models.Document, error) {
	if strings.TrimSpace(in.Content) == "" {
		return nil, models.NewConfigurationError("content", "cannot be empty")
	}
	doc := &models.Document{
		Title:    in.Title,
		Content:  in.Content,
		DocType:  in.DocType,
		Metadata: in.Metadata.Clone(),
	}
	emb, err := idx.embedder.Embed(ctx, in.Content)
	switch {
	case err == nil:
		doc.Embedding = emb
	case errors.Is(err, models.ErrEmbeddingUnavailable):
		idx.logger.Warn("storing document without embedding", zap.String("title", in.Title), zap.Error(err))
	default:
		return nil, err
	}
	if err := idx.store.CreateDocument(ctx, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// RemoveFile deletes every chunk ingested from path.
func (idx *Indexer) RemoveFile(ctx context.Context, path string) (int64, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	n, err := idx.store.DeleteDocumentsBySource(ctx, absPath)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		idx.logger.Info("removed file chunks", zap.String("path", absPath), zap.Int64("chunks", n))
	}
	return n, nil
}

// EmbedMissing embeds stored documents that were saved without an embedding, batch
// documents at a time, and returns how many were filled in. It stops at the first
// embedding failure.
func (idx *Indexer) EmbedMissing(ctx context.Context, batch int) (int, error) {
	if batch <= 0 {
		batch = 32
	}
	filled := 0
	for {
		docs, err := idx.store.DocumentsWithoutEmbedding(ctx, batch)
		if err != nil {
			return filled, err
		}
		if len(docs) == 0 {
			return filled, nil
		}
		texts := make([]string, len(docs))
		for i, d := range docs {
			texts[i] = d.Content
		}
		vecs, err := idx.embedder.EmbedBatch(ctx, texts)
		if err != nil {
			return filled, err
		}
		for i, d := range docs {
			if i >= len(vecs) || len(vecs[i]) == 0 {
				return filled, fmt.Errorf("document %d: %w", d.ID, models.ErrEmbeddingUnavailable)
			}
			if err := idx.store.SetDocumentEmbedding(ctx, d.ID, vecs[i]); err != nil {
				return filled, err
			}
			filled++
		}
	}
}

// DirectoryResult summarizes a directory ingestion.
type DirectoryResult struct {
	Files  []*IngestResult   `json:"files"`
	Failed map[string]string `json:"failed,omitempty"`
}

// Stored returns the number of chunks stored across all files.
func (r *DirectoryResult) Stored() int {
	n := 0
	for _, f := range r.Files {
		n += f.Stored
	}
	return n
}

// IngestDirectory ingests every file under dir with a supported extension. When exts is
// non-empty only those extensions are considered. A file that fails is logged, recorded
// in Failed and skipped; the error return is reserved for an unreadable directory or a
// cancelled context.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string, recursive bool, exts []string, opts IngestOptions) (*DirectoryResult, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return nil, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("not a directory: %s", absDir)
	}

	var paths []string
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() {
			if path != absDir && (!recursive || strings.HasPrefix(d.Name(), ".")) {
				return filepath.SkipDir
			}
			return nil
		}
		ext := filepath.Ext(path)
		if !idx.extractor.Supported(ext) || (len(exts) > 0 && !ExtensionAllowed(ext, exts)) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", absDir, err)
	}

	res := &DirectoryResult{Failed: map[string]string{}}
	var mu sync.Mutex
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(idx.workers)
	for _, p := range paths {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			r, err := idx.IngestFile(gctx, p, opts)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				idx.logger.Warn("skipping file", zap.String("path", p), zap.Error(err))
				res.Failed[p] = err.Error()
				return nil
			}
			res.Files = append(res.Files, r)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	sort.Slice(res.Files, func(i, j int) bool { return res.Files[i].Path < res.Files[j].Path })
	return res, nil
}

// ExtensionAllowed reports whether ext is in allowed, ignoring case and the leading dot.
func ExtensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
