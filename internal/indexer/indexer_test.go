package indexer

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/shitsumon/internal/embedding"
	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/storage"
)

// poisonEmbedder fails for texts containing poison and delegates everything else.
type poisonEmbedder struct {
	*embedding.MockEmbedder
	poison string
	err    error
}

func (p *poisonEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	if strings.Contains(text, p.poison) {
		return nil, p.err
	}
	return p.MockEmbedder.Embed(ctx, text)
}

func (p *poisonEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v, err := p.Embed(ctx, t)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

func newTestIndexer(t *testing.T, emb embedding.Embedder, opts ChunkOptions) (*Indexer, *storage.Store) {
	t.Helper()
	store, err := storage.Open(filepath.Join(t.TempDir(), "db.sqlite"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	chunker, err := NewChunker(opts)
	require.NoError(t, err)
	return New(store, emb, chunker, nil), store
}

func paragraphs(n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = strings.Repeat(string(rune('a'+i)), 8)
	}
	return strings.Join(parts, "\n\n")
}

func TestIngestFile_titlesAndMetadata(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndexer(t, embedding.NewMockEmbedder(16), ChunkOptions{MaxSize: 10, Overlap: 2, Strategy: StrategyParagraph})

	path := filepath.Join(t.TempDir(), "handbook.txt")
	require.NoError(t, os.WriteFile(path, []byte(paragraphs(3)), 0600))

	res, err := idx.IngestFile(ctx, path, IngestOptions{Category: "hr"})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 3, res.Stored)
	assert.Equal(t, 3, res.Embedded)
	require.Len(t, res.DocumentIDs, 3)

	doc, err := store.GetDocument(ctx, res.DocumentIDs[1])
	require.NoError(t, err)
	assert.Equal(t, "handbook.txt - Part 2/3", doc.Title)
	assert.Equal(t, "bbbbbbbb", doc.Content)
	assert.Equal(t, "txt", doc.DocType)
	assert.True(t, doc.HasEmbedding())
	assert.Equal(t, "hr", doc.Metadata.String(models.MetaCategory))
	assert.Equal(t, "handbook.txt", doc.Metadata.String(models.MetaFilename))
	assert.EqualValues(t, 1, doc.Metadata[models.MetaChunkIndex])
	assert.EqualValues(t, 3, doc.Metadata[models.MetaTotalChunks])
	assert.Equal(t, StrategyParagraph, doc.Metadata.String(models.MetaChunkStrategy))
}

func TestIngestFile_skipsUnchangedAndReplacesChanged(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndexer(t, embedding.NewMockEmbedder(16), ChunkOptions{MaxSize: 10, Overlap: 2, Strategy: StrategyParagraph})

	path := filepath.Join(t.TempDir(), "doc.md")
	require.NoError(t, os.WriteFile(path, []byte(paragraphs(2)), 0600))

	_, err := idx.IngestFile(ctx, path, IngestOptions{})
	require.NoError(t, err)

	res, err := idx.IngestFile(ctx, path, IngestOptions{})
	require.NoError(t, err)
	assert.True(t, res.Skipped)

	require.NoError(t, os.WriteFile(path, []byte(paragraphs(4)), 0600))
	later := time.Now().Add(2 * time.Second)
	require.NoError(t, os.Chtimes(path, later, later))

	res, err = idx.IngestFile(ctx, path, IngestOptions{})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, int64(2), res.Replaced)

	n, err := store.CountDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	removed, err := idx.RemoveFile(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, int64(4), removed)
}

func TestIngestFile_unsupportedFormat(t *testing.T) {
	idx, _ := newTestIndexer(t, embedding.NewMockEmbedder(16), ChunkOptions{MaxSize: 100, Overlap: 10, Strategy: StrategyFixed})
	path := filepath.Join(t.TempDir(), "slides.pptx")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0600))

	_, err := idx.IngestFile(context.Background(), path, IngestOptions{})
	assert.ErrorIs(t, err, models.ErrUnsupportedFormat)
}

func TestIngest_skipsChunkThatFailsToEmbed(t *testing.T) {
	ctx := context.Background()
	emb := &poisonEmbedder{MockEmbedder: embedding.NewMockEmbedder(16), poison: "bbbb", err: models.ErrDimensionMismatch}
	idx, store := newTestIndexer(t, emb, ChunkOptions{MaxSize: 10, Overlap: 2, Strategy: StrategyParagraph})

	res, err := idx.IngestBytes(ctx, "notes.txt", []byte(paragraphs(3)), IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, res.Chunks)
	assert.Equal(t, 2, res.Stored)

	docs, err := store.ListDocuments(ctx, 0, 10)
	require.NoError(t, err)
	var titles []string
	for _, d := range docs {
		titles = append(titles, d.Title)
	}
	assert.ElementsMatch(t, []string{"notes.txt - Part 1/3", "notes.txt - Part 3/3"}, titles)
}

func TestIngest_storesWithoutEmbeddingWhenBackendDown(t *testing.T) {
	ctx := context.Background()
	mock := embedding.NewMockEmbedder(16)
	mock.Fail = errors.New("connection refused")
	idx, store := newTestIndexer(t, mock, ChunkOptions{MaxSize: 10, Overlap: 2, Strategy: StrategyParagraph})

	res, err := idx.IngestBytes(ctx, "notes.txt", []byte(paragraphs(2)), IngestOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, res.Stored)
	assert.Zero(t, res.Embedded)

	n, err := store.CountEmbeddedDocuments(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	mock.Fail = nil
	filled, err := idx.EmbedMissing(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, filled)

	n, err = store.CountEmbeddedDocuments(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestIngestDirectory(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndexer(t, embedding.NewMockEmbedder(16), ChunkOptions{MaxSize: 50, Overlap: 5, Strategy: StrategyParagraph})

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("alpha text"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.go"), []byte("package x"), 0600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.xlsx"), []byte("not a spreadsheet"), 0600))
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0755))

	f := excelize.NewFile()
	require.NoError(t, f.SetCellValue("Sheet1", "A1", "급여 6000000"))
	require.NoError(t, f.SaveAs(filepath.Join(sub, "pay.xlsx")))
	require.NoError(t, f.Close())

	res, err := idx.IngestDirectory(ctx, dir, true, nil, IngestOptions{})
	require.NoError(t, err)
	require.Len(t, res.Files, 2)
	assert.Equal(t, "a.txt", res.Files[0].Filename)
	assert.Equal(t, "pay.xlsx", res.Files[1].Filename)
	assert.Len(t, res.Failed, 1)
	assert.Contains(t, res.Failed, filepath.Join(dir, "broken.xlsx"))
	assert.Equal(t, 2, res.Stored())

	nearest, err := store.KeywordDocuments(ctx, "급여", 5)
	require.NoError(t, err)
	require.Len(t, nearest, 1)
	assert.Equal(t, "Sheet1", nearest[0].Metadata.String(models.MetaSheet))

	res, err = idx.IngestDirectory(ctx, dir, false, []string{"txt"}, IngestOptions{Force: true})
	require.NoError(t, err)
	require.Len(t, res.Files, 1)
	assert.Empty(t, res.Failed)
}

func TestAddDocument(t *testing.T) {
	ctx := context.Background()
	idx, store := newTestIndexer(t, embedding.NewMockEmbedder(16), ChunkOptions{MaxSize: 10, Overlap: 2, Strategy: StrategyFixed})

	doc, err := idx.AddDocument(ctx, &models.DocumentInput{Title: "policy", Content: "salary policy", DocType: "note"})
	require.NoError(t, err)
	got, err := store.GetDocument(ctx, doc.ID)
	require.NoError(t, err)
	assert.True(t, got.HasEmbedding())

	_, err = idx.AddDocument(ctx, &models.DocumentInput{Title: "empty", Content: "  "})
	assert.Error(t, err)
}

func TestExtensionAllowed(t *testing.T) {
	tests := []struct {
		ext     string
		allowed []string
		want    bool
	}{
		{".txt", []string{".txt", ".md"}, true},
		{".TXT", []string{"txt"}, true},
		{".go", []string{".txt"}, false},
		{"", []string{".txt"}, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, ExtensionAllowed(tt.ext, tt.allowed), "%s in %v", tt.ext, tt.allowed)
	}
}
