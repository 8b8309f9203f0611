package storage

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/shitsumon/internal/models"
)

const documentColumns = `id, title, content, doc_type, metadata, embedding, created_at`

// ScoredDocument is a document with its cosine distance to a query vector.
type ScoredDocument struct {
	models.Document
	Distance float64 `db:"distance"`
}

// CreateDocument inserts doc and sets its ID and CreatedAt.
func (s *Store) CreateDocument(ctx context.Context, doc *models.Document) error {
	doc.CreatedAt = time.Now().UTC()
	res, err := s.db.NamedExecContext(ctx,
		`INSERT INTO documents (title, content, doc_type, metadata, embedding, created_at)
		 VALUES (:title, :content, :doc_type, :metadata, :embedding, :created_at)`, doc)
	if err != nil {
		return fmt.Errorf("failed to insert document: %w", err)
	}
	doc.ID, err = res.LastInsertId()
	return err
}

// BatchCreateDocuments inserts docs in one transaction, in order.
func (s *Store) BatchCreateDocuments(ctx context.Context, docs []*models.Document) error {
	if len(docs) == 0 {
		return nil
	}
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareNamedContext(ctx,
		`INSERT INTO documents (title, content, doc_type, metadata, embedding, created_at)
		 VALUES (:title, :content, :doc_type, :metadata, :embedding, :created_at)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	now := time.Now().UTC()
	for i, doc := range docs {
		doc.CreatedAt = now
		res, err := stmt.ExecContext(ctx, doc)
		if err != nil {
			return fmt.Errorf("failed to insert document %d: %w", i, err)
		}
		if doc.ID, err = res.LastInsertId(); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// GetDocument returns a document by ID.
func (s *Store) GetDocument(ctx context.Context, id int64) (*models.Document, error) {
	var doc models.Document
	err := s.db.GetContext(ctx, &doc, `SELECT `+documentColumns+` FROM documents WHERE id = ?`, id)
	if err != nil {
		return nil, notFound(err, "document", id)
	}
	return &doc, nil
}

// ListDocuments returns documents newest first.
func (s *Store) ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error) {
	if limit <= 0 {
		limit = 50
	}
	var docs []*models.Document
	err := s.db.SelectContext(ctx, &docs,
		`SELECT `+documentColumns+` FROM documents ORDER BY id DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	return docs, nil
}

// DeleteDocument removes a document by ID.
func (s *Store) DeleteDocument(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	return requireAffected(res, "document", id)
}

// DeleteDocumentsBySource removes every chunk ingested from sourcePath and returns how many.
func (s *Store) DeleteDocumentsBySource(ctx context.Context, sourcePath string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE json_extract(metadata, '$.`+models.MetaSourcePath+`') = ?`, sourcePath)
	if err != nil {
		return 0, fmt.Errorf("failed to delete documents for %s: %w", sourcePath, err)
	}
	return res.RowsAffected()
}

// SourceModTime returns the newest recorded mtime (unix seconds) of chunks from sourcePath,
// or 0 when the file has not been ingested.
func (s *Store) SourceModTime(ctx context.Context, sourcePath string) (int64, error) {
	var mtime int64
	err := s.db.GetContext(ctx, &mtime,
		`SELECT COALESCE(MAX(CAST(json_extract(metadata, '$.`+models.MetaModTime+`') AS INTEGER)), 0)
		 FROM documents WHERE json_extract(metadata, '$.`+models.MetaSourcePath+`') = ?`, sourcePath)
	if err != nil {
		return 0, fmt.Errorf("failed to read source mtime: %w", err)
	}
	return mtime, nil
}

// CountDocuments returns the number of stored documents.
func (s *Store) CountDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents`)
	return n, err
}

// CountEmbeddedDocuments returns the number of documents that carry an embedding.
func (s *Store) CountEmbeddedDocuments(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM documents WHERE embedding IS NOT NULL`)
	return n, err
}

// NearestDocuments returns up to k embedded documents ordered by ascending cosine
// distance to query. Equal distances keep insertion order.
func (s *Store) NearestDocuments(ctx context.Context, query []float32, k int) ([]*ScoredDocument, error) {
	if k <= 0 {
		return nil, nil
	}
	var out []*ScoredDocument
	err := s.db.SelectContext(ctx, &out,
		`SELECT `+documentColumns+`, distance FROM (
			SELECT `+documentColumns+`, vec_distance_cosine(embedding, ?) AS distance
			FROM documents WHERE embedding IS NOT NULL
		) WHERE distance IS NOT NULL
		ORDER BY distance ASC, id ASC
		LIMIT ?`, models.EncodeVector(query), k)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents by vector: %w", err)
	}
	return out, nil
}

// KeywordDocuments returns documents whose title or content contains query,
// case-insensitively, in insertion order. An empty query matches nothing.
func (s *Store) KeywordDocuments(ctx context.Context, query string, limit int) ([]*models.Document, error) {
	query = strings.TrimSpace(query)
	if query == "" || limit <= 0 {
		return nil, nil
	}
	pattern := "%" + escapeLike(strings.ToLower(query)) + "%"
	var docs []*models.Document
	err := s.db.SelectContext(ctx, &docs,
		`SELECT `+documentColumns+` FROM documents
		 WHERE LOWER(title) LIKE ? ESCAPE '\' OR LOWER(content) LIKE ? ESCAPE '\'
		 ORDER BY id ASC LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search documents by keyword: %w", err)
	}
	return docs, nil
}

// SetDocumentEmbedding replaces a document's embedding.
func (s *Store) SetDocumentEmbedding(ctx context.Context, id int64, emb []float32) error {
	res, err := s.db.ExecContext(ctx, `UPDATE documents SET embedding = ? WHERE id = ?`, models.Vector(emb), id)
	if err != nil {
		return fmt.Errorf("failed to update embedding: %w", err)
	}
	return requireAffected(res, "document", id)
}

// DocumentsWithoutEmbedding returns up to limit documents missing an embedding.
func (s *Store) DocumentsWithoutEmbedding(ctx context.Context, limit int) ([]*models.Document, error) {
	var docs []*models.Document
	err := s.db.SelectContext(ctx, &docs,
		`SELECT `+documentColumns+` FROM documents WHERE embedding IS NULL ORDER BY id ASC LIMIT ?`, limit)
	return docs, err
}

// escapeLike escapes LIKE wildcards so user text matches literally.
func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}
