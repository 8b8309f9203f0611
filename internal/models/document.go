// Package models defines the data structures shared by the assistant's components:
// documents and chunks, lexicon terms, few-shot examples, query history and schema descriptions.
package models

import "time"

// Document is a stored piece of reference text used for retrieval augmentation.
// The embedding is computed once when the document is created.
type Document struct {
	ID        int64     `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Content   string    `json:"content" db:"content"`
	DocType   string    `json:"doc_type" db:"doc_type"`
	Metadata  Metadata  `json:"metadata" db:"metadata"`
	Embedding Vector    `json:"-" db:"embedding"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// HasEmbedding reports whether the document carries a full embedding.
func (d *Document) HasEmbedding() bool {
	return len(d.Embedding) > 0
}

// DocumentChunk is one bounded segment of a source text produced by the chunker.
type DocumentChunk struct {
	ChunkID  int      `json:"chunk_id"`
	Content  string   `json:"content"`
	Metadata Metadata `json:"metadata"`
}

// DocumentInput is the input for storing a document.
type DocumentInput struct {
	Title    string   `json:"title"`
	Content  string   `json:"content"`
	DocType  string   `json:"doc_type,omitempty"`
	Metadata Metadata `json:"metadata,omitempty"`
}

// Metadata keys written by the chunker and the ingestion pipeline.
const (
	MetaChunkIndex    = "chunk_index"
	MetaTotalChunks   = "total_chunks"
	MetaChunkStrategy = "chunk_strategy"
	MetaStartPos      = "start_pos"
	MetaEndPos        = "end_pos"
	MetaFilename      = "filename"
	MetaFileType      = "file_type"
	MetaFileSize      = "file_size"
	MetaSourcePath    = "source_path"
	MetaCategory      = "category"
	MetaPage          = "page"
	MetaSheet         = "sheet"
	MetaModTime       = "mtime"
)
