// Package storage persists documents, term mappings, query examples, schema descriptions
// and the query history in SQLite, and introspects the database generated SQL runs against.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/jmoiron/sqlx"

	"github.com/hyperjump/shitsumon/internal/models"
)

// Store implements every persistence interface of this package on one SQLite database.
type Store struct {
	db   *sqlx.DB
	path string
}

// Open opens or creates the SQLite database at dbPath and initializes the schema.
// Parent directories are created if they do not exist. ":memory:" opens a private
// in-memory database limited to a single connection.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}
	db, err := sqlx.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}

	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return &Store{db: db, path: dbPath}, nil
}

// OpenTarget opens an existing database that generated SQL runs against. Unlike Open it
// creates nothing: the file must exist and no assistant tables are added to it.
func OpenTarget(dbPath string) (*sql.DB, error) {
	if _, err := os.Stat(dbPath); err != nil {
		return nil, fmt.Errorf("target database: %w", err)
	}
	db, err := sql.Open(DriverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open target database: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to set busy timeout: %w", err)
	}
	return db, nil
}

// Tables owned by the assistant itself. Schema descriptions shown to the LLM skip them.
var InternalTables = []string{
	"documents", "query_history", "query_examples",
	"term_mappings", "column_descriptions", "table_descriptions",
}

func initSchema(db *sqlx.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS documents (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL DEFAULT '',
		content TEXT NOT NULL,
		doc_type TEXT NOT NULL DEFAULT '',
		metadata TEXT NOT NULL DEFAULT '{}',
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_documents_doc_type ON documents(doc_type);

	CREATE TABLE IF NOT EXISTS query_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		natural_query TEXT NOT NULL,
		generated_sql TEXT NOT NULL DEFAULT '',
		success BOOLEAN NOT NULL,
		execution_time_ms INTEGER NOT NULL DEFAULT 0,
		result_count INTEGER NOT NULL DEFAULT 0,
		error_message TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_query_history_created_at ON query_history(created_at);

	CREATE TABLE IF NOT EXISTS query_examples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		natural_language_query TEXT NOT NULL,
		sql_query TEXT NOT NULL,
		query_category TEXT NOT NULL DEFAULT '',
		difficulty TEXT NOT NULL DEFAULT 'medium',
		tags TEXT NOT NULL DEFAULT '[]',
		success_rate REAL NOT NULL DEFAULT 0 CHECK (success_rate >= 0 AND success_rate <= 1),
		usage_count INTEGER NOT NULL DEFAULT 0 CHECK (usage_count >= 0),
		embedding BLOB,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_query_examples_category ON query_examples(query_category);

	CREATE TABLE IF NOT EXISTS term_mappings (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		business_term TEXT NOT NULL UNIQUE COLLATE NOCASE,
		technical_term TEXT NOT NULL,
		synonyms TEXT NOT NULL DEFAULT '[]',
		category TEXT NOT NULL DEFAULT '',
		description TEXT NOT NULL DEFAULT '',
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS column_descriptions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		table_name TEXT NOT NULL,
		column_name TEXT NOT NULL,
		description TEXT NOT NULL DEFAULT '',
		business_meaning TEXT NOT NULL DEFAULT '',
		data_examples TEXT NOT NULL DEFAULT '[]',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE (table_name, column_name)
	);

	CREATE TABLE IF NOT EXISTS table_descriptions (
		table_name TEXT PRIMARY KEY,
		description TEXT NOT NULL DEFAULT '',
		business_purpose TEXT NOT NULL DEFAULT '',
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := db.Exec(schema)
	return err
}

// DB returns the underlying handle, used to run generated SQL when no separate
// target database is configured.
func (s *Store) DB() *sql.DB {
	return s.db.DB
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Stats reports row counts of the assistant's tables.
type Stats struct {
	Documents         int64 `json:"documents" db:"documents"`
	EmbeddedDocuments int64 `json:"embedded_documents" db:"embedded_documents"`
	Terms             int64 `json:"terms" db:"terms"`
	Examples          int64 `json:"examples" db:"examples"`
	ColumnDescs       int64 `json:"column_descriptions" db:"column_descriptions"`
	History           int64 `json:"history" db:"history"`
	VecExtension      bool  `json:"vec_extension" db:"-"`
	DiskBytes         int64 `json:"disk_bytes" db:"-"`
}

// Stats returns table counts and the on-disk size of the database.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.db.GetContext(ctx, &st, `SELECT
		(SELECT COUNT(*) FROM documents) AS documents,
		(SELECT COUNT(*) FROM documents WHERE embedding IS NOT NULL) AS embedded_documents,
		(SELECT COUNT(*) FROM term_mappings) AS terms,
		(SELECT COUNT(*) FROM query_examples) AS examples,
		(SELECT COUNT(*) FROM column_descriptions) AS column_descriptions,
		(SELECT COUNT(*) FROM query_history) AS history`)
	if err != nil {
		return nil, fmt.Errorf("failed to count rows: %w", err)
	}
	st.VecExtension = vecExtension
	if s.path != ":memory:" {
		st.DiskBytes, err = DiskUsageBytes(s.path, s.path+"-wal", s.path+"-shm")
		if err != nil {
			return nil, err
		}
	}
	return &st, nil
}

// notFound converts sql.ErrNoRows into models.ErrNotFound.
func notFound(err error, what string, id interface{}) error {
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s %v: %w", what, id, models.ErrNotFound)
	}
	return err
}

// requireAffected returns models.ErrNotFound when an UPDATE or DELETE touched no row.
func requireAffected(res sql.Result, what string, id interface{}) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("%s %v: %w", what, id, models.ErrNotFound)
	}
	return nil
}
