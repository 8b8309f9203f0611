package storage

import (
	"context"

	"github.com/hyperjump/shitsumon/internal/models"
)

// DocumentStore persists RAG documents and answers similarity queries over them.
type DocumentStore interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	BatchCreateDocuments(ctx context.Context, docs []*models.Document) error
	GetDocument(ctx context.Context, id int64) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	DeleteDocument(ctx context.Context, id int64) error
	DeleteDocumentsBySource(ctx context.Context, sourcePath string) (int64, error)
	SourceModTime(ctx context.Context, sourcePath string) (int64, error)

	NearestDocuments(ctx context.Context, query []float32, k int) ([]*ScoredDocument, error)
	KeywordDocuments(ctx context.Context, query string, limit int) ([]*models.Document, error)

	CountDocuments(ctx context.Context) (int64, error)
	CountEmbeddedDocuments(ctx context.Context) (int64, error)
}

// TermStore persists business term mappings.
type TermStore interface {
	CreateTerm(ctx context.Context, m *models.TermMapping) error
	UpsertTerm(ctx context.Context, m *models.TermMapping) error
	GetTerm(ctx context.Context, id int64) (*models.TermMapping, error)
	GetTermByBusiness(ctx context.Context, businessTerm string) (*models.TermMapping, error)
	ListTerms(ctx context.Context, category string) ([]*models.TermMapping, error)
	SearchTerms(ctx context.Context, keyword, category string) ([]*models.TermMapping, error)
	UpdateTerm(ctx context.Context, m *models.TermMapping) error
	DeleteTerm(ctx context.Context, id int64) error
	TermCategories(ctx context.Context) ([]string, error)
}

// ExampleStore persists few-shot query examples.
type ExampleStore interface {
	CreateExample(ctx context.Context, ex *models.QueryExample) error
	GetExample(ctx context.Context, id int64) (*models.QueryExample, error)
	ListExamples(ctx context.Context) ([]*models.QueryExample, error)
	UpdateExample(ctx context.Context, ex *models.QueryExample) error
	DeleteExample(ctx context.Context, id int64) error
	SearchExamples(ctx context.Context, keyword, category string, limit int) ([]*models.QueryExample, error)
	NearestExamples(ctx context.Context, query []float32, k int) ([]*ScoredExample, error)
	CountEmbeddedExamples(ctx context.Context) (int64, error)
	TopExamples(ctx context.Context, category string, limit int) ([]*models.QueryExample, error)
	RecordExampleOutcome(ctx context.Context, id int64, success bool) (*models.QueryExample, error)
	ExampleCategories(ctx context.Context) ([]string, error)
	SetExampleEmbedding(ctx context.Context, id int64, emb []float32) error
}

// HistoryStore persists the query history.
type HistoryStore interface {
	InsertHistory(ctx context.Context, rec *models.QueryHistoryRecord) error
	GetHistory(ctx context.Context, id int64) (*models.QueryHistoryRecord, error)
	HistoryByIDs(ctx context.Context, ids []int64) ([]*models.QueryHistoryRecord, error)
	RecentHistory(ctx context.Context, limit int) ([]*models.QueryHistoryRecord, error)
	HistoryStats(ctx context.Context) (*models.HistoryStats, error)
}

// DescriptionStore persists table and column descriptions.
type DescriptionStore interface {
	UpsertColumnDescription(ctx context.Context, d *models.ColumnDescription) error
	ListColumnDescriptions(ctx context.Context, table string) ([]*models.ColumnDescription, error)
	DeleteColumnDescription(ctx context.Context, table, column string) error
	UpsertTableDescription(ctx context.Context, d *models.TableDescription) error
	ListTableDescriptions(ctx context.Context) ([]*models.TableDescription, error)
}

var (
	_ DocumentStore    = (*Store)(nil)
	_ TermStore        = (*Store)(nil)
	_ ExampleStore     = (*Store)(nil)
	_ HistoryStore     = (*Store)(nil)
	_ DescriptionStore = (*Store)(nil)
)
