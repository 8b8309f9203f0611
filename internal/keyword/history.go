// Package keyword provides full-text search over past questions and their SQL, backed by Bleve.
package keyword

import (
	"context"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/lang/cjk"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	blevequery "github.com/blevesearch/bleve/v2/search/query"

	"github.com/hyperjump/shitsumon/internal/models"
)

// SearchOptions optional parameters for history search. Nil means use defaults.
type SearchOptions struct {
	// QuestionBoost multiplies the score contribution from matches in the question.
	// Values > 1 make question matches outrank SQL matches. Use 1.0 for no boost.
	QuestionBoost float64
	// FuzzyEnabled enables fuzzy matching for typo tolerance.
	FuzzyEnabled bool
	// Fuzziness is the maximum edit distance for fuzzy matching (1 or 2). Default 2.
	Fuzziness int
}

// Hit is a single history search hit.
type Hit struct {
	ID    int64
	Score float64
}

// historyDoc is what gets indexed for one history record.
type historyDoc struct {
	Question string `json:"question"`
	SQL      string `json:"sql"`
	Error    string `json:"error"`
	Success  bool   `json:"success"`
}

// HistoryIndex indexes query history records.
type HistoryIndex struct {
	index bleve.Index
}

// NewHistoryIndex creates or opens a Bleve index at path. An empty path keeps the index
// in memory. Questions use the CJK analyzer, which keeps Hangul words whole and bigrams
// Han and Kana runs; SQL and error text use the standard analyzer.
// If you change the index mapping in code, remove the index directory to force a re-index.
func NewHistoryIndex(path string) (*HistoryIndex, error) {
	im := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	question := bleve.NewTextFieldMapping()
	question.Analyzer = cjk.AnalyzerName
	docMapping.AddFieldMappingsAt("question", question)
	sqlField := bleve.NewTextFieldMapping()
	sqlField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("sql", sqlField)
	errField := bleve.NewTextFieldMapping()
	errField.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt("error", errField)
	docMapping.AddFieldMappingsAt("success", bleve.NewBooleanFieldMapping())
	im.AddDocumentMapping("history", docMapping)
	im.DefaultType = "history"
	im.DefaultMapping = docMapping

	if path == "" {
		index, err := bleve.NewMemOnly(im)
		if err != nil {
			return nil, fmt.Errorf("failed to create history index: %w", err)
		}
		return &HistoryIndex{index: index}, nil
	}
	if _, err := os.Stat(path); err == nil {
		index, openErr := bleve.Open(path)
		if openErr != nil {
			return nil, fmt.Errorf("failed to open history index: %w", openErr)
		}
		return &HistoryIndex{index: index}, nil
	}
	index, err := bleve.New(path, im)
	if err != nil {
		return nil, fmt.Errorf("failed to create history index: %w", err)
	}
	return &HistoryIndex{index: index}, nil
}

func toDoc(rec *models.QueryHistoryRecord) historyDoc {
	d := historyDoc{Question: rec.NaturalQuery, SQL: rec.GeneratedSQL, Success: rec.Success}
	if rec.ErrorMessage != nil {
		d.Error = *rec.ErrorMessage
	}
	return d
}

// IndexHistory indexes one record under its ID.
func (h *HistoryIndex) IndexHistory(rec *models.QueryHistoryRecord) error {
	return h.index.Index(strconv.FormatInt(rec.ID, 10), toDoc(rec))
}

// Rebuild indexes every record in one batch, replacing entries with the same IDs.
func (h *HistoryIndex) Rebuild(recs []*models.QueryHistoryRecord) error {
	batch := h.index.NewBatch()
	for _, rec := range recs {
		if err := batch.Index(strconv.FormatInt(rec.ID, 10), toDoc(rec)); err != nil {
			return fmt.Errorf("failed to batch history %d: %w", rec.ID, err)
		}
	}
	return h.index.Batch(batch)
}

// Search runs query and returns up to limit hits, best first.
// When opts is nil or QuestionBoost <= 1, one match over every field is used. Otherwise
// question and SQL are queried separately and merged with additive scoring and a term
// coverage penalty for hits that match only some of the query terms.
func (h *HistoryIndex) Search(ctx context.Context, query string, limit int, opts *SearchOptions) ([]*Hit, error) {
	if strings.TrimSpace(query) == "" || limit <= 0 {
		return []*Hit{}, nil
	}
	boost := 1.0
	fuzzy := false
	fuzziness := 2
	if opts != nil {
		if opts.QuestionBoost > 0 {
			boost = opts.QuestionBoost
		}
		fuzzy = opts.FuzzyEnabled
		if opts.Fuzziness > 0 {
			fuzziness = opts.Fuzziness
		}
	}

	if boost <= 1.0 {
		req := bleve.NewSearchRequest(h.buildQuery(query, fuzzy, fuzziness, ""))
		req.Size = limit
		res, err := h.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("history search failed: %w", err)
		}
		out := make([]*Hit, 0, len(res.Hits))
		for _, hit := range res.Hits {
			out = appendHit(out, hit.ID, hit.Score)
		}
		return out, nil
	}
	return h.searchWithBoost(ctx, query, limit, boost, fuzzy, fuzziness)
}

func (h *HistoryIndex) searchWithBoost(ctx context.Context, query string, limit int, boost float64, fuzzy bool, fuzziness int) ([]*Hit, error) {
	reqSize := limit * 2
	if reqSize < 50 {
		reqSize = 50
	}
	scores := make(map[string]float64)
	for _, f := range []struct {
		field string
		mult  float64
	}{{"question", boost}, {"sql", 1}} {
		req := bleve.NewSearchRequest(h.buildQuery(query, fuzzy, fuzziness, f.field))
		req.Size = reqSize
		res, err := h.index.SearchInContext(ctx, req)
		if err != nil {
			return nil, fmt.Errorf("history %s search failed: %w", f.field, err)
		}
		for _, hit := range res.Hits {
			scores[hit.ID] += hit.Score * f.mult
		}
	}

	// squared coverage: a hit matching 1 of 2 terms keeps a quarter of its score
	terms := tokenizeQuery(query)
	if len(terms) > 1 {
		coverage := make(map[string]int)
		for _, term := range terms {
			req := bleve.NewSearchRequest(h.buildQuery(term, fuzzy, fuzziness, ""))
			req.Size = reqSize
			res, err := h.index.SearchInContext(ctx, req)
			if err != nil {
				continue
			}
			for _, hit := range res.Hits {
				coverage[hit.ID]++
			}
		}
		for id := range scores {
			matched := coverage[id]
			if matched == 0 {
				matched = 1
			}
			c := float64(matched) / float64(len(terms))
			scores[id] *= c * c
		}
	}

	out := make([]*Hit, 0, len(scores))
	for id, s := range scores {
		out = appendHit(out, id, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID > out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func appendHit(out []*Hit, id string, score float64) []*Hit {
	n, err := strconv.ParseInt(id, 10, 64)
	if err != nil {
		return out
	}
	return append(out, &Hit{ID: n, Score: score})
}

// tokenizeQuery splits query into lowercase terms.
func tokenizeQuery(query string) []string {
	return strings.Fields(strings.ToLower(query))
}

// buildQuery returns a match query, or a disjunction of fuzzy term queries when fuzzy is
// set. An empty field searches every field.
func (h *HistoryIndex) buildQuery(query string, fuzzy bool, fuzziness int, field string) blevequery.Query {
	terms := tokenizeQuery(query)
	if !fuzzy || len(terms) == 0 {
		mq := bleve.NewMatchQuery(query)
		if field != "" {
			mq.SetField(field)
		}
		return mq
	}
	queries := make([]blevequery.Query, 0, len(terms))
	for _, term := range terms {
		fq := bleve.NewFuzzyQuery(term)
		fq.SetFuzziness(fuzziness)
		if field != "" {
			fq.SetField(field)
		}
		queries = append(queries, fq)
	}
	if len(queries) == 1 {
		return queries[0]
	}
	return bleve.NewDisjunctionQuery(queries...)
}

// Delete removes a record from the index.
func (h *HistoryIndex) Delete(id int64) error {
	return h.index.Delete(strconv.FormatInt(id, 10))
}

// DocCount returns the number of indexed records.
func (h *HistoryIndex) DocCount() (uint64, error) {
	return h.index.DocCount()
}

// Close closes the index.
func (h *HistoryIndex) Close() error {
	return h.index.Close()
}

// GetAllTerms returns the unique terms of the question and SQL fields.
func (h *HistoryIndex) GetAllTerms() ([]string, error) {
	var terms []string
	seen := make(map[string]struct{})
	for _, field := range []string{"question", "sql"} {
		dict, err := h.index.FieldDict(field)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s terms: %w", field, err)
		}
		for {
			entry, err := dict.Next()
			if err != nil || entry == nil {
				break
			}
			if _, ok := seen[entry.Term]; !ok {
				seen[entry.Term] = struct{}{}
				terms = append(terms, entry.Term)
			}
		}
		_ = dict.Close()
	}
	return terms, nil
}

// GetTermFrequency returns how many records contain term.
func (h *HistoryIndex) GetTermFrequency(term string) (int, error) {
	req := bleve.NewSearchRequest(bleve.NewMatchQuery(term))
	req.Size = 0
	res, err := h.index.Search(req)
	if err != nil {
		return 0, fmt.Errorf("failed to search for term frequency: %w", err)
	}
	return int(res.Total), nil
}
