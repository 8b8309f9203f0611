package models

// QueryResult is the outcome of executing one SQL statement.
type QueryResult struct {
	Columns   []string                 `json:"columns"`
	Rows      []map[string]interface{} `json:"rows"`
	RowCount  int                      `json:"row_count"`
	ElapsedMS int64                    `json:"elapsed_ms"`
}

// Retrieval modes reported by document search.
const (
	ModeSemantic = "semantic"
	ModeKeyword  = "keyword"
)

// SearchResult is one retrieved document.
type SearchResult struct {
	Document   *Document `json:"document"`
	Similarity float64   `json:"similarity"`
	Snippet    string    `json:"snippet,omitempty"`
	Rank       int       `json:"rank"`
}

// SearchResponse is the response for a retrieval request.
// Similarity is only meaningful when Mode is ModeSemantic.
type SearchResponse struct {
	Results   []*SearchResult `json:"results"`
	Mode      string          `json:"mode"`
	Query     string          `json:"query"`
	QueryTime int64           `json:"query_time_ms"`
}
