package models

// AskRequest is a natural-language question submitted to the assistant.
type AskRequest struct {
	Question   string   `json:"question"`
	UseRAG     *bool    `json:"use_rag,omitempty"`
	UseLexicon *bool    `json:"use_lexicon,omitempty"`
	UseExample *bool    `json:"use_examples,omitempty"`
	Chart      bool     `json:"chart,omitempty"`
	TopK       int      `json:"top_k,omitempty"`
	Threshold  *float64 `json:"threshold,omitempty"`
}

// Validate ensures the request has a question and sane limits.
func (r *AskRequest) Validate() error {
	if r.Question == "" {
		return NewConfigurationError("question", "cannot be empty")
	}
	if r.TopK < 0 {
		return NewConfigurationError("top_k", "cannot be negative, got %d", r.TopK)
	}
	if r.TopK > 20 {
		r.TopK = 20
	}
	if r.Threshold != nil && (*r.Threshold < -1 || *r.Threshold > 1) {
		return NewConfigurationError("threshold", "must be within [-1,1], got %v", *r.Threshold)
	}
	return nil
}

// SearchQuery is a document retrieval request.
type SearchQuery struct {
	Query     string   `json:"query"`
	Limit     int      `json:"limit,omitempty"`
	Threshold *float64 `json:"threshold,omitempty"`
}

// Validate ensures the query is non-empty and caps the limit.
func (q *SearchQuery) Validate() error {
	if q.Query == "" {
		return NewConfigurationError("query", "cannot be empty")
	}
	if q.Limit <= 0 {
		q.Limit = 3
	}
	if q.Limit > 100 {
		q.Limit = 100
	}
	return nil
}
