package models

import (
	"strings"
	"time"
)

// Difficulty levels for query examples.
const (
	DifficultyEasy   = "easy"
	DifficultyMedium = "medium"
	DifficultyHard   = "hard"
)

// QueryExample is a worked natural-language to SQL pair used as a few-shot example.
type QueryExample struct {
	ID                   int64      `json:"id" db:"id"`
	NaturalLanguageQuery string     `json:"natural_language_query" db:"natural_language_query"`
	SQLQuery             string     `json:"sql_query" db:"sql_query"`
	QueryCategory        string     `json:"query_category" db:"query_category"`
	Difficulty           string     `json:"difficulty" db:"difficulty"`
	Tags                 StringList `json:"tags" db:"tags"`
	SuccessRate          float64    `json:"success_rate" db:"success_rate"`
	UsageCount           int64      `json:"usage_count" db:"usage_count"`
	Embedding            Vector     `json:"-" db:"embedding"`
	CreatedAt            time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt            time.Time  `json:"updated_at" db:"updated_at"`
}

// Validate checks required fields and applies the default difficulty.
func (e *QueryExample) Validate() error {
	e.NaturalLanguageQuery = strings.TrimSpace(e.NaturalLanguageQuery)
	e.SQLQuery = strings.TrimSpace(e.SQLQuery)
	if e.NaturalLanguageQuery == "" {
		return NewConfigurationError("natural_language_query", "cannot be empty")
	}
	if e.SQLQuery == "" {
		return NewConfigurationError("sql_query", "cannot be empty")
	}
	if e.Difficulty == "" {
		e.Difficulty = DifficultyMedium
	}
	if e.SuccessRate < 0 || e.SuccessRate > 1 {
		return NewConfigurationError("success_rate", "must be within [0,1], got %v", e.SuccessRate)
	}
	if e.UsageCount < 0 {
		return NewConfigurationError("usage_count", "cannot be negative")
	}
	return nil
}

// RecordOutcome folds one execution outcome into the running success average.
func (e *QueryExample) RecordOutcome(success bool) {
	var s float64
	if success {
		s = 1
	}
	e.SuccessRate = (e.SuccessRate*float64(e.UsageCount) + s) / float64(e.UsageCount+1)
	e.UsageCount++
}

// ScoredExample is an example returned by similarity search.
type ScoredExample struct {
	Example    *QueryExample `json:"example"`
	Similarity float64       `json:"similarity"`
}
