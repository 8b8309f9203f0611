package models

import (
	"strings"
	"time"
)

// TermMapping links a business term (and its synonyms) to the technical name used in the schema.
type TermMapping struct {
	ID            int64      `json:"id" db:"id"`
	BusinessTerm  string     `json:"business_term" db:"business_term"`
	TechnicalTerm string     `json:"technical_term" db:"technical_term"`
	Synonyms      StringList `json:"synonyms" db:"synonyms"`
	Category      string     `json:"category" db:"category"`
	Description   string     `json:"description" db:"description"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Validate trims fields and checks the required ones.
func (m *TermMapping) Validate() error {
	m.BusinessTerm = strings.TrimSpace(m.BusinessTerm)
	m.TechnicalTerm = strings.TrimSpace(m.TechnicalTerm)
	if m.BusinessTerm == "" {
		return NewConfigurationError("business_term", "cannot be empty")
	}
	if m.TechnicalTerm == "" {
		return NewConfigurationError("technical_term", "cannot be empty")
	}
	syn := make(StringList, 0, len(m.Synonyms))
	for _, s := range m.Synonyms {
		if s = strings.TrimSpace(s); s != "" {
			syn = append(syn, s)
		}
	}
	m.Synonyms = syn
	return nil
}

// AppliedMapping records one substitution made by the normalizer.
type AppliedMapping struct {
	Original    string `json:"original"`
	Replacement string `json:"replacement"`
	Category    string `json:"category"`
}

// Replace modes for lexicon normalization.
const (
	ReplaceModeReplace = "replace"
	ReplaceModeAppend  = "append"
)
