// Package prompt assembles the text sent to the language model.
package prompt

import (
	"fmt"
	"strings"

	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/pkg/utils"
)

// DefaultDialect is the SQL dialect named in the instructions.
const DefaultDialect = "SQLite"

// Context snippets longer than this many runes are cut.
const snippetRunes = 200

// Input is everything a prompt is built from. Only Question is required.
type Input struct {
	Question  string
	Schema    string
	Documents []*models.SearchResult
	Mappings  []models.AppliedMapping
	FewShot   string
	Dialect   string
}

// Build renders the prompt: schema, retrieved documents, few-shot examples and the
// applied term mappings, followed by the rules and the question.
func Build(in Input) string {
	dialect := in.Dialect
	if dialect == "" {
		dialect = DefaultDialect
	}

	var b strings.Builder
	fmt.Fprintf(&b, "You are a SQL expert. Convert the following natural language query into a valid %s SQL query.\n\n", dialect)
	if s := strings.TrimSpace(in.Schema); s != "" {
		b.WriteString(s)
		b.WriteString("\n")
	}
	if rag := DocumentContext(in.Documents); rag != "" {
		b.WriteString(rag)
	}
	if fs := strings.TrimSpace(in.FewShot); fs != "" {
		b.WriteString("\n")
		b.WriteString(fs)
		b.WriteString("\n")
	}
	if len(in.Mappings) > 0 {
		b.WriteString("\nTerm mappings:\n")
		for _, m := range in.Mappings {
			fmt.Fprintf(&b, "- %s → %s\n", m.Original, m.Replacement)
		}
	}
	fmt.Fprintf(&b, `
Rules:
1. Only generate the SQL query, no explanations
2. Use proper %s syntax
3. Use appropriate JOINs when needed
4. Include WHERE clauses for filtering
5. Use aggregate functions when appropriate
6. Ensure the query is safe and doesn't modify data

Natural Language Query: %s

SQL Query:`, dialect, strings.TrimSpace(in.Question))
	return b.String()
}

// DocumentContext renders retrieved documents as a bulleted block, or "" when there are none.
func DocumentContext(docs []*models.SearchResult) string {
	if len(docs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n관련 문서 컨텍스트:\n")
	for _, r := range docs {
		if r == nil || r.Document == nil {
			continue
		}
		fmt.Fprintf(&b, "- %s: %s\n", r.Document.Title, utils.Truncate(utils.SingleLine(r.Document.Content), snippetRunes))
	}
	return b.String()
}
