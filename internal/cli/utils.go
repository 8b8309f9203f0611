// Package cli renders assistant results for the terminal.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"

	"github.com/hyperjump/shitsumon/internal/models"
	"github.com/hyperjump/shitsumon/internal/pipeline"
	"github.com/hyperjump/shitsumon/internal/storage"
	"github.com/hyperjump/shitsumon/pkg/utils"
)

// OutputFormat is the format for command output.
type OutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText OutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON OutputFormat = "json"
)

var (
	okColor    = color.New(color.FgGreen).SprintFunc()
	errColor   = color.New(color.FgRed).SprintFunc()
	sqlColor   = color.New(color.FgCyan).SprintFunc()
	faintColor = color.New(color.FgHiBlack).SprintFunc()
)

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// WriteTable renders rows under header as a bordered table.
func WriteTable(w io.Writer, header []string, rows [][]string) {
	table := tablewriter.NewTable(w,
		tablewriter.WithHeaderAutoWrap(tw.WrapNone),
		tablewriter.WithRowAutoWrap(tw.WrapNone),
		tablewriter.WithHeaderAutoFormat(tw.Off),
		tablewriter.WithRowAlignment(tw.AlignLeft),
	)
	table.Header(header)
	_ = table.Bulk(rows)
	_ = table.Render()
}

// WriteQueryResult renders a result set. Statements without columns print the
// affected row count.
func WriteQueryResult(w io.Writer, res *models.QueryResult) {
	if res == nil {
		return
	}
	if len(res.Columns) == 0 {
		fmt.Fprintf(w, "%d row(s) affected in %dms\n", res.RowCount, res.ElapsedMS)
		return
	}
	rows := make([][]string, 0, len(res.Rows))
	for _, r := range res.Rows {
		row := make([]string, len(res.Columns))
		for i, c := range res.Columns {
			row[i] = storage.FormatCell(r[c])
		}
		rows = append(rows, row)
	}
	WriteTable(w, res.Columns, rows)
	fmt.Fprintf(w, "%d row(s) in %dms\n", res.RowCount, res.ElapsedMS)
}

// WriteAskResult renders the outcome of one question.
func WriteAskResult(w io.Writer, res *pipeline.AskResult, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, res)
	}
	if res.Normalized != "" && res.Normalized != res.Question {
		fmt.Fprintf(w, "%s %s\n", faintColor("normalized:"), res.Normalized)
	}
	for _, m := range res.Mappings {
		fmt.Fprintf(w, "  %s → %s\n", m.Original, m.Replacement)
	}
	if len(res.UnknownTerms) > 0 {
		terms := make([]string, len(res.UnknownTerms))
		for i, u := range res.UnknownTerms {
			terms[i] = u.Term
		}
		fmt.Fprintf(w, "%s %s\n", faintColor("unknown terms:"), strings.Join(terms, ", "))
	}
	if len(res.Documents) > 0 {
		fmt.Fprintf(w, "%s %d (%s)\n", faintColor("context documents:"), len(res.Documents), res.RetrievalMode)
	}
	if len(res.Examples) > 0 {
		fmt.Fprintf(w, "%s %d\n", faintColor("examples:"), len(res.Examples))
	}
	if res.SQL != "" {
		fmt.Fprintf(w, "\n%s\n\n", sqlColor(res.SQL))
	}
	if !res.Success {
		fmt.Fprintf(w, "%s %s\n", errColor("✗"), res.Error)
		return nil
	}
	WriteQueryResult(w, res.Result)
	if res.Chart != nil && res.Chart.Kind != "" {
		fmt.Fprintf(w, "%s %s\n", faintColor("chart:"), res.Chart.Kind)
	}
	fmt.Fprintf(w, "%s %dms\n", okColor("✓"), res.ElapsedMS)
	return nil
}

// WriteHistory renders history records, newest first.
func WriteHistory(w io.Writer, recs []*models.QueryHistoryRecord) {
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		status := okColor("ok")
		if !r.Success {
			status = errColor("fail")
		}
		rows = append(rows, []string{
			strconv.FormatInt(r.ID, 10),
			r.CreatedAt.Format("2006-01-02 15:04:05"),
			TruncateWords(r.NaturalQuery, 8),
			utils.Truncate(utils.SingleLine(r.GeneratedSQL), 60),
			status,
			strconv.Itoa(r.ResultCount),
			strconv.FormatInt(r.ExecutionTimeMS, 10),
		})
	}
	WriteTable(w, []string{"ID", "When", "Question", "SQL", "Status", "Rows", "ms"}, rows)
}

// WriteHistoryStats renders aggregate history statistics.
func WriteHistoryStats(w io.Writer, st *models.HistoryStats) {
	fmt.Fprintf(w, "Total queries:   %d\n", st.Total)
	fmt.Fprintf(w, "Successful:      %d\n", st.Successes)
	fmt.Fprintf(w, "Success rate:    %.1f%%\n", st.SuccessRate)
	fmt.Fprintf(w, "Avg execution:   %.1fms\n", st.AvgExecutionMS)
}

// WriteTerms renders term mappings.
func WriteTerms(w io.Writer, terms []*models.TermMapping) {
	rows := make([][]string, 0, len(terms))
	for _, t := range terms {
		rows = append(rows, []string{
			strconv.FormatInt(t.ID, 10),
			t.BusinessTerm,
			t.TechnicalTerm,
			strings.Join(t.Synonyms, ", "),
			t.Category,
			utils.Truncate(t.Description, 40),
		})
	}
	WriteTable(w, []string{"ID", "Business", "Technical", "Synonyms", "Category", "Description"}, rows)
}

// WriteExamples renders query examples.
func WriteExamples(w io.Writer, exs []*models.QueryExample) {
	rows := make([][]string, 0, len(exs))
	for _, e := range exs {
		rows = append(rows, []string{
			strconv.FormatInt(e.ID, 10),
			TruncateWords(e.NaturalLanguageQuery, 8),
			utils.Truncate(utils.SingleLine(e.SQLQuery), 60),
			e.QueryCategory,
			e.Difficulty,
			fmt.Sprintf("%.2f", e.SuccessRate),
			strconv.FormatInt(e.UsageCount, 10),
		})
	}
	WriteTable(w, []string{"ID", "Question", "SQL", "Category", "Difficulty", "Success", "Used"}, rows)
}

// WriteScoredExamples renders examples with their similarity to a question.
func WriteScoredExamples(w io.Writer, exs []models.ScoredExample, mode string) {
	rows := make([][]string, 0, len(exs))
	for _, s := range exs {
		rows = append(rows, []string{
			strconv.FormatInt(s.Example.ID, 10),
			fmt.Sprintf("%.3f", s.Similarity),
			TruncateWords(s.Example.NaturalLanguageQuery, 8),
			utils.Truncate(utils.SingleLine(s.Example.SQLQuery), 60),
		})
	}
	WriteTable(w, []string{"ID", "Similarity", "Question", "SQL"}, rows)
	fmt.Fprintf(w, "%s %s\n", faintColor("mode:"), mode)
}

// WriteDocuments renders stored document chunks.
func WriteDocuments(w io.Writer, docs []*models.Document) {
	rows := make([][]string, 0, len(docs))
	for _, d := range docs {
		category, _ := d.Metadata[models.MetaCategory].(string)
		rows = append(rows, []string{
			strconv.FormatInt(d.ID, 10),
			utils.Truncate(d.Title, 50),
			d.DocType,
			category,
			strconv.Itoa(len([]rune(d.Content))),
		})
	}
	WriteTable(w, []string{"ID", "Title", "Type", "Category", "Chars"}, rows)
}

// WriteSearchResults renders retrieved documents in rank order.
func WriteSearchResults(w io.Writer, resp *models.SearchResponse, format OutputFormat) error {
	if format == OutputJSON {
		return WriteJSON(w, resp)
	}
	fmt.Fprintf(w, "\nFound %d documents in %dms (%s)\n\n", len(resp.Results), resp.QueryTime, resp.Mode)
	for _, r := range resp.Results {
		fmt.Fprintln(w, faintColor("─────────────────────────────────────────────────────────"))
		if resp.Mode == models.ModeSemantic {
			fmt.Fprintf(w, "Rank: %d | Similarity: %.4f\n", r.Rank, r.Similarity)
		} else {
			fmt.Fprintf(w, "Rank: %d\n", r.Rank)
		}
		fmt.Fprintf(w, "ID: %d\n", r.Document.ID)
		if r.Document.Title != "" {
			fmt.Fprintf(w, "Title: %s\n", r.Document.Title)
		}
		snippet := r.Snippet
		if snippet == "" {
			snippet = utils.Truncate(r.Document.Content, 200)
		}
		fmt.Fprintf(w, "\n%s\n\n", snippet)
	}
	return nil
}

// RenderMarkdown renders md for the terminal, wrapped at width columns. When the
// renderer cannot be built the markdown is written as is.
func RenderMarkdown(w io.Writer, md string, width int) error {
	if width <= 0 {
		width = 100
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		_, werr := io.WriteString(w, md)
		return werr
	}
	out, err := r.Render(md)
	if err != nil {
		return fmt.Errorf("render markdown: %w", err)
	}
	_, err = io.WriteString(w, out)
	return err
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
