// Package csvio reads and writes the CSV files used to import and export terms, examples and
// column descriptions. List-valued fields are written as bracketed literals.
package csvio

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// FormatList renders l as a bracketed, double-quoted literal such as ["a", "b"].
func FormatList(l []string) string {
	if len(l) == 0 {
		return "[]"
	}
	quoted := make([]string, len(l))
	for i, s := range l {
		quoted[i] = strconv.Quote(s)
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

// ParseList parses a list literal written by FormatList. Single-quoted items are accepted,
// and so is a bare comma-separated value without brackets. Blank input is an empty list.
func ParseList(s string) ([]string, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "[]" {
		return nil, nil
	}
	if !strings.HasPrefix(s, "[") {
		var out []string
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
		return out, nil
	}
	if !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("list literal %q is missing the closing bracket", s)
	}

	body := []rune(s[1 : len(s)-1])
	var out []string
	for i := 0; i < len(body); {
		switch r := body[i]; {
		case r == ' ' || r == '\t' || r == ',':
			i++
		case r == '"' || r == '\'':
			item, next, err := quotedItem(body, i)
			if err != nil {
				return nil, fmt.Errorf("list literal %q: %w", s, err)
			}
			out = append(out, item)
			i = next
		default:
			return nil, fmt.Errorf("list literal %q: unexpected %q at %d", s, r, i+1)
		}
	}
	return out, nil
}

// quotedItem reads the item starting at the quote body[start] and returns it with the index
// just past its closing quote. Double-quoted items use Go string syntax, the inverse of
// FormatList; single-quoted items only understand \n, \t and identity escapes.
func quotedItem(body []rune, start int) (string, int, error) {
	quote := body[start]
	var b strings.Builder
	for i := start + 1; i < len(body); i++ {
		switch r := body[i]; {
		case r == '\\' && i+1 < len(body):
			i++
			if quote == '"' {
				continue
			}
			switch esc := body[i]; esc {
			case 'n':
				b.WriteRune('\n')
			case 't':
				b.WriteRune('\t')
			default:
				b.WriteRune(esc)
			}
		case r == quote:
			if quote == '"' {
				item, err := strconv.Unquote(string(body[start : i+1]))
				if err != nil {
					return "", 0, fmt.Errorf("item at %d: %w", start+1, err)
				}
				return item, i + 1, nil
			}
			return b.String(), i + 1, nil
		default:
			b.WriteRune(r)
		}
	}
	return "", 0, fmt.Errorf("unterminated item at %d", start+1)
}

// Table is a CSV file held as a header and rows of equal width.
type Table struct {
	Header []string
	Rows   [][]string
}

// Write writes t with a header line.
func Write(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return fmt.Errorf("failed to write csv header: %w", err)
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return fmt.Errorf("failed to write csv rows: %w", err)
	}
	return nil
}

// Record is one CSV row keyed by header name.
type Record map[string]string

// Get returns the trimmed value of column name, or "" when absent.
func (r Record) Get(name string) string {
	return strings.TrimSpace(r[name])
}

// Read parses a CSV file with a header line. Header names are trimmed and lower-cased, a
// leading byte order mark is dropped, and every name in required must be present.
func Read(r io.Reader, required ...string) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	header, err := cr.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("csv is empty")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range required {
		if _, ok := index[name]; !ok {
			return nil, fmt.Errorf("csv is missing required column %q", name)
		}
	}

	var out []Record
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read csv line %d: %w", line, err)
		}
		rec := make(Record, len(index))
		for name, i := range index {
			if i < len(row) {
				rec[name] = row[i]
			}
		}
		out = append(out, rec)
	}
}

// ParseFloat parses s, returning def when s is blank.
func ParseFloat(s string, def float64) (float64, error) {
	if s = strings.TrimSpace(s); s == "" {
		return def, nil
	}
	return strconv.ParseFloat(s, 64)
}

// ParseInt parses s, returning def when s is blank.
func ParseInt(s string, def int64) (int64, error) {
	if s = strings.TrimSpace(s); s == "" {
		return def, nil
	}
	return strconv.ParseInt(s, 10, 64)
}
