// Package sqlextract pulls the SQL statement out of a language model's free-text answer.
package sqlextract

import (
	"strings"
	"unicode"

	"vitess.io/vitess/go/vt/sqlparser"

	"github.com/hyperjump/shitsumon/internal/models"
)

var starters = []string{"SELECT", "INSERT", "UPDATE", "DELETE", "WITH"}

// Extract returns the first SQL statement in raw. A surrounding code fence is removed,
// capture starts at the first line beginning with SELECT, INSERT, UPDATE, DELETE or WITH,
// and ends at the first line ending in a semicolon or at a closing fence. When no line
// starts a statement the trimmed response is returned as is.
func Extract(raw string) string {
	s, _ := Find(raw)
	return s
}

// Find is Extract that also reports models.ErrNoSQLFound when no statement start was seen.
func Find(raw string) (string, error) {
	text := stripFence(strings.TrimSpace(raw))

	var (
		captured []string
		inQuery  bool
	)
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if !inQuery && startsStatement(trimmed) {
			inQuery = true
		}
		if !inQuery {
			continue
		}
		if strings.HasPrefix(trimmed, "```") {
			break
		}
		captured = append(captured, strings.TrimRight(line, " \t\r"))
		if strings.HasSuffix(trimmed, ";") {
			break
		}
	}
	if len(captured) == 0 {
		return strings.TrimSpace(raw), models.ErrNoSQLFound
	}
	return strings.TrimSpace(strings.Join(captured, "\n")), nil
}

// stripFence removes a leading ``` with its language tag and a trailing ```. The tag is
// either a whole word right after the fence ("```sql SELECT ...") or a line of its own.
func stripFence(s string) string {
	if strings.HasPrefix(s, "```") {
		s = s[3:]
		if len(s) >= 3 && strings.EqualFold(s[:3], "sql") && (len(s) == 3 || unicode.IsSpace(rune(s[3]))) {
			s = s[3:]
		} else if i := strings.IndexByte(s, '\n'); i >= 0 && isFenceTag(strings.TrimSpace(s[:i])) {
			s = s[i+1:]
		}
	}
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "```") {
		s = strings.TrimSpace(s[:len(s)-3])
	}
	return s
}

// isFenceTag reports whether the rest of an opening fence line is a language tag rather
// than the start of the statement itself.
func isFenceTag(s string) bool {
	return s == "" || (!strings.ContainsAny(s, " \t") && !startsStatement(s))
}

func startsStatement(line string) bool {
	upper := strings.ToUpper(line)
	for _, kw := range starters {
		if !strings.HasPrefix(upper, kw) {
			continue
		}
		rest := upper[len(kw):]
		if rest == "" || !isIdentRune(rune(rest[0])) {
			return true
		}
	}
	return false
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// Kind classifies sql by the keyword of its main statement, e.g. "SELECT" or "UPDATE".
// A WITH clause is skipped, so a CTE query is a "SELECT". Keywords the MySQL grammar does
// not know, such as PRAGMA, are reported as written; empty text is "UNKNOWN".
func Kind(sql string) string {
	if t := sqlparser.Preview(sql); t != sqlparser.StmtUnknown && !isWith(sql) {
		return strings.ToUpper(t.String())
	}
	if kw := mainKeyword(sql); kw != "" {
		return kw
	}
	return strings.ToUpper(sqlparser.StmtUnknown.String())
}

// ReadOnly reports whether sql is a statement that does not change data and returns a
// result set.
func ReadOnly(sql string) bool {
	if !isWith(sql) {
		switch sqlparser.Preview(sql) {
		case sqlparser.StmtSelect, sqlparser.StmtShow, sqlparser.StmtExplain:
			return true
		}
	}
	switch mainKeyword(sql) {
	case "SELECT", "VALUES", "PRAGMA", "EXPLAIN", "SHOW", "DESCRIBE", "DESC":
		return true
	default:
		return false
	}
}

// mainKeyword returns the upper-cased first keyword of sql. For a WITH statement it is
// the first keyword after the common table expressions, found outside any parentheses
// or quoted text.
func mainKeyword(sql string) string {
	words := topLevelWords(sql)
	if len(words) == 0 {
		return ""
	}
	if words[0] != "WITH" {
		return words[0]
	}
	for _, w := range words[1:] {
		switch w {
		case "SELECT", "VALUES", "INSERT", "REPLACE", "UPDATE", "DELETE":
			return w
		}
	}
	return "WITH"
}

func isWith(sql string) bool {
	words := topLevelWords(sql)
	return len(words) > 0 && words[0] == "WITH"
}

// topLevelWords lists the upper-cased words of sql at parenthesis depth zero, skipping
// comments and quoted strings or identifiers.
func topLevelWords(sql string) []string {
	var (
		words []string
		depth int
	)
	r := []rune(sql)
	for i := 0; i < len(r); i++ {
		c := r[i]
		switch {
		case c == '-' && i+1 < len(r) && r[i+1] == '-':
			for i < len(r) && r[i] != '\n' {
				i++
			}
		case c == '/' && i+1 < len(r) && r[i+1] == '*':
			i += 2
			for i+1 < len(r) && !(r[i] == '*' && r[i+1] == '/') {
				i++
			}
			i++
		case c == '\'' || c == '"' || c == '`' || c == '[':
			end := c
			if c == '[' {
				end = ']'
			}
			for i++; i < len(r) && r[i] != end; i++ {
			}
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case unicode.IsLetter(c) || c == '_':
			j := i
			for j < len(r) && isIdentRune(r[j]) {
				j++
			}
			if depth == 0 {
				words = append(words, strings.ToUpper(string(r[i:j])))
			}
			i = j - 1
		}
	}
	return words
}
