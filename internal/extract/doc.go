package extract

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf16"

	"github.com/lu4p/cat"
)

// extractDOC handles legacy .doc files. Many of them are really RTF or OOXML, which
// cat reads. For Word 97 binaries the UTF-16LE text runs are scraped from the stream.
func extractDOC(content []byte) ([]Section, error) {
	text, err := cat.FromBytes(content)
	if err == nil && strings.TrimSpace(text) != "" {
		return single(text), nil
	}
	if scraped := scrapeUTF16(content, 4); scraped != "" {
		return single(scraped), nil
	}
	if err != nil {
		return nil, fmt.Errorf("extract DOC: %w", err)
	}
	return nil, nil
}

// scrapeUTF16 collects runs of at least minRun printable UTF-16LE characters,
// one run per line.
func scrapeUTF16(content []byte, minRun int) string {
	var (
		out strings.Builder
		run []uint16
	)
	flush := func() {
		if len(run) >= minRun {
			out.WriteString(strings.TrimSpace(string(utf16.Decode(run))))
			out.WriteByte('\n')
		}
		run = run[:0]
	}
	for i := 0; i+1 < len(content); i += 2 {
		u := uint16(content[i]) | uint16(content[i+1])<<8
		r := rune(u)
		if r == '\r' {
			run = append(run, '\n')
			continue
		}
		if unicode.IsPrint(r) || r == '\t' {
			run = append(run, u)
			continue
		}
		flush()
	}
	flush()
	return strings.TrimSpace(out.String())
}
