// Package extract turns document files into text sections ready for chunking.
package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/hyperjump/shitsumon/internal/models"
)

// Section is one extracted unit of a document: a page, a sheet or the whole file.
type Section struct {
	Content  string
	Metadata models.Metadata
}

// ExtractFunc extracts sections from the raw bytes of one file format.
type ExtractFunc func(content []byte) ([]Section, error)

// Extractor dispatches on file extension to a registered ExtractFunc.
type Extractor struct {
	funcs map[string]ExtractFunc
}

// NewExtractor returns an Extractor with every supported format registered:
// .pdf, .docx, .doc, .xlsx, .xls, .txt and .md.
func NewExtractor() *Extractor {
	e := &Extractor{funcs: make(map[string]ExtractFunc)}
	e.Register(".pdf", extractPDF)
	e.Register(".docx", extractDOCX)
	e.Register(".doc", extractDOC)
	e.Register(".xlsx", extractExcel)
	e.Register(".xls", extractExcel)
	e.Register(".txt", extractPlain)
	e.Register(".md", extractPlain)
	return e
}

// Register binds fn to ext, replacing any previous binding.
func (e *Extractor) Register(ext string, fn ExtractFunc) {
	e.funcs[normalizeExt(ext)] = fn
}

// Supported reports whether ext has a registered extractor.
func (e *Extractor) Supported(ext string) bool {
	_, ok := e.funcs[normalizeExt(ext)]
	return ok
}

// Extensions returns the registered extensions, sorted.
func (e *Extractor) Extensions() []string {
	out := make([]string, 0, len(e.funcs))
	for ext := range e.funcs {
		out = append(out, ext)
	}
	sort.Strings(out)
	return out
}

// Extract reads the file at path and extracts its sections.
// An unregistered extension fails with models.ErrUnsupportedFormat before the file is read.
func (e *Extractor) Extract(path string) ([]Section, error) {
	ext := filepath.Ext(path)
	if !e.Supported(ext) {
		return nil, unsupported(ext)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return e.ExtractBytes(content, ext)
}

// ExtractBytes extracts sections from content using the extractor registered for ext.
// ext should include the leading dot (e.g. ".pdf").
func (e *Extractor) ExtractBytes(content []byte, ext string) ([]Section, error) {
	fn, ok := e.funcs[normalizeExt(ext)]
	if !ok {
		return nil, unsupported(ext)
	}
	sections, err := fn(content)
	if err != nil {
		return nil, err
	}
	out := sections[:0]
	for _, s := range sections {
		if strings.TrimSpace(s.Content) == "" {
			continue
		}
		if s.Metadata == nil {
			s.Metadata = models.Metadata{}
		}
		out = append(out, s)
	}
	return out, nil
}

// Text joins the sections' content with blank lines.
func Text(sections []Section) string {
	parts := make([]string, len(sections))
	for i, s := range sections {
		parts[i] = s.Content
	}
	return strings.Join(parts, "\n\n")
}

func unsupported(ext string) error {
	if ext == "" {
		ext = "(none)"
	}
	return fmt.Errorf("extension %s: %w", ext, models.ErrUnsupportedFormat)
}

func normalizeExt(ext string) string {
	ext = strings.ToLower(strings.TrimSpace(ext))
	if ext != "" && !strings.HasPrefix(ext, ".") {
		ext = "." + ext
	}
	return ext
}

func single(text string) []Section {
	return []Section{{Content: text, Metadata: models.Metadata{}}}
}
