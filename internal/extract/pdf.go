package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"

	"github.com/hyperjump/shitsumon/internal/models"
)

// extractPDF returns one section per non-empty page, tagged with its 1-based page number.
func extractPDF(content []byte) ([]Section, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return nil, fmt.Errorf("open PDF: %w", err)
	}
	numPages := r.NumPage()
	sections := make([]Section, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := r.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("extract page %d: %w", i, err)
		}
		sections = append(sections, Section{
			Content:  text,
			Metadata: models.Metadata{models.MetaPage: i},
		})
	}
	return sections, nil
}
