package extract

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/hyperjump/shitsumon/internal/models"
)

// extractExcel returns one section per sheet with rows tab-separated. Legacy BIFF .xls
// files cannot be opened by excelize; those that are really OOXML under an old
// extension still work.
func extractExcel(content []byte) ([]Section, error) {
	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, fmt.Errorf("open Excel: %w", err)
	}
	defer f.Close()

	var sections []Section
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("get rows for sheet %q: %w", sheet, err)
		}
		var buf strings.Builder
		for _, row := range rows {
			buf.WriteString(strings.Join(row, "\t"))
			buf.WriteByte('\n')
		}
		sections = append(sections, Section{
			Content:  strings.TrimSpace(buf.String()),
			Metadata: models.Metadata{models.MetaSheet: sheet},
		})
	}
	return sections, nil
}
