package extract

import (
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Horizontal gap thresholds used to rebuild table cells from positioned text
// fragments. Word gaps inside a cell are a fraction of the font size; the
// ruled column gaps of the timetable grid are an order of magnitude wider.
const (
	minCellGap = 10.0
	minWordGap = 1.5
)

// PDFTableSource reads tables from PDF documents. The timetable PDFs are
// digital (not scanned), so text fragments carry exact positions; rows come
// from the text layout and cells from horizontal gaps between fragments.
type PDFTableSource struct {
	logger *slog.Logger
}

// NewPDFTableSource creates a PDF-backed table source.
func NewPDFTableSource(logger *slog.Logger) *PDFTableSource {
	return &PDFTableSource{logger: logger}
}

// Tables implements TableSource. Each page yields one table. A page that
// cannot be read is logged and skipped; only a document that cannot be opened
// fails the call.
func (s *PDFTableSource) Tables(path string) ([]Table, error) {
	f, reader, err := pdf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	var tables []Table
	for pageNum := 1; pageNum <= reader.NumPage(); pageNum++ {
		page := reader.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		rows, err := page.GetTextByRow()
		if err != nil {
			s.logger.Error("failed to extract page",
				slog.String("file", path),
				slog.Int("page", pageNum),
				slog.String("error", err.Error()),
			)
			continue
		}

		table := Table{}
		for _, row := range rows {
			cells := cellsFromRow(row)
			if len(cells) > 0 {
				table.Rows = append(table.Rows, cells)
			}
		}
		if len(table.Rows) > 0 {
			tables = append(tables, table)
		}
	}
	return tables, nil
}

// cellsFromRow groups the positioned text fragments of one visual row into
// cell strings, left to right.
func cellsFromRow(row *pdf.Row) []string {
	content := row.Content
	sort.Sort(content)

	var cells []string
	var cell strings.Builder
	prevEnd := 0.0

	for i, text := range content {
		if text.S == "" {
			continue
		}
		if i > 0 {
			gap := text.X - prevEnd
			switch {
			case gap > minCellGap:
				cells = append(cells, cell.String())
				cell.Reset()
			case gap > minWordGap:
				cell.WriteString(" ")
			}
		}
		cell.WriteString(text.S)
		prevEnd = text.X + text.W
	}
	if cell.Len() > 0 {
		cells = append(cells, cell.String())
	}
	return cells
}
