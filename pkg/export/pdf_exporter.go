package export

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/jung-kurt/gofpdf"
)

// PDFExporter renders grids into a tabular PDF. Weekly timetables are wide,
// so the page is landscape A4.
type PDFExporter struct {
	orientation string
	pageWidth   float64
}

// NewPDFExporter constructs a landscape PDF exporter.
func NewPDFExporter() *PDFExporter {
	return &PDFExporter{orientation: "L", pageWidth: 277}
}

// Render creates a PDF document with an optional title and the grid body.
func (e *PDFExporter) Render(grid Grid, title string) ([]byte, error) {
	if len(grid.Headers) == 0 {
		return nil, fmt.Errorf("pdf requires at least one header")
	}
	pdf := gofpdf.New(e.orientation, "mm", "A4", "")
	pdf.SetMargins(10, 15, 10)
	pdf.AddPage()

	if title != "" {
		pdf.SetFont("Arial", "B", 14)
		pdf.CellFormat(0, 10, strings.ToUpper(title), "", 1, "C", false, 0, "")
		pdf.Ln(5)
	}

	// The time column stays narrow; weekday columns share the rest.
	timeWidth := 30.0
	colWidth := (e.pageWidth - timeWidth) / float64(len(grid.Headers)-1)
	if len(grid.Headers) == 1 {
		timeWidth = e.pageWidth
	}

	pdf.SetFont("Arial", "B", 10)
	for i, header := range grid.Headers {
		width := colWidth
		if i == 0 {
			width = timeWidth
		}
		pdf.CellFormat(width, 8, header, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, row := range grid.Rows {
		for i, header := range grid.Headers {
			width := colWidth
			if i == 0 {
				width = timeWidth
			}
			pdf.CellFormat(width, 10, row[header], "1", 0, "", false, 0, "")
		}
		pdf.Ln(-1)
	}

	buf := &bytes.Buffer{}
	if err := pdf.Output(buf); err != nil {
		return nil, fmt.Errorf("render pdf: %w", err)
	}
	return buf.Bytes(), nil
}
