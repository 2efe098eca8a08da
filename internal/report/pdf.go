// Package report renders the evaluation history as a PDF.
package report

import (
	"fmt"
	"io"

	"github.com/jung-kurt/gofpdf"

	"live_analysis/internal/domain"
)

const (
	chartX      = 15.0
	chartY      = 30.0
	chartWidth  = 180.0
	chartHeight = 70.0
)

// WriteHistoryPDF writes a win-rate chart and a per-move table. Values are in the Black perspective.
func WriteHistoryPDF(w io.Writer, title string, points []domain.HistoryPoint) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(title, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 14)
	pdf.Cell(0, 10, title)
	pdf.Ln(12)

	drawChart(pdf, points)

	pdf.SetY(chartY + chartHeight + 10)
	pdf.SetFont("Courier", "B", 10)
	pdf.CellFormat(30, 6, "Move", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Black win rate", "1", 0, "C", false, 0, "")
	pdf.CellFormat(45, 6, "Black score lead", "1", 1, "C", false, 0, "")

	pdf.SetFont("Courier", "", 10)
	for _, p := range points {
		pdf.CellFormat(30, 5, fmt.Sprintf("%d", p.MoveNumber), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 5, fmt.Sprintf("%.1f%%", p.Winrate*100), "1", 0, "R", false, 0, "")
		pdf.CellFormat(45, 5, fmt.Sprintf("%+.1f", p.ScoreLead), "1", 1, "R", false, 0, "")
	}

	return pdf.Output(w)
}

func drawChart(pdf *gofpdf.Fpdf, points []domain.HistoryPoint) {
	pdf.SetDrawColor(0, 0, 0)
	pdf.Rect(chartX, chartY, chartWidth, chartHeight, "D")

	// 50% line
	pdf.SetDrawColor(180, 180, 180)
	pdf.Line(chartX, chartY+chartHeight/2, chartX+chartWidth, chartY+chartHeight/2)

	if len(points) < 2 {
		return
	}

	first, last := points[0].MoveNumber, points[len(points)-1].MoveNumber
	span := float64(last - first)
	if span == 0 {
		span = 1
	}

	pdf.SetDrawColor(20, 20, 20)
	pdf.SetLineWidth(0.4)
	for i := 1; i < len(points); i++ {
		x1 := chartX + float64(points[i-1].MoveNumber-first)/span*chartWidth
		x2 := chartX + float64(points[i].MoveNumber-first)/span*chartWidth
		y1 := chartY + (1-points[i-1].Winrate)*chartHeight
		y2 := chartY + (1-points[i].Winrate)*chartHeight
		pdf.Line(x1, y1, x2, y2)
	}
	pdf.SetLineWidth(0.2)
}
