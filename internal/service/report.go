package service

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/jung-kurt/gofpdf"
	"github.com/shopspring/decimal"

	"github.com/jesses-code-adventures/progress/internal/models"
)

// ReportFileName is the default file name for a project's progress report.
func ReportFileName(dir string, project *models.Project, at time.Time) string {
	name := fmt.Sprintf("progress_%s_%s.pdf", sanitizeFileName(project.Code), at.Format("2006-01-02"))
	return filepath.Join(dir, name)
}

func sanitizeFileName(fileName string) string {
	replacer := strings.NewReplacer(
		"/", "_", "\\", "_", ":", "_", "*", "_",
		"?", "_", "\"", "_", "<", "_", ">", "_", "|", "_", " ", "_",
	)
	return replacer.Replace(fileName)
}

// GenerateProgressReport writes a PDF statement of the project's phases: what
// is contracted, what is invoiced and what the pending edits would invoice.
func GenerateProgressReport(fileName string, project *models.Project, generatedAt time.Time) error {
	pdf := buildProgressReport(project, generatedAt)
	return pdf.OutputFileAndClose(fileName)
}

func WriteProgressReport(w io.Writer, project *models.Project, generatedAt time.Time) error {
	pdf := buildProgressReport(project, generatedAt)
	return pdf.Output(w)
}

func buildProgressReport(project *models.Project, generatedAt time.Time) *gofpdf.Fpdf {
	pdf := gofpdf.New("L", "mm", "A4", "")
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.Cell(40, 10, tr(fmt.Sprintf("Progress - %s %s", project.Code, project.Description)))
	pdf.Ln(12)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(40, 6, fmt.Sprintf("Date: %s", generatedAt.Format("2006-01-02")))
	pdf.Ln(10)

	widths := []float64{20, 80, 30, 30, 30, 18, 18, 30}
	headers := []string{"Phase", "Description", "Contract Sum", "Actual Costs", "Invoiced", "Prog.", "New", "To Invoice"}

	pdf.SetFont("Arial", "B", 9)
	for i, h := range headers {
		pdf.CellFormat(widths[i], 8, h, "1", 0, "C", false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Arial", "", 8)
	for _, phase := range project.Phases {
		newProgress := "-"
		if phase.NewProgress != nil {
			newProgress = fmt.Sprintf("%d%%", *phase.NewProgress)
		}

		description := phase.Description
		if pdf.GetStringWidth(description) > widths[1]-2 {
			lines := pdf.SplitText(description, widths[1]-4)
			if len(lines) > 0 {
				description = strings.TrimSpace(lines[0]) + "..."
			}
		}

		pdf.CellFormat(widths[0], 7, tr(phase.Code), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, tr(description), "1", 0, "L", false, 0, "")
		pdf.CellFormat(widths[2], 7, formatEuro(phase.ContractSum), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, formatEuro(phase.ActualCosts), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[4], 7, formatEuro(phase.Invoiced), "1", 0, "R", false, 0, "")
		pdf.CellFormat(widths[5], 7, fmt.Sprintf("%d%%", phase.Progress), "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[6], 7, newProgress, "1", 0, "C", false, 0, "")
		pdf.CellFormat(widths[7], 7, formatEuro(phase.ToInvoice), "1", 1, "R", false, 0, "")
	}

	pdf.Ln(5)
	pdf.SetFont("Arial", "B", 11)
	labelWidth := widths[0] + widths[1] + widths[2] + widths[3] + widths[4] + widths[5] + widths[6]
	pdf.Cell(labelWidth, 8, "Total contract sum:")
	pdf.CellFormat(widths[7], 8, formatEuro(project.TotalContractSum()), "", 1, "R", false, 0, "")

	plan := PlanSubmission(project)
	pdf.Cell(labelWidth, 8, fmt.Sprintf("Pending invoice lines (%d):", len(plan.Lines)))
	pdf.CellFormat(widths[7], 8, formatEuro(plan.Total), "", 1, "R", false, 0, "")

	if len(project.CumulativeCosts) > 0 {
		pdf.Ln(8)
		pdf.SetFont("Arial", "B", 12)
		pdf.Cell(40, 8, "Cost types")
		pdf.Ln(9)

		pdf.SetFont("Arial", "B", 9)
		pdf.CellFormat(30, 7, "Item", "1", 0, "C", false, 0, "")
		pdf.CellFormat(90, 7, "Description", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, "Budget", "1", 0, "C", false, 0, "")
		pdf.CellFormat(35, 7, "Actual", "1", 1, "C", false, 0, "")

		pdf.SetFont("Arial", "", 8)
		for _, item := range project.CumulativeCosts {
			pdf.CellFormat(30, 7, tr(item.ItemCode), "1", 0, "L", false, 0, "")
			pdf.CellFormat(90, 7, tr(item.Description), "1", 0, "L", false, 0, "")
			pdf.CellFormat(35, 7, formatEuro(item.BudgetCosts), "1", 0, "R", false, 0, "")
			pdf.CellFormat(35, 7, formatEuro(item.ActualCosts), "1", 1, "R", false, 0, "")
		}
	}

	return pdf
}

// formatEuro spells the currency out: the core fonts have no euro glyph in
// the default encoding.
func formatEuro(d decimal.Decimal) string {
	return "EUR " + d.StringFixed(2)
}
