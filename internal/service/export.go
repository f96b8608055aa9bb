package service

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"github.com/jesses-code-adventures/progress/internal/models"
)

var phaseHeader = []string{
	"Project", "Phase", "Description", "Contract Sum", "Actual Costs", "Actual Work Types",
	"Invoiced", "Progress (%)", "New Progress (%)", "To Invoice",
}

func phaseRecord(phase *models.Phase) []string {
	newProgress := ""
	if phase.NewProgress != nil {
		newProgress = strconv.Itoa(*phase.NewProgress)
	}
	return []string{
		phase.ProjectCode,
		phase.Code,
		phase.Description,
		phase.ContractSum.StringFixed(2),
		phase.ActualCosts.StringFixed(2),
		phase.ActualWorkTypes.StringFixed(2),
		phase.Invoiced.StringFixed(2),
		strconv.Itoa(phase.Progress),
		newProgress,
		phase.ToInvoice.StringFixed(2),
	}
}

// WriteCSV writes one row per phase.
func WriteCSV(w io.Writer, project *models.Project) error {
	writer := csv.NewWriter(w)

	if err := writer.Write(phaseHeader); err != nil {
		return fmt.Errorf("failed to write CSV header: %w", err)
	}
	for _, phase := range project.Phases {
		if err := writer.Write(phaseRecord(phase)); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	return writer.Error()
}

// WriteXLSX writes a workbook with a phase sheet and the two project level
// summaries.
func WriteXLSX(w io.Writer, project *models.Project) error {
	f := excelize.NewFile()
	defer f.Close()

	const phasesSheet = "Phases"
	if err := f.SetSheetName("Sheet1", phasesSheet); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create style: %w", err)
	}

	phaseRows := make([][]any, 0, len(project.Phases))
	for _, phase := range project.Phases {
		var newProgress any
		if phase.NewProgress != nil {
			newProgress = *phase.NewProgress
		}
		phaseRows = append(phaseRows, []any{
			phase.ProjectCode,
			phase.Code,
			phase.Description,
			money(phase.ContractSum),
			money(phase.ActualCosts),
			money(phase.ActualWorkTypes),
			money(phase.Invoiced),
			phase.Progress,
			newProgress,
			money(phase.ToInvoice),
		})
	}
	if err := writeSheet(f, phasesSheet, phaseHeader, phaseRows, bold); err != nil {
		return err
	}

	workTypeRows := make([][]any, 0, len(project.CumulativeWorkTypes))
	for _, item := range project.CumulativeWorkTypes {
		workTypeRows = append(workTypeRows, []any{
			item.ItemCode, item.Description,
			money(item.BudgetHours), money(item.ActualHours),
			money(item.BudgetCosts), money(item.ActualCosts),
		})
	}
	if _, err := f.NewSheet("Work Types"); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeSheet(f, "Work Types",
		[]string{"Item", "Description", "Budget Hours", "Actual Hours", "Budget Costs", "Actual Costs"},
		workTypeRows, bold); err != nil {
		return err
	}

	costRows := make([][]any, 0, len(project.CumulativeCosts))
	for _, item := range project.CumulativeCosts {
		costRows = append(costRows, []any{
			item.ItemCode, item.Description, money(item.BudgetCosts), money(item.ActualCosts),
		})
	}
	if _, err := f.NewSheet("Costs"); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	if err := writeSheet(f, "Costs",
		[]string{"Item", "Description", "Budget Costs", "Actual Costs"},
		costRows, bold); err != nil {
		return err
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, header []string, rows [][]any, headerStyle int) error {
	if err := f.SetSheetRow(sheet, "A1", &header); err != nil {
		return fmt.Errorf("failed to write %s header: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("failed to style %s header: %w", sheet, err)
	}

	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("failed to write %s row %d: %w", sheet, i+1, err)
		}
	}

	lastCol, err := excelize.ColumnNumberToName(len(header))
	if err != nil {
		return err
	}
	return f.SetColWidth(sheet, "A", lastCol, 16)
}

func money(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

// ExportProject writes the project to path, picking the format from the
// extension. "-" or "" writes CSV to stdout.
func ExportProject(project *models.Project, path string) error {
	if path == "" || path == "-" {
		return WriteCSV(os.Stdout, project)
	}

	write := WriteCSV
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx":
		write = WriteXLSX
	case ".csv", "":
	default:
		return fmt.Errorf("unsupported export format %q (use .csv or .xlsx)", filepath.Ext(path))
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	return write(file, project)
}
