package main

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/jesses-code-adventures/progress/internal/models"
	"github.com/jesses-code-adventures/progress/internal/service"
)

// parseEdit splits "F1=40" into phase and raw value.
func parseEdit(edit string) (string, string, error) {
	phase, value, ok := strings.Cut(edit, "=")
	phase = strings.TrimSpace(phase)
	if !ok || phase == "" {
		return "", "", fmt.Errorf("invalid phase edit %q, expected PHASE=PERCENT", edit)
	}
	return phase, value, nil
}

func applyEdits(controller *service.Controller, projectCode string, edits []string) error {
	for _, edit := range edits {
		phaseCode, value, err := parseEdit(edit)
		if err != nil {
			return err
		}
		phase, err := controller.EditPhaseProgress(projectCode, phaseCode, value)
		if err != nil {
			return err
		}
		fmt.Printf("Phase %s: new progress %d%%, to invoice %s\n", phase.Code, *phase.NewProgress, phase.ToInvoice.StringFixed(2))
	}
	return nil
}

func promptSubmission(in io.Reader, req service.ConfirmRequest) (bool, error) {
	fmt.Printf("About to create %d invoice line(s) for project %s, total %s:\n", req.LineCount, req.ProjectCode, req.Total.StringFixed(2))
	for _, line := range req.Phases {
		fmt.Printf("  %-8s %3d%%  %12s  %s\n", line.PhaseCode, line.NewProgress, line.Amount.StringFixed(2), line.Description)
	}
	fmt.Print("Continue? (y/N): ")

	reader := bufio.NewReader(in)
	response, err := reader.ReadString('\n')
	if err != nil && response == "" {
		if err == io.EOF {
			fmt.Println()
			return false, nil
		}
		return false, err
	}
	response = strings.ToLower(strings.TrimSpace(response))
	return response == "y" || response == "yes", nil
}

func printProject(project *models.Project) {
	fmt.Printf("Project %s - %s\n\n", project.Code, project.Description)
	fmt.Printf("%-8s %-30s %12s %12s %12s %5s %5s %12s\n",
		"Phase", "Description", "Contract", "Costs", "Invoiced", "Prog", "New", "To Invoice")
	fmt.Println(strings.Repeat("-", 103))

	for _, phase := range project.Phases {
		newProgress := "-"
		if phase.NewProgress != nil {
			newProgress = fmt.Sprintf("%d%%", *phase.NewProgress)
		}
		fmt.Printf("%-8s %-30s %12s %12s %12s %4d%% %5s %12s\n",
			phase.Code,
			truncate(phase.Description, 30),
			phase.ContractSum.StringFixed(2),
			phase.ActualCosts.StringFixed(2),
			phase.Invoiced.StringFixed(2),
			phase.Progress,
			newProgress,
			phase.ToInvoice.StringFixed(2),
		)
	}

	fmt.Println(strings.Repeat("-", 103))
	fmt.Printf("Total contract sum: %s\n", project.TotalContractSum().StringFixed(2))
}

func printJoinWarnings(stats service.JoinStats) {
	if stats.Anomalies() == 0 {
		return
	}
	fmt.Printf("Warning: %d feed row(s) could not be matched (skipped base rows: %d, unmatched summary rows: %d, unmatched phase rows: %d)\n",
		stats.Anomalies(), stats.SkippedBaseRows, stats.UnmatchedSummaryRows, stats.UnmatchedPhaseRows)
}

func printSummary(summary *models.SubmissionSummary) {
	switch summary.Outcome {
	case models.OutcomeNothingToDo:
		fmt.Println("Nothing to submit: no phase has a new progress with a positive amount to invoice.")
		return
	case models.OutcomeDeclined:
		fmt.Println("Submission cancelled.")
		return
	}

	fmt.Println(summary.Message)
	for _, r := range summary.Results {
		status := "OK"
		if !r.Success {
			status = "FAILED"
		}
		fmt.Printf("  %-8s %-6s %12s  %s\n", r.PhaseCode, status, r.Amount.StringFixed(2), resultNote(r))
	}
	if summary.RefreshError != "" {
		fmt.Printf("Warning: could not reload the project from AFAS (%s); showing local state.\n", summary.RefreshError)
	}
}

func resultNote(r models.InvoiceResult) string {
	if r.InvoiceNumber != nil {
		return "invoice " + *r.InvoiceNumber
	}
	return r.Message
}

func truncate(s string, max int) string {
	if len([]rune(s)) <= max {
		return s
	}
	return string([]rune(s)[:max-3]) + "..."
}
