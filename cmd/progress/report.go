package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jesses-code-adventures/progress/internal/service"
)

func newReportCmd(a *app) *cobra.Command {
	var projectCode, outputDir string
	var edits []string

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Generate a PDF progress statement for a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := a.requireController()
			if err != nil {
				return err
			}

			if _, err := controller.SelectProject(cmd.Context(), projectCode); err != nil {
				return err
			}
			if err := applyEdits(controller, projectCode, edits); err != nil {
				return err
			}

			if err := os.MkdirAll(outputDir, 0755); err != nil {
				return fmt.Errorf("failed to create output directory: %w", err)
			}

			project := controller.CurrentProject()
			now := time.Now()
			fileName := service.ReportFileName(outputDir, project, now)
			if err := service.GenerateProgressReport(fileName, project, now); err != nil {
				return fmt.Errorf("failed to generate report: %w", err)
			}

			fmt.Printf("Generated progress report: %s\n", fileName)
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectCode, "project", "p", "", "Project code")
	cmd.Flags().StringVarP(&outputDir, "dir", "d", ".", "Directory to write the report to")
	cmd.Flags().StringArrayVar(&edits, "phase", nil, "Pending progress to include as PHASE=PERCENT (repeatable)")
	cmd.MarkFlagRequired("project")

	return cmd
}
