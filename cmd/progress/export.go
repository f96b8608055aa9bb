package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jesses-code-adventures/progress/internal/service"
)

func newExportCmd(a *app) *cobra.Command {
	var projectCode, output string
	var edits []string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export a project's phases to CSV or Excel",
		Long:  "Export the reconciled phases of a project. The format follows the output extension (.csv or .xlsx); without an output file CSV is written to stdout.",
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

			if err := service.ExportProject(controller.CurrentProject(), output); err != nil {
				return err
			}
			if output != "" && output != "-" {
				fmt.Printf("Exported project %s to %s\n", projectCode, output)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectCode, "project", "p", "", "Project code")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file (default: stdout)")
	cmd.Flags().StringArrayVar(&edits, "phase", nil, "Pending progress to include as PHASE=PERCENT (repeatable)")
	cmd.MarkFlagRequired("project")

	return cmd
}
