package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jesses-code-adventures/progress/internal/service"
)

func newSubmitCmd(a *app) *cobra.Command {
	var projectCode string
	var edits []string
	var yes bool

	cmd := &cobra.Command{
		Use:   "submit",
		Short: "Record new phase progress and create the invoice lines in AFAS",
		Long: `Select a project, apply the given progress percentages and send one direct
invoice line per phase with a positive amount to invoice.

Example:
  progress submit -p 2024001 --phase F1=40 --phase F2=75`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			controller, err := a.requireController()
			if err != nil {
				return err
			}

			if _, err := controller.SelectProject(ctx, projectCode); err != nil {
				return err
			}
			printJoinWarnings(controller.LastJoinStats())

			if err := applyEdits(controller, projectCode, edits); err != nil {
				return err
			}

			var confirmer service.Confirmer = service.AutoConfirm
			if !yes {
				in := cmd.InOrStdin()
				confirmer = service.ConfirmFunc(func(ctx context.Context, req service.ConfirmRequest) (bool, error) {
					return promptSubmission(in, req)
				})
			}

			summary, err := controller.SubmitProgress(ctx, projectCode, confirmer)
			if err != nil {
				return err
			}

			printSummary(summary)
			if project := controller.CurrentProject(); project != nil && summary.RefreshError == "" && len(summary.Results) > 0 {
				fmt.Println()
				printProject(project)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectCode, "project", "p", "", "Project code")
	cmd.Flags().StringArrayVar(&edits, "phase", nil, "New progress for a phase as PHASE=PERCENT (repeatable)")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Skip the confirmation prompt")
	cmd.MarkFlagRequired("project")

	return cmd
}
