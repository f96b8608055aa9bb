package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var projectCode string
	var limit int

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show past submissions from the local journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			summaries, err := a.db.ListSubmissions(cmd.Context(), projectCode, limit)
			if err != nil {
				return err
			}

			if len(summaries) == 0 {
				fmt.Println("No submissions recorded.")
				return nil
			}

			for _, s := range summaries {
				fmt.Printf("%s  %-12s %-17s %d line(s)\n",
					s.SubmittedAt.Local().Format("2006-01-02 15:04"), s.ProjectCode, s.Outcome, len(s.Results))
				for _, r := range s.Results {
					status := "OK"
					if !r.Success {
						status = "FAILED"
					}
					fmt.Printf("    %-8s %-6s %12s  %s\n", r.PhaseCode, status, r.Amount.StringFixed(2), resultNote(r))
				}
				if s.RefreshError != "" {
					fmt.Printf("    refresh failed: %s\n", s.RefreshError)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectCode, "project", "p", "", "Only show submissions for this project")
	cmd.Flags().IntVarP(&limit, "limit", "l", 20, "Maximum number of submissions to show")

	return cmd
}
