package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jesses-code-adventures/progress/internal/service"
)

func newShowCmd(a *app) *cobra.Command {
	var projectCode string
	var next, prev bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show the reconciled phases of a project",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			controller, err := a.requireController()
			if err != nil {
				return err
			}

			if next && prev {
				return fmt.Errorf("--next and --prev cannot be combined")
			}
			if next || prev {
				dir := service.Next
				if prev {
					dir = service.Previous
				}
				projectCode, err = neighbour(ctx, controller, projectCode, dir)
				if err != nil {
					return err
				}
			}

			project, err := controller.SelectProject(ctx, projectCode)
			if err != nil {
				return err
			}

			printProject(project)
			printJoinWarnings(controller.LastJoinStats())
			return nil
		},
	}

	cmd.Flags().StringVarP(&projectCode, "project", "p", "", "Project code")
	cmd.Flags().BoolVar(&next, "next", false, "Show the next project of the same project leader")
	cmd.Flags().BoolVar(&prev, "prev", false, "Show the previous project of the same project leader")
	cmd.MarkFlagRequired("project")

	return cmd
}

func neighbour(ctx context.Context, controller *service.Controller, code string, dir service.Direction) (string, error) {
	if _, err := controller.ListProjectsForSidebar(ctx); err != nil {
		return "", err
	}
	other, ok := controller.NeighbourProject(code, dir)
	if !ok {
		return "", fmt.Errorf("no project before or after %s for this project leader", code)
	}
	return other, nil
}
