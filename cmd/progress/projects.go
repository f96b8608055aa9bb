package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/jesses-code-adventures/progress/internal/models"
	"github.com/jesses-code-adventures/progress/internal/service"
)

func newProjectsCmd(a *app) *cobra.Command {
	var search, leader string
	var grouped bool

	cmd := &cobra.Command{
		Use:   "projects",
		Short: "List the projects available for progress registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := a.requireController()
			if err != nil {
				return err
			}

			projects, err := controller.ListProjectsForSidebar(cmd.Context())
			if err != nil {
				return err
			}
			projects = service.FilterSidebar(projects, search)
			if leader != "" {
				projects = filterByLeader(projects, leader)
			}

			if len(projects) == 0 {
				fmt.Println("No projects found.")
				return nil
			}

			if !grouped {
				for _, p := range projects {
					printSidebarProject(p)
				}
				return nil
			}

			for _, group := range service.GroupSidebarByLeader(projects) {
				fmt.Printf("%s (%d)\n", group.Leader, len(group.Projects))
				for _, p := range group.Projects {
					fmt.Print("  ")
					printSidebarProject(p)
				}
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&search, "search", "s", "", "Filter on code, description, leader or customer")
	cmd.Flags().StringVar(&leader, "leader", "", "Only show projects of this project leader")
	cmd.Flags().BoolVarP(&grouped, "grouped", "g", false, "Group projects by project leader")

	return cmd
}

func filterByLeader(projects []models.SidebarProject, leader string) []models.SidebarProject {
	var out []models.SidebarProject
	for _, p := range projects {
		if strings.EqualFold(strings.TrimSpace(p.LeaderName), strings.TrimSpace(leader)) {
			out = append(out, p)
		}
	}
	return out
}

func printSidebarProject(p models.SidebarProject) {
	fmt.Printf("%-12s %-40s %s\n", p.ProjectCode, truncate(p.Description, 40), p.CustomerName)
}
