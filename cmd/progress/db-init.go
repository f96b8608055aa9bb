package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newDbInitCmd(a *app) *cobra.Command {
	var reset, force bool

	cmd := &cobra.Command{
		Use:   "db-init",
		Short: "Create or reset the submission journal",
		Long: `Apply the journal migrations. With --reset every recorded submission is
removed and the schema is recreated.

WARNING: a reset cannot be undone!`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			if !reset {
				if err := a.db.Migrate(ctx); err != nil {
					return err
				}
				fmt.Printf("Journal is up to date: %s\n", a.cfg.DatabaseURL)
				return nil
			}

			if !force {
				fmt.Print("This will permanently delete the submission journal. Are you sure? (y/N): ")
				reader := bufio.NewReader(cmd.InOrStdin())
				response, err := reader.ReadString('\n')
				if err != nil && response == "" {
					return err
				}
				response = strings.ToLower(strings.TrimSpace(response))
				if response != "y" && response != "yes" {
					fmt.Println("Reset cancelled.")
					return nil
				}
			}

			if err := a.db.Reset(ctx); err != nil {
				return err
			}
			fmt.Printf("Successfully reset journal: %s\n", a.cfg.DatabaseURL)
			return nil
		},
	}

	cmd.Flags().BoolVar(&reset, "reset", false, "Delete all recorded submissions")
	cmd.Flags().BoolVar(&force, "force", false, "Skip confirmation prompt")

	return cmd
}
