package main

import (
	"github.com/spf13/cobra"
)

func newConfigCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Print the active configuration",
		Run: func(cmd *cobra.Command, args []string) {
			a.cfg.Dump()
		},
	}
}
