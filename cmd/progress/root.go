package main

import (
	"github.com/spf13/cobra"
)

func newRootCmd(a *app) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "progress",
		Short: "Record project phase progress and invoice it in AFAS",
		Long: `Reconcile a project's phases from the AFAS connectors, record new progress
percentages per phase and submit the resulting amounts as direct invoice lines.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newProjectsCmd(a),
		newShowCmd(a),
		newSubmitCmd(a),
		newExportCmd(a),
		newReportCmd(a),
		newHistoryCmd(a),
		newServeCmd(a),
		newDbInitCmd(a),
		newConfigCmd(a),
	)

	return rootCmd
}
