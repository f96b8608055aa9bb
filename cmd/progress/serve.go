package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jesses-code-adventures/progress/internal/api"
)

func newServeCmd(a *app) *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the progress workflow over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			controller, err := a.requireController()
			if err != nil {
				return err
			}
			if a.cfg.APIKey == "" {
				return fmt.Errorf("API_KEY is required to serve the API")
			}
			if port != "" {
				a.cfg.HTTPPort = port
			}

			return api.NewServer(controller, a.db, a.cfg).ListenAndServe(cmd.Context())
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "Port to listen on (default: HTTP_PORT)")

	return cmd
}
