package cmd

import (
	"github.com/spf13/cobra"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the worker pool",
		Long: `Starts the job workers and the HTTP API. Requests are admitted through
POST /v1/scrapes and processed in FIFO order until SIGINT or SIGTERM.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			return appInstance.Run(cmd.Context())
		},
	}
}
