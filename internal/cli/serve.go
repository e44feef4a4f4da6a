package cli

import (
	"github.com/spf13/cobra"

	"lms/internal/app/server"
)

func init() {
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long:  `Start the API server, run pending migrations and seed data when enabled, and start the background job workers.`,
	Run: func(cmd *cobra.Command, args []string) {
		server.Run()
	},
}
