package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lms",
	Short: "Leave management service",
	Long: `lms runs the leave management backend: request submission,
multi-level approval workflows, and the leave balance ledger.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
