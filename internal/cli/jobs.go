package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lms/internal/domain/leave"
	"lms/internal/domain/workflow"
	"lms/internal/platform/config"
	"lms/internal/platform/db"
	"lms/internal/platform/jobs"
)

func init() {
	rootCmd.AddCommand(rolloverCmd)
	rootCmd.AddCommand(purgeCmd)
	rolloverCmd.Flags().Int("year", 0, "Target year to roll balances into (default: next year)")
}

var rolloverCmd = &cobra.Command{
	Use:   "rollover",
	Short: "Roll carry-forward balances into the target year",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}

		pool, err := db.Connect(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("db connect failed: %w", err)
		}
		defer pool.Close()

		year, _ := cmd.Flags().GetInt("year")
		if year == 0 {
			year = time.Now().Year() + 1
		}

		leaveStore := leave.NewStore(pool)
		workflowStore := workflow.NewStore(pool, leaveStore)
		svc := jobs.New(pool, cfg, leaveStore, workflowStore)
		details, err := svc.RunRollover(cmd.Context(), year)
		if err != nil {
			return err
		}
		return printJSON(details)
	},
}

var purgeCmd = &cobra.Command{
	Use:   "purge",
	Short: "Delete cancelled requests past the grace period",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if err := cfg.Validate(); err != nil {
			return err
		}

		pool, err := db.Connect(cmd.Context(), cfg)
		if err != nil {
			return fmt.Errorf("db connect failed: %w", err)
		}
		defer pool.Close()

		leaveStore := leave.NewStore(pool)
		workflowStore := workflow.NewStore(pool, leaveStore)
		svc := jobs.New(pool, cfg, leaveStore, workflowStore)
		details, err := svc.RunPurge(cmd.Context())
		if err != nil {
			return err
		}
		return printJSON(details)
	},
}

func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
