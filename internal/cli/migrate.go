package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"lms/internal/platform/config"
	"lms/internal/platform/db"
)

func init() {
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
	migrateCmd.Flags().String("dir", "migrations", "Directory containing .sql migration files")
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
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

		dir, _ := cmd.Flags().GetString("dir")
		if err := db.Migrate(cmd.Context(), pool, dir); err != nil {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed roles, permissions, leave types, and approval workflows",
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

		if err := db.Seed(cmd.Context(), pool, cfg); err != nil {
			return err
		}
		fmt.Println("seed complete")
		return nil
	},
}
