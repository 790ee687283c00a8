package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending event-store schema migrations",
	Long: `migrate opens the Postgres event store, which applies its embedded
schema migrations on connect, and exits. It exists so schema changes are an
explicit, nameable step in a deployment pipeline rather than an implicit
side effect of the first "run" after an upgrade.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		store, err := buildStore(ctx, cfg)
		if err != nil {
			return fmt.Errorf("applying migrations: %w", err)
		}
		defer store.Close()

		fmt.Println("migrations applied")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}
