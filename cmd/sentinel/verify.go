package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var verifyCmd = &cobra.Command{
	Use:   "verify <incident_id>",
	Short: "Walk an incident's hash chain and report whether it is intact",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		store, err := buildStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.VerifyChain(ctx, args[0]); err != nil {
			return fmt.Errorf("chain verification failed: %w", err)
		}
		fmt.Printf("incident %s: chain intact\n", args[0])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(verifyCmd)
}
