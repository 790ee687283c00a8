package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/sentinel/pkg/orchestrator"
)

var escalateCmd = &cobra.Command{
	Use:   "escalate <incident_id> <reason>",
	Short: "Force-terminate an incident to Escalated for operator intervention",
	Args:  cobra.ExactArgs(2),
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

		leases := buildLeaseStore(cfg)
		defer leases.Close()

		orch := orchestrator.New(orchestrator.Config{
			Store:  store,
			Leases: leases,
		})

		if err := orch.Escalate(ctx, args[0], args[1]); err != nil {
			return fmt.Errorf("escalating %s: %w", args[0], err)
		}
		fmt.Printf("incident %s escalated: %s\n", args[0], args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(escalateCmd)
}
