package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var replayCmd = &cobra.Command{
	Use:   "replay <incident_id>",
	Short: "Replay an incident's event log and print the resulting aggregate",
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

		inc, err := store.Replay(ctx, args[0])
		if err != nil {
			return fmt.Errorf("replaying %s: %w", args[0], err)
		}

		out, err := json.MarshalIndent(inc, "", "  ")
		if err != nil {
			return fmt.Errorf("encoding aggregate: %w", err)
		}
		fmt.Println(string(out))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
