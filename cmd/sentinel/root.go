package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configDir string
	httpAddr  string
)

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

var rootCmd = &cobra.Command{
	Use:   "sentinel",
	Short: "Multi-agent incident response core",
	Long: `sentinel coordinates Detection, Diagnosis, Prediction, Resolution, and
Communication agents through a Byzantine-tolerant consensus round, executing
the winning remediation action through a whitelist-gated security layer and
recording every step in a durable, hash-chained event log.`,
}

// Execute adds all child commands to the root command and runs it.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"), "path to configuration directory")
	rootCmd.PersistentFlags().StringVar(&httpAddr, "addr",
		getEnv("SENTINEL_ADDR", ":8080"), "operational HTTP listen address (run only)")
}
