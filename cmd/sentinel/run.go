package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/sentinel/pkg/opsapi"
	"github.com/codeready-toolchain/sentinel/pkg/orchestrator"
)

var workerCount int

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Start the incident orchestrator worker pool and operational HTTP surface",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		cfg, err := loadConfig(ctx)
		if err != nil {
			return err
		}

		store, err := buildStore(ctx, cfg)
		if err != nil {
			return err
		}
		defer func() {
			if err := store.Close(); err != nil {
				slog.Warn("closing event store failed", "error", err)
			}
		}()

		leases := buildLeaseStore(cfg)
		defer func() {
			if err := leases.Close(); err != nil {
				slog.Warn("closing lease store failed", "error", err)
			}
		}()

		fab := buildFabric(cfg)
		gate := buildSecurityGate(cfg, store)
		notifier := buildNotifier(cfg)
		orch := buildOrchestrator(cfg, store, leases, gate, notifier)

		pool := orchestrator.NewPool(orch, workerCount)
		pool.Start(ctx)
		slog.Info("orchestrator pool started", "workers", workerCount)

		ops := opsapi.NewServer(fab, store)
		serveErr := make(chan error, 1)
		go func() {
			slog.Info("operational HTTP surface listening", "addr", httpAddr)
			serveErr <- ops.Start(httpAddr)
		}()

		select {
		case <-ctx.Done():
			slog.Info("shutdown signal received")
		case err := <-serveErr:
			if err != nil {
				slog.Error("operational HTTP surface failed", "error", err)
			}
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := ops.Shutdown(shutdownCtx); err != nil {
			slog.Warn("operational HTTP surface shutdown failed", "error", err)
		}
		pool.Stop()
		return nil
	},
}

func init() {
	runCmd.Flags().IntVar(&workerCount, "workers", 4, "number of orchestrator pool workers")
	rootCmd.AddCommand(runCmd)
}
