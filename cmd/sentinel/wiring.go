package main

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"github.com/codeready-toolchain/sentinel/pkg/config"
	"github.com/codeready-toolchain/sentinel/pkg/consensus"
	"github.com/codeready-toolchain/sentinel/pkg/eventstore"
	"github.com/codeready-toolchain/sentinel/pkg/fabric"
	"github.com/codeready-toolchain/sentinel/pkg/notify"
	"github.com/codeready-toolchain/sentinel/pkg/orchestrator"
	"github.com/codeready-toolchain/sentinel/pkg/security"
)

// loadConfig loads the .env file from configDir. A missing .env is a
// warning, not a fatal error, since production deployments may set
// environment variables directly instead. It then runs the configuration
// loader.
func loadConfig(ctx context.Context) (*config.Config, error) {
	envPath := filepath.Join(configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		slog.Warn("no .env file loaded, continuing with existing environment", "path", envPath, "error", err)
	}
	return config.Initialize(ctx, configDir)
}

// buildStore opens the production Postgres-backed event store. Callers
// must Close() it on shutdown.
func buildStore(ctx context.Context, cfg *config.Config) (*eventstore.Postgres, error) {
	pg := cfg.Postgres
	store, err := eventstore.NewPostgres(ctx, eventstore.Config{
		Host:         pg.Host,
		Port:         pg.Port,
		User:         envOrEmpty(pg.UserEnv),
		Password:     envOrEmpty(pg.PasswordEnv),
		Database:     pg.Database,
		SSLMode:      pg.SSLMode,
		MaxOpenConns: pg.MaxOpenConns,
		MaxIdleConns: pg.MaxIdleConns,
	})
	if err != nil {
		return nil, fmt.Errorf("sentinel: opening event store: %w", err)
	}
	return store, nil
}

// buildLeaseStore opens the Redis-backed lease/checkpoint store. Callers
// must Close() it on shutdown.
func buildLeaseStore(cfg *config.Config) *orchestrator.RedisLeaseStore {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		DB:       cfg.Redis.DB,
		Password: envOrEmpty(cfg.Redis.PasswordEnv),
	})
	return orchestrator.NewRedisLeaseStore(client, "sentinel")
}

// buildFabric constructs and starts the rate-limit/circuit-breaker fabric
// every agent and actuator call would pass through.
func buildFabric(cfg *config.Config) *fabric.Fabric {
	rl := cfg.Fabric.RateLimit
	limiter := fabric.NewLimiter(rl.Capacity, rl.Refill, rl.Interval.Duration())
	limiter.Start()
	return fabric.New(limiter, fabric.DefaultRetryConfig)
}

// buildSecurityGate wires the action validation gate against store's
// whitelist and event log. The credential broker is the in-process
// StaticBroker stand-in — an external broker is out of scope here — and
// the Actuator is left nil: this binary has no wired actuator either, so
// Execute runs every pre-dispatch check and stops there, the same boundary
// the roster draws around agent implementations.
func buildSecurityGate(cfg *config.Config, store eventstore.Store) *security.Gate {
	return &security.Gate{
		Whitelist: cfg.ActionWhitelist,
		Store:     store,
		Broker:    &security.StaticBroker{},
		Actuator:  nil,
	}
}

// buildNotifier constructs the Slack notifier, nil when disabled.
func buildNotifier(cfg *config.Config) *notify.Service {
	return notify.NewService(cfg.Slack)
}

// buildOrchestrator assembles an Orchestrator.Config from cfg plus the
// already-constructed store/leases/gate/notifier.
func buildOrchestrator(cfg *config.Config, store eventstore.Store, leases orchestrator.LeaseStore, gate *security.Gate, notifier *notify.Service) *orchestrator.Orchestrator {
	cc := cfg.Consensus
	return orchestrator.New(orchestrator.Config{
		Store:    store,
		Leases:   leases,
		Roster:   orchestrator.Roster{}, // agent implementations are wired by the deployment, not this binary
		Executor: gate,
		Notifier: notifier,

		Consensus: consensus.Config{
			ZThreshold: cc.ZThreshold,
		},

		MaxInFlight: cfg.Admission.MaxInFlight,
	})
}

func envOrEmpty(name string) string {
	if name == "" {
		return ""
	}
	return getEnv(name, "")
}
