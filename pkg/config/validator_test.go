package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

func validConfigForTest() *Config {
	return &Config{
		configDir: "/etc/sentinel",
		Defaults: &Defaults{
			Severity: incident.SeverityImportant,
		},
		Consensus: &ConsensusConfig{
			ZThreshold:        2.5,
			MinTrusted:        3,
			ApprovalThreshold: 0.70,
			DegradedThreshold: 0.60,
			DeadlockBudget:    DurationYAML(120 * time.Second),
		},
		Fabric: &FabricConfig{
			ConsecutiveFailuresToOpen:   5,
			OpenTimeout:                 DurationYAML(30 * time.Second),
			ConsecutiveSuccessesToClose: 2,
			RateLimit: RateLimitConfig{
				Capacity: 100,
				Refill:   20,
				Interval: DurationYAML(time.Second),
			},
		},
		Admission: &AdmissionConfig{MaxInFlight: 50},
		Retention: &RetentionConfig{
			ResolvedIncidentRetentionDays: 90,
			CleanupInterval:               12 * time.Hour,
		},
		Redis:    &RedisConfig{Addr: "localhost:6379"},
		Postgres: &PostgresConfig{Host: "localhost", Port: 5432, Database: "sentinel", MaxOpenConns: 10, MaxIdleConns: 5},
		Slack:    &SlackConfig{Enabled: false},
		ActionWhitelist: NewActionWhitelistRegistry(map[string]incident.ActionTemplate{
			"restart-pod": {
				ActionID:            "restart-pod",
				RequiredPermissions: []string{"pods/restart"},
				MaxRiskLevel:        incident.RiskMedium,
			},
		}),
		PhaseTimeouts: NewPhaseTimeoutRegistry(map[incident.Phase]DurationYAML{
			incident.PhaseDiagnosing:        DurationYAML(60 * time.Second),
			incident.PhasePredicting:        DurationYAML(60 * time.Second),
			incident.PhaseAwaitingConsensus: DurationYAML(120 * time.Second),
			incident.PhaseResolving:         DurationYAML(300 * time.Second),
			incident.PhaseValidating:        DurationYAML(60 * time.Second),
		}),
	}
}

func TestValidateAll_ValidConfigPasses(t *testing.T) {
	require.NoError(t, NewValidator(validConfigForTest()).ValidateAll())
}

func TestValidateConsensus(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*ConsensusConfig)
		wantErr string
	}{
		{"zero min_trusted", func(c *ConsensusConfig) { c.MinTrusted = 0 }, "min_trusted must be at least 1"},
		{"negative z_threshold", func(c *ConsensusConfig) { c.ZThreshold = -1 }, "z_threshold must be non-negative"},
		{"approval threshold too high", func(c *ConsensusConfig) { c.ApprovalThreshold = 1.5 }, "approval_threshold must be in (0, 1]"},
		{"approval threshold zero", func(c *ConsensusConfig) { c.ApprovalThreshold = 0 }, "approval_threshold must be in (0, 1]"},
		{"degraded threshold too high", func(c *ConsensusConfig) { c.DegradedThreshold = 1.5 }, "degraded_threshold must be in (0, 1]"},
		{
			"degraded not less than approval",
			func(c *ConsensusConfig) { c.DegradedThreshold = 0.70; c.ApprovalThreshold = 0.70 },
			"degraded_threshold must be less than approval_threshold",
		},
		{"zero deadlock budget", func(c *ConsensusConfig) { c.DeadlockBudget = 0 }, "deadlock_budget must be positive"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfigForTest()
			tt.mutate(cfg.Consensus)
			err := NewValidator(cfg).ValidateAll()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateFabric(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*FabricConfig)
		wantErr string
	}{
		{"zero consecutive failures", func(f *FabricConfig) { f.ConsecutiveFailuresToOpen = 0 }, "consecutive_failures_to_open must be at least 1"},
		{"zero open timeout", func(f *FabricConfig) { f.OpenTimeout = 0 }, "open_timeout must be positive"},
		{"zero consecutive successes", func(f *FabricConfig) { f.ConsecutiveSuccessesToClose = 0 }, "consecutive_successes_to_close must be at least 1"},
		{"zero rate limit capacity", func(f *FabricConfig) { f.RateLimit.Capacity = 0 }, "must be at least 1"},
		{"zero rate limit refill", func(f *FabricConfig) { f.RateLimit.Refill = 0 }, "must be at least 1"},
		{"zero rate limit interval", func(f *FabricConfig) { f.RateLimit.Interval = 0 }, "must be positive"},
		{"refill exceeds capacity", func(f *FabricConfig) { f.RateLimit.Refill = 200; f.RateLimit.Capacity = 100 }, "must not exceed capacity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfigForTest()
			tt.mutate(cfg.Fabric)
			err := NewValidator(cfg).ValidateAll()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateAdmission(t *testing.T) {
	cfg := validConfigForTest()
	cfg.Admission.MaxInFlight = 0
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_in_flight must be at least 1")
}

func TestValidateActionWhitelist(t *testing.T) {
	t.Run("empty whitelist rejected", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.ActionWhitelist = NewActionWhitelistRegistry(nil)
		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must not be empty")
	})

	t.Run("mismatched action_id rejected", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.ActionWhitelist = NewActionWhitelistRegistry(map[string]incident.ActionTemplate{
			"restart-pod": {ActionID: "wrong-id", RequiredPermissions: []string{"x"}, MaxRiskLevel: incident.RiskLow},
		})
		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "does not match registry key")
	})

	t.Run("missing permissions rejected", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.ActionWhitelist = NewActionWhitelistRegistry(map[string]incident.ActionTemplate{
			"restart-pod": {ActionID: "restart-pod", MaxRiskLevel: incident.RiskLow},
		})
		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must list at least one permission")
	})

	t.Run("invalid risk level rejected", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.ActionWhitelist = NewActionWhitelistRegistry(map[string]incident.ActionTemplate{
			"restart-pod": {ActionID: "restart-pod", RequiredPermissions: []string{"x"}, MaxRiskLevel: "EXTREME"},
		})
		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be one of LOW, MEDIUM, HIGH")
	})
}

func TestValidatePhaseTimeouts(t *testing.T) {
	t.Run("missing phase rejected", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.PhaseTimeouts = NewPhaseTimeoutRegistry(map[incident.Phase]DurationYAML{
			incident.PhaseDiagnosing: DurationYAML(60 * time.Second),
		})
		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "no timeout configured")
	})

	t.Run("zero timeout rejected", func(t *testing.T) {
		cfg := validConfigForTest()
		timeouts := map[incident.Phase]DurationYAML{
			incident.PhaseDiagnosing:        0,
			incident.PhasePredicting:        DurationYAML(60 * time.Second),
			incident.PhaseAwaitingConsensus: DurationYAML(120 * time.Second),
			incident.PhaseResolving:         DurationYAML(300 * time.Second),
			incident.PhaseValidating:        DurationYAML(60 * time.Second),
		}
		cfg.PhaseTimeouts = NewPhaseTimeoutRegistry(timeouts)
		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "must be positive")
	})
}

func TestValidateDefaults(t *testing.T) {
	t.Run("nil defaults skipped", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Defaults = nil
		require.NoError(t, NewValidator(cfg).ValidateAll())
	})

	t.Run("unrecognized severity rejected", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Defaults.Severity = "URGENT"
		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "unrecognized severity")
	})

	t.Run("negative cost rejected", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Defaults.CostPerMinute = -1
		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "cost_per_minute")
	})
}

func TestValidateRetention(t *testing.T) {
	cfg := validConfigForTest()
	cfg.Retention.ResolvedIncidentRetentionDays = 0
	err := NewValidator(cfg).ValidateAll()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "resolved_incident_retention_days must be at least 1")
}

func TestValidatePostgres(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*PostgresConfig)
		wantErr string
	}{
		{"empty host", func(p *PostgresConfig) { p.Host = "" }, "host"},
		{"invalid port", func(p *PostgresConfig) { p.Port = 70000 }, "port"},
		{"empty database", func(p *PostgresConfig) { p.Database = "" }, "database"},
		{"zero max open conns", func(p *PostgresConfig) { p.MaxOpenConns = 0 }, "max_open_conns"},
		{"idle exceeds open", func(p *PostgresConfig) { p.MaxOpenConns = 5; p.MaxIdleConns = 10 }, "max_idle_conns"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfigForTest()
			tt.mutate(cfg.Postgres)
			err := NewValidator(cfg).ValidateAll()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestValidateRedis(t *testing.T) {
	t.Run("empty addr rejected", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Redis.Addr = ""
		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "addr")
	})

	t.Run("negative db rejected", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Redis.DB = -1
		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "db")
	})
}

func TestValidateSlack(t *testing.T) {
	t.Run("disabled slack skips required fields", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Slack = &SlackConfig{Enabled: false}
		require.NoError(t, NewValidator(cfg).ValidateAll())
	})

	t.Run("enabled slack requires token_env and channel", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Slack = &SlackConfig{Enabled: true}
		err := NewValidator(cfg).ValidateAll()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "token_env")
	})

	t.Run("enabled slack with both fields passes", func(t *testing.T) {
		cfg := validConfigForTest()
		cfg.Slack = &SlackConfig{Enabled: true, TokenEnv: "SLACK_BOT_TOKEN", Channel: "#incidents"}
		require.NoError(t, NewValidator(cfg).ValidateAll())
	})
}
