// Package config loads, merges, and validates the incident response core's
// configuration: consensus thresholds, the circuit-breaker/rate-limit
// fabric, the action whitelist, per-phase timeouts, and the storage/
// notification backends. Mirrors the reference loader's shape (a single
// YAML file merged over built-in defaults, then validated as a whole) with
// the component registries renamed to this system's domain.
package config

// Config is the umbrella configuration object returned by Initialize and
// used throughout the incident response core.
type Config struct {
	configDir string

	Defaults  *Defaults
	Consensus *ConsensusConfig
	Fabric    *FabricConfig
	Admission *AdmissionConfig
	Retention *RetentionConfig

	Redis    *RedisConfig
	Postgres *PostgresConfig
	Slack    *SlackConfig

	PhaseTimeouts   *PhaseTimeoutRegistry
	ActionWhitelist *ActionWhitelistRegistry
}

// ConfigDir returns the configuration directory path.
func (c *Config) ConfigDir() string {
	return c.configDir
}

// ConfigStats summarizes loaded configuration for startup logging.
type ConfigStats struct {
	WhitelistedActions int
	PhaseTimeouts      int
}

// Stats returns configuration statistics for logging/monitoring.
func (c *Config) Stats() ConfigStats {
	return ConfigStats{
		WhitelistedActions: c.ActionWhitelist.Len(),
		PhaseTimeouts:      c.PhaseTimeouts.Len(),
	}
}

// ConsensusConfig parameterizes the Byzantine-tolerant voting algorithm
//. Only ZThreshold is handed to consensus.Config at call sites, keeping
// pkg/consensus free of a dependency on pkg/config; MinTrusted, the two
// thresholds and DeadlockBudget are loaded but not passed on, and the
// engine uses its own package constants for them.
type ConsensusConfig struct {
	// ZThreshold is the behavioral-screen deviation cutoff. 0 disables
	// the screen entirely.
	ZThreshold float64 `yaml:"z_threshold"`

	// MinTrusted is the floor on surviving agents below which a round
	// cannot proceed.
	MinTrusted int `yaml:"min_trusted"`

	// ApprovalThreshold and DegradedThreshold gate the weighted-
	// aggregation outcome.
	ApprovalThreshold float64 `yaml:"approval_threshold"`
	DegradedThreshold float64 `yaml:"degraded_threshold"`

	// DeadlockBudget bounds how long a round searches for a majority
	// before falling back to the single best recommendation.
	DeadlockBudget DurationYAML `yaml:"deadlock_budget"`
}

// FabricConfig parameterizes the rate-limit/circuit-breaker fabric
//.
type FabricConfig struct {
	ConsecutiveFailuresToOpen   int             `yaml:"consecutive_failures_to_open" validate:"min=1"`
	OpenTimeout                 DurationYAML    `yaml:"open_timeout"`
	ConsecutiveSuccessesToClose int             `yaml:"consecutive_successes_to_close" validate:"min=1"`
	RateLimit                   RateLimitConfig `yaml:"rate_limit"`
}

// RateLimitConfig parameterizes the priority token bucket.
type RateLimitConfig struct {
	Capacity int          `yaml:"capacity" validate:"min=1"`
	Refill   int          `yaml:"refill" validate:"min=1"`
	Interval DurationYAML `yaml:"interval"`
}

// AdmissionConfig bounds how many incidents may be open concurrently
//.
type AdmissionConfig struct {
	MaxInFlight int `yaml:"max_in_flight" validate:"min=1"`
}

// RedisConfig points at the lease/checkpoint store backend.
type RedisConfig struct {
	Addr        string `yaml:"addr"`
	DB          int    `yaml:"db"`
	PasswordEnv string `yaml:"password_env,omitempty"`
}

// PostgresConfig points at the event store backend.
type PostgresConfig struct {
	Host         string `yaml:"host"`
	Port         int    `yaml:"port" validate:"min=1,max=65535"`
	Database     string `yaml:"database"`
	SSLMode      string `yaml:"ssl_mode"`
	UserEnv      string `yaml:"user_env"`
	PasswordEnv  string `yaml:"password_env"`
	MaxOpenConns int    `yaml:"max_open_conns"`
	MaxIdleConns int    `yaml:"max_idle_conns"`
}

// SlackConfig holds Slack notification settings. Enabled=false (the
// default) means notify.Service is constructed nil-safe, matching the
// reference Slack integration's "service may be nil" contract.
type SlackConfig struct {
	Enabled  bool   `yaml:"enabled"`
	TokenEnv string `yaml:"token_env"`
	Channel  string `yaml:"channel"`
}
