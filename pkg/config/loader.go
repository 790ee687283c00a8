package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"dario.cat/mergo"
	"gopkg.in/yaml.v3"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// SentinelYAMLConfig represents the complete sentinel.yaml file structure.
type SentinelYAMLConfig struct {
	Defaults        *Defaults                           `yaml:"defaults"`
	Consensus       *ConsensusConfig                     `yaml:"consensus"`
	Fabric          *FabricConfig                        `yaml:"fabric"`
	Admission       *AdmissionConfig                     `yaml:"admission"`
	Retention       *RetentionConfig                     `yaml:"retention"`
	Redis           *RedisConfig                         `yaml:"redis"`
	Postgres        *PostgresConfig                      `yaml:"postgres"`
	Slack           *SlackConfig                         `yaml:"slack"`
	ActionWhitelist map[string]incident.ActionTemplate   `yaml:"action_whitelist"`
	PhaseTimeouts   map[incident.Phase]DurationYAML      `yaml:"phase_timeouts"`
}

// Initialize loads, validates, and returns ready-to-use configuration. This
// is the primary entry point for configuration loading.
//
// Steps performed:
//  1. Load sentinel.yaml from configDir
//  2. Expand environment variables
//  3. Parse YAML into structs
//  4. Merge built-in + user-defined configuration (user overrides built-in)
//  5. Build the action whitelist and phase timeout registries
//  6. Validate all configuration
//  7. Return Config ready for use
func Initialize(ctx context.Context, configDir string) (*Config, error) {
	log := slog.With("config_dir", configDir)
	log.Info("Initializing configuration")

	cfg, err := load(ctx, configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	stats := cfg.Stats()
	log.Info("Configuration initialized successfully",
		"whitelisted_actions", stats.WhitelistedActions,
		"phase_timeouts", stats.PhaseTimeouts)

	return cfg, nil
}

func load(_ context.Context, configDir string) (*Config, error) {
	loader := &configLoader{configDir: configDir}

	yamlCfg, err := loader.loadSentinelYAML()
	if err != nil {
		return nil, NewLoadError("sentinel.yaml", err)
	}

	builtin := GetBuiltinConfig()

	actionWhitelist := mergeActionWhitelist(builtin.ActionWhitelist, yamlCfg.ActionWhitelist)
	phaseTimeouts := mergePhaseTimeouts(builtin.PhaseTimeouts, yamlCfg.PhaseTimeouts)

	consensus := builtin.Consensus
	if yamlCfg.Consensus != nil {
		if err := mergo.Merge(&consensus, yamlCfg.Consensus, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge consensus config: %w", err)
		}
	}

	fabric := builtin.Fabric
	if yamlCfg.Fabric != nil {
		if err := mergo.Merge(&fabric, yamlCfg.Fabric, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge fabric config: %w", err)
		}
	}

	admission := builtin.Admission
	if yamlCfg.Admission != nil {
		if err := mergo.Merge(&admission, yamlCfg.Admission, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge admission config: %w", err)
		}
	}

	defaults := yamlCfg.Defaults
	if defaults == nil {
		defaults = &Defaults{}
	}
	if defaults.Severity == "" {
		defaults.Severity = incident.SeverityImportant
	}

	retention := DefaultRetentionConfig()
	if yamlCfg.Retention != nil {
		if err := mergo.Merge(retention, yamlCfg.Retention, mergo.WithOverride); err != nil {
			return nil, fmt.Errorf("failed to merge retention config: %w", err)
		}
	}

	redis := resolveRedisConfig(yamlCfg.Redis)
	postgres := resolvePostgresConfig(yamlCfg.Postgres)
	slackCfg := resolveSlackConfig(yamlCfg.Slack)

	return &Config{
		configDir:       configDir,
		Defaults:        defaults,
		Consensus:       &consensus,
		Fabric:          &fabric,
		Admission:       &admission,
		Retention:       retention,
		Redis:           redis,
		Postgres:        postgres,
		Slack:           slackCfg,
		ActionWhitelist: NewActionWhitelistRegistry(actionWhitelist),
		PhaseTimeouts:   NewPhaseTimeoutRegistry(phaseTimeouts),
	}, nil
}

func validate(cfg *Config) error {
	validator := NewValidator(cfg)
	return validator.ValidateAll()
}

type configLoader struct {
	configDir string
}

func (l *configLoader) loadYAML(filename string, target any) error {
	path := filepath.Join(l.configDir, filename)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrConfigNotFound, path)
		}
		return err
	}

	data = ExpandEnv(data)

	if err := yaml.Unmarshal(data, target); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidYAML, err)
	}

	return nil
}

func (l *configLoader) loadSentinelYAML() (*SentinelYAMLConfig, error) {
	cfg := SentinelYAMLConfig{
		ActionWhitelist: make(map[string]incident.ActionTemplate),
		PhaseTimeouts:   make(map[incident.Phase]DurationYAML),
	}
	if err := l.loadYAML("sentinel.yaml", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// mergeActionWhitelist overlays user-defined action templates on top of
// the built-in catalog; a user entry with the same action_id replaces the
// built-in one wholesale rather than being merged field-by-field, since a
// partially-specified action template is a security gate misconfiguration
// waiting to happen.
func mergeActionWhitelist(builtin, user map[string]incident.ActionTemplate) map[string]incident.ActionTemplate {
	merged := make(map[string]incident.ActionTemplate, len(builtin)+len(user))
	for k, v := range builtin {
		merged[k] = v
	}
	for k, v := range user {
		merged[k] = v
	}
	return merged
}

func mergePhaseTimeouts(builtin, user map[incident.Phase]DurationYAML) map[incident.Phase]DurationYAML {
	merged := make(map[incident.Phase]DurationYAML, len(builtin)+len(user))
	for k, v := range builtin {
		merged[k] = v
	}
	for k, v := range user {
		merged[k] = v
	}
	return merged
}

func resolveRedisConfig(r *RedisConfig) *RedisConfig {
	if r == nil {
		return &RedisConfig{Addr: "localhost:6379"}
	}
	if r.Addr == "" {
		r.Addr = "localhost:6379"
	}
	return r
}

func resolvePostgresConfig(p *PostgresConfig) *PostgresConfig {
	if p == nil {
		p = &PostgresConfig{}
	}
	if p.Host == "" {
		p.Host = "localhost"
	}
	if p.Port == 0 {
		p.Port = 5432
	}
	if p.Database == "" {
		p.Database = "sentinel"
	}
	if p.SSLMode == "" {
		p.SSLMode = "disable"
	}
	if p.MaxOpenConns == 0 {
		p.MaxOpenConns = 10
	}
	if p.MaxIdleConns == 0 {
		p.MaxIdleConns = 5
	}
	return p
}

func resolveSlackConfig(s *SlackConfig) *SlackConfig {
	if s == nil {
		return &SlackConfig{Enabled: false, TokenEnv: "SLACK_BOT_TOKEN"}
	}
	if s.TokenEnv == "" {
		s.TokenEnv = "SLACK_BOT_TOKEN"
	}
	return s
}
