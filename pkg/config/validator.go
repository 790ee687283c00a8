package config

import (
	"fmt"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// phasesWithTimeout lists the phases the orchestrator enforces a deadline
// on. Detected, Resolved, RollingBack, and Escalated have no configurable
// timeout: Detected is instantaneous, and the other three are either
// terminal or themselves a timeout-driven fallback.
var phasesWithTimeout = map[incident.Phase]bool{
	incident.PhaseDiagnosing:        true,
	incident.PhasePredicting:        true,
	incident.PhaseAwaitingConsensus: true,
	incident.PhaseResolving:         true,
	incident.PhaseValidating:        true,
}

var validRiskLevels = map[incident.RiskLevel]bool{
	incident.RiskLow:    true,
	incident.RiskMedium: true,
	incident.RiskHigh:   true,
}

// Validator validates configuration comprehensively with clear error messages.
type Validator struct {
	cfg *Config
}

// NewValidator creates a validator for the given configuration.
func NewValidator(cfg *Config) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateAll performs comprehensive validation (fail-fast - stops at first error).
func (v *Validator) ValidateAll() error {
	if err := v.validateConsensus(); err != nil {
		return fmt.Errorf("consensus validation failed: %w", err)
	}

	if err := v.validateFabric(); err != nil {
		return fmt.Errorf("fabric validation failed: %w", err)
	}

	if err := v.validateAdmission(); err != nil {
		return fmt.Errorf("admission validation failed: %w", err)
	}

	if err := v.validateActionWhitelist(); err != nil {
		return fmt.Errorf("action whitelist validation failed: %w", err)
	}

	if err := v.validatePhaseTimeouts(); err != nil {
		return fmt.Errorf("phase timeout validation failed: %w", err)
	}

	if err := v.validateDefaults(); err != nil {
		return fmt.Errorf("defaults validation failed: %w", err)
	}

	if err := v.validateRetention(); err != nil {
		return fmt.Errorf("retention validation failed: %w", err)
	}

	if err := v.validatePostgres(); err != nil {
		return fmt.Errorf("postgres validation failed: %w", err)
	}

	if err := v.validateRedis(); err != nil {
		return fmt.Errorf("redis validation failed: %w", err)
	}

	if err := v.validateSlack(); err != nil {
		return fmt.Errorf("slack validation failed: %w", err)
	}

	return nil
}

func (v *Validator) validateConsensus() error {
	c := v.cfg.Consensus
	if c == nil {
		return fmt.Errorf("consensus configuration is nil")
	}

	if c.MinTrusted < 1 {
		return fmt.Errorf("min_trusted must be at least 1, got %d", c.MinTrusted)
	}
	if c.ZThreshold < 0 {
		return fmt.Errorf("z_threshold must be non-negative (0 disables the behavioral screen), got %v", c.ZThreshold)
	}
	if c.ApprovalThreshold <= 0 || c.ApprovalThreshold > 1 {
		return fmt.Errorf("approval_threshold must be in (0, 1], got %v", c.ApprovalThreshold)
	}
	if c.DegradedThreshold <= 0 || c.DegradedThreshold > 1 {
		return fmt.Errorf("degraded_threshold must be in (0, 1], got %v", c.DegradedThreshold)
	}
	if c.DegradedThreshold >= c.ApprovalThreshold {
		return fmt.Errorf("degraded_threshold must be less than approval_threshold, got degraded=%v approval=%v",
			c.DegradedThreshold, c.ApprovalThreshold)
	}
	if c.DeadlockBudget.Duration() <= 0 {
		return fmt.Errorf("deadlock_budget must be positive, got %v", c.DeadlockBudget.Duration())
	}

	return nil
}

func (v *Validator) validateFabric() error {
	f := v.cfg.Fabric
	if f == nil {
		return fmt.Errorf("fabric configuration is nil")
	}

	if f.ConsecutiveFailuresToOpen < 1 {
		return fmt.Errorf("consecutive_failures_to_open must be at least 1, got %d", f.ConsecutiveFailuresToOpen)
	}
	if f.OpenTimeout.Duration() <= 0 {
		return fmt.Errorf("open_timeout must be positive, got %v", f.OpenTimeout.Duration())
	}
	if f.ConsecutiveSuccessesToClose < 1 {
		return fmt.Errorf("consecutive_successes_to_close must be at least 1, got %d", f.ConsecutiveSuccessesToClose)
	}

	rl := f.RateLimit
	if rl.Capacity < 1 {
		return NewValidationError("fabric", "rate_limit", "capacity",
			fmt.Errorf("must be at least 1, got %d", rl.Capacity))
	}
	if rl.Refill < 1 {
		return NewValidationError("fabric", "rate_limit", "refill",
			fmt.Errorf("must be at least 1, got %d", rl.Refill))
	}
	if rl.Interval.Duration() <= 0 {
		return NewValidationError("fabric", "rate_limit", "interval",
			fmt.Errorf("must be positive, got %v", rl.Interval.Duration()))
	}
	if rl.Refill > rl.Capacity {
		return NewValidationError("fabric", "rate_limit", "refill",
			fmt.Errorf("refill (%d) must not exceed capacity (%d)", rl.Refill, rl.Capacity))
	}

	return nil
}

func (v *Validator) validateAdmission() error {
	a := v.cfg.Admission
	if a == nil {
		return fmt.Errorf("admission configuration is nil")
	}
	if a.MaxInFlight < 1 {
		return fmt.Errorf("max_in_flight must be at least 1, got %d", a.MaxInFlight)
	}
	return nil
}

func (v *Validator) validateActionWhitelist() error {
	actions := v.cfg.ActionWhitelist.GetAll()
	if len(actions) == 0 {
		return fmt.Errorf("action whitelist must not be empty")
	}

	for id, tmpl := range actions {
		if tmpl.ActionID == "" {
			return NewValidationError("action_whitelist", id, "action_id",
				fmt.Errorf("must not be empty"))
		}
		if tmpl.ActionID != id {
			return NewValidationError("action_whitelist", id, "action_id",
				fmt.Errorf("template action_id %q does not match registry key %q", tmpl.ActionID, id))
		}
		if len(tmpl.RequiredPermissions) == 0 {
			return NewValidationError("action_whitelist", id, "required_permissions",
				fmt.Errorf("must list at least one permission"))
		}
		if !validRiskLevels[tmpl.MaxRiskLevel] {
			return NewValidationError("action_whitelist", id, "max_risk_level",
				fmt.Errorf("must be one of LOW, MEDIUM, HIGH, got %q", tmpl.MaxRiskLevel))
		}
	}

	return nil
}

func (v *Validator) validatePhaseTimeouts() error {
	for phase := range phasesWithTimeout {
		timeout, ok := v.cfg.PhaseTimeouts.Get(phase)
		if !ok {
			return NewValidationError("phase_timeouts", string(phase), "",
				fmt.Errorf("no timeout configured for a phase that requires one"))
		}
		if timeout.Duration() <= 0 {
			return NewValidationError("phase_timeouts", string(phase), "",
				fmt.Errorf("must be positive, got %v", timeout.Duration()))
		}
	}
	return nil
}

func (v *Validator) validateDefaults() error {
	d := v.cfg.Defaults
	if d == nil {
		return nil
	}
	switch d.Severity {
	case "", incident.SeverityCritical, incident.SeverityImportant, incident.SeveritySupporting:
	default:
		return NewValidationError("defaults", "", "severity",
			fmt.Errorf("unrecognized severity %q", d.Severity))
	}
	if d.CostPerMinute < 0 {
		return NewValidationError("defaults", "", "cost_per_minute",
			fmt.Errorf("must be non-negative, got %v", d.CostPerMinute))
	}
	return nil
}

func (v *Validator) validateRetention() error {
	r := v.cfg.Retention
	if r == nil {
		return nil
	}
	if r.ResolvedIncidentRetentionDays < 1 {
		return fmt.Errorf("resolved_incident_retention_days must be at least 1, got %d", r.ResolvedIncidentRetentionDays)
	}
	if r.CleanupInterval <= 0 {
		return fmt.Errorf("cleanup_interval must be positive, got %v", r.CleanupInterval)
	}
	return nil
}

func (v *Validator) validatePostgres() error {
	p := v.cfg.Postgres
	if p == nil {
		return fmt.Errorf("postgres configuration is nil")
	}
	if p.Host == "" {
		return NewValidationError("postgres", "", "host", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if p.Port < 1 || p.Port > 65535 {
		return NewValidationError("postgres", "", "port",
			fmt.Errorf("must be between 1 and 65535, got %d", p.Port))
	}
	if p.Database == "" {
		return NewValidationError("postgres", "", "database", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if p.MaxOpenConns < 1 {
		return NewValidationError("postgres", "", "max_open_conns",
			fmt.Errorf("must be at least 1, got %d", p.MaxOpenConns))
	}
	if p.MaxIdleConns < 0 || p.MaxIdleConns > p.MaxOpenConns {
		return NewValidationError("postgres", "", "max_idle_conns",
			fmt.Errorf("must be between 0 and max_open_conns (%d), got %d", p.MaxOpenConns, p.MaxIdleConns))
	}
	return nil
}

func (v *Validator) validateRedis() error {
	r := v.cfg.Redis
	if r == nil {
		return fmt.Errorf("redis configuration is nil")
	}
	if r.Addr == "" {
		return NewValidationError("redis", "", "addr", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if r.DB < 0 {
		return NewValidationError("redis", "", "db", fmt.Errorf("must be non-negative, got %d", r.DB))
	}
	return nil
}

func (v *Validator) validateSlack() error {
	s := v.cfg.Slack
	if s == nil || !s.Enabled {
		return nil
	}
	if s.TokenEnv == "" {
		return NewValidationError("slack", "", "token_env", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	if s.Channel == "" {
		return NewValidationError("slack", "", "channel", fmt.Errorf("%w", ErrMissingRequiredField))
	}
	return nil
}
