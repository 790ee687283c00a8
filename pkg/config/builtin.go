package config

import (
	"sync"
	"time"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

// BuiltinConfig holds the default action whitelist, phase timeouts, and
// subsystem defaults shipped with the binary. User YAML merges on top of
// this at load time (non-zero user values override).
type BuiltinConfig struct {
	ActionWhitelist map[string]incident.ActionTemplate
	PhaseTimeouts   map[incident.Phase]DurationYAML
	Consensus       ConsensusConfig
	Fabric          FabricConfig
	Admission       AdmissionConfig
}

var (
	builtinConfig     *BuiltinConfig
	builtinConfigOnce sync.Once
)

// GetBuiltinConfig returns the singleton built-in configuration
// (thread-safe, lazy-initialized).
func GetBuiltinConfig() *BuiltinConfig {
	builtinConfigOnce.Do(initBuiltinConfig)
	return builtinConfig
}

func initBuiltinConfig() {
	builtinConfig = &BuiltinConfig{
		ActionWhitelist: initBuiltinActionWhitelist(),
		PhaseTimeouts:   initBuiltinPhaseTimeouts(),
		Consensus: ConsensusConfig{
			ZThreshold:        2.5,
			MinTrusted:        3,
			ApprovalThreshold: 0.70,
			DegradedThreshold: 0.60,
			DeadlockBudget:    DurationYAML(120 * time.Second),
		},
		Fabric: FabricConfig{
			ConsecutiveFailuresToOpen:   5,
			OpenTimeout:                 DurationYAML(30 * time.Second),
			ConsecutiveSuccessesToClose: 2,
			RateLimit: RateLimitConfig{
				Capacity: 100,
				Refill:   20,
				Interval: DurationYAML(time.Second),
			},
		},
		Admission: AdmissionConfig{MaxInFlight: 50},
	}
}

func initBuiltinActionWhitelist() map[string]incident.ActionTemplate {
	return map[string]incident.ActionTemplate{
		"restart-pod": {
			ActionID:             "restart-pod",
			RequiredPermissions:  []string{"pods/restart"},
			SandboxTested:        true,
			ValidationInvariants: []string{"pod_ready", "no_crash_loop"},
			MaxRiskLevel:         incident.RiskMedium,
		},
		"scale-up": {
			ActionID:             "scale-up",
			RequiredPermissions:  []string{"deployments/scale"},
			SandboxTested:        true,
			ValidationInvariants: []string{"replica_count_matches_target"},
			MaxRiskLevel:         incident.RiskMedium,
		},
		"failover": {
			ActionID:             "failover",
			RequiredPermissions:  []string{"services/patch", "endpoints/patch"},
			SandboxTested:        true,
			ValidationInvariants: []string{"traffic_shifted", "health_check_passing"},
			MaxRiskLevel:         incident.RiskHigh,
		},
		"rollback-deployment": {
			ActionID:             "rollback-deployment",
			RequiredPermissions:  []string{"deployments/rollback"},
			SandboxTested:        true,
			ValidationInvariants: []string{"prior_revision_healthy"},
			MaxRiskLevel:         incident.RiskMedium,
		},
	}
}

func initBuiltinPhaseTimeouts() map[incident.Phase]DurationYAML {
	return map[incident.Phase]DurationYAML{
		incident.PhaseDiagnosing:        DurationYAML(60 * time.Second),
		incident.PhasePredicting:        DurationYAML(60 * time.Second),
		incident.PhaseAwaitingConsensus: DurationYAML(120 * time.Second),
		incident.PhaseResolving:         DurationYAML(300 * time.Second),
		incident.PhaseValidating:        DurationYAML(60 * time.Second),
	}
}
