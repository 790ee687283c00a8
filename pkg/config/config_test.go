package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/codeready-toolchain/sentinel/pkg/incident"
)

func TestConfigStatsAndConfigDir(t *testing.T) {
	actions := map[string]incident.ActionTemplate{
		"restart-pod": {
			ActionID:            "restart-pod",
			RequiredPermissions: []string{"pods/restart"},
			MaxRiskLevel:        incident.RiskMedium,
		},
		"scale-up": {
			ActionID:            "scale-up",
			RequiredPermissions: []string{"deployments/scale"},
			MaxRiskLevel:        incident.RiskMedium,
		},
	}
	timeouts := map[incident.Phase]DurationYAML{
		incident.PhaseDiagnosing: DurationYAML(60 * time.Second),
	}

	cfg := &Config{
		configDir:       "/etc/sentinel",
		ActionWhitelist: NewActionWhitelistRegistry(actions),
		PhaseTimeouts:   NewPhaseTimeoutRegistry(timeouts),
	}

	assert.Equal(t, "/etc/sentinel", cfg.ConfigDir())

	stats := cfg.Stats()
	assert.Equal(t, 2, stats.WhitelistedActions)
	assert.Equal(t, 1, stats.PhaseTimeouts)
}

func TestActionWhitelistRegistry(t *testing.T) {
	actions := map[string]incident.ActionTemplate{
		"failover": {
			ActionID:            "failover",
			RequiredPermissions: []string{"services/patch"},
			MaxRiskLevel:        incident.RiskHigh,
		},
	}
	reg := NewActionWhitelistRegistry(actions)

	assert.True(t, reg.Has("failover"))
	assert.False(t, reg.Has("nonexistent"))
	assert.Equal(t, 1, reg.Len())

	tmpl, err := reg.Get("failover")
	assert.NoError(t, err)
	assert.Equal(t, incident.RiskHigh, tmpl.MaxRiskLevel)

	_, err = reg.Get("nonexistent")
	assert.ErrorIs(t, err, ErrActionNotWhitelisted)

	all := reg.GetAll()
	all["failover"] = incident.ActionTemplate{ActionID: "mutated"}
	tmpl2, err := reg.Get("failover")
	assert.NoError(t, err)
	assert.Equal(t, "failover", tmpl2.ActionID, "GetAll must return a defensive copy")
}

func TestPhaseTimeoutRegistry(t *testing.T) {
	timeouts := map[incident.Phase]DurationYAML{
		incident.PhaseResolving: DurationYAML(5 * time.Minute),
	}
	reg := NewPhaseTimeoutRegistry(timeouts)

	d, ok := reg.Get(incident.PhaseResolving)
	assert.True(t, ok)
	assert.Equal(t, 5*time.Minute, d.Duration())

	_, ok = reg.Get(incident.PhaseDetected)
	assert.False(t, ok)

	assert.Equal(t, 1, reg.Len())
}
