package config

import "github.com/codeready-toolchain/sentinel/pkg/incident"

// Defaults contains system-wide default configuration applied when an
// incoming incident doesn't specify a value itself.
type Defaults struct {
	// Severity used when the detecting agent omits one.
	Severity incident.Severity `yaml:"severity,omitempty"`

	// CostPerMinute used when the detecting agent omits one.
	CostPerMinute float64 `yaml:"cost_per_minute,omitempty" validate:"omitempty,min=0"`
}
