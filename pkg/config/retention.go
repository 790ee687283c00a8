package config

import "time"

// RetentionConfig controls how long resolved incidents' event streams and
// consensus audit trail are kept before cleanup.
type RetentionConfig struct {
	// ResolvedIncidentRetentionDays is how many days to keep a resolved or
	// escalated incident's events before they're eligible for cleanup.
	ResolvedIncidentRetentionDays int `yaml:"resolved_incident_retention_days"`

	// CleanupInterval is how often the retention sweep runs.
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// DefaultRetentionConfig returns the built-in retention defaults.
func DefaultRetentionConfig() *RetentionConfig {
	return &RetentionConfig{
		ResolvedIncidentRetentionDays: 90,
		CleanupInterval:               12 * time.Hour,
	}
}
