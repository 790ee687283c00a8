package config

import (
	"fmt"
	"strconv"
	"time"
)

// DurationYAML wraps time.Duration so config YAML can write durations as
// "30s" / "2m" strings (time.ParseDuration syntax) instead of raw
// nanosecond integers.
type DurationYAML time.Duration

// Duration returns the wrapped time.Duration.
func (d DurationYAML) Duration() time.Duration {
	return time.Duration(d)
}

// UnmarshalYAML accepts either a duration string ("30s") or a bare integer
// of nanoseconds, matching how gopkg.in/yaml.v3 hands scalar nodes to
// custom unmarshalers.
func (d *DurationYAML) UnmarshalYAML(unmarshal func(any) error) error {
	var raw string
	if err := unmarshal(&raw); err == nil {
		parsed, err := time.ParseDuration(raw)
		if err != nil {
			nanos, convErr := strconv.ParseInt(raw, 10, 64)
			if convErr != nil {
				return fmt.Errorf("invalid duration %q: %w", raw, err)
			}
			parsed = time.Duration(nanos)
		}
		*d = DurationYAML(parsed)
		return nil
	}

	var nanos int64
	if err := unmarshal(&nanos); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\" or an integer of nanoseconds")
	}
	*d = DurationYAML(nanos)
	return nil
}

// MarshalYAML renders the duration in its string form.
func (d DurationYAML) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}
