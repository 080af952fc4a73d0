package config

import (
	"fmt"
	"strings"
	"time"
)

// ParseDurationField parses a non-negative Go duration. Blank means 0.
func ParseDurationField(path, raw string) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	switch {
	case err != nil:
		return 0, fmt.Errorf("%w: %s: %q is not a duration", ErrInvalid, path, raw)
	case d < 0:
		return 0, fmt.Errorf("%w: %s: must be >= 0, got %s", ErrInvalid, path, d)
	}
	return d, nil
}

// ParseDurationOrDefault is ParseDurationField with def for blank or zero values.
func ParseDurationOrDefault(path, raw string, def time.Duration) (time.Duration, error) {
	d, err := ParseDurationField(path, raw)
	if err != nil || d > 0 {
		return d, err
	}
	return def, nil
}
