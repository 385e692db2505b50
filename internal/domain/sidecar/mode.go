package sidecar

import (
	"fmt"
	"strings"
)

// LaunchMode selects how the sidecar is located and started.
type LaunchMode int

const (
	// ModeDevelopment runs the backend script with a system interpreter.
	ModeDevelopment LaunchMode = iota
	// ModeProduction runs the executable bundled next to the application.
	ModeProduction
)

// String returns the canonical mode name.
func (m LaunchMode) String() string {
	switch m {
	case ModeDevelopment:
		return "development"
	case ModeProduction:
		return "production"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseLaunchMode accepts the names used by build profiles and env vars.
func ParseLaunchMode(s string) (LaunchMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "dev", "development", "debug":
		return ModeDevelopment, nil
	case "prod", "production", "release":
		return ModeProduction, nil
	default:
		return 0, fmt.Errorf("unknown launch mode %q", s)
	}
}

// SelectMode picks the first non-empty value, later arguments taking
// precedence over earlier ones. An empty list yields production.
func SelectMode(values ...string) (LaunchMode, error) {
	chosen := ""
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			chosen = v
		}
	}
	if chosen == "" {
		return ModeProduction, nil
	}
	return ParseLaunchMode(chosen)
}
