package antispam

import (
	"fmt"
	"time"
)

// CapsAction is what the caps check does to an offending message.
type CapsAction string

const (
	CapsLowercase CapsAction = "lowercase"
	CapsDeny      CapsAction = "deny"
)

// Config holds the antispam checks per category. Categories without an
// entry use Default.
type Config struct {
	Default    Checks            `yaml:"default"`
	Categories map[string]Checks `yaml:"categories"`
}

// Checks configures the four checks for one category.
type Checks struct {
	Delay      DelayConfig      `yaml:"delay"`
	Similarity SimilarityConfig `yaml:"similarity"`
	RateLimit  RateLimitConfig  `yaml:"rate_limit"`
	Caps       CapsConfig       `yaml:"caps"`
}

// PointsConfig awards warning points when a check fails. Amount may be
// a formula over the check's variables.
type PointsConfig struct {
	Set    string `yaml:"set"`
	Amount string `yaml:"amount"`
}

// DelayGroup sets the minimum delay for senders holding Permission.
type DelayGroup struct {
	Permission string        `yaml:"permission"`
	Delay      time.Duration `yaml:"delay"`
}

// DelayConfig rejects messages sent too soon after the last delivered one.
type DelayConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Default          time.Duration `yaml:"default"`
	Groups           []DelayGroup  `yaml:"groups"`
	Silent           bool          `yaml:"silent"`
	BypassPermission string        `yaml:"bypass_permission"`
	Whitelist        []string      `yaml:"whitelist"`
	Message          string        `yaml:"message"`
	Points           PointsConfig  `yaml:"points"`
}

// SimilarityConfig rejects messages too close to recently delivered ones.
type SimilarityConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Threshold        float64       `yaml:"threshold"`
	History          int           `yaml:"history"`
	StartAt          int           `yaml:"start_at"`
	Forgive          time.Duration `yaml:"forgive"`
	MinArgs          int           `yaml:"min_args"`
	Whitelist        []string      `yaml:"whitelist"`
	IgnoreCommands   []string      `yaml:"ignore_commands"`
	Silent           bool          `yaml:"silent"`
	BypassPermission string        `yaml:"bypass_permission"`
	Message          string        `yaml:"message"`
	Points           PointsConfig  `yaml:"points"`
}

// RateLimitConfig rejects a message when Max messages were already
// delivered within Period.
type RateLimitConfig struct {
	Enabled          bool          `yaml:"enabled"`
	Period           time.Duration `yaml:"period"`
	Max              int           `yaml:"max"`
	Silent           bool          `yaml:"silent"`
	BypassPermission string        `yaml:"bypass_permission"`
	Message          string        `yaml:"message"`
	Points           PointsConfig  `yaml:"points"`
}

// CapsConfig flags messages written mostly in capitals.
type CapsConfig struct {
	Enabled          bool         `yaml:"enabled"`
	MinLength        int          `yaml:"min_length"`
	MinPercentage    int          `yaml:"min_percentage"`
	MinInRow         int          `yaml:"min_in_row"`
	Whitelist        []string     `yaml:"whitelist"`
	IgnoreDomains    bool         `yaml:"ignore_domains"`
	Commands         []string     `yaml:"commands"`
	IgnoreCommands   []string     `yaml:"ignore_commands"`
	Action           CapsAction   `yaml:"action"`
	BypassPermission string       `yaml:"bypass_permission"`
	Message          string       `yaml:"message"`
	Points           PointsConfig `yaml:"points"`
}

// Validate checks thresholds and durations.
func (c *Checks) Validate() error {
	if c.Delay.Default < 0 {
		return fmt.Errorf("delay.default must not be negative")
	}
	for i, g := range c.Delay.Groups {
		if g.Permission == "" {
			return fmt.Errorf("delay.groups[%d]: permission is required", i)
		}
		if g.Delay < 0 {
			return fmt.Errorf("delay.groups[%d]: delay must not be negative", i)
		}
	}

	if c.Similarity.Enabled {
		if c.Similarity.Threshold <= 0 || c.Similarity.Threshold > 1 {
			return fmt.Errorf("similarity.threshold must be in (0, 1], got %v", c.Similarity.Threshold)
		}
		if c.Similarity.History < 1 {
			return fmt.Errorf("similarity.history must be at least 1")
		}
		if c.Similarity.StartAt < 1 {
			return fmt.Errorf("similarity.start_at must be at least 1")
		}
		if c.Similarity.Forgive <= 0 {
			return fmt.Errorf("similarity.forgive must be positive")
		}
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.Period <= 0 {
			return fmt.Errorf("rate_limit.period must be positive")
		}
		if c.RateLimit.Max < 1 {
			return fmt.Errorf("rate_limit.max must be at least 1")
		}
	}

	if c.Caps.Enabled {
		if c.Caps.MinPercentage < 0 || c.Caps.MinPercentage > 100 {
			return fmt.Errorf("caps.min_percentage must be in [0, 100]")
		}
		switch c.Caps.Action {
		case "", CapsLowercase, CapsDeny:
		default:
			return fmt.Errorf("caps.action must be %q or %q, got %q", CapsLowercase, CapsDeny, c.Caps.Action)
		}
	}
	return nil
}

// PointSets returns every warning set the checks award points in.
func (c *Checks) PointSets() []string {
	var sets []string
	for _, p := range []PointsConfig{c.Delay.Points, c.Similarity.Points, c.RateLimit.Points, c.Caps.Points} {
		if p.Set != "" {
			sets = append(sets, p.Set)
		}
	}
	return sets
}
