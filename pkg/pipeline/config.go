package pipeline

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/AccelByte/extend-chat-moderation/pkg/antispam"
	"github.com/AccelByte/extend-chat-moderation/pkg/checker"
	"github.com/AccelByte/extend-chat-moderation/pkg/rule"
	"github.com/AccelByte/extend-chat-moderation/pkg/warning"
)

// DefaultRulesDir is used when rules_dir is empty. Relative paths resolve
// against the directory holding the engine config.
const DefaultRulesDir = "rules"

// Config represents the complete engine configuration.
type Config struct {
	RulesDir    string                       `yaml:"rules_dir"`
	DecayPeriod time.Duration                `yaml:"decay_period"`
	WarningSets map[string]warning.SetConfig `yaml:"warning_sets"`
	Antispam    antispam.Config              `yaml:"antispam"`
	Mute        checker.MuteConfig           `yaml:"mute"`
	Newcomer    checker.NewcomerConfig       `yaml:"newcomer"`
}

// LoadConfig loads engine configuration from a YAML file.
// Supports environment variable expansion in the form ${VAR_NAME} or ${VAR_NAME:default}.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	expanded := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expanded), &config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if config.RulesDir == "" {
		config.RulesDir = DefaultRulesDir
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// Validate validates the configuration for common errors. Formulas and
// directive syntax are checked later, when they are compiled.
func (c *Config) Validate() error {
	if c.DecayPeriod < 0 {
		return fmt.Errorf("decay_period must not be negative")
	}

	for name, set := range c.WarningSets {
		if strings.TrimSpace(name) == "" {
			return fmt.Errorf("warning set with empty name found")
		}
		if set.Decay < 0 {
			return fmt.Errorf("warning set %s has negative decay", name)
		}
		for i, t := range set.Triggers {
			if strings.TrimSpace(t.When) == "" {
				return fmt.Errorf("warning set %s trigger %d has empty condition", name, i+1)
			}
		}
	}

	if err := c.Antispam.Default.Validate(); err != nil {
		return fmt.Errorf("antispam default: %w", err)
	}
	for name, checks := range c.Antispam.Categories {
		if _, err := rule.ParseCategory(name); err != nil {
			return fmt.Errorf("antispam: %w", err)
		}
		if err := checks.Validate(); err != nil {
			return fmt.Errorf("antispam %s: %w", name, err)
		}
	}

	for _, name := range c.Mute.Categories {
		if _, err := rule.ParseCategory(name); err != nil {
			return fmt.Errorf("mute: %w", err)
		}
	}
	if c.Newcomer.Enabled && c.Newcomer.Window <= 0 {
		return fmt.Errorf("newcomer window must be positive")
	}
	for _, name := range c.Newcomer.Categories {
		if _, err := rule.ParseCategory(name); err != nil {
			return fmt.Errorf("newcomer: %w", err)
		}
	}

	return nil
}

// expandEnvVars expands environment variables in the format ${VAR} or ${VAR:default}.
func expandEnvVars(s string) string {
	return os.Expand(s, func(key string) string {
		parts := strings.SplitN(key, ":", 2)
		varName := parts[0]
		defaultValue := ""
		if len(parts) == 2 {
			defaultValue = parts[1]
		}

		value := os.Getenv(varName)
		if value == "" {
			return defaultValue
		}
		return value
	})
}
