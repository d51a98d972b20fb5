package pipeline

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

func TestLoadConfig(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "engine.yaml")

	t.Setenv("CHAT_DELAY", "3s")

	writeFile(t, configPath, `
decay_period: 5m
warning_sets:
  swearing:
    decay: 1
    triggers:
      - when: "score >= 3 && previous < 3"
        actions:
          - "save key muted_until {now_plus:10m}"
          - "then warn You have been muted"
antispam:
  default:
    delay:
      enabled: true
      default: ${CHAT_DELAY}
      message: "Wait {remaining}s"
    rate_limit:
      enabled: true
      period: 10s
      max: ${CHAT_RATE_MAX:5}
  categories:
    command:
      similarity:
        enabled: true
        threshold: 0.8
        history: 3
        start_at: 2
        forgive: 1m
mute:
  enabled: true
  categories: [chat, pm]
newcomer:
  enabled: true
  window: 1h
`)

	config, err := LoadConfig(configPath)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.RulesDir != DefaultRulesDir {
		t.Errorf("Expected default rules dir, got %q", config.RulesDir)
	}
	if config.DecayPeriod != 5*time.Minute {
		t.Errorf("Expected decay period 5m, got %s", config.DecayPeriod)
	}

	swearing, ok := config.WarningSets["swearing"]
	if !ok {
		t.Fatal("Expected warning set swearing")
	}
	if swearing.Decay != 1 || len(swearing.Triggers) != 1 || len(swearing.Triggers[0].Actions) != 2 {
		t.Errorf("Unexpected warning set %+v", swearing)
	}

	if config.Antispam.Default.Delay.Default != 3*time.Second {
		t.Errorf("Expected env-expanded delay 3s, got %s", config.Antispam.Default.Delay.Default)
	}
	if config.Antispam.Default.RateLimit.Max != 5 {
		t.Errorf("Expected default rate max 5, got %d", config.Antispam.Default.RateLimit.Max)
	}
	if config.Antispam.Default.Delay.Message != "Wait {remaining}s" {
		t.Errorf("Placeholders must survive env expansion, got %q", config.Antispam.Default.Delay.Message)
	}
	if sim := config.Antispam.Categories["command"].Similarity; !sim.Enabled || sim.Threshold != 0.8 || sim.Forgive != time.Minute {
		t.Errorf("Unexpected command similarity %+v", sim)
	}

	if !config.Mute.Enabled || len(config.Mute.Categories) != 2 {
		t.Errorf("Unexpected mute %+v", config.Mute)
	}
	if config.Newcomer.Window != time.Hour {
		t.Errorf("Expected newcomer window 1h, got %s", config.Newcomer.Window)
	}
}

func TestLoadConfig_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		errMsg  string
	}{
		{
			name:    "malformed yaml",
			content: "warning_sets: [",
			errMsg:  "failed to parse YAML",
		},
		{
			name:    "negative decay period",
			content: "decay_period: -1m",
			errMsg:  "decay_period",
		},
		{
			name: "negative set decay",
			content: `
warning_sets:
  spam:
    decay: -1`,
			errMsg: "negative decay",
		},
		{
			name: "empty trigger condition",
			content: `
warning_sets:
  spam:
    triggers:
      - actions: ["then warn hi"]`,
			errMsg: "empty condition",
		},
		{
			name: "similarity threshold out of range",
			content: `
antispam:
  default:
    similarity:
      enabled: true
      threshold: 1.5
      history: 3
      start_at: 1
      forgive: 1m`,
			errMsg: "similarity.threshold",
		},
		{
			name: "unknown antispam category",
			content: `
antispam:
  categories:
    shout: {}`,
			errMsg: "unknown category",
		},
		{
			name: "unknown mute category",
			content: `
mute:
  enabled: true
  categories: [lobby]`,
			errMsg: "mute",
		},
		{
			name: "newcomer without window",
			content: `
newcomer:
  enabled: true`,
			errMsg: "window",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "engine.yaml")
			writeFile(t, path, tt.content)

			_, err := LoadConfig(path)
			if err == nil {
				t.Fatal("Expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.errMsg) {
				t.Errorf("Expected error containing %q, got %v", tt.errMsg, err)
			}
		})
	}
}

func TestLoadConfig_MissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	if err == nil || !strings.Contains(err.Error(), "failed to read config file") {
		t.Errorf("Expected read error, got %v", err)
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("CHATGUARD_TEST_SET", "value")

	tests := []struct {
		in   string
		want string
	}{
		{"${CHATGUARD_TEST_SET}", "value"},
		{"${CHATGUARD_TEST_SET:fallback}", "value"},
		{"${CHATGUARD_TEST_UNSET:fallback}", "fallback"},
		{"${CHATGUARD_TEST_UNSET}", ""},
		{"{player} stays", "{player} stays"},
		{"^/spawn$", "^/spawn$"},
	}

	for _, tt := range tests {
		if got := expandEnvVars(tt.in); got != tt.want {
			t.Errorf("expandEnvVars(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}
