package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Server.Port != 5000 {
		t.Errorf("Server.Port = %d, want 5000", cfg.Server.Port)
	}
	if cfg.Discord.CommandPrefix != "!" {
		t.Errorf("CommandPrefix = %q, want !", cfg.Discord.CommandPrefix)
	}
	if cfg.Tracking.MinSession.Std() != 6*time.Second {
		t.Errorf("MinSession = %v, want 6s", cfg.Tracking.MinSession.Std())
	}
}

func TestLoadParsesDurationsAndEnv(t *testing.T) {
	t.Setenv("TEST_JIRA_TOKEN", "secret-token")

	path := filepath.Join(t.TempDir(), "config.yaml")
	data := `
jira:
  base_url: https://company.atlassian.net
  email: bot@example.com
  api_token: ${TEST_JIRA_TOKEN}
tracking:
  min_session: 10s
  stale_after: 8h
webhook:
  rate_per_minute: 30
`
	if err := os.WriteFile(path, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Jira.APIToken != "secret-token" {
		t.Errorf("APIToken = %q, want env expanded", cfg.Jira.APIToken)
	}
	if cfg.Tracking.MinSession.Std() != 10*time.Second {
		t.Errorf("MinSession = %v, want 10s", cfg.Tracking.MinSession.Std())
	}
	if cfg.Tracking.StaleAfter.Std() != 8*time.Hour {
		t.Errorf("StaleAfter = %v, want 8h", cfg.Tracking.StaleAfter.Std())
	}
	if cfg.Webhook.RatePerMinute != 30 {
		t.Errorf("RatePerMinute = %d, want 30", cfg.Webhook.RatePerMinute)
	}
	// Unset sections keep their defaults.
	if cfg.Tracking.SweepEvery.Std() != 10*time.Minute {
		t.Errorf("SweepEvery = %v, want default 10m", cfg.Tracking.SweepEvery.Std())
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("tracking:\n  min_session: soon\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Error("Load() error = nil, want error for invalid duration")
	}
}

func TestValidate(t *testing.T) {
	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Discord.BotToken = "token"
		cfg.Jira.BaseURL = "https://company.atlassian.net"
		cfg.Jira.Email = "bot@example.com"
		cfg.Jira.APIToken = "secret"
		return cfg
	}

	if err := valid().Validate(); err != nil {
		t.Errorf("Validate() on valid config = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing bot token", func(c *Config) { c.Discord.BotToken = "" }},
		{"missing jira url", func(c *Config) { c.Jira.BaseURL = "" }},
		{"missing credentials", func(c *Config) { c.Jira.APIToken = "" }},
		{"bad platform", func(c *Config) { c.Jira.Platform = "datacenter" }},
		{"bad port", func(c *Config) { c.Server.Port = 0 }},
		{"missing store paths", func(c *Config) { c.Store.TasksPath = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() = nil, want error")
			}
		})
	}
}
