// Package config loads and validates the bridge configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/dar-kow/discord-bot-jira-work-log/internal/logging"
)

// Config represents the main configuration
type Config struct {
	Version  string          `yaml:"version"`
	Logging  *logging.Config `yaml:"logging"`
	Server   *ServerConfig   `yaml:"server"`
	Discord  *DiscordConfig  `yaml:"discord"`
	Jira     *JiraConfig     `yaml:"jira"`
	Tracking *TrackingConfig `yaml:"tracking"`
	Store    *StoreConfig    `yaml:"store"`
	Webhook  *WebhookConfig  `yaml:"webhook"`
}

// ServerConfig holds HTTP server binding options.
type ServerConfig struct {
	// Host is the network interface to bind to (e.g., "127.0.0.1" or "0.0.0.0").
	Host string `yaml:"host"`
	// Port is the TCP port number to listen on.
	Port int `yaml:"port"`
}

// DiscordConfig holds Discord connection settings.
type DiscordConfig struct {
	BotToken      string   `yaml:"bot_token"`
	CommandPrefix string   `yaml:"command_prefix"`
	AdminUsers    []string `yaml:"admin_users"` // User IDs allowed to run admin commands; empty = everyone
}

// JiraConfig holds Jira connection settings.
type JiraConfig struct {
	BaseURL  string `yaml:"base_url"`
	Email    string `yaml:"email"`
	APIToken string `yaml:"api_token"`
	Platform string `yaml:"platform"` // "cloud" or "server"
}

// TrackingConfig holds session tracking policy.
type TrackingConfig struct {
	// MinSession is the minimum duration a session must last to be logged.
	MinSession Duration `yaml:"min_session"`
	// StaleAfter flags sessions that have been open longer than this.
	StaleAfter Duration `yaml:"stale_after"`
	// SweepEvery is the interval between stale-session sweeps.
	SweepEvery Duration `yaml:"sweep_every"`
	// SubmitTimeout bounds each worklog submission tier.
	SubmitTimeout Duration `yaml:"submit_timeout"`
}

// StoreConfig holds mapping store file locations.
type StoreConfig struct {
	TasksPath string `yaml:"tasks_path"`
	UsersPath string `yaml:"users_path"`
	// Watch enables automatic reload when the backing files change on disk.
	Watch bool `yaml:"watch"`
}

// WebhookConfig holds webhook ingestion settings.
type WebhookConfig struct {
	// Secret, when set, must match the X-Webhook-Secret request header.
	Secret string `yaml:"secret"`
	// RatePerMinute limits webhook requests per client IP. 0 disables limiting.
	RatePerMinute int `yaml:"rate_per_minute"`
	Burst         int `yaml:"burst"`
}

// Duration wraps time.Duration with YAML string encoding ("6s", "12h").
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		Version: "1.0",
		Logging: logging.DefaultConfig(),
		Server: &ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
		Discord: &DiscordConfig{
			CommandPrefix: "!",
		},
		Jira: &JiraConfig{
			Platform: "cloud",
		},
		Tracking: &TrackingConfig{
			MinSession:    Duration(6 * time.Second),
			StaleAfter:    Duration(12 * time.Hour),
			SweepEvery:    Duration(10 * time.Minute),
			SubmitTimeout: Duration(30 * time.Second),
		},
		Store: &StoreConfig{
			TasksPath: filepath.Join(homeDir, ".worklogd", "tasks.json"),
			UsersPath: filepath.Join(homeDir, ".worklogd", "users.json"),
			Watch:     true,
		},
		Webhook: &WebhookConfig{
			RatePerMinute: 60,
			Burst:         10,
		},
	}
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return config, nil // Return defaults if no config file
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	if err := yaml.Unmarshal([]byte(expanded), config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Expand paths
	if config.Store != nil {
		config.Store.TasksPath = expandPath(config.Store.TasksPath)
		config.Store.UsersPath = expandPath(config.Store.UsersPath)
	}

	return config, nil
}

// Save saves configuration to a file
func Save(config *Config, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default configuration path
func DefaultConfigPath() string {
	homeDir, _ := os.UserHomeDir()
	return filepath.Join(homeDir, ".worklogd", "config.yaml")
}

// expandPath expands ~ to home directory
func expandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		homeDir, _ := os.UserHomeDir()
		return filepath.Join(homeDir, path[1:])
	}
	return path
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server == nil {
		return fmt.Errorf("server configuration is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Discord == nil || c.Discord.BotToken == "" {
		return fmt.Errorf("discord bot token is required")
	}
	if c.Jira == nil || c.Jira.BaseURL == "" {
		return fmt.Errorf("jira base_url is required")
	}
	if c.Jira.Email == "" || c.Jira.APIToken == "" {
		return fmt.Errorf("jira email and api_token are required")
	}
	if c.Jira.Platform != "cloud" && c.Jira.Platform != "server" {
		return fmt.Errorf("invalid jira platform: %s (want \"cloud\" or \"server\")", c.Jira.Platform)
	}
	if c.Tracking != nil && c.Tracking.MinSession < 0 {
		return fmt.Errorf("tracking min_session must not be negative")
	}
	if c.Store == nil || c.Store.TasksPath == "" || c.Store.UsersPath == "" {
		return fmt.Errorf("store tasks_path and users_path are required")
	}
	return nil
}
