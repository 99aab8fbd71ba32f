package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"
)

type Config struct {
	User      UserConfig      `toml:"user"`
	Reconcile ReconcileConfig `toml:"reconcile"`
	Google    GoogleConfig    `toml:"google"`
	Outlook   OutlookConfig   `toml:"outlook"`
	Classify  ClassifyConfig  `toml:"classify"`
	Reminder  ReminderConfig  `toml:"reminder"`
}

type UserConfig struct {
	ID       string `toml:"id"`
	Timezone string `toml:"timezone"`
	Device   string `toml:"device"`
}

type ReconcileConfig struct {
	// SuppressionThreshold is the minimum overlap fraction at which a planned
	// event counts as already covered by logged time. Tuned empirically;
	// kept configurable rather than hard-coded.
	SuppressionThreshold float64 `toml:"suppression_threshold"`
	// StatsExcludeHours drops entries at least this long from range
	// summaries (a 23h+ entry is a bookkeeping artifact, not activity).
	StatsExcludeHours int `toml:"stats_exclude_hours"`
	SourceTimeoutSecs int `toml:"source_timeout_seconds"`
	MaxRangeDays      int `toml:"max_range_days"`
}

type GoogleConfig struct {
	Enabled      bool   `toml:"enabled"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	CalendarID   string `toml:"calendar_id"`
}

type OutlookConfig struct {
	Enabled  bool   `toml:"enabled"`
	ClientID string `toml:"client_id"`
	TenantID string `toml:"tenant_id"`
}

type ClassifyConfig struct {
	Provider string `toml:"provider"` // "rules" or "openai"
	Model    string `toml:"model"`
	APIKey   string `toml:"api_key"`
}

type ReminderConfig struct {
	Enabled         bool `toml:"enabled"`
	IntervalMinutes int  `toml:"interval_minutes"`
}

func DefaultConfig() Config {
	return Config{
		User: UserConfig{
			ID:       "local",
			Timezone: "America/Los_Angeles",
			Device:   "cli",
		},
		Reconcile: ReconcileConfig{
			SuppressionThreshold: 0.5,
			StatsExcludeHours:    23,
			SourceTimeoutSecs:    15,
			MaxRangeDays:         31,
		},
		Google: GoogleConfig{
			CalendarID: "primary",
		},
		Classify: ClassifyConfig{
			Provider: "rules",
			Model:    "gpt-4o-mini",
		},
		Reminder: ReminderConfig{
			Enabled:         false,
			IntervalMinutes: 60,
		},
	}
}

func ConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("finding home directory: %w", err)
	}
	return filepath.Join(home, ".config", "daytally"), nil
}

func ConfigPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "config.toml"), nil
}

// DBPath returns the location of the SQLite database file.
func DBPath() (string, error) {
	dir, err := ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "daytally.db"), nil
}

func Load() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(&cfg)
			return &cfg, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DAYTALLY_TIMEZONE"); v != "" {
		cfg.User.Timezone = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_ID"); v != "" {
		cfg.Google.ClientID = v
	}
	if v := os.Getenv("GOOGLE_CLIENT_SECRET"); v != "" {
		cfg.Google.ClientSecret = v
	}
	if v := os.Getenv("MSGRAPH_CLIENT_ID"); v != "" {
		cfg.Outlook.ClientID = v
	}
	if v := os.Getenv("MSGRAPH_TENANT_ID"); v != "" {
		cfg.Outlook.TenantID = v
	}
	if v := os.Getenv("OPENAI_API_KEY"); v != "" {
		cfg.Classify.APIKey = v
	}
}

func EnsureConfigDir() error {
	dir, err := ConfigDir()
	if err != nil {
		return err
	}
	return os.MkdirAll(dir, 0755)
}
