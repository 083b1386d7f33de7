package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Telegram struct {
		BotToken      string `yaml:"bot_token"`
		AdminBotToken string `yaml:"admin_bot_token"`
		Debug         bool   `yaml:"debug"`
	} `yaml:"telegram"`

	Database struct {
		Path string `yaml:"path"`
	} `yaml:"database"`

	Redis struct {
		Address  string `yaml:"address"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`

	Monitoring struct {
		HealthCheckPort   int  `yaml:"health_check_port"`
		PrometheusEnabled bool `yaml:"prometheus_enabled"`
		PrometheusPort    int  `yaml:"prometheus_port"`
	} `yaml:"monitoring"`

	Booking struct {
		HorizonDays    int `yaml:"horizon_days"`
		RetentionDays  int `yaml:"retention_days"`
		MaxHours       int `yaml:"max_hours"`
		MaxInputLength int `yaml:"max_input_length"`
	} `yaml:"booking"`

	Reminder struct {
		LeadHours []int `yaml:"lead_hours"`
	} `yaml:"reminder"`

	Backup struct {
		Enabled       bool   `yaml:"enabled"`
		StoragePath   string `yaml:"storage_path"`
		RetentionDays int    `yaml:"retention_days"`
	} `yaml:"backup"`

	Admins []int64 `yaml:"admins"`
}

// Load reads the YAML config, expanding ${ENV_VAR} placeholders.
func Load(path string) (*Config, error) {
	if path == "" {
		path = "configs/config.yaml"
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err = yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if cfg.Database.Path == "" {
		cfg.Database.Path = "data/bookings.db"
	}
	if cfg.Booking.HorizonDays <= 0 {
		cfg.Booking.HorizonDays = 28
	}
	if cfg.Booking.RetentionDays <= 0 {
		cfg.Booking.RetentionDays = 7
	}
	if cfg.Booking.MaxHours <= 0 {
		cfg.Booking.MaxHours = 8
	}
	if cfg.Booking.MaxInputLength <= 0 {
		cfg.Booking.MaxInputLength = 100
	}
	if len(cfg.Reminder.LeadHours) == 0 {
		cfg.Reminder.LeadHours = []int{2, 24}
	}
	if cfg.Backup.StoragePath == "" {
		cfg.Backup.StoragePath = "data/backups"
	}
	if cfg.Backup.RetentionDays <= 0 {
		cfg.Backup.RetentionDays = 14
	}

	if err = os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// IsAdmin reports whether the user id is in the admin allowlist.
func (c *Config) IsAdmin(userID int64) bool {
	for _, id := range c.Admins {
		if id == userID {
			return true
		}
	}
	return false
}

// ReminderLeads converts the configured lead hours into durations.
func (c *Config) ReminderLeads() []time.Duration {
	leads := make([]time.Duration, 0, len(c.Reminder.LeadHours))
	for _, h := range c.Reminder.LeadHours {
		if h > 0 {
			leads = append(leads, time.Duration(h)*time.Hour)
		}
	}
	return leads
}
