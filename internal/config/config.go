package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Backend   BackendConfig   `yaml:"backend"`
	Training  TrainingConfig  `yaml:"training"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Database  DatabaseConfig  `yaml:"database"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BackendConfig points at the pose-analysis backend.
type BackendConfig struct {
	URL     string        `yaml:"url"`
	Timeout time.Duration `yaml:"timeout"`
}

// TrainingConfig tunes the training interface controllers.
type TrainingConfig struct {
	PollInterval     time.Duration `yaml:"poll_interval"`
	ProgressStep     int           `yaml:"progress_step"`
	ProgressInterval time.Duration `yaml:"progress_interval"`
	SessionTTL       time.Duration `yaml:"session_ttl"`
	// SweepSchedule is a cron spec for expiring idle sessions.
	SweepSchedule string `yaml:"sweep_schedule"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

// DatabaseConfig is optional. When Host is empty the analysis journal is disabled.
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

// Enabled reports whether a journal database is configured.
func (d DatabaseConfig) Enabled() bool {
	return d.Host != ""
}

// DSN returns a PostgreSQL connection string.
func (d DatabaseConfig) DSN() string {
	sslmode := d.SSLMode
	if sslmode == "" {
		sslmode = "disable"
	}
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.Name, sslmode)
}

// Default returns a config with every optional field set.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Host: "127.0.0.1", Port: 3000},
		Backend: BackendConfig{
			URL:     "http://localhost:5000",
			Timeout: 5 * time.Minute,
		},
		Training: TrainingConfig{
			PollInterval:     time.Second,
			ProgressStep:     10,
			ProgressInterval: 300 * time.Millisecond,
			SessionTTL:       30 * time.Minute,
			SweepSchedule:    "@every 1m",
		},
		Tailscale: TailscaleConfig{Hostname: "formcoach", StateDir: "tsnet-state"},
		Database:  DatabaseConfig{Port: 5432},
	}
}

// Load reads config from a YAML file on top of Default, then applies
// environment variable overrides. Env vars use the prefix FORMCOACH_:
//
//	FORMCOACH_SERVER_HOST, FORMCOACH_SERVER_PORT,
//	FORMCOACH_BACKEND_URL, FORMCOACH_BACKEND_TIMEOUT,
//	FORMCOACH_TRAINING_POLL_INTERVAL, FORMCOACH_TRAINING_SESSION_TTL,
//	FORMCOACH_TRAINING_SWEEP_SCHEDULE,
//	FORMCOACH_TAILSCALE_ENABLED, FORMCOACH_TAILSCALE_HOSTNAME,
//	FORMCOACH_DB_HOST, FORMCOACH_DB_PORT, FORMCOACH_DB_NAME,
//	FORMCOACH_DB_USER, FORMCOACH_DB_PASSWORD, FORMCOACH_DB_SSLMODE
//
// A missing file is not an error when path is empty.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.Backend.URL = strings.TrimRight(cfg.Backend.URL, "/")

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("FORMCOACH_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("FORMCOACH_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("FORMCOACH_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("FORMCOACH_BACKEND_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Backend.Timeout = d
		}
	}
	if v := os.Getenv("FORMCOACH_TRAINING_POLL_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Training.PollInterval = d
		}
	}
	if v := os.Getenv("FORMCOACH_TRAINING_SESSION_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Training.SessionTTL = d
		}
	}
	if v := os.Getenv("FORMCOACH_TRAINING_SWEEP_SCHEDULE"); v != "" {
		cfg.Training.SweepSchedule = v
	}
	if v := os.Getenv("FORMCOACH_TAILSCALE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Tailscale.Enabled = b
		}
	}
	if v := os.Getenv("FORMCOACH_TAILSCALE_HOSTNAME"); v != "" {
		cfg.Tailscale.Hostname = v
	}
	if v := os.Getenv("FORMCOACH_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("FORMCOACH_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("FORMCOACH_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("FORMCOACH_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("FORMCOACH_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("FORMCOACH_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 {
		return fmt.Errorf("server.port is required")
	}
	if c.Backend.URL == "" {
		return fmt.Errorf("backend.url is required")
	}
	u, err := url.Parse(c.Backend.URL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("backend.url must be an absolute URL, got %q", c.Backend.URL)
	}
	if c.Training.PollInterval <= 0 {
		return fmt.Errorf("training.poll_interval must be positive")
	}
	if c.Training.ProgressStep <= 0 || c.Training.ProgressStep > 90 {
		return fmt.Errorf("training.progress_step must be in 1..90")
	}
	if c.Training.ProgressInterval <= 0 {
		return fmt.Errorf("training.progress_interval must be positive")
	}
	if c.Training.SweepSchedule != "" {
		if _, err := cron.Parse(c.Training.SweepSchedule); err != nil {
			return fmt.Errorf("training.sweep_schedule: %w", err)
		}
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Database.Enabled() {
		if c.Database.Port == 0 {
			return fmt.Errorf("database.port is required")
		}
		if c.Database.Name == "" {
			return fmt.Errorf("database.name is required")
		}
		if c.Database.User == "" {
			return fmt.Errorf("database.user is required")
		}
	}
	return nil
}
