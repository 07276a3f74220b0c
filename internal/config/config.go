package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/claude/repform/internal/exercise"
	"github.com/claude/repform/internal/feedback"
	"github.com/claude/repform/internal/scoring"
)

type Config struct {
	Server    ServerConfig                      `yaml:"server"`
	Database  DatabaseConfig                    `yaml:"database"`
	Auth      AuthConfig                        `yaml:"auth"`
	Tailscale TailscaleConfig                   `yaml:"tailscale"`
	Log       LogConfig                         `yaml:"log"`
	Pipeline  PipelineConfig                    `yaml:"pipeline"`
	Exercises map[string]scoring.ExerciseConfig `yaml:"exercises"`
	Feedback  FeedbackConfig                    `yaml:"feedback"`
}

type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Name     string `yaml:"name"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"sslmode"`
}

type AuthConfig struct {
	APIKey string `yaml:"api_key"`
}

type TailscaleConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Hostname string `yaml:"hostname"`
	StateDir string `yaml:"state_dir"`
}

type LogConfig struct {
	Level string `yaml:"level"`
}

// PipelineConfig tunes the per-frame analysis shared by every exercise.
type PipelineConfig struct {
	SmoothingAlpha      float64 `yaml:"smoothing_alpha"`
	SwayWindow          int     `yaml:"sway_window"`
	VisibilityThreshold float64 `yaml:"visibility_threshold"`
}

// FeedbackConfig replaces the default rule set when Rules is non-empty.
type FeedbackConfig struct {
	Rules []feedback.Rule `yaml:"rules"`
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

// SlogLevel maps log.level to a slog level. Unknown values mean info.
func (l LogConfig) SlogLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// Load reads config from a YAML file, then applies environment variable overrides.
// Env vars use the prefix REPFORM_ and underscore-separated paths:
//
//	REPFORM_SERVER_HOST, REPFORM_SERVER_PORT,
//	REPFORM_DB_HOST, REPFORM_DB_PORT, REPFORM_DB_NAME,
//	REPFORM_DB_USER, REPFORM_DB_PASSWORD, REPFORM_DB_SSLMODE,
//	REPFORM_AUTH_API_KEY, REPFORM_LOG_LEVEL
func Load(path string) (*Config, error) {
	cfg, err := read(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

// LoadAnalysis reads a config file for offline tools. Only the log, pipeline,
// exercises and feedback sections are validated. An empty path yields the
// defaults.
func LoadAnalysis(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		var err error
		if cfg, err = read(path); err != nil {
			return nil, err
		}
	} else {
		applyEnvOverrides(cfg)
	}
	if err := cfg.validateAnalysis(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}
	return cfg, nil
}

func read(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("REPFORM_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("REPFORM_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("REPFORM_DB_HOST"); v != "" {
		cfg.Database.Host = v
	}
	if v := os.Getenv("REPFORM_DB_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Database.Port = port
		}
	}
	if v := os.Getenv("REPFORM_DB_NAME"); v != "" {
		cfg.Database.Name = v
	}
	if v := os.Getenv("REPFORM_DB_USER"); v != "" {
		cfg.Database.User = v
	}
	if v := os.Getenv("REPFORM_DB_PASSWORD"); v != "" {
		cfg.Database.Password = v
	}
	if v := os.Getenv("REPFORM_DB_SSLMODE"); v != "" {
		cfg.Database.SSLMode = v
	}
	if v := os.Getenv("REPFORM_AUTH_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
	if v := os.Getenv("REPFORM_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}

func (c *Config) validate() error {
	if c.Server.Port == 0 && !c.Tailscale.Enabled {
		return fmt.Errorf("server.port is required")
	}
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}
	if c.Database.Host == "" {
		return fmt.Errorf("database.host is required")
	}
	if c.Database.Port == 0 {
		return fmt.Errorf("database.port is required")
	}
	if c.Database.Name == "" {
		return fmt.Errorf("database.name is required")
	}
	if c.Database.User == "" {
		return fmt.Errorf("database.user is required")
	}
	if c.Auth.APIKey == "" {
		return fmt.Errorf("auth.api_key is required")
	}
	return c.validateAnalysis()
}

func (c *Config) validateAnalysis() error {
	p := c.Pipeline
	if p.SmoothingAlpha < 0 || p.SmoothingAlpha > 1 {
		return fmt.Errorf("pipeline.smoothing_alpha must be in (0,1], got %v", p.SmoothingAlpha)
	}
	if p.SwayWindow < 0 {
		return fmt.Errorf("pipeline.sway_window must be positive, got %d", p.SwayWindow)
	}
	if p.VisibilityThreshold < 0 || p.VisibilityThreshold > 1 {
		return fmt.Errorf("pipeline.visibility_threshold must be in [0,1], got %v", p.VisibilityThreshold)
	}
	for name, ec := range c.Exercises {
		if _, ok := exercise.Lookup(name); !ok {
			return fmt.Errorf("exercises.%s: unknown exercise", name)
		}
		if err := ec.Validate(); err != nil {
			return fmt.Errorf("exercises.%s: %w", name, err)
		}
	}
	var errs []error
	for i, r := range c.Feedback.Rules {
		if err := r.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("feedback.rules[%d]: %w", i, err))
		}
	}
	return errors.Join(errs...)
}

// Definition looks up an exercise and applies any configured scoring
// override.
func (c *Config) Definition(name string) (exercise.Definition, bool) {
	def, ok := exercise.Lookup(name)
	if !ok {
		return def, false
	}
	for key, ec := range c.Exercises {
		if o, _ := exercise.Lookup(key); o.Key == def.Key {
			def.Config = ec
		}
	}
	return def, true
}

// AnalyzerOptions builds the per-frame pipeline options.
func (c *Config) AnalyzerOptions(logger *slog.Logger) exercise.Options {
	opts := exercise.Options{
		SmoothingAlpha:      c.Pipeline.SmoothingAlpha,
		SwayWindow:          c.Pipeline.SwayWindow,
		VisibilityThreshold: c.Pipeline.VisibilityThreshold,
		Logger:              logger,
	}
	if len(c.Feedback.Rules) > 0 {
		opts.Rules = c.Feedback.Rules
	}
	return opts
}
