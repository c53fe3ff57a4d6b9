// Package config loads host configuration from an optional YAML file and
// ARBOR_* environment variables.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/alexanderramin/arbor/internal/service"
	"gopkg.in/yaml.v3"
)

// Config holds all host settings. Environment variables win over the file.
type Config struct {
	RateCapacity    int           `yaml:"rate_capacity"`
	RefillPeriod    time.Duration `yaml:"refill_period"`
	IdempotencyTTL  time.Duration `yaml:"idempotency_ttl"`
	DefaultExpanded bool          `yaml:"default_expanded"`
	PageSize        int           `yaml:"page_size"`
	MaxPageSize     int           `yaml:"max_page_size"`
	LogLevel        string        `yaml:"log_level"`
	LogFormat       string        `yaml:"log_format"`
	DBPath          string        `yaml:"db_path"`
	Metrics         bool          `yaml:"metrics"`
}

// DefaultConfig mirrors service.DefaultConfig and stores the database in the
// user's home directory.
func DefaultConfig() Config {
	svc := service.DefaultConfig()
	return Config{
		RateCapacity:    svc.RateCapacity,
		RefillPeriod:    svc.RefillPeriod,
		IdempotencyTTL:  svc.IdempotencyTTL,
		DefaultExpanded: svc.DefaultExpanded,
		PageSize:        svc.DefaultPageSize,
		MaxPageSize:     svc.MaxPageSize,
		LogLevel:        "warn",
		LogFormat:       "text",
		DBPath:          defaultDBPath(),
	}
}

func defaultDBPath() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "arbor.db"
	}
	return home + string(os.PathSeparator) + ".arbor.db"
}

// Load starts from DefaultConfig, applies the YAML file named by ARBOR_CONFIG
// when set, then applies environment overrides. Invalid override values are
// ignored.
func Load() (Config, error) {
	cfg := DefaultConfig()
	if path := os.Getenv("ARBOR_CONFIG"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("reading config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ARBOR_RATE_CAPACITY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RateCapacity = n
		}
	}
	if v := os.Getenv("ARBOR_REFILL_PERIOD"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.RefillPeriod = d
		}
	}
	if v := os.Getenv("ARBOR_IDEMPOTENCY_TTL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.IdempotencyTTL = d
		}
	}
	if v := os.Getenv("ARBOR_DEFAULT_EXPANDED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.DefaultExpanded = b
		}
	}
	if v := os.Getenv("ARBOR_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.PageSize = n
		}
	}
	if v := os.Getenv("ARBOR_MAX_PAGE_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.MaxPageSize = n
		}
	}
	if v := os.Getenv("ARBOR_LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}
	if v := os.Getenv("ARBOR_LOG_FORMAT"); v != "" {
		cfg.LogFormat = strings.ToLower(v)
	}
	if v := os.Getenv("ARBOR_DB_PATH"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("ARBOR_METRICS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Metrics = b
		}
	}
}

// Service maps the host settings onto service.Config.
func (c Config) Service() service.Config {
	return service.Config{
		RateCapacity:    c.RateCapacity,
		RefillPeriod:    c.RefillPeriod,
		IdempotencyTTL:  c.IdempotencyTTL,
		DefaultExpanded: c.DefaultExpanded,
		DefaultPageSize: c.PageSize,
		MaxPageSize:     c.MaxPageSize,
	}
}

// Level parses LogLevel, falling back to warn.
func (c Config) Level() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "error":
		return slog.LevelError
	default:
		return slog.LevelWarn
	}
}

// Logger builds a text or JSON slog logger writing to w.
func (c Config) Logger(w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.Level()}
	if strings.EqualFold(c.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
