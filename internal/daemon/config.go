// Package daemon manages the fitquest daemon lifecycle and configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/myeasy-ai/fitquest/internal/app/engagement"
	"github.com/myeasy-ai/fitquest/internal/infra/sqlite"
)

// Config holds all daemon configuration.
type Config struct {
	API       APIConfig       `toml:"api"`
	Storage   StorageConfig   `toml:"storage"`
	Engine    EngineConfig    `toml:"engine"`
	Logging   LoggingConfig   `toml:"logging"`
	Telemetry TelemetryConfig `toml:"telemetry"`
}

// APIConfig controls the HTTP API server.
type APIConfig struct {
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	RequestTimeout string `toml:"request_timeout"`
	CacheSize      int    `toml:"cache_size"` // user sessions kept in memory
}

// StorageConfig selects the state store.
type StorageConfig struct {
	Driver string `toml:"driver"` // "sqlite" or "pgx"
	DSN    string `toml:"dsn"`    // empty: <dir>/fitquest.db
	Dir    string `toml:"dir"`
}

// EngineConfig tunes gamification rules.
type EngineConfig struct {
	Timezone           string                       `toml:"timezone"` // IANA name, empty for local
	WeeklyTrainingDays int                          `toml:"weekly_training_days"`
	SaveDebounce       string                       `toml:"save_debounce"`
	Celebrations       engagement.CelebrationPolicy `toml:"celebrations"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // "text" or "json"
}

// TelemetryConfig controls metrics, error reporting and health checks.
type TelemetryConfig struct {
	Prometheus     bool   `toml:"prometheus"`
	SentryDSN      string `toml:"sentry_dsn"`
	Environment    string `toml:"environment"`
	HealthInterval string `toml:"health_interval"`
}

// DefaultConfig returns a sensible default configuration.
func DefaultConfig() Config {
	homeDir := fitquestHome()
	return Config{
		API: APIConfig{
			Host:           "127.0.0.1",
			Port:           8787,
			RequestTimeout: "30s",
			CacheSize:      1024,
		},
		Storage: StorageConfig{
			Driver: sqlite.DriverSQLite,
			Dir:    homeDir,
		},
		Engine: EngineConfig{
			WeeklyTrainingDays: engagement.DefaultWeeklyTrainingDays,
			SaveDebounce:       "2s",
			Celebrations:       engagement.DefaultCelebrationPolicy(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Telemetry: TelemetryConfig{
			Prometheus:     true,
			Environment:    "development",
			HealthInterval: "60s",
		},
	}
}

// LoadConfig reads config from $FITQUEST_HOME/config.toml, falling back to
// defaults. A .env file in the working directory or the home directory is
// loaded first so its variables can override the file.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()
	_ = godotenv.Load(filepath.Join(fitquestHome(), ".env"))
	return LoadConfigFile(filepath.Join(fitquestHome(), "config.toml"))
}

// LoadConfigFile reads config from path. A missing file yields defaults.
// Environment overrides are applied in both cases.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// SaveConfig writes the config to $FITQUEST_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(fitquestHome(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// Validate rejects values the daemon cannot start with.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case sqlite.DriverSQLite:
	case sqlite.DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for driver %q", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("unsupported storage.driver %q", c.Storage.Driver)
	}
	if d := c.Engine.WeeklyTrainingDays; d < 1 || d > 7 {
		return fmt.Errorf("engine.weekly_training_days must be 1-7, got %d", d)
	}
	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// DSN returns the configured data source, defaulting to the SQLite file in
// the storage directory.
func (c Config) DSN() string {
	if c.Storage.DSN != "" {
		return c.Storage.DSN
	}
	dir := c.Storage.Dir
	if dir == "" {
		dir = fitquestHome()
	}
	return sqlite.DefaultDSN(dir)
}

// Location resolves engine.timezone.
func (c Config) Location() (*time.Location, error) {
	if c.Engine.Timezone == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Engine.Timezone)
	if err != nil {
		return nil, fmt.Errorf("engine.timezone: %w", err)
	}
	return loc, nil
}

// applyEnv lets deployment environments override the file.
func applyEnv(cfg *Config) {
	if v := os.Getenv("FITQUEST_DB_DRIVER"); v != "" {
		cfg.Storage.Driver = v
	}
	if v := os.Getenv("FITQUEST_DB_DSN"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("FITQUEST_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("SENTRY_DSN"); v != "" {
		cfg.Telemetry.SentryDSN = v
	}
}

// fitquestHome returns the fitquest data directory.
func fitquestHome() string {
	if env := os.Getenv("FITQUEST_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".fitquest")
}

// FitquestHome is exported for use by other packages.
func FitquestHome() string {
	return fitquestHome()
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
