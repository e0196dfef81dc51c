// Package config loads service configuration from defaults, an optional
// config.yaml, a .env file and WEEKPLAN_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/warp/weekplan/logging"
)

// EnvPrefix is prepended to every environment variable, e.g.
// WEEKPLAN_SERVER_PORT or WEEKPLAN_STORE_DRIVER.
const EnvPrefix = "WEEKPLAN"

// Store drivers.
const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"
	DriverRedis  = "redis"
)

// SeedDateLayout is the format of Reconcile.SeedDate.
const SeedDateLayout = "2006-01-02"

// Config holds all configuration for the service.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Store     StoreConfig     `mapstructure:"store"`
	Reconcile ReconcileConfig `mapstructure:"reconcile"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port            int           `mapstructure:"port"`
	AllowedOrigins  string        `mapstructure:"allowed_origins"` // comma-separated
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	// Location names the time zone for dates without one ("Local", "UTC",
	// "Europe/Paris").
	Location string `mapstructure:"location"`
}

// StoreConfig selects and configures the store.
type StoreConfig struct {
	Driver     string `mapstructure:"driver"`
	SQLitePath string `mapstructure:"sqlite_path"`
	RedisURL   string `mapstructure:"redis_url"`
}

// ReconcileConfig controls the background reconciliation scheduler.
type ReconcileConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
	// SeedDate pins the week every pass ensures exists (YYYY-MM-DD).
	// Empty means the current week.
	SeedDate string `mapstructure:"seed_date"`
}

// LoggingConfig mirrors logging.Config.
type LoggingConfig struct {
	Level      string `mapstructure:"level"`
	JSON       bool   `mapstructure:"json"`
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"`
	Compress   bool   `mapstructure:"compress"`
	Console    bool   `mapstructure:"console"`
}

// Load loads configuration from environment variables and config files.
func Load() (*Config, error) {
	// .env from the current dir or a parent (running from cmd/)
	loadEnvFile()

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/weekplan/")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.location", "Local")

	v.SetDefault("store.driver", DriverSQLite)
	v.SetDefault("store.sqlite_path", "./data/weekplan.db")
	v.SetDefault("store.redis_url", "redis://localhost:6379/0")

	v.SetDefault("reconcile.enabled", true)
	v.SetDefault("reconcile.interval", time.Hour)
	v.SetDefault("reconcile.seed_date", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.json", false)
	v.SetDefault("logging.file", "")
	v.SetDefault("logging.max_size", 10)
	v.SetDefault("logging.max_backups", 5)
	v.SetDefault("logging.max_age", 7)
	v.SetDefault("logging.compress", true)
	v.SetDefault("logging.console", false)
}

// Validate checks values that would otherwise fail at startup.
func (c *Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite, DriverMemory, DriverRedis:
	default:
		return fmt.Errorf("unknown store driver %q (want sqlite, memory or redis)", c.Store.Driver)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port %d", c.Server.Port)
	}
	if c.Reconcile.Enabled && c.Reconcile.Interval <= 0 {
		return fmt.Errorf("reconcile interval must be positive, got %s", c.Reconcile.Interval)
	}
	loc, err := c.Location()
	if err != nil {
		return err
	}
	if _, _, err := c.SeedDate(loc); err != nil {
		return err
	}
	if _, err := logging.ParseLevel(c.Logging.Level); err != nil {
		return err
	}
	return nil
}

// Origins returns the allowed CORS origins.
func (c *Config) Origins() []string {
	var origins []string
	for _, o := range strings.Split(c.Server.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// Location returns the configured time zone.
func (c *Config) Location() (*time.Location, error) {
	switch c.Server.Location {
	case "", "Local":
		return time.Local, nil
	}
	loc, err := time.LoadLocation(c.Server.Location)
	if err != nil {
		return nil, fmt.Errorf("invalid location %q: %w", c.Server.Location, err)
	}
	return loc, nil
}

// SeedDate returns the pinned seed date in loc and whether one is set.
func (c *Config) SeedDate(loc *time.Location) (time.Time, bool, error) {
	if c.Reconcile.SeedDate == "" {
		return time.Time{}, false, nil
	}
	t, err := time.ParseInLocation(SeedDateLayout, c.Reconcile.SeedDate, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid reconcile seed date %q: %w", c.Reconcile.SeedDate, err)
	}
	return t, true, nil
}

// LogConfig converts the logging section for logging.New.
func (c *Config) LogConfig() logging.Config {
	return logging.Config{
		Level:      c.Logging.Level,
		JSON:       c.Logging.JSON,
		FilePath:   c.Logging.File,
		MaxSize:    c.Logging.MaxSize,
		MaxBackups: c.Logging.MaxBackups,
		MaxAge:     c.Logging.MaxAge,
		Compress:   c.Logging.Compress,
		Console:    c.Logging.Console,
	}
}

// loadEnvFile loads the first .env found in the current directory or up to
// four parents. Variables already set are not overridden.
func loadEnvFile() {
	dir, err := os.Getwd()
	if err != nil {
		return
	}

	for i := 0; i < 5; i++ {
		envPath := filepath.Join(dir, ".env")
		if _, err := os.Stat(envPath); err == nil {
			_ = godotenv.Load(envPath)
			return
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
}
