package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"

	"github.com/klabast/wb-services/calendar42/internal/lib/logger/sl"
	"github.com/klabast/wb-services/calendar42/internal/storage"
)

const DefaultPath = "config.yaml"

// Config represents the main application configuration
type Config struct {
	Env      string        `yaml:"env"`
	LogLevel string        `yaml:"logLevel"`
	HTTP     HTTPConfig    `yaml:"http"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Storage  StorageConfig `yaml:"storage"`
	Redis    RedisConfig   `yaml:"redis"`
	Kafka    KafkaConfig   `yaml:"kafka"`
	Auth     AuthConfig    `yaml:"auth"`
	Catalog  CatalogConfig `yaml:"catalog"`
}

// HTTPConfig contains HTTP server settings
type HTTPConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"readTimeout"`
	WriteTimeout    time.Duration `yaml:"writeTimeout"`
	ShutdownTimeout time.Duration `yaml:"shutdownTimeout"`
}

func (c HTTPConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// MetricsConfig controls the Prometheus listener; port 0 disables it
type MetricsConfig struct {
	Port int `yaml:"port"`
}

// StorageConfig selects the primary backend. Path is used by the json and
// sqlite drivers, DSN by postgres.
type StorageConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// RedisConfig moves subscription lists to Redis when Addr is set
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// KafkaConfig enables change notifications when Brokers is not empty
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type AuthConfig struct {
	JWTSecret    string        `yaml:"jwtSecret"`
	TokenTTL     time.Duration `yaml:"tokenTTL"`
	CookieName   string        `yaml:"cookieName"`
	SecureCookie bool          `yaml:"secureCookie"`
}

// CatalogConfig contains snapshot refresh settings; 0 disables the
// periodic refresh
type CatalogConfig struct {
	RefreshInterval time.Duration `yaml:"refreshInterval"`
}

// Load reads the YAML file at path, applies environment overrides and
// defaults, and validates the result. A missing file yields the defaults.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.setDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CALENDAR_ENV"); v != "" {
		c.Env = v
	}
	if v := os.Getenv("CALENDAR_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid CALENDAR_PORT %q: %w", v, err)
		}
		c.HTTP.Port = port
	}
	if v := os.Getenv("CALENDAR_STORAGE_DRIVER"); v != "" {
		c.Storage.Driver = v
	}
	if v := os.Getenv("CALENDAR_STORAGE_PATH"); v != "" {
		c.Storage.Path = v
	}
	if v := os.Getenv("CALENDAR_DATABASE_DSN"); v != "" {
		c.Storage.DSN = v
	}
	if v := os.Getenv("CALENDAR_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
	}
	if v := os.Getenv("CALENDAR_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = splitList(v)
	}
	if v := os.Getenv("CALENDAR_JWT_SECRET"); v != "" {
		c.Auth.JWTSecret = v
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func (c *Config) setDefaults() {
	if c.Env == "" {
		c.Env = sl.EnvLocal
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.HTTP.Host == "" {
		c.HTTP.Host = "0.0.0.0"
	}
	if c.HTTP.Port == 0 {
		c.HTTP.Port = 8080
	}
	if c.HTTP.ReadTimeout == 0 {
		c.HTTP.ReadTimeout = 10 * time.Second
	}
	if c.HTTP.WriteTimeout == 0 {
		c.HTTP.WriteTimeout = 10 * time.Second
	}
	if c.HTTP.ShutdownTimeout == 0 {
		c.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = storage.DriverJSON
	}
	if c.Storage.Path == "" {
		switch c.Storage.Driver {
		case storage.DriverJSON:
			c.Storage.Path = "calendar_data.json"
		case storage.DriverSQLite:
			c.Storage.Path = "calendar.db"
		}
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "calendar42.events"
	}
	if c.Auth.TokenTTL == 0 {
		c.Auth.TokenTTL = 24 * time.Hour
	}
	if c.Auth.CookieName == "" {
		c.Auth.CookieName = "calendar42_session"
	}
	// local sessions do not survive a restart
	if c.Auth.JWTSecret == "" && c.Env == sl.EnvLocal {
		c.Auth.JWTSecret = uuid.NewString()
	}
}

// Validate reports the first configuration problem found
func (c *Config) Validate() error {
	switch c.Env {
	case sl.EnvLocal, sl.EnvDev, sl.EnvProd:
	default:
		return fmt.Errorf("unknown env %q", c.Env)
	}
	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("unknown logLevel %q", c.LogLevel)
	}
	if c.HTTP.Port < 1 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid http port %d", c.HTTP.Port)
	}
	if c.Metrics.Port < 0 || c.Metrics.Port > 65535 {
		return fmt.Errorf("invalid metrics port %d", c.Metrics.Port)
	}
	if c.Metrics.Port != 0 && c.Metrics.Port == c.HTTP.Port {
		return fmt.Errorf("metrics port must differ from http port")
	}

	switch c.Storage.Driver {
	case storage.DriverJSON, storage.DriverSQLite:
		if c.Storage.Driver == storage.DriverSQLite && c.Storage.Path == "" {
			return fmt.Errorf("storage.path is required for sqlite")
		}
	case storage.DriverPostgres:
		if c.Storage.DSN == "" {
			return fmt.Errorf("storage.dsn is required for postgres")
		}
	default:
		return fmt.Errorf("%w: %q", storage.ErrUnknownDriver, c.Storage.Driver)
	}

	if c.Auth.JWTSecret == "" {
		return fmt.Errorf("auth.jwtSecret is required in %s", c.Env)
	}
	if c.Auth.TokenTTL < 0 {
		return fmt.Errorf("auth.tokenTTL must be positive")
	}
	if c.Catalog.RefreshInterval < 0 {
		return fmt.Errorf("catalog.refreshInterval must not be negative")
	}

	return nil
}
