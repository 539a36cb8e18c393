package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// ErrMissingCredential is returned when the selected store backend lacks the
// credentials it needs to connect.
var ErrMissingCredential = errors.New("missing credential")

// Config holds all configuration for the application
type Config struct {
	// Log configuration
	Log LogConfig `mapstructure:"log"`

	// Store selects the graph backend
	Store StoreConfig `mapstructure:"store"`

	// Zep Cloud configuration
	Zep ZepConfig `mapstructure:"zep"`

	// Neo4j configuration
	Database DatabaseConfig `mapstructure:"database"`

	// PostgreSQL configuration
	Postgres PostgresConfig `mapstructure:"postgres"`

	// In-memory store configuration
	Memory MemoryConfig `mapstructure:"memory"`

	Maintenance MaintenanceConfig `mapstructure:"maintenance"`
	Journal     JournalConfig     `mapstructure:"journal"`
	Telemetry   TelemetryConfig   `mapstructure:"telemetry"`

	// Server configuration
	Server ServerConfig `mapstructure:"server"`
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level      string `mapstructure:"level" validate:"omitempty,oneof=debug info warn warning error"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb" validate:"gte=0"`
	MaxBackups int    `mapstructure:"max_backups" validate:"gte=0"`
	MaxAgeDays int    `mapstructure:"max_age_days" validate:"gte=0"`
}

// StoreConfig holds the backend selection
type StoreConfig struct {
	Backend string `mapstructure:"backend" validate:"required,oneof=zep neo4j postgres memory"`
}

// ZepConfig holds Zep Cloud configuration
type ZepConfig struct {
	APIKey            string        `mapstructure:"api_key"`
	BaseURL           string        `mapstructure:"base_url" validate:"omitempty,url"`
	GraphID           string        `mapstructure:"graph_id"`
	UserID            string        `mapstructure:"user_id"`
	Timeout           time.Duration `mapstructure:"timeout" validate:"gte=0"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second" validate:"gte=0"`
	Burst             int           `mapstructure:"burst" validate:"gte=0"`
}

// DatabaseConfig holds Neo4j configuration
type DatabaseConfig struct {
	URI      string `mapstructure:"uri"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
}

// PostgresConfig holds PostgreSQL configuration
type PostgresConfig struct {
	URL          string `mapstructure:"url"`
	EnsureSchema bool   `mapstructure:"ensure_schema"`
}

// MemoryConfig holds in-memory store configuration
type MemoryConfig struct {
	// SnapshotPath is a JSON file of nodes and edges loaded at startup.
	SnapshotPath string `mapstructure:"snapshot_path"`
}

// MaintenanceConfig holds operator settings
type MaintenanceConfig struct {
	ListLimit int `mapstructure:"list_limit" validate:"gt=0"`
}

// JournalConfig holds deletion journal settings. An empty path disables it.
type JournalConfig struct {
	Path string        `mapstructure:"path"`
	TTL  time.Duration `mapstructure:"ttl" validate:"gte=0"`
}

// TelemetryConfig holds error telemetry settings. An empty path disables it.
type TelemetryConfig struct {
	DuckDBPath string `mapstructure:"duckdb_path"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port" validate:"min=1,max=65535"`
	Mode string `mapstructure:"mode" validate:"omitempty,oneof=debug release test"` // gin mode: debug, release, test
}

// envBindings maps configuration keys to the environment variables that set them.
var envBindings = map[string][]string{
	"zep.api_key":       {"ZEP_API_KEY"},
	"zep.base_url":      {"ZEP_BASE_URL"},
	"zep.graph_id":      {"ZEP_GRAPH_ID"},
	"zep.user_id":       {"ZEP_USER_ID"},
	"database.uri":      {"NEO4J_URI"},
	"database.username": {"NEO4J_USER", "NEO4J_USERNAME"},
	"database.password": {"NEO4J_PASSWORD"},
	"database.database": {"NEO4J_DATABASE"},
	"postgres.url":      {"DATABASE_URL"},
	"server.host":       {"SERVER_HOST"},
	"server.port":       {"SERVER_PORT"},
}

// LoadEnvFile loads variables from a .env file into the process environment.
// Variables already set are kept. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("failed to load env file %s: %w", path, err)
	}
	return nil
}

// ReadConfigFile reads path into v, or looks for config.yaml in the working
// directory and ~/.zepsync when path is empty. A missing default file is not
// an error.
func ReadConfigFile(v *viper.Viper, path string) error {
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.zepsync")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path == "" && errors.As(err, &notFound) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Load loads configuration from the global viper instance and environment variables
func Load() (*Config, error) {
	return LoadFrom(viper.GetViper())
}

// LoadFrom loads configuration from v, applying defaults and environment
// bindings, and validates it.
func LoadFrom(v *viper.Viper) (*Config, error) {
	// Set defaults
	setDefaults(v)

	if err := bindEnv(v); err != nil {
		return nil, err
	}

	config := &Config{}
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := Validate(config); err != nil {
		return nil, err
	}
	return config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size_mb", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age_days", 30)

	v.SetDefault("store.backend", "zep")

	// Zep defaults
	v.SetDefault("zep.base_url", "https://api.getzep.com")
	v.SetDefault("zep.timeout", 30*time.Second)
	v.SetDefault("zep.requests_per_second", 5)
	v.SetDefault("zep.burst", 5)

	// Database defaults
	v.SetDefault("database.uri", "bolt://localhost:7687")
	v.SetDefault("database.username", "neo4j")
	v.SetDefault("database.database", "neo4j")

	v.SetDefault("postgres.ensure_schema", false)
	v.SetDefault("memory.snapshot_path", "")

	v.SetDefault("maintenance.list_limit", 1000)

	v.SetDefault("journal.path", "")
	v.SetDefault("journal.ttl", 30*24*time.Hour)

	v.SetDefault("telemetry.duckdb_path", "")

	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "release")
}

func bindEnv(v *viper.Viper) error {
	v.SetEnvPrefix("ZEPSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, names := range envBindings {
		args := append([]string{key}, names...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Validate checks the static shape of the configuration.
func Validate(config *Config) error {
	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// CheckCredentials reports whether the selected backend has what it needs to
// connect. It is called before any store is built.
func (c *Config) CheckCredentials() error {
	switch c.Store.Backend {
	case "zep":
		if c.Zep.APIKey == "" {
			return fmt.Errorf("%w: ZEP_API_KEY is not set", ErrMissingCredential)
		}
	case "neo4j":
		if c.Database.URI == "" {
			return fmt.Errorf("%w: NEO4J_URI is not set", ErrMissingCredential)
		}
	case "postgres":
		if c.Postgres.URL == "" {
			return fmt.Errorf("%w: DATABASE_URL is not set", ErrMissingCredential)
		}
	}
	return nil
}

// ResolveGraphID picks the graph to operate on: the explicit flag value,
// then zep.graph_id, then zep.user_id. It returns "" when none is set.
func (c *Config) ResolveGraphID(flag string) string {
	for _, id := range []string{flag, c.Zep.GraphID, c.Zep.UserID} {
		if id = strings.TrimSpace(id); id != "" {
			return id
		}
	}
	return ""
}
