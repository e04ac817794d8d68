// Package config handles configuration file parsing and environment defaults.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/DatapuntAmsterdam/authorization/internal/database"
	"gopkg.in/yaml.v3"
)

// Environment variables that provide defaults for the store options.
const (
	EnvHost     = "PSQL_HOST"
	EnvPort     = "PSQL_PORT"
	EnvDatabase = "PSQL_DB"
	EnvUser     = "PSQL_USER"
	EnvPassword = "PSQL_PASSWORD"
	EnvConfig   = "AUTHZ_CONFIG"
)

// Config represents the application configuration.
type Config struct {
	Store  StoreConfig `yaml:"store"`
	Levels LevelConfig `yaml:"levels"`

	// Internal: path to the config file
	path string
}

// StoreConfig contains connection settings for the backing store.
type StoreConfig struct {
	Driver   string `yaml:"driver"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	SSLMode  string `yaml:"ssl_mode"`

	ConnectTimeout   string `yaml:"connect_timeout"`
	StatementTimeout string `yaml:"statement_timeout"`
}

// DefaultConfig returns a configuration with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Store: StoreConfig{
			Driver:           database.DriverPostgres,
			Host:             "localhost",
			Port:             5432,
			SSLMode:          "prefer",
			ConnectTimeout:   "5s",
			StatementTimeout: "5s",
		},
	}
}

// Load reads and parses a configuration file.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve config path: %w", err)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Validate the level table early so a bad file fails before connecting.
	if _, err := cfg.BuildLevels(); err != nil {
		return nil, fmt.Errorf("invalid levels in %s: %w", absPath, err)
	}

	cfg.path = absPath
	return cfg, nil
}

// Path returns the path to the config file, empty for defaults.
func (c *Config) Path() string {
	return c.path
}

// ApplyEnv overrides store settings with the PSQL_* environment variables
// that are set. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvHost); ok && v != "" {
		c.Store.Host = v
	}
	if v, ok := lookup(EnvPort); ok && v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", EnvPort, v, err)
		}
		c.Store.Port = port
	}
	if v, ok := lookup(EnvDatabase); ok && v != "" {
		c.Store.Database = v
	}
	if v, ok := lookup(EnvUser); ok && v != "" {
		c.Store.User = v
	}
	if v, ok := lookup(EnvPassword); ok {
		c.Store.Password = v
	}
	return nil
}

// GetConnectTimeout parses and returns the connect timeout.
func (c *Config) GetConnectTimeout() time.Duration {
	d, err := time.ParseDuration(c.Store.ConnectTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetStatementTimeout parses and returns the statement timeout.
func (c *Config) GetStatementTimeout() time.Duration {
	d, err := time.ParseDuration(c.Store.StatementTimeout)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// Params converts the store settings into connection parameters.
func (c *Config) Params() database.Params {
	return database.Params{
		Driver:           c.Store.Driver,
		Host:             c.Store.Host,
		Port:             c.Store.Port,
		Database:         c.Store.Database,
		User:             c.Store.User,
		Password:         c.Store.Password,
		SSLMode:          c.Store.SSLMode,
		ConnectTimeout:   c.GetConnectTimeout(),
		StatementTimeout: c.GetStatementTimeout(),
	}
}
