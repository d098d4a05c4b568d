// Package config resolves server configuration from, in increasing
// priority order: a YAML file, environment variables, and command-line
// flags.
package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Version holds the current application version.
var Version = "0.1.0"

// Config holds all configuration for the server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Worker   WorkerConfig   `yaml:"worker"`
	Session  SessionConfig  `yaml:"session"`
	HTTPS    HTTPSConfig    `yaml:"https"`
	Admin    AdminConfig    `yaml:"admin"`
}

// ServerConfig holds server-specific configuration.
type ServerConfig struct {
	Port string `yaml:"port"`
	Env  string `yaml:"env"` // development/production
}

// DatabaseConfig holds database configuration.
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// WorkerConfig configures the CPU-bound exponentiation pool.
type WorkerConfig struct {
	Workers       int `yaml:"workers"`
	QueueCapacity int `yaml:"queue_capacity"`
}

// SessionConfig configures issued bearer tokens.
type SessionConfig struct {
	TTLMinutes int `yaml:"ttl_minutes"`
}

// HTTPSConfig holds automatic HTTPS configuration.
type HTTPSConfig struct {
	Enabled bool   `yaml:"enabled"`
	Email   string `yaml:"email"` // ACME contact email
	Domain  string `yaml:"domain"`
	Staging bool   `yaml:"staging"` // use Let's Encrypt staging
}

// AdminConfig holds the operator-only credential gating the audit
// live-tail. It is unrelated to any user session token.
type AdminConfig struct {
	Token string `yaml:"token"`
}

// CLIFlags holds command-line flag overrides, the highest-priority
// configuration source.
type CLIFlags struct {
	ConfigPath string
	DBPath     string
	Port       string
}

// ParseFlags parses command-line flags.
func ParseFlags() *CLIFlags {
	flags := &CLIFlags{}
	flag.StringVar(&flags.ConfigPath, "config", "", "Path to a YAML config file")
	flag.StringVar(&flags.DBPath, "db", "", "Database file path")
	flag.StringVar(&flags.Port, "port", "", "Server port")
	flag.Parse()
	return flags
}

// Default returns a configuration with sane defaults for a local run.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "8443",
			Env:  "development",
		},
		Database: DatabaseConfig{
			Path: "./data.db",
		},
		Worker: WorkerConfig{
			Workers:       0, // 0 selects runtime.NumCPU() at pool construction
			QueueCapacity: 0, // 0 selects worker.DefaultQueueCapacity
		},
		Session: SessionConfig{
			TTLMinutes: 60,
		},
		HTTPS: HTTPSConfig{
			Enabled: false,
			Staging: true,
		},
	}
}

// Load resolves configuration in priority order: defaults, then a
// YAML file (if one is found), then environment variables, then CLI
// flags.
func Load(flags *CLIFlags) (*Config, error) {
	cfg := Default()

	configPath := flags.ConfigPath
	if configPath == "" {
		configPath = os.Getenv("ZKAUTH_CONFIG")
	}
	if configPath == "" {
		configPath = "./zkauth.yaml"
	}

	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config: parsing %s: %w", configPath, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: reading %s: %w", configPath, err)
	}

	applyEnv(cfg)
	applyCLIFlags(cfg, flags)

	cfg.Database.Path = ExpandPath(cfg.Database.Path)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("ZKAUTH_PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("ZKAUTH_ENV"); v != "" {
		cfg.Server.Env = v
	}
	if v := os.Getenv("ZKAUTH_DB_PATH"); v != "" {
		cfg.Database.Path = v
	}
	if v := os.Getenv("ZKAUTH_ADMIN_TOKEN"); v != "" {
		cfg.Admin.Token = v
	}
}

func applyCLIFlags(cfg *Config, flags *CLIFlags) {
	if flags.Port != "" {
		cfg.Server.Port = flags.Port
	}
	if flags.DBPath != "" {
		cfg.Database.Path = ExpandPath(flags.DBPath)
	}
}

// ExpandPath expands a leading ~ to the user's home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		if homeDir, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(homeDir, path[2:])
		}
	}
	return path
}

// Validate checks that the configuration is internally consistent.
func (c *Config) Validate() error {
	port, err := strconv.Atoi(c.Server.Port)
	if err != nil {
		return fmt.Errorf("invalid port: %s (must be a number)", c.Server.Port)
	}
	if port < 1 || port > 65535 {
		return fmt.Errorf("invalid port: %d (must be 1-65535)", port)
	}

	if c.Server.Env != "development" && c.Server.Env != "production" {
		return fmt.Errorf("invalid environment: %s (must be 'development' or 'production')", c.Server.Env)
	}

	if c.Database.Path == "" {
		return errors.New("database path cannot be empty")
	}

	if c.Session.TTLMinutes <= 0 {
		return errors.New("session.ttl_minutes must be positive")
	}

	if c.HTTPS.Enabled && c.HTTPS.Email == "" {
		return errors.New("https.email is required when https.enabled is true")
	}

	return nil
}

// IsDevelopment returns true if running in development mode.
func (c *Config) IsDevelopment() bool {
	return c.Server.Env == "development"
}

// IsProduction returns true if running in production mode.
func (c *Config) IsProduction() bool {
	return c.Server.Env == "production"
}

// SessionTTL returns the configured session token lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.Session.TTLMinutes) * time.Minute
}
