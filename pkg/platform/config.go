// Package platform provides the main server orchestration.
package platform

import (
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/txn2/mcp-git-server/pkg/gittools"
	"github.com/txn2/mcp-git-server/pkg/middleware"
	"github.com/txn2/mcp-git-server/pkg/session"
	"github.com/txn2/mcp-git-server/pkg/validation"
)

// Config holds the complete server configuration.
type Config struct {
	Server    ServerConfig             `yaml:"server"`
	Session   session.ManagerConfig    `yaml:"session"`
	Heartbeat session.HeartbeatConfig  `yaml:"heartbeat"`
	Cache     CacheConfig              `yaml:"cache"`
	Logging   middleware.LoggingConfig `yaml:"logging"`
	Database  DatabaseConfig           `yaml:"database"`
	Git       gittools.Config          `yaml:"git"`
}

// ServerConfig configures the MCP server.
type ServerConfig struct {
	Name        string `yaml:"name"`
	Version     string `yaml:"version"`
	Description string `yaml:"description"`
	Transport   string `yaml:"transport"` // "stdio"

	// DataDir holds persisted session state across restarts.
	DataDir string `yaml:"data_dir"`
}

// CacheConfig configures the validation cache.
type CacheConfig struct {
	// Disabled turns the cache into a pass-through validator.
	Disabled bool `yaml:"disabled"`

	// MaxSize bounds cached verdicts. Defaults to validation.DefaultMaxSize.
	MaxSize int `yaml:"max_size"`
}

// DatabaseConfig configures the optional PostgreSQL session archive.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	RetentionDays   int           `yaml:"retention_days"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

// LoadConfig loads configuration from a file.
// The path is expected to come from command line arguments, controlled by the administrator.
func LoadConfig(path string) (*Config, error) {
	// #nosec G304 -- path is from CLI args, controlled by admin
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables
	data = []byte(expandEnvVars(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	applyDefaults(&cfg)

	return &cfg, nil
}

// expandEnvVars expands ${VAR} patterns in the string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := match[2 : len(match)-1]
		return os.Getenv(varName)
	})
}

// applyDefaults applies default values to the config.
func applyDefaults(cfg *Config) {
	if cfg.Server.Name == "" {
		cfg.Server.Name = "mcp-git-server"
	}
	if cfg.Server.Version == "" {
		cfg.Server.Version = "1.0.0"
	}
	if cfg.Server.Transport == "" {
		cfg.Server.Transport = "stdio"
	}
	if cfg.Server.DataDir == "" {
		cfg.Server.DataDir = "."
	}
	if cfg.Cache.MaxSize == 0 {
		cfg.Cache.MaxSize = validation.DefaultMaxSize
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 25
	}
	if cfg.Database.RetentionDays == 0 {
		cfg.Database.RetentionDays = 90
	}
	if cfg.Database.CleanupInterval == 0 {
		cfg.Database.CleanupInterval = time.Hour
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Transport != "stdio" {
		errs = append(errs, fmt.Sprintf("server.transport %q is not supported (only stdio)", c.Server.Transport))
	}
	if c.Cache.MaxSize < 0 {
		errs = append(errs, "cache.max_size must not be negative")
	}
	if c.Heartbeat.Interval < 0 {
		errs = append(errs, "heartbeat.interval must not be negative")
	}
	if c.Heartbeat.MissedThreshold < 0 {
		errs = append(errs, "heartbeat.missed_threshold must not be negative")
	}
	if c.Session.IdleTimeout < 0 {
		errs = append(errs, "session.idle_timeout must not be negative")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
