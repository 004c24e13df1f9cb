// Package server provides a factory for creating the MCP git server.
package server

import (
	"fmt"

	"github.com/txn2/mcp-git-server/pkg/platform"
)

// Version is set at build time.
var Version = "dev"

// New creates a server platform from the given configuration.
func New(cfg *platform.Config) (*platform.Platform, error) {
	if cfg.Server.Version == "" {
		cfg.Server.Version = Version
	}
	return platform.New(platform.WithConfig(cfg))
}

// NewWithConfig creates a server platform from a configuration file.
func NewWithConfig(configPath string) (*platform.Platform, error) {
	cfg, err := platform.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return New(cfg)
}

// NewWithDefaults creates a server platform with default configuration.
func NewWithDefaults() (*platform.Platform, error) {
	return New(&platform.Config{})
}
