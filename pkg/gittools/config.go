package gittools

import "time"

// defaultCommandTimeout bounds a single git invocation.
const defaultCommandTimeout = 30 * time.Second

// Config holds git toolkit configuration.
type Config struct {
	// AllowedRoots lists directories tool calls may operate under. Empty
	// means any absolute path is accepted.
	AllowedRoots []string `yaml:"allowed_roots"`

	// ReadOnly disables tools that mutate repository state.
	ReadOnly bool `yaml:"read_only"`

	// Timeout bounds a single git command. Defaults to 30s.
	Timeout time.Duration `yaml:"timeout"`

	// MaxLogCount caps git_log entries per call. Defaults to 100.
	MaxLogCount int `yaml:"max_log_count"`
}

// applyDefaults applies default values to the configuration.
func applyDefaults(cfg Config) Config {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultCommandTimeout
	}
	if cfg.MaxLogCount == 0 {
		cfg.MaxLogCount = 100
	}
	return cfg
}
