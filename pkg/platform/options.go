package platform

import (
	"github.com/txn2/mcp-git-server/pkg/interceptor"
	"github.com/txn2/mcp-git-server/pkg/metrics"
	"github.com/txn2/mcp-git-server/pkg/session"
)

// Options holds optional component overrides.
type Options struct {
	Config    *Config
	Collector *metrics.Collector
	Archiver  session.Archiver
	Canceller interceptor.Canceller
}

// Option configures the platform.
type Option func(*Options)

// WithConfig sets the configuration.
func WithConfig(cfg *Config) Option {
	return func(o *Options) { o.Config = cfg }
}

// WithCollector overrides the metrics collector.
func WithCollector(c *metrics.Collector) Option {
	return func(o *Options) { o.Collector = c }
}

// WithArchiver overrides the closed-session archiver. When set, the database
// configuration is ignored.
func WithArchiver(a session.Archiver) Option {
	return func(o *Options) { o.Archiver = a }
}

// WithCanceller sets the cancellation sink for intercepted cancellation
// notifications.
func WithCanceller(c interceptor.Canceller) Option {
	return func(o *Options) { o.Canceller = c }
}
