package platform

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	_ "github.com/lib/pq" // postgres driver
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-git-server/pkg/database/migrate"
	"github.com/txn2/mcp-git-server/pkg/gittools"
	"github.com/txn2/mcp-git-server/pkg/interceptor"
	"github.com/txn2/mcp-git-server/pkg/metrics"
	"github.com/txn2/mcp-git-server/pkg/middleware"
	"github.com/txn2/mcp-git-server/pkg/session"
	sessionpg "github.com/txn2/mcp-git-server/pkg/session/postgres"
	"github.com/txn2/mcp-git-server/pkg/validation"
)

// Platform is the main server facade. It owns the session registry, the
// heartbeat loop, the notification interceptor, and the MCP server itself.
type Platform struct {
	config    *Config
	lifecycle *Lifecycle

	collector   *metrics.Collector
	cache       *validation.Cache
	interceptor *interceptor.Interceptor
	sessions    *session.Manager
	heartbeats  *session.HeartbeatManager

	db      *sql.DB
	archive *sessionpg.Store

	gitToolkit *gittools.Toolkit

	mcpServer *mcp.Server

	// connSession tracks the lifetime of the stdio connection.
	connSession *session.Session
}

// New creates a new platform instance.
func New(opts ...Option) (*Platform, error) {
	options := &Options{}
	for _, opt := range opts {
		opt(options)
	}

	if options.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	applyDefaults(options.Config)
	if err := options.Config.Validate(); err != nil {
		return nil, err
	}

	p := &Platform{
		config:    options.Config,
		lifecycle: NewLifecycle(),
	}

	if err := p.initializeComponents(options); err != nil {
		return nil, fmt.Errorf("initializing components: %w", err)
	}

	return p, nil
}

// initializeComponents initializes all server components.
func (p *Platform) initializeComponents(opts *Options) error {
	p.initTelemetry(opts)
	p.initSessions(opts)
	if err := p.initArchive(opts); err != nil {
		return err
	}
	p.registerLifecycleHooks()
	p.gitToolkit = gittools.New("git", p.config.Git)
	p.buildServer()
	return nil
}

// registerLifecycleHooks wires the session registry and the heartbeat
// monitor into the lifecycle. Registered after the archive closers so that
// shutdown drains sessions into the archive before the archive closes.
func (p *Platform) registerLifecycleHooks() {
	p.lifecycle.Hook("sessions",
		func(context.Context) error {
			restored := p.sessions.Restore(p.config.Server.DataDir)
			if restored > 0 {
				slog.Info("restored persisted sessions", "count", restored)
			}
			return nil
		},
		func(context.Context) error {
			p.sessions.Shutdown()
			return nil
		})

	p.lifecycle.Hook("heartbeats",
		func(context.Context) error {
			p.heartbeats.Start()
			return nil
		},
		func(context.Context) error {
			p.heartbeats.Stop()
			return nil
		})
}

// initTelemetry sets up the collector, the validation cache, and the
// notification interceptor.
func (p *Platform) initTelemetry(opts *Options) {
	if opts.Collector != nil {
		p.collector = opts.Collector
	} else {
		p.collector = metrics.NewCollector()
	}

	p.cache = validation.NewCache(p.config.Cache.MaxSize)
	if p.config.Cache.Disabled {
		p.cache.Disable()
	}

	p.interceptor = interceptor.New(p.cache, opts.Canceller, p.collector)
}

// initSessions sets up the session registry and the heartbeat loop.
func (p *Platform) initSessions(_ *Options) {
	p.sessions = session.NewManager(p.config.Session, p.collector)
	p.heartbeats = session.NewHeartbeatManager(p.sessions, p.config.Heartbeat)
}

// initArchive connects the optional closed-session archive.
func (p *Platform) initArchive(opts *Options) error {
	if opts.Archiver != nil {
		p.sessions.SetArchiver(opts.Archiver)
		return nil
	}
	if p.config.Database.DSN == "" {
		return nil
	}

	db, err := sql.Open("postgres", p.config.Database.DSN)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(p.config.Database.MaxOpenConns)

	if err := migrate.Run(db); err != nil {
		_ = db.Close()
		return fmt.Errorf("migrating database: %w", err)
	}

	p.db = db
	p.archive = sessionpg.New(db, sessionpg.Config{
		RetentionDays: p.config.Database.RetentionDays,
	})
	p.archive.StartCleanupRoutine(p.config.Database.CleanupInterval)
	p.sessions.SetArchiver(p.archive)

	p.lifecycle.RegisterCloser("session archive", p.archive)
	p.lifecycle.RegisterCloser("database", db)
	return nil
}

// buildServer creates the MCP server, its middleware stack, and the
// connection session, and registers all tools.
func (p *Platform) buildServer() {
	p.mcpServer = mcp.NewServer(&mcp.Implementation{
		Name:    p.config.Server.Name,
		Version: p.config.Server.Version,
	}, nil)

	// The stdio connection is modeled as one session for its lifetime.
	connSession, err := p.sessions.Create(uuid.NewString(), "")
	if err == nil {
		p.connSession = connSession
	}

	// Innermost-first order: last added runs first.
	sessionID := ""
	if p.connSession != nil {
		sessionID = p.connSession.ID()
		p.mcpServer.AddReceivingMiddleware(middleware.MCPActivityMiddleware(p.connSession))
	}
	p.mcpServer.AddReceivingMiddleware(middleware.MCPMetricsMiddleware(p.collector))
	p.mcpServer.AddReceivingMiddleware(middleware.MCPLoggingMiddleware(p.config.Logging))
	p.mcpServer.AddReceivingMiddleware(middleware.MCPRequestMiddleware(sessionID))

	p.gitToolkit.RegisterTools(p.mcpServer)
	p.registerInfoTool()
	p.registerStatusTool()
	p.registerHeartbeatTool()
}

// Start restores persisted sessions and starts background components.
func (p *Platform) Start(ctx context.Context) error {
	return p.lifecycle.Start(ctx)
}

// Run serves MCP over stdio until the context is cancelled or the client
// disconnects. Inbound messages pass through the interceptor first.
func (p *Platform) Run(ctx context.Context) error {
	transport := interceptor.NewFilterTransport(&mcp.StdioTransport{}, p.interceptor)
	return p.mcpServer.Run(ctx, transport)
}

// Stop persists live sessions and shuts everything down.
func (p *Platform) Stop(ctx context.Context) error {
	if err := p.sessions.Save(p.config.Server.DataDir); err != nil {
		slog.Warn("saving sessions failed", "error", err)
	}
	return p.lifecycle.Stop(ctx)
}

// Close releases resources without persisting state. Prefer Stop.
func (p *Platform) Close() error {
	return p.lifecycle.Stop(context.Background())
}

// MCPServer returns the MCP server.
func (p *Platform) MCPServer() *mcp.Server {
	return p.mcpServer
}

// Config returns the server configuration.
func (p *Platform) Config() *Config {
	return p.config
}

// Sessions returns the session registry.
func (p *Platform) Sessions() *session.Manager {
	return p.sessions
}

// Heartbeats returns the heartbeat loop.
func (p *Platform) Heartbeats() *session.HeartbeatManager {
	return p.heartbeats
}

// Interceptor returns the notification interceptor.
func (p *Platform) Interceptor() *interceptor.Interceptor {
	return p.interceptor
}

// Collector returns the metrics collector.
func (p *Platform) Collector() *metrics.Collector {
	return p.collector
}
