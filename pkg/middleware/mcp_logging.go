package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// LoggingConfig configures request logging middleware.
type LoggingConfig struct {
	Enabled bool `yaml:"enabled"`

	// LogAllMethods logs every MCP method, not just tools/call.
	LogAllMethods bool `yaml:"log_all_methods"`
}

// MCPLoggingMiddleware creates MCP protocol-level middleware that logs
// request outcomes with duration. Position it inner to MCPRequestMiddleware
// so the RequestContext fields appear in log lines.
func MCPLoggingMiddleware(cfg LoggingConfig) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		if !cfg.Enabled {
			return next
		}

		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if method != methodToolsCall && !cfg.LogAllMethods {
				return next(ctx, method, req)
			}

			start := time.Now()
			result, err := next(ctx, method, req)
			duration := time.Since(start)

			attrs := []any{
				"method", method,
				"duration_ms", duration.Milliseconds(),
			}
			if rc := GetRequestContext(ctx); rc != nil {
				attrs = append(attrs, "request_id", rc.RequestID)
				if rc.SessionID != "" {
					attrs = append(attrs, "session_id", rc.SessionID)
				}
				if rc.ToolName != "" {
					attrs = append(attrs, "tool", rc.ToolName)
				}
			}

			if failed, msg := resultError(result, err); failed {
				attrs = append(attrs, "error", msg)
				slog.Warn("request failed", attrs...)
			} else {
				slog.Info("request completed", attrs...)
			}

			return result, err
		}
	}
}
