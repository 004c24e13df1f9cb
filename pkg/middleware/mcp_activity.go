package middleware

import (
	"context"
	"log/slog"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ActivityTracker receives liveness signals for the connection's session.
// *session.Session satisfies this interface.
type ActivityTracker interface {
	RecordMessage() error
}

// MCPActivityMiddleware creates MCP protocol-level middleware that refreshes
// session activity on every inbound request, keeping the session from idling
// out while the client is actively working.
func MCPActivityMiddleware(tracker ActivityTracker) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		if tracker == nil {
			return next
		}

		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			if err := tracker.RecordMessage(); err != nil {
				slog.Debug("session activity not recorded", "method", method, "error", err)
			}
			return next(ctx, method, req)
		}
	}
}
