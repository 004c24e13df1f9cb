package middleware

import (
	"context"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-git-server/pkg/metrics"
)

// MCPMetricsMiddleware creates MCP protocol-level middleware that records
// message and operation telemetry. Every method records a message sample;
// tools/call additionally records a per-tool operation with its outcome.
func MCPMetricsMiddleware(collector *metrics.Collector) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		if collector == nil {
			return next
		}

		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			start := time.Now()
			result, err := next(ctx, method, req)
			durationMS := float64(time.Since(start).Microseconds()) / 1000

			collector.RecordMessage(method, durationMS)

			if method == methodToolsCall {
				failed, _ := resultError(result, err)
				toolName := "unknown"
				if rc := GetRequestContext(ctx); rc != nil && rc.ToolName != "" {
					toolName = rc.ToolName
				}
				collector.RecordOperation(toolName, !failed, durationMS)
			}

			if err != nil {
				collector.RecordError(method)
			}

			return result, err
		}
	}
}
