package platform

import (
	"context"
	"encoding/json"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/txn2/mcp-git-server/pkg/interceptor"
	"github.com/txn2/mcp-git-server/pkg/metrics"
	"github.com/txn2/mcp-git-server/pkg/session"
	"github.com/txn2/mcp-git-server/pkg/validation"
)

// Status is the live runtime report returned by the server_status tool.
type Status struct {
	Health       metrics.HealthStatus `json:"health"`
	Metrics      metrics.Snapshot     `json:"metrics"`
	SessionCount int                  `json:"session_count"`
	Sessions     []session.Info       `json:"sessions,omitempty"`
	Interceptor  interceptor.Stats    `json:"interceptor"`
	Cache        validation.Stats     `json:"cache"`
}

// serverStatusInput controls optional detail in the status report.
type serverStatusInput struct {
	IncludeSessions bool `json:"include_sessions,omitempty"`
}

// registerStatusTool registers the server_status tool with the MCP server.
func (p *Platform) registerStatusTool() {
	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name: "server_status",
		Description: "Get the live status of this MCP git server: health, message and " +
			"operation metrics, active sessions, and notification interceptor counters.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in serverStatusInput) (*mcp.CallToolResult, any, error) {
		return p.handleStatus(ctx, req, in)
	})
}

// handleStatus handles the server_status tool call.
func (p *Platform) handleStatus(_ context.Context, _ *mcp.CallToolRequest, in serverStatusInput) (*mcp.CallToolResult, any, error) {
	status := Status{
		Health:       p.collector.HealthStatus(),
		Metrics:      p.collector.Snapshot(),
		SessionCount: p.sessions.Count(),
		Interceptor:  p.interceptor.Stats(),
		Cache:        p.interceptor.CacheStats(),
	}

	if in.IncludeSessions {
		for _, sess := range p.sessions.All() {
			status.Sessions = append(status.Sessions, sess.Snapshot())
		}
	}

	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return &mcp.CallToolResult{ //nolint:nilerr // MCP protocol: tool errors are returned in CallToolResult.IsError, not as Go errors
			Content: []mcp.Content{
				&mcp.TextContent{Text: "Error: " + err.Error()},
			},
			IsError: true,
		}, nil, nil
	}

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(data)},
		},
	}, nil, nil
}
