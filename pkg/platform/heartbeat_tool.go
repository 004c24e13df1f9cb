package platform

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// heartbeatInput identifies the session being kept alive. When session_id is
// omitted the heartbeat applies to the connection session.
type heartbeatInput struct {
	SessionID string `json:"session_id,omitempty"`
}

// registerHeartbeatTool registers the heartbeat tool with the MCP server.
// Clients call it periodically so the watchdog does not close their session
// for missed heartbeats while long git operations are in flight.
func (p *Platform) registerHeartbeatTool() {
	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name: "heartbeat",
		Description: "Signal that the client is still alive. Call periodically to keep " +
			"the session open; sessions that stop sending heartbeats are closed.",
	}, func(ctx context.Context, req *mcp.CallToolRequest, in heartbeatInput) (*mcp.CallToolResult, any, error) {
		return p.handleHeartbeat(ctx, req, in)
	})
}

// handleHeartbeat handles the heartbeat tool call.
func (p *Platform) handleHeartbeat(_ context.Context, _ *mcp.CallToolRequest, in heartbeatInput) (*mcp.CallToolResult, any, error) {
	id := in.SessionID
	if id == "" && p.connSession != nil {
		id = p.connSession.ID()
	}
	if id == "" {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: "No session_id provided for heartbeat"},
			},
			IsError: true,
		}, nil, nil
	}

	if _, ok := p.sessions.Get(id); !ok {
		return &mcp.CallToolResult{
			Content: []mcp.Content{
				&mcp.TextContent{Text: fmt.Sprintf("Unknown session %s", id)},
			},
			IsError: true,
		}, nil, nil
	}

	p.heartbeats.RecordHeartbeat(id)
	p.collector.RecordMessage("heartbeat", 0)

	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("Heartbeat received for session %s", id)},
		},
	}, nil, nil
}
