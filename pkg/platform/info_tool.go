// Package platform provides the main server orchestration.
package platform

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Info contains information about the server deployment.
type Info struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	Description string   `json:"description,omitempty"`
	Transport   string   `json:"transport"`
	Tools       []string `json:"tools"`
	Features    Features `json:"features"`
}

// Features describes enabled server features.
type Features struct {
	ReadOnly        bool `json:"read_only"`
	Heartbeats      bool `json:"heartbeats"`
	ValidationCache bool `json:"validation_cache"`
	SessionArchive  bool `json:"session_archive"`
}

// serverInfoInput is empty since this tool has no parameters.
type serverInfoInput struct{}

// registerInfoTool registers the server_info tool with the MCP server.
func (p *Platform) registerInfoTool() {
	mcp.AddTool(p.mcpServer, &mcp.Tool{
		Name:        "server_info",
		Description: p.buildInfoToolDescription(),
	}, func(ctx context.Context, req *mcp.CallToolRequest, _ serverInfoInput) (*mcp.CallToolResult, any, error) {
		return p.handleInfo(ctx, req)
	})
}

// buildInfoToolDescription builds a dynamic tool description based on configuration.
func (p *Platform) buildInfoToolDescription() string {
	base := "Get information about this MCP git server"
	if p.config.Server.Name != "" && p.config.Server.Name != "mcp-git-server" {
		base = fmt.Sprintf("Get information about %s", p.config.Server.Name)
	}
	return base + ", including its available git tools and enabled features. " +
		"Call this first to understand what capabilities are available."
}

// handleInfo handles the server_info tool call.
func (p *Platform) handleInfo(_ context.Context, _ *mcp.CallToolRequest) (*mcp.CallToolResult, any, error) {
	tools := append(p.gitToolkit.Tools(), "server_info", "server_status", "heartbeat")

	info := Info{
		Name:        p.config.Server.Name,
		Version:     p.config.Server.Version,
		Description: p.config.Server.Description,
		Transport:   p.config.Server.Transport,
		Tools:       tools,
		Features: Features{
			ReadOnly:        p.config.Git.ReadOnly,
			Heartbeats:      p.heartbeats != nil,
			ValidationCache: !p.config.Cache.Disabled,
			SessionArchive:  p.archive != nil,
		},
	}

	data, err := json.MarshalIndent(info, "", "  ")
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
