package middleware

import (
	"context"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

const methodToolsCall = "tools/call"

// MCPRequestMiddleware creates MCP protocol-level middleware that attaches a
// RequestContext to every request. For tools/call requests it also extracts
// the tool name; calls without a tool name are rejected before reaching the
// handler. sessionID tags all requests on this connection.
func MCPRequestMiddleware(sessionID string) mcp.Middleware {
	return func(next mcp.MethodHandler) mcp.MethodHandler {
		return func(ctx context.Context, method string, req mcp.Request) (mcp.Result, error) {
			rc := NewRequestContext()
			rc.SessionID = sessionID
			ctx = WithRequestContext(ctx, rc)

			if method != methodToolsCall {
				return next(ctx, method, req)
			}

			toolName, err := extractToolName(req)
			if err != nil {
				return createErrorResult(fmt.Sprintf("invalid request: %v", err)), nil
			}
			rc.ToolName = toolName

			return next(ctx, method, req)
		}
	}
}

// extractToolName extracts the tool name from a tools/call request.
func extractToolName(req mcp.Request) (string, error) {
	params := req.GetParams()
	if params == nil {
		return "", fmt.Errorf("missing params")
	}

	callParams, ok := params.(*mcp.CallToolParamsRaw)
	if !ok {
		return "", fmt.Errorf("unexpected params type: %T", params)
	}

	// Type assertion can succeed with a nil pointer.
	if callParams == nil {
		return "", fmt.Errorf("missing params")
	}

	if callParams.Name == "" {
		return "", fmt.Errorf("missing tool name")
	}

	return callParams.Name, nil
}

// createErrorResult creates an MCP tool result carrying an error message.
func createErrorResult(errMsg string) mcp.Result {
	return &mcp.CallToolResult{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: errMsg},
		},
	}
}

// resultError reports whether a handler outcome represents a failure and
// extracts the associated message.
func resultError(result mcp.Result, err error) (bool, string) {
	if err != nil {
		return true, err.Error()
	}
	callResult, ok := result.(*mcp.CallToolResult)
	if !ok || callResult == nil || !callResult.IsError {
		return false, ""
	}
	if len(callResult.Content) > 0 {
		if textContent, ok := callResult.Content[0].(*mcp.TextContent); ok {
			return true, textContent.Text
		}
	}
	return true, ""
}
