package middleware

import (
	"context"
	"errors"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mcpTestRequest wraps ServerRequest for testing.
type mcpTestRequest struct {
	mcp.ServerRequest[*mcp.CallToolParamsRaw]
}

func newMCPTestRequest(toolName string) *mcpTestRequest {
	return &mcpTestRequest{
		ServerRequest: mcp.ServerRequest[*mcp.CallToolParamsRaw]{
			Params: &mcp.CallToolParamsRaw{
				Name: toolName,
			},
		},
	}
}

func TestMCPRequestMiddleware_AttachesRequestContext(t *testing.T) {
	middleware := MCPRequestMiddleware("sess-1")

	var captured *RequestContext
	next := func(ctx context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		captured = GetRequestContext(ctx)
		return &mcp.CallToolResult{}, nil
	}

	handler := middleware(next)
	_, err := handler(context.Background(), "tools/call", newMCPTestRequest("git_status"))
	require.NoError(t, err)

	require.NotNil(t, captured)
	assert.NotEmpty(t, captured.RequestID)
	assert.Equal(t, "sess-1", captured.SessionID)
	assert.Equal(t, "git_status", captured.ToolName)
	assert.False(t, captured.StartTime.IsZero())
}

func TestMCPRequestMiddleware_UniqueRequestIDs(t *testing.T) {
	middleware := MCPRequestMiddleware("")

	seen := make(map[string]bool)
	next := func(ctx context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		seen[GetRequestContext(ctx).RequestID] = true
		return &mcp.CallToolResult{}, nil
	}

	handler := middleware(next)
	for n := 0; n < 10; n++ {
		_, err := handler(context.Background(), "tools/call", newMCPTestRequest("git_log"))
		require.NoError(t, err)
	}
	assert.Len(t, seen, 10)
}

func TestMCPRequestMiddleware_MissingToolName(t *testing.T) {
	middleware := MCPRequestMiddleware("sess-1")

	next := func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		t.Fatal("next should not be called without a tool name")
		return nil, nil
	}

	handler := middleware(next)
	result, err := handler(context.Background(), "tools/call", newMCPTestRequest(""))
	require.NoError(t, err)

	toolResult, ok := result.(*mcp.CallToolResult)
	require.True(t, ok)
	assert.True(t, toolResult.IsError)
}

func TestMCPRequestMiddleware_NonToolMethodPassesThrough(t *testing.T) {
	middleware := MCPRequestMiddleware("sess-1")

	called := false
	next := func(ctx context.Context, method string, _ mcp.Request) (mcp.Result, error) {
		called = true
		rc := GetRequestContext(ctx)
		require.NotNil(t, rc)
		assert.Empty(t, rc.ToolName)
		return nil, nil
	}

	handler := middleware(next)
	_, err := handler(context.Background(), "tools/list", newMCPTestRequest(""))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestResultError(t *testing.T) {
	t.Run("handler error", func(t *testing.T) {
		failed, msg := resultError(nil, errors.New("boom"))
		assert.True(t, failed)
		assert.Equal(t, "boom", msg)
	})

	t.Run("tool error result", func(t *testing.T) {
		result := &mcp.CallToolResult{
			IsError: true,
			Content: []mcp.Content{&mcp.TextContent{Text: "not a repository"}},
		}
		failed, msg := resultError(result, nil)
		assert.True(t, failed)
		assert.Equal(t, "not a repository", msg)
	})

	t.Run("success", func(t *testing.T) {
		failed, msg := resultError(&mcp.CallToolResult{}, nil)
		assert.False(t, failed)
		assert.Empty(t, msg)
	})

	t.Run("nil result", func(t *testing.T) {
		failed, _ := resultError(nil, nil)
		assert.False(t, failed)
	})
}
