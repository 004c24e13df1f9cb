package middleware

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/txn2/mcp-git-server/pkg/session"
)

func TestMCPActivityMiddleware_RefreshesSession(t *testing.T) {
	manager := session.NewManager(session.ManagerConfig{HeartbeatTimeout: -1}, nil)
	defer manager.Shutdown()

	sess, err := manager.Create("sess-1", "")
	require.NoError(t, err)

	before := sess.Snapshot().MessageCount

	handler := MCPActivityMiddleware(sess)(func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		return nil, nil
	})

	_, err = handler(context.Background(), "tools/call", newMCPTestRequest("git_status"))
	require.NoError(t, err)

	assert.Equal(t, before+1, sess.Snapshot().MessageCount)
}

func TestMCPActivityMiddleware_ClosedSessionDoesNotBlock(t *testing.T) {
	manager := session.NewManager(session.ManagerConfig{HeartbeatTimeout: -1}, nil)
	defer manager.Shutdown()

	sess, err := manager.Create("sess-1", "")
	require.NoError(t, err)
	require.NoError(t, manager.CloseSession("sess-1", "client_disconnect"))

	called := false
	handler := MCPActivityMiddleware(sess)(func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		called = true
		return nil, nil
	})

	_, err = handler(context.Background(), "tools/call", newMCPTestRequest("git_status"))
	require.NoError(t, err)
	assert.True(t, called)
}

func TestMCPActivityMiddleware_NilTracker(t *testing.T) {
	called := false
	handler := MCPActivityMiddleware(nil)(func(_ context.Context, _ string, _ mcp.Request) (mcp.Result, error) {
		called = true
		return nil, nil
	})

	_, err := handler(context.Background(), "tools/list", newMCPTestRequest(""))
	require.NoError(t, err)
	assert.True(t, called)
}
