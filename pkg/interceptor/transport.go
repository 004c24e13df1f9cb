package interceptor

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// FilterTransport wraps an MCP transport so that every inbound message runs
// through the interceptor before dispatch. Consumed messages never reach the
// server's handler loop.
type FilterTransport struct {
	delegate    mcp.Transport
	interceptor *Interceptor
}

// NewFilterTransport wraps delegate with interception.
func NewFilterTransport(delegate mcp.Transport, i *Interceptor) *FilterTransport {
	return &FilterTransport{delegate: delegate, interceptor: i}
}

// Connect implements mcp.Transport.
func (t *FilterTransport) Connect(ctx context.Context) (mcp.Connection, error) {
	conn, err := t.delegate.Connect(ctx)
	if err != nil {
		return nil, err
	}
	return &filterConnection{delegate: conn, interceptor: t.interceptor}, nil
}

type filterConnection struct {
	delegate    mcp.Connection
	interceptor *Interceptor
}

func (c *filterConnection) SessionID() string { return c.delegate.SessionID() }

// Read returns the next message the interceptor forwards, skipping any it
// consumes.
func (c *filterConnection) Read(ctx context.Context) (jsonrpc.Message, error) {
	for {
		msg, err := c.delegate.Read(ctx)
		if err != nil {
			return msg, err
		}

		raw, merr := jsonrpc.EncodeMessage(msg)
		if merr != nil {
			// A message the SDK produced but cannot re-encode is passed
			// through untouched rather than dropped.
			return msg, nil
		}

		if _, forward := c.interceptor.PreprocessMessage(string(raw)); forward {
			return msg, nil
		}
	}
}

func (c *filterConnection) Write(ctx context.Context, msg jsonrpc.Message) error {
	return c.delegate.Write(ctx, msg)
}

func (c *filterConnection) Close() error { return c.delegate.Close() }

// Verify interface compliance.
var _ mcp.Transport = (*FilterTransport)(nil)
