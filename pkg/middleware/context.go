// Package middleware provides MCP protocol-level middleware for request
// tracking, logging, metrics, and session activity.
package middleware

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// contextKey is a private type for context keys.
type contextKey int

const requestContextKey contextKey = iota

// RequestContext holds per-request metadata shared across middleware layers.
type RequestContext struct {
	RequestID string
	SessionID string
	StartTime time.Time

	// Tool information (tools/call only)
	ToolName string

	// Results (populated after handler)
	Success      bool
	ErrorMessage string
	Duration     time.Duration
}

// NewRequestContext creates a request context with a generated request ID.
func NewRequestContext() *RequestContext {
	return &RequestContext{
		RequestID: uuid.NewString(),
		StartTime: time.Now(),
	}
}

// WithRequestContext adds request context to the context.
func WithRequestContext(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey, rc)
}

// GetRequestContext retrieves request context from the context, or nil.
func GetRequestContext(ctx context.Context) *RequestContext {
	if rc, ok := ctx.Value(requestContextKey).(*RequestContext); ok {
		return rc
	}
	return nil
}
