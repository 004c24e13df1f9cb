// Package jsonrpc provides the JSON-RPC 2.0 message model used by the
// notification interception layer. It deliberately models messages as a
// tagged variant (request, response, notification) rather than loose maps so
// that malformed input is caught at the parse boundary.
package jsonrpc

import (
	"encoding/json"
	"fmt"
)

// ProtocolVersion is the supported JSON-RPC protocol version.
const ProtocolVersion = "2.0"

// Client notification methods the server understands.
const (
	// MethodCancelled is sent by clients to cancel an in-flight request.
	MethodCancelled = "notifications/cancelled"

	// MethodProgress reports progress on a long-running request.
	MethodProgress = "notifications/progress"

	// MethodInitialized signals that initialization has completed.
	MethodInitialized = "notifications/initialized"

	// MethodRootsListChanged signals that the client's root set changed.
	MethodRootsListChanged = "notifications/roots/list_changed"
)

// MessageKind classifies a parsed JSON-RPC message.
type MessageKind int

const (
	// KindRequest is a message with both a method and an ID.
	KindRequest MessageKind = iota

	// KindNotification is a message with a method but no ID.
	KindNotification

	// KindResponse is a message carrying a result or error.
	KindResponse
)

// AnyMessage is a generic JSON-RPC message: request, notification, or response.
type AnyMessage struct {
	JSONRPCVersion string          `json:"jsonrpc"`
	Method         string          `json:"method,omitempty"`
	Params         json.RawMessage `json:"params,omitempty"`
	Result         json.RawMessage `json:"result,omitempty"`
	Error          json.RawMessage `json:"error,omitempty"`
	ID             *RequestID      `json:"id,omitempty"`
}

// Parse decodes a raw JSON-RPC message. A missing jsonrpc field defaults to
// "2.0"; any other version is rejected.
func Parse(raw []byte) (*AnyMessage, error) {
	var msg AnyMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		return nil, fmt.Errorf("parsing JSON-RPC message: %w", err)
	}
	if msg.JSONRPCVersion == "" {
		msg.JSONRPCVersion = ProtocolVersion
	}
	if msg.JSONRPCVersion != ProtocolVersion {
		return nil, fmt.Errorf("unsupported JSON-RPC version %q", msg.JSONRPCVersion)
	}
	return &msg, nil
}

// Kind classifies the message.
func (m *AnyMessage) Kind() MessageKind {
	if m.Method == "" {
		return KindResponse
	}
	if m.ID.IsNil() {
		return KindNotification
	}
	return KindRequest
}

// IsNotification returns true for messages that expect no response.
func (m *AnyMessage) IsNotification() bool {
	return m.Kind() == KindNotification
}

// CancelledParams are the parameters of a notifications/cancelled message.
type CancelledParams struct {
	RequestID *RequestID `json:"requestId"`
	Reason    string     `json:"reason,omitempty"`
}

// CancelledNotification is the typed form of a cancellation notification.
type CancelledNotification struct {
	Params CancelledParams
}

// DecodeCancelled validates a parsed message as a cancellation notification.
// The method must match MethodCancelled and params.requestId must be present
// as a string or integer; reason is optional.
func DecodeCancelled(m *AnyMessage) (*CancelledNotification, error) {
	if m.Method != MethodCancelled {
		return nil, fmt.Errorf("method %q is not %s", m.Method, MethodCancelled)
	}
	if len(m.Params) == 0 {
		return nil, fmt.Errorf("cancellation notification missing params")
	}

	var params CancelledParams
	if err := json.Unmarshal(m.Params, &params); err != nil {
		return nil, fmt.Errorf("decoding cancellation params: %w", err)
	}
	if params.RequestID.IsNil() {
		return nil, fmt.Errorf("cancellation notification missing requestId")
	}

	return &CancelledNotification{Params: params}, nil
}
