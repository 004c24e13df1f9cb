package interceptor

import (
	"encoding/json"

	"github.com/cespare/xxhash/v2"

	"github.com/txn2/mcp-git-server/pkg/jsonrpc"
)

// Fingerprint derives a stable cache key for a message. Params are
// normalized through a decode/encode round trip so that key order and
// insignificant whitespace do not produce distinct fingerprints.
func Fingerprint(msg *jsonrpc.AnyMessage) uint64 {
	return xxhash.Sum64String(canonicalKey(msg))
}

// canonicalKey renders the fingerprint-relevant fields of a message as
// deterministic JSON. encoding/json sorts map keys, which gives the
// canonical ordering.
func canonicalKey(msg *jsonrpc.AnyMessage) string {
	parts := map[string]any{
		"jsonrpc": msg.JSONRPCVersion,
		"method":  msg.Method,
	}

	if len(msg.Params) > 0 {
		var params any
		if err := json.Unmarshal(msg.Params, &params); err == nil {
			if normalized, err := json.Marshal(params); err == nil {
				parts["params"] = string(normalized)
			}
		} else {
			parts["params"] = string(msg.Params)
		}
	}

	key, err := json.Marshal(parts)
	if err != nil {
		return msg.Method + string(msg.Params)
	}
	return string(key)
}
