// Package interceptor consumes protocol-level notifications upstream of
// normal dispatch. Cancellation notifications are validated and fully
// absorbed here, valid or not, because JSON-RPC notifications expect no
// response and cancellation semantics are handled entirely at this layer;
// they must never reach ordinary dispatch.
package interceptor

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/txn2/mcp-git-server/pkg/jsonrpc"
	"github.com/txn2/mcp-git-server/pkg/metrics"
	"github.com/txn2/mcp-git-server/pkg/validation"
)

// Canceller signals an in-flight operation that its request was cancelled.
// The tool-execution layer provides the implementation.
type Canceller interface {
	// Cancel requests cancellation of the operation matching requestID.
	// It returns true if a matching in-flight operation was found.
	Cancel(requestID *jsonrpc.RequestID, reason string) bool
}

// CancelFunc adapts a function to the Canceller interface.
type CancelFunc func(requestID *jsonrpc.RequestID, reason string) bool

// Cancel implements Canceller.
func (f CancelFunc) Cancel(requestID *jsonrpc.RequestID, reason string) bool {
	return f(requestID, reason)
}

// passthroughMethods are the notification methods normal dispatch supports;
// every other notifications/* method is absorbed here.
var passthroughMethods = map[string]bool{
	jsonrpc.MethodProgress:         true,
	jsonrpc.MethodInitialized:      true,
	jsonrpc.MethodRootsListChanged: true,
}

// Stats counts interception outcomes. Valid and invalid cancellations are
// tracked separately even though both are consumed.
type Stats struct {
	Intercepted      int64 `json:"total_intercepted"`
	Cancelled        int64 `json:"cancelled_notifications"`
	CancelledValid   int64 `json:"cancelled_valid"`
	CancelledInvalid int64 `json:"cancelled_invalid"`
	Unsupported      int64 `json:"unsupported_notifications"`
}

// Interceptor filters the raw message stream ahead of dispatch.
type Interceptor struct {
	cache     *validation.Cache
	canceller Canceller
	collector *metrics.Collector

	mu    sync.Mutex
	stats Stats
}

// New creates an Interceptor. cache bounds repeated validation work;
// canceller may be nil when no in-flight cancellation is wired; collector
// may be nil to disable metrics.
func New(cache *validation.Cache, canceller Canceller, collector *metrics.Collector) *Interceptor {
	return &Interceptor{
		cache:     cache,
		canceller: canceller,
		collector: collector,
	}
}

// PreprocessMessage parses a raw message and decides its fate. It returns
// the parsed message and true when the message should continue to normal
// dispatch, or nil and false when the message has been consumed or dropped.
// Malformed input is recovered locally: logged, dropped, never raised.
func (i *Interceptor) PreprocessMessage(raw string) (*jsonrpc.AnyMessage, bool) {
	start := time.Now()

	msg, err := jsonrpc.Parse([]byte(raw))
	if err != nil {
		slog.Warn("dropping unparsable message", "error", err)
		i.recordError("parse_error")
		return nil, false
	}

	if msg.Method == jsonrpc.MethodCancelled {
		i.consumeCancellation(msg, start)
		return nil, false
	}

	if i.isUnsupportedNotification(msg) {
		i.bumpStats(func(s *Stats) {
			s.Intercepted++
			s.Unsupported++
		})
		slog.Warn("absorbing unsupported notification", "method", msg.Method)
		return nil, false
	}

	return msg, true
}

// consumeCancellation validates a cancellation notification (through the
// validation cache) and performs the cancellation side effect when valid.
func (i *Interceptor) consumeCancellation(msg *jsonrpc.AnyMessage, start time.Time) {
	verdict := i.validate(msg)

	i.bumpStats(func(s *Stats) {
		s.Intercepted++
		s.Cancelled++
		if verdict.Valid {
			s.CancelledValid++
		} else {
			s.CancelledInvalid++
		}
	})

	if i.collector != nil {
		i.collector.RecordMessage(jsonrpc.MethodCancelled, float64(time.Since(start).Microseconds())/1000)
		i.collector.RecordOperation("cancelled_notification", verdict.Valid, -1)
	}

	if !verdict.Valid {
		slog.Warn("invalid cancellation notification", "reason", verdict.Reason)
		return
	}

	cn, err := jsonrpc.DecodeCancelled(msg)
	if err != nil {
		// Cached verdict said valid but the message no longer decodes;
		// treat as invalid rather than crash.
		slog.Warn("cancellation decode failed after cache hit", "error", err)
		return
	}

	slog.Debug("cancellation consumed",
		"request_id", cn.Params.RequestID.String(), "reason", cn.Params.Reason)

	if i.canceller != nil {
		i.canceller.Cancel(cn.Params.RequestID, cn.Params.Reason)
	}
}

// validate computes or recalls the schema verdict for a cancellation.
func (i *Interceptor) validate(msg *jsonrpc.AnyMessage) validation.Verdict {
	check := func() validation.Verdict {
		if _, err := jsonrpc.DecodeCancelled(msg); err != nil {
			return validation.Verdict{Valid: false, Reason: err.Error()}
		}
		return validation.Verdict{Valid: true}
	}
	if i.cache == nil {
		return check()
	}
	return i.cache.GetOrValidate(Fingerprint(msg), check)
}

// isUnsupportedNotification reports whether msg is a notification dispatch
// cannot handle.
func (i *Interceptor) isUnsupportedNotification(msg *jsonrpc.AnyMessage) bool {
	if !msg.IsNotification() {
		return false
	}
	if !strings.HasPrefix(msg.Method, "notifications/") {
		return false
	}
	return !passthroughMethods[msg.Method]
}

// Stats returns a snapshot of interception counters.
func (i *Interceptor) Stats() Stats {
	i.mu.Lock()
	defer i.mu.Unlock()
	return i.stats
}

// CacheStats returns validation cache counters, or zero stats without a cache.
func (i *Interceptor) CacheStats() validation.Stats {
	if i.cache == nil {
		return validation.Stats{}
	}
	return i.cache.Stats()
}

func (i *Interceptor) bumpStats(fn func(*Stats)) {
	i.mu.Lock()
	defer i.mu.Unlock()
	fn(&i.stats)
}

func (i *Interceptor) recordError(errorType string) {
	if i.collector != nil {
		i.collector.RecordError(errorType)
	}
}
