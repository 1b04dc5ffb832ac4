// Package providers holds one adapter per LLM backend. Each adapter
// normalizes its provider's request/response shape down to a plain
// prompt-in, text-out contract; the gateway owns fallback, caching, and rate
// limiting on top.
package providers

import (
	"errors"
	"strings"
)

// ErrRelayInvalidated marks the one recoverable transport failure class: the
// connection to the provider relay dropped between request and response.
// Callers retry the same call exactly once before surfacing an error.
var ErrRelayInvalidated = errors.New("relay context invalidated")

// classifyTransport maps transient transport teardown onto
// ErrRelayInvalidated and passes everything else through
func classifyTransport(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if strings.Contains(msg, "context invalidated") ||
		strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "use of closed network connection") {
		return ErrRelayInvalidated
	}
	return err
}
