// Package ai implements the streamed provider client: one Generate call per
// prompt, provider dispatch on the active profile, SSE reassembly, and a
// bounded retry loop over transient transport failures.
package ai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
	"syscall"
)

// Sentinel errors for provider calls. Check with errors.Is().
var (
	// ErrNotConfigured indicates the active profile is missing api_base or
	// api_key. Raised before any network attempt.
	ErrNotConfigured = errors.New("AI api_base/api_key is not configured")

	// ErrUnsupportedProvider indicates the profile names a provider this
	// client does not speak. Never retried.
	ErrUnsupportedProvider = errors.New("unsupported provider")

	// ErrNoContent indicates the stream completed without producing any
	// text. Never retried.
	ErrNoContent = errors.New("no content returned from model provider")

	// errReadIdle marks a cancellation caused by the streamed-read
	// inactivity watchdog. Transient: the connection stalled mid-stream.
	errReadIdle = errors.New("read timeout: no data received")
)

// StreamError is an error payload embedded in the provider's event stream.
// The provider answered, so the failure is authoritative and never retried.
type StreamError struct {
	Message string
}

func (e *StreamError) Error() string {
	return fmt.Sprintf("provider reported error: %s", e.Message)
}

// StatusError is a non-success HTTP response from the provider. The request
// reached the provider, so it is never retried: the generation may already
// have been started (and billed) server-side.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("provider returned status %d: %s", e.Code, e.Body)
}

// isTransient reports whether an attempt failure is a transport-level error
// that is safe to retry: connection reset, connect/read timeout, or a
// premature close before the stream finished. HTTP error statuses, malformed
// payloads and provider-reported errors surface immediately.
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	var streamErr *StreamError
	var statusErr *StatusError
	if errors.As(err, &streamErr) || errors.As(err, &statusErr) {
		return false
	}
	if errors.Is(err, errReadIdle) {
		return true
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	if errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNABORTED) || errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// Some transports stringify the reset instead of wrapping syscall errors.
	msg := err.Error()
	return strings.Contains(msg, "connection reset") ||
		strings.Contains(msg, "broken pipe") ||
		strings.Contains(msg, "unexpected EOF")
}
