package mcp

import (
	"errors"
	"fmt"
)

var (
	// ErrNotInitialized is returned by calls made before a successful Initialize.
	ErrNotInitialized = errors.New("mcp client not initialized")

	// ErrCallInFlight is reported when a tool call starts while another call
	// on the same client is still streaming.
	ErrCallInFlight = errors.New("another tool call is in flight on this client")

	// ErrLineTooLong is returned by the decoder when an unterminated line
	// grows past the configured maximum.
	ErrLineTooLong = errors.New("sse line exceeds maximum size")

	// ErrReadTimeout is reported when the server sends nothing for longer
	// than the per-read timeout.
	ErrReadTimeout = errors.New("read timeout")
)

// TransportError wraps connection, TLS and timeout failures. It is never
// retried by this package.
type TransportError struct {
	Op  string
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError is a fatal handshake or discovery failure: an unexpected
// HTTP status, an undecodable response or a JSON-RPC error object.
type ProtocolError struct {
	Method     string
	StatusCode int
	Body       string
	Err        error
}

func (e *ProtocolError) Error() string {
	if e.StatusCode != 0 {
		if e.Body != "" {
			return fmt.Sprintf("%s: unexpected HTTP status %d: %s", e.Method, e.StatusCode, e.Body)
		}
		return fmt.Sprintf("%s: unexpected HTTP status %d", e.Method, e.StatusCode)
	}
	return fmt.Sprintf("%s: %v", e.Method, e.Err)
}

func (e *ProtocolError) Unwrap() error {
	return e.Err
}

// RPCError is a JSON-RPC 2.0 error object.
type RPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("rpc error %d: %s", e.Code, e.Message)
}

// MalformedFrameError describes a `data:` line whose payload is not a JSON
// object. It only surfaces in strict mode.
type MalformedFrameError struct {
	Line string
	Err  error
}

func (e *MalformedFrameError) Error() string {
	return fmt.Sprintf("malformed frame %q: %v", truncate(e.Line, 120), e.Err)
}

func (e *MalformedFrameError) Unwrap() error {
	return e.Err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
