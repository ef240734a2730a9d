// Package mcptest provides test infrastructure for MCP client testing.
package mcptest

import (
	"testing"

	"github.com/Bigsy/mcpstream/internal/mcptest/fakeserver"
)

// FakeServerConfig is an alias for fakeserver.Config for convenience.
type FakeServerConfig = fakeserver.Config

// Tool is an alias for fakeserver.Tool for convenience.
type Tool = fakeserver.Tool

// JSONRPCError is an alias for fakeserver.JSONRPCError for convenience.
type JSONRPCError = fakeserver.JSONRPCError

// FakeServer is an alias for fakeserver.Server for convenience.
type FakeServer = fakeserver.Server

// StartFakeServer starts a fake streamable-HTTP MCP server on a loopback
// listener. The server is closed by t.Cleanup.
func StartFakeServer(t *testing.T, cfg FakeServerConfig) *FakeServer {
	t.Helper()

	srv := fakeserver.Start(cfg)
	t.Cleanup(srv.Close)
	return srv
}

// SSE frames payloads as `data:` events. See fakeserver.SSEBody.
func SSE(payloads ...string) string {
	return fakeserver.SSEBody(payloads...)
}
