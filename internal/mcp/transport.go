// Package mcp provides a streaming MCP tool client over streamable HTTP.
//
// The client performs the initialize handshake, discovers tools once per
// session and invokes them over a POST whose response body is an SSE stream
// of JSON-RPC frames. Progress frames and the final result are surfaced as a
// lazy sequence of strings, or of typed Elements for callers that need to
// tell failures from output.
package mcp

import (
	"context"
	"encoding/json"
	"iter"
)

const (
	// DefaultProtocolVersion is sent in the initialize request.
	DefaultProtocolVersion = "2024-11-05"

	// DefaultSessionHeader carries the server-assigned session id.
	DefaultSessionHeader = "Mcp-Session-Id"

	// DefaultCredentialHeader is used when no deployment-specific header is configured.
	DefaultCredentialHeader = "Authorization"

	// DefaultClientName and DefaultClientVersion identify the client in the handshake.
	DefaultClientName    = "mcpstream"
	DefaultClientVersion = "0.1.0"
)

// ToolClient is the calling surface consumed by orchestrators.
type ToolClient interface {
	// Initialize performs the handshake and loads the tool catalog.
	Initialize(ctx context.Context) error
	// ListTools returns the cached tool catalog.
	ListTools() ([]Tool, error)
	// CallTool invokes a tool and returns the concatenated output.
	CallTool(ctx context.Context, name string, arguments any) (string, error)
	// CallToolStreaming invokes a tool and yields progress and result chunks.
	CallToolStreaming(ctx context.Context, name string, arguments any) (iter.Seq[string], error)
	// CallToolElements is CallToolStreaming with each element's kind attached.
	CallToolElements(ctx context.Context, name string, arguments any) (iter.Seq[Element], error)
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// ServerInfo identifies the server, as reported in the initialize result.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}
