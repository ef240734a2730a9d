// Package fakeserver provides a fake streamable-HTTP MCP server for testing.
package fakeserver

import (
	"encoding/json"
	"time"
)

// Config controls the fake server's behavior.
type Config struct {
	// Tools to return from tools/list
	Tools []Tool `json:"tools"`

	// SessionID is returned in the session header on initialize. Empty
	// means the server is stateless.
	SessionID string `json:"sessionId"`

	// SessionHeader overrides the header name (default Mcp-Session-Id).
	SessionHeader string `json:"sessionHeader"`

	// Per-method HTTP status overrides (e.g. "initialize": 500).
	Statuses map[string]int `json:"statuses"`

	// FailTimes answers the first N requests for a method with HTTP 500 and
	// then behaves normally. Useful for testing retry after failure.
	FailTimes map[string]int `json:"failTimes"`

	// Per-method delays before responding.
	// NOTE: Use short delays (10-50ms) in tests to avoid slow suite.
	Delays map[string]time.Duration `json:"delays"`

	// Per-method forced errors (JSON-RPC error responses)
	Errors map[string]JSONRPCError `json:"errors"`

	// JSONResponses answers initialize and tools/list with application/json
	// instead of a single-event SSE stream.
	JSONResponses bool `json:"jsonResponses"`

	// Tool call handling. ToolFrames holds the data payloads streamed for a
	// tool, one `data:` line each. ToolBodies holds verbatim response bodies
	// and wins over ToolFrames.
	ToolFrames map[string][]string `json:"toolFrames"`
	ToolBodies map[string]string   `json:"toolBodies"`

	// EchoToolCalls makes unknown tools return their name and arguments as text
	// instead of a "tool not found" error.
	EchoToolCalls bool `json:"echoToolCalls"`

	// ChunkSize splits streamed tool bodies into writes of this many bytes,
	// flushing after each. Zero writes the body in one piece.
	ChunkSize int `json:"chunkSize"`

	// FrameDelay sleeps between streamed chunks.
	FrameDelay time.Duration `json:"frameDelay"`

	// HoldOpen keeps the named tools' responses open after the body has been
	// written until the client disconnects.
	HoldOpen map[string]bool `json:"holdOpen"`
}

// Tool represents an MCP tool definition.
type Tool struct {
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	InputSchema json.RawMessage `json:"inputSchema,omitempty"`
}

// JSONRPCError represents a JSON-RPC 2.0 error.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

// Request is a request as received by the server, recorded for assertions.
type Request struct {
	Method    string
	ID        json.RawMessage
	Params    json.RawMessage
	SessionID string
	Header    map[string][]string
}

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method"`
	Params  json.RawMessage `json:"params,omitempty"`
}

// rpcResponse is a JSON-RPC 2.0 response.
type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// InitializeResult is the result of the initialize request.
type InitializeResult struct {
	ProtocolVersion string       `json:"protocolVersion"`
	ServerInfo      ServerInfo   `json:"serverInfo"`
	Capabilities    Capabilities `json:"capabilities"`
}

// ServerInfo describes the server.
type ServerInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities describes server capabilities.
type Capabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability indicates the server supports tools.
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// ToolsListResult is the result of tools/list.
type ToolsListResult struct {
	Tools []Tool `json:"tools"`
}

// ToolCallParams is the params for tools/call.
type ToolCallParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}

// ToolCallResult is the result of tools/call.
type ToolCallResult struct {
	Content []ContentBlock `json:"content"`
	IsError bool           `json:"isError,omitempty"`
}

// ContentBlock represents a content block in a tool result.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

func marshalResponse(id json.RawMessage, result any) []byte {
	resultJSON, _ := json.Marshal(result)
	data, _ := json.Marshal(rpcResponse{JSONRPC: "2.0", ID: id, Result: resultJSON})
	return data
}

func marshalError(id json.RawMessage, rpcErr JSONRPCError) []byte {
	data, _ := json.Marshal(rpcResponse{JSONRPC: "2.0", ID: id, Error: &rpcErr})
	return data
}

// SSEBody frames payloads as `data:` events separated by blank lines.
func SSEBody(payloads ...string) string {
	var body string
	for _, p := range payloads {
		body += "data: " + p + "\n\n"
	}
	return body
}
