package mcp

import (
	"bytes"
	"encoding/json"
	"strconv"
)

const jsonrpcVersion = "2.0"

// MessageKind identifies which member of the JSON-RPC tagged union an
// Envelope holds.
type MessageKind int

const (
	KindInvalid MessageKind = iota
	KindRequest
	KindNotification
	KindSuccess
	KindFailure
)

func (k MessageKind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindSuccess:
		return "success"
	case KindFailure:
		return "failure"
	default:
		return "invalid"
	}
}

// Envelope is a decoded JSON-RPC 2.0 message of any kind.
// Presence is tracked on the raw members so that `"result": {}` and a
// missing result are told apart.
type Envelope struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id,omitempty"`
	Method  string          `json:"method,omitempty"`
	Params  json.RawMessage `json:"params,omitempty"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   json.RawMessage `json:"error,omitempty"`
}

// Kind classifies the envelope.
func (e *Envelope) Kind() MessageKind {
	switch {
	case len(e.Error) > 0:
		return KindFailure
	case len(e.Result) > 0:
		return KindSuccess
	case e.Method != "" && hasID(e.ID):
		return KindRequest
	case e.Method != "":
		return KindNotification
	default:
		return KindInvalid
	}
}

// RPCError decodes the error member. Error objects that do not have the
// {code, message} shape are kept verbatim in Message.
func (e *Envelope) RPCError() *RPCError {
	if len(e.Error) == 0 {
		return nil
	}
	var rpcErr RPCError
	if err := json.Unmarshal(e.Error, &rpcErr); err != nil {
		return &RPCError{Message: string(bytes.TrimSpace(e.Error))}
	}
	return &rpcErr
}

// MatchesID reports whether the envelope answers the request with the given
// id. Envelopes without an id match any request, since some servers omit it
// on streamed frames.
func (e *Envelope) MatchesID(id int64) bool {
	if !hasID(e.ID) {
		return true
	}
	var v any
	if err := json.Unmarshal(e.ID, &v); err != nil {
		return false
	}
	switch x := v.(type) {
	case float64:
		return x == float64(id)
	case string:
		return x == strconv.FormatInt(id, 10)
	default:
		return false
	}
}

func hasID(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// rpcRequest is a JSON-RPC 2.0 request.
type rpcRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// rpcNotification is a JSON-RPC 2.0 notification (no id, no response).
type rpcNotification struct {
	JSONRPC string `json:"jsonrpc"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

func newRequest(id int64, method string, params any) rpcRequest {
	return rpcRequest{JSONRPC: jsonrpcVersion, ID: id, Method: method, Params: params}
}

func newNotification(method string, params any) rpcNotification {
	return rpcNotification{JSONRPC: jsonrpcVersion, Method: method, Params: params}
}

// initializeParams is the params for the initialize request.
type initializeParams struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    map[string]any `json:"capabilities"`
	ClientInfo      clientInfo     `json:"clientInfo"`
}

type clientInfo struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// initializeResult is the result of the initialize request.
type initializeResult struct {
	ProtocolVersion string     `json:"protocolVersion"`
	Capabilities    any        `json:"capabilities"`
	ServerInfo      ServerInfo `json:"serverInfo"`
}

// toolsListResult is the result of tools/list.
type toolsListResult struct {
	Tools []Tool `json:"tools"`
}

// toolCallParams is the params for tools/call.
type toolCallParams struct {
	Name      string `json:"name"`
	Arguments any    `json:"arguments"`
}
