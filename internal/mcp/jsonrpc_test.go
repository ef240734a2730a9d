package mcp

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnvelope_Kind(t *testing.T) {
	tests := []struct {
		raw  string
		want MessageKind
	}{
		{`{"jsonrpc":"2.0","id":1,"method":"ping"}`, KindRequest},
		{`{"jsonrpc":"2.0","method":"notifications/progress"}`, KindNotification},
		{`{"jsonrpc":"2.0","id":null,"method":"notifications/progress"}`, KindNotification},
		{`{"jsonrpc":"2.0","id":1,"result":{}}`, KindSuccess},
		{`{"jsonrpc":"2.0","id":1,"error":{"code":-32601,"message":"nope"}}`, KindFailure},
		{`{"jsonrpc":"2.0"}`, KindInvalid},
	}

	for _, tt := range tests {
		var env Envelope
		require.NoError(t, json.Unmarshal([]byte(tt.raw), &env), tt.raw)
		assert.Equal(t, tt.want, env.Kind(), tt.raw)
	}
}

func TestEnvelope_MatchesID(t *testing.T) {
	tests := []struct {
		id   string
		want bool
	}{
		{``, true},
		{`null`, true},
		{`7`, true},
		{`7.0`, true},
		{`"7"`, true},
		{`8`, false},
		{`"seven"`, false},
		{`{"x":1}`, false},
	}

	for _, tt := range tests {
		env := Envelope{ID: json.RawMessage(tt.id)}
		assert.Equal(t, tt.want, env.MatchesID(7), "id %q", tt.id)
	}
}

func TestEnvelope_RPCError(t *testing.T) {
	env := Envelope{Error: json.RawMessage(`{"code":-32000,"message":"server busy"}`)}
	rpcErr := env.RPCError()
	require.NotNil(t, rpcErr)
	assert.Equal(t, -32000, rpcErr.Code)
	assert.Equal(t, "server busy", rpcErr.Message)

	env = Envelope{Error: json.RawMessage(`"plain string"`)}
	assert.Equal(t, `"plain string"`, env.RPCError().Message, "non-object errors are kept verbatim")

	assert.Nil(t, (&Envelope{}).RPCError())
}

func TestRequestWireFormat(t *testing.T) {
	data, err := json.Marshal(newRequest(4, "tools/call", toolCallParams{Name: "x", Arguments: map[string]any{}}))
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","id":4,"method":"tools/call","params":{"name":"x","arguments":{}}}`, string(data))

	data, err = json.Marshal(newNotification("notifications/initialized", nil))
	require.NoError(t, err)
	assert.Equal(t, `{"jsonrpc":"2.0","method":"notifications/initialized"}`, string(data))
}

func TestErrorTypes(t *testing.T) {
	inner := errors.New("connection refused")
	terr := &TransportError{Op: "initialize", Err: inner}
	assert.ErrorIs(t, terr, inner)
	assert.Equal(t, "initialize: connection refused", terr.Error())

	perr := &ProtocolError{Method: "tools/list", StatusCode: 502}
	assert.Equal(t, "tools/list: unexpected HTTP status 502", perr.Error())

	mfe := &MalformedFrameError{Line: "data: " + strings.Repeat("x", 500), Err: inner}
	assert.LessOrEqual(t, len(mfe.Error()), 250, "line should be truncated")
}
