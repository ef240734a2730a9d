package mcptest

import (
	"encoding/json"
	"fmt"
	"time"
)

// Common test configurations for fake MCP servers.

// DefaultConfig returns a minimal working fake server configuration.
func DefaultConfig() FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{
			{Name: "read_file", Description: "Read a file from disk", InputSchema: json.RawMessage(`{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`)},
			{Name: "write_file", Description: "Write content to a file"},
		},
	}
}

// EmptyToolsConfig returns a config with no tools.
func EmptyToolsConfig() FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{},
	}
}

// LargeToolListConfig returns a config with many tools (for catalog cap testing).
func LargeToolListConfig(count int) FakeServerConfig {
	tools := make([]Tool, count)
	for i := 0; i < count; i++ {
		tools[i] = Tool{
			Name:        fmt.Sprintf("tool_%03d", i),
			Description: "A test tool for catalog testing",
		}
	}
	return FakeServerConfig{Tools: tools}
}

// SessionConfig returns a config whose server assigns a session id.
func SessionConfig(sessionID string) FakeServerConfig {
	cfg := EchoToolsConfig()
	cfg.SessionID = sessionID
	return cfg
}

// SlowInitConfig returns a config that delays the initialize response.
func SlowInitConfig(delay time.Duration) FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{{Name: "test_tool"}},
		Delays: map[string]time.Duration{
			"initialize": delay,
		},
	}
}

// FailingMethodConfig returns a config that answers method with an HTTP status.
func FailingMethodConfig(method string, status int) FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{{Name: "test_tool"}},
		Statuses: map[string]int{
			method: status,
		},
	}
}

// ErrorOnInitConfig returns a config that returns an error on initialize.
func ErrorOnInitConfig(code int, message string) FakeServerConfig {
	return FakeServerConfig{
		Errors: map[string]JSONRPCError{
			"initialize": {Code: code, Message: message},
		},
	}
}

// ProgressToolConfig returns a config whose "slow_task" tool streams two
// progress frames followed by a result. Request ids are omitted so the frames
// match any call.
func ProgressToolConfig() FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{{Name: "slow_task", Description: "Reports progress"}},
		ToolFrames: map[string][]string{
			"slow_task": {
				`{"jsonrpc":"2.0","result":{"progress":"50%"}}`,
				`{"jsonrpc":"2.0","result":{"progress":"90%"}}`,
				`{"jsonrpc":"2.0","result":{"content":[{"type":"text","text":"done"}]}}`,
			},
		},
	}
}

// ToolStatusConfig returns a config whose tools/call requests are answered
// with status.
func ToolStatusConfig(status int) FakeServerConfig {
	cfg := EchoToolsConfig()
	cfg.Statuses = map[string]int{"tools/call": status}
	return cfg
}

// HangingToolConfig returns a config whose "hang" tool sends one progress
// frame and then keeps the stream open until the client goes away.
func HangingToolConfig() FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{{Name: "hang"}},
		ToolFrames: map[string][]string{
			"hang": {`{"jsonrpc":"2.0","result":{"progress":1}}`},
		},
		HoldOpen: map[string]bool{"hang": true},
	}
}

// EchoToolsConfig returns a config that echoes tool calls back as text.
// Useful for testing tool call routing.
func EchoToolsConfig() FakeServerConfig {
	return FakeServerConfig{
		Tools: []Tool{
			{Name: "echo", Description: "Echo the input back"},
			{Name: "greet", Description: "Return a greeting"},
		},
		EchoToolCalls: true,
	}
}
