// Package agent runs a chat loop that lets a language model call the tools
// exposed by an MCP server.
//
// Each round sends the conversation plus the tool catalog to a ChatModel.
// Tool calls in the reply are executed through the streaming client; every
// chunk is forwarded to the Observer as it arrives and the concatenated
// output is appended to the conversation as a tool result. The loop ends
// when the model answers without requesting tools.
package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"strings"

	"github.com/Bigsy/mcpstream/internal/logging"
	"github.com/Bigsy/mcpstream/internal/mcp"
)

// DefaultMaxRounds bounds the number of model round trips in one Run.
const DefaultMaxRounds = 8

// ErrMaxRounds is returned when the model keeps requesting tools past the
// round limit.
var ErrMaxRounds = errors.New("agent: round limit reached without a final answer")

// Role is the author of a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// ToolCall is a tool invocation requested by the model. Arguments is the raw
// JSON object text the model produced.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// Message is one provider-neutral conversation entry.
type Message struct {
	Role    Role
	Content string

	// ToolCalls is set on assistant messages that request tools.
	ToolCalls []ToolCall

	// ToolCallID and IsError are set on tool messages.
	ToolCallID string
	IsError    bool
}

// Reply is a model response.
type Reply struct {
	Content   string
	ToolCalls []ToolCall
}

// ChatModel sends a conversation to a language model. The catalog is
// rendered into the provider's function-calling shape by the model.
type ChatModel interface {
	Complete(ctx context.Context, system string, messages []Message, catalog *mcp.Catalog) (Reply, error)
}

// ToolSource is the part of mcp.Client the agent needs.
type ToolSource interface {
	Catalog() *mcp.Catalog
	CallToolElements(ctx context.Context, name string, arguments any) (iter.Seq[mcp.Element], error)
}

var _ ToolSource = (*mcp.Client)(nil)

// Observer receives tool activity while Run is in progress.
type Observer interface {
	ToolStart(call ToolCall)
	ToolChunk(call ToolCall, chunk mcp.Element)
	ToolEnd(call ToolCall, output string)
}

// NopObserver ignores all activity.
type NopObserver struct{}

func (NopObserver) ToolStart(ToolCall)              {}
func (NopObserver) ToolChunk(ToolCall, mcp.Element) {}
func (NopObserver) ToolEnd(ToolCall, string)        {}

// Options configures an Agent.
type Options struct {
	// System is the system prompt. Empty sends none.
	System string

	// MaxRounds bounds model round trips. Zero means DefaultMaxRounds.
	MaxRounds int

	// Logger receives structured logs. Nil discards them.
	Logger *slog.Logger
}

// Agent drives one model against one tool source.
type Agent struct {
	model     ChatModel
	tools     ToolSource
	system    string
	maxRounds int
	logger    *slog.Logger
}

// New creates an agent.
func New(model ChatModel, tools ToolSource, opts Options) *Agent {
	if opts.MaxRounds <= 0 {
		opts.MaxRounds = DefaultMaxRounds
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	return &Agent{
		model:     model,
		tools:     tools,
		system:    opts.System,
		maxRounds: opts.MaxRounds,
		logger:    opts.Logger.With("component", "agent"),
	}
}

// Run answers prompt, executing any tools the model requests along the way.
// It returns the model's final text and the full transcript.
func (a *Agent) Run(ctx context.Context, prompt string, obs Observer) (string, []Message, error) {
	if obs == nil {
		obs = NopObserver{}
	}
	messages := []Message{{Role: RoleUser, Content: prompt}}
	catalog := a.tools.Catalog()

	for round := 1; round <= a.maxRounds; round++ {
		reply, err := a.model.Complete(ctx, a.system, messages, catalog)
		if err != nil {
			return "", messages, fmt.Errorf("model round %d: %w", round, err)
		}

		messages = append(messages, Message{
			Role:      RoleAssistant,
			Content:   reply.Content,
			ToolCalls: reply.ToolCalls,
		})
		if len(reply.ToolCalls) == 0 {
			return reply.Content, messages, nil
		}

		a.logger.Debug("model requested tools", "round", round, "count", len(reply.ToolCalls))

		for _, call := range reply.ToolCalls {
			result, err := a.runTool(ctx, call, obs)
			if err != nil {
				return "", messages, err
			}
			messages = append(messages, result)
		}
	}
	return "", messages, ErrMaxRounds
}

// runTool executes one call. Per-call failures become tool error messages
// the model can react to; only client-level failures are returned.
func (a *Agent) runTool(ctx context.Context, call ToolCall, obs Observer) (Message, error) {
	msg := Message{Role: RoleTool, ToolCallID: call.ID}

	args, err := parseArguments(call.Arguments)
	if err != nil {
		a.logger.Warn("invalid tool arguments", "tool", call.Name, "error", err)
		msg.Content = "Error: invalid tool arguments: " + err.Error()
		msg.IsError = true
		return msg, nil
	}

	obs.ToolStart(call)
	seq, err := a.tools.CallToolElements(ctx, call.Name, args)
	if err != nil {
		return msg, fmt.Errorf("call tool %s: %w", call.Name, err)
	}

	var out strings.Builder
	for chunk := range seq {
		obs.ToolChunk(call, chunk)
		out.WriteString(chunk.Text)
		if chunk.Failed() {
			msg.IsError = true
		}
	}
	if err := ctx.Err(); err != nil {
		return msg, err
	}

	msg.Content = out.String()
	obs.ToolEnd(call, msg.Content)
	return msg, nil
}

// parseArguments decodes the model's argument text. Blank text means no
// arguments; anything else must be a JSON object.
func parseArguments(raw string) (map[string]any, error) {
	if strings.TrimSpace(raw) == "" {
		return map[string]any{}, nil
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		return nil, err
	}
	if args == nil {
		return map[string]any{}, nil
	}
	return args, nil
}
