package agent

import (
	"context"
	"encoding/json"

	anthropic "github.com/liushuangls/go-anthropic/v2"

	"github.com/Bigsy/mcpstream/internal/mcp"
)

// DefaultAnthropicMaxTokens bounds each Anthropic response.
const DefaultAnthropicMaxTokens = 4096

type messagesCreator interface {
	CreateMessages(ctx context.Context, request anthropic.MessagesRequest) (anthropic.MessagesResponse, error)
}

// AnthropicModel talks to the Anthropic messages API.
type AnthropicModel struct {
	client    messagesCreator
	model     anthropic.Model
	maxTools  int
	maxTokens int
}

var _ ChatModel = (*AnthropicModel)(nil)

// NewAnthropicModel creates a model. baseURL overrides the API root;
// maxTools caps the tools sent per request when positive.
func NewAnthropicModel(apiKey, baseURL, model string, maxTools int) *AnthropicModel {
	var opts []anthropic.ClientOption
	if baseURL != "" {
		opts = append(opts, anthropic.WithBaseURL(baseURL))
	}
	return &AnthropicModel{
		client:    anthropic.NewClient(apiKey, opts...),
		model:     anthropic.Model(model),
		maxTools:  maxTools,
		maxTokens: DefaultAnthropicMaxTokens,
	}
}

func (m *AnthropicModel) Complete(ctx context.Context, system string, messages []Message, catalog *mcp.Catalog) (Reply, error) {
	req := anthropic.MessagesRequest{
		Model:     m.model,
		System:    system,
		Messages:  toAnthropicMessages(messages),
		MaxTokens: m.maxTokens,
	}
	if catalog != nil && catalog.Len() > 0 {
		req.Tools = catalog.AnthropicTools(m.maxTools)
	}

	resp, err := m.client.CreateMessages(ctx, req)
	if err != nil {
		return Reply{}, err
	}
	return fromAnthropicResponse(resp), nil
}

// toAnthropicMessages converts the transcript. Consecutive tool results
// are merged into a single user message, which the API requires after an
// assistant turn with several tool_use blocks.
func toAnthropicMessages(messages []Message) []anthropic.Message {
	out := make([]anthropic.Message, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			out = append(out, anthropic.NewUserTextMessage(msg.Content))
		case RoleAssistant:
			am := anthropic.Message{Role: anthropic.RoleAssistant}
			if msg.Content != "" {
				am.Content = append(am.Content, anthropic.NewTextMessageContent(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				am.Content = append(am.Content, anthropic.NewToolUseMessageContent(tc.ID, tc.Name, toolInput(tc.Arguments)))
			}
			out = append(out, am)
		case RoleTool:
			block := anthropic.NewToolResultMessageContent(msg.ToolCallID, msg.Content, msg.IsError)
			if n := len(out); n > 0 && isToolResultMessage(out[n-1]) {
				out[n-1].Content = append(out[n-1].Content, block)
				continue
			}
			out = append(out, anthropic.Message{
				Role:    anthropic.RoleUser,
				Content: []anthropic.MessageContent{block},
			})
		}
	}
	return out
}

func isToolResultMessage(m anthropic.Message) bool {
	if m.Role != anthropic.RoleUser || len(m.Content) == 0 {
		return false
	}
	for _, c := range m.Content {
		if c.Type != anthropic.MessagesContentTypeToolResult {
			return false
		}
	}
	return true
}

// toolInput returns the arguments as a JSON object, falling back to {} when
// the model produced something unparseable.
func toolInput(args string) json.RawMessage {
	if json.Valid([]byte(args)) && len(args) > 0 && args[0] == '{' {
		return json.RawMessage(args)
	}
	return json.RawMessage(`{}`)
}

func fromAnthropicResponse(resp anthropic.MessagesResponse) Reply {
	var reply Reply
	for _, c := range resp.Content {
		switch c.Type {
		case anthropic.MessagesContentTypeText:
			reply.Content += c.GetText()
		case anthropic.MessagesContentTypeToolUse:
			use := c.MessageContentToolUse
			if use == nil {
				continue
			}
			args := string(use.Input)
			if args == "" {
				args = "{}"
			}
			reply.ToolCalls = append(reply.ToolCalls, ToolCall{
				ID:        use.ID,
				Name:      use.Name,
				Arguments: args,
			})
		}
	}
	return reply
}
