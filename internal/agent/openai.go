package agent

import (
	"context"
	"errors"

	openai "github.com/sashabaranov/go-openai"

	"github.com/Bigsy/mcpstream/internal/mcp"
)

// OpenAIModel talks to the OpenAI chat completions API or any server
// compatible with it.
type OpenAIModel struct {
	client   *openai.Client
	model    string
	maxTools int
}

var _ ChatModel = (*OpenAIModel)(nil)

// NewOpenAIModel creates a model. baseURL overrides the API root (for
// example "http://localhost:11434/v1"); maxTools caps the tools sent per
// request, zero meaning mcp.MaxOpenAITools.
func NewOpenAIModel(apiKey, baseURL, model string, maxTools int) *OpenAIModel {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAIModel{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		maxTools: maxTools,
	}
}

func (m *OpenAIModel) Complete(ctx context.Context, system string, messages []Message, catalog *mcp.Catalog) (Reply, error) {
	req := openai.ChatCompletionRequest{
		Model:    m.model,
		Messages: toOpenAIMessages(system, messages),
	}
	if catalog != nil && catalog.Len() > 0 {
		req.Tools = catalog.OpenAITools(m.maxTools)
	}

	resp, err := m.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return Reply{}, err
	}
	if len(resp.Choices) == 0 {
		return Reply{}, errors.New("openai: response has no choices")
	}
	return fromOpenAIMessage(resp.Choices[0].Message), nil
}

func toOpenAIMessages(system string, messages []Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: system,
		})
	}
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			out = append(out, openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleUser,
				Content: msg.Content,
			})
		case RoleAssistant:
			am := openai.ChatCompletionMessage{
				Role:    openai.ChatMessageRoleAssistant,
				Content: msg.Content,
			}
			for _, tc := range msg.ToolCalls {
				am.ToolCalls = append(am.ToolCalls, openai.ToolCall{
					ID:   tc.ID,
					Type: openai.ToolTypeFunction,
					Function: openai.FunctionCall{
						Name:      tc.Name,
						Arguments: tc.Arguments,
					},
				})
			}
			out = append(out, am)
		case RoleTool:
			out = append(out, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Content,
				ToolCallID: msg.ToolCallID,
			})
		}
	}
	return out
}

func fromOpenAIMessage(msg openai.ChatCompletionMessage) Reply {
	reply := Reply{Content: msg.Content}
	for _, tc := range msg.ToolCalls {
		reply.ToolCalls = append(reply.ToolCalls, ToolCall{
			ID:        tc.ID,
			Name:      tc.Function.Name,
			Arguments: tc.Function.Arguments,
		})
	}
	return reply
}
