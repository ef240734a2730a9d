package mcp

import (
	"encoding/json"
	"sync"

	anthropic "github.com/liushuangls/go-anthropic/v2"
	openai "github.com/sashabaranov/go-openai"
	"github.com/tiktoken-go/tokenizer"
)

// MaxOpenAITools is the number of function tools OpenAI accepts per request.
const MaxOpenAITools = 128

var emptySchema = json.RawMessage(`{}`)

// FunctionSpec is a tool in the generic function-calling shape.
type FunctionSpec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Catalog holds the tool descriptors discovered for one session.
type Catalog struct {
	mu    sync.RWMutex
	tools []Tool
}

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Load replaces the descriptor list wholesale.
func (c *Catalog) Load(tools []Tool) {
	cp := make([]Tool, len(tools))
	copy(cp, tools)

	c.mu.Lock()
	c.tools = cp
	c.mu.Unlock()
}

// Tools returns a copy of the descriptors in server order.
func (c *Catalog) Tools() []Tool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	cp := make([]Tool, len(c.tools))
	copy(cp, c.tools)
	return cp
}

// Len returns the number of descriptors.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.tools)
}

// Lookup returns the descriptor with the given name.
func (c *Catalog) Lookup(name string) (Tool, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, t := range c.tools {
		if t.Name == name {
			return t, true
		}
	}
	return Tool{}, false
}

// ToExternalFormat maps every descriptor to {name, description, parameters}.
// The input schema is passed through untouched; a tool without one gets an
// empty object.
func (c *Catalog) ToExternalFormat() []FunctionSpec {
	tools := c.Tools()
	specs := make([]FunctionSpec, 0, len(tools))
	for _, t := range tools {
		specs = append(specs, FunctionSpec{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  schemaOrEmpty(t.InputSchema),
		})
	}
	return specs
}

// OpenAITools returns the catalog as OpenAI function tools, capped at limit
// (MaxOpenAITools when limit <= 0).
func (c *Catalog) OpenAITools(limit int) []openai.Tool {
	if limit <= 0 || limit > MaxOpenAITools {
		limit = MaxOpenAITools
	}
	specs := capSpecs(c.ToExternalFormat(), limit)
	tools := make([]openai.Tool, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        s.Name,
				Description: s.Description,
				Parameters:  s.Parameters,
			},
		})
	}
	return tools
}

// AnthropicTools returns the catalog as Anthropic tool definitions, capped
// at limit when limit > 0.
func (c *Catalog) AnthropicTools(limit int) []anthropic.ToolDefinition {
	specs := capSpecs(c.ToExternalFormat(), limit)
	tools := make([]anthropic.ToolDefinition, 0, len(specs))
	for _, s := range specs {
		tools = append(tools, anthropic.ToolDefinition{
			Name:        s.Name,
			Description: s.Description,
			InputSchema: s.Parameters,
		})
	}
	return tools
}

// TokenCounts returns the estimated prompt tokens each tool definition costs,
// keyed by tool name.
func (c *Catalog) TokenCounts() map[string]int {
	tools := c.Tools()
	counts := make(map[string]int, len(tools))
	for _, t := range tools {
		counts[t.Name] = CountToolTokens(t)
	}
	return counts
}

var cl100k = sync.OnceValues(func() (tokenizer.Codec, error) {
	return tokenizer.Get(tokenizer.Cl100kBase)
})

// CountToolTokens counts cl100k tokens for a tool's name, description and
// schema. It falls back to a length/4 estimate if the codec is unavailable.
func CountToolTokens(t Tool) int {
	codec, err := cl100k()
	if err != nil {
		return (len(t.Name) + len(t.Description) + len(t.InputSchema)) / 4
	}
	total := countOrZero(codec, t.Name)
	total += countOrZero(codec, t.Description)
	if len(t.InputSchema) > 0 {
		total += countOrZero(codec, string(t.InputSchema))
	}
	return total
}

func countOrZero(codec tokenizer.Codec, text string) int {
	if text == "" {
		return 0
	}
	tokens, _, err := codec.Encode(text)
	if err != nil {
		return len(text) / 4
	}
	return len(tokens)
}

func schemaOrEmpty(schema json.RawMessage) json.RawMessage {
	if len(schema) == 0 {
		return emptySchema
	}
	return schema
}

func capSpecs(specs []FunctionSpec, limit int) []FunctionSpec {
	if limit > 0 && len(specs) > limit {
		return specs[:limit]
	}
	return specs
}
