package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/Bigsy/mcpstream/internal/agent"
	"github.com/Bigsy/mcpstream/internal/config"
	"github.com/Bigsy/mcpstream/internal/mcp"
	"github.com/Bigsy/mcpstream/internal/theme"
)

var (
	chatProvider  string
	chatModel     string
	chatBaseURL   string
	chatSystem    string
	chatMaxRounds int
)

var chatCmd = &cobra.Command{
	Use:   "chat <prompt>",
	Short: "Ask a language model to answer using the server's tools",
	Long: `Send a prompt to a language model with the server's tools attached.

Tool calls requested by the model are executed against the MCP server and
their output is streamed to stderr while the model works. The final answer
is printed to stdout.

The API key is read from OPENAI_API_KEY or ANTHROPIC_API_KEY, or from the
variable named by llm.api_key_env in the config file.

Examples:
  mcpstream chat "summarise README.md"
  mcpstream chat --provider anthropic "what changed in the last release?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runChat,
}

func init() {
	chatCmd.Flags().StringVar(&chatProvider, "provider", "", "LLM provider: openai, anthropic (default from config)")
	chatCmd.Flags().StringVar(&chatModel, "model", "", "Model name (default from config)")
	chatCmd.Flags().StringVar(&chatBaseURL, "base-url", "", "Override the provider API base URL")
	chatCmd.Flags().StringVar(&chatSystem, "system", "", "System prompt (default from config)")
	chatCmd.Flags().IntVar(&chatMaxRounds, "max-rounds", 0, "Maximum model round trips (default from config)")

	rootCmd.AddCommand(chatCmd)
}

func runChat(cmd *cobra.Command, args []string) error {
	prompt := strings.Join(args, " ")

	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.client.Close()

	llm := s.cfg.LLM
	if chatProvider != "" {
		llm.Provider = config.Provider(chatProvider)
	}
	if chatModel != "" {
		llm.Model = chatModel
	}
	if chatBaseURL != "" {
		llm.BaseURL = chatBaseURL
	}
	if chatSystem != "" {
		llm.System = chatSystem
	}
	if chatMaxRounds > 0 {
		llm.MaxRounds = chatMaxRounds
	}

	model, err := newChatModel(llm)
	if err != nil {
		return err
	}

	a := agent.New(model, s.client, agent.Options{
		System:    llm.System,
		MaxRounds: llm.Rounds(),
		Logger:    s.logger,
	})
	answer, _, err := a.Run(ctx, prompt, &streamObserver{w: cmd.ErrOrStderr(), theme: theme.New()})
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), answer)
	return nil
}

func newChatModel(llm config.LLMConfig) (agent.ChatModel, error) {
	keyVar := llm.APIKeyVar()
	apiKey := os.Getenv(keyVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s is not set", keyVar)
	}

	switch llm.Provider {
	case config.ProviderAnthropic:
		return agent.NewAnthropicModel(apiKey, llm.BaseURL, llm.ModelName(), llm.MaxTools), nil
	case config.ProviderOpenAI, "":
		return agent.NewOpenAIModel(apiKey, llm.BaseURL, llm.ModelName(), llm.MaxTools), nil
	default:
		return nil, fmt.Errorf("unknown provider %q", llm.Provider)
	}
}

// streamObserver prints tool activity as it happens.
type streamObserver struct {
	w     io.Writer
	theme theme.Theme
}

func (o *streamObserver) ToolStart(call agent.ToolCall) {
	fmt.Fprintln(o.w, o.theme.ToolHeader(call.Name)+" "+o.theme.Faint.Render(call.Arguments))
}

func (o *streamObserver) ToolChunk(_ agent.ToolCall, chunk mcp.Element) {
	fmt.Fprintln(o.w, "  "+o.theme.Element(chunk))
}

func (o *streamObserver) ToolEnd(agent.ToolCall, string) {}
