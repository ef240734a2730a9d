package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Bigsy/mcpstream/internal/theme"
)

var (
	callArgs  string
	callPlain bool
)

var callCmd = &cobra.Command{
	Use:   "call <tool>",
	Short: "Call a tool and stream its output",
	Long: `Call a tool on the configured server.

Progress updates are printed as they arrive, followed by the result.
Arguments are given as a JSON object.

Examples:
  mcpstream call list_files
  mcpstream call read_file --args '{"path": "README.md"}'`,
	Args: cobra.ExactArgs(1),
	RunE: runCall,
}

func init() {
	callCmd.Flags().StringVarP(&callArgs, "args", "a", "", "Tool arguments as a JSON object")
	callCmd.Flags().BoolVar(&callPlain, "plain", false, "Print elements without styling")

	rootCmd.AddCommand(callCmd)
}

func runCall(cmd *cobra.Command, args []string) error {
	toolName := args[0]

	arguments := map[string]any{}
	if callArgs != "" {
		if err := json.Unmarshal([]byte(callArgs), &arguments); err != nil {
			return fmt.Errorf("invalid --args (expected a JSON object): %w", err)
		}
		// "null" decodes to a nil map
		if arguments == nil {
			arguments = map[string]any{}
		}
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return err
	}
	defer s.client.Close()

	if _, ok := s.client.Catalog().Lookup(toolName); !ok {
		s.logger.Warn("tool not in catalog, calling anyway", "tool", toolName)
	}

	seq, err := s.client.CallToolElements(ctx, toolName, arguments)
	if err != nil {
		return err
	}

	th := theme.New()
	out := cmd.OutOrStdout()
	failed := false
	for element := range seq {
		if element.Failed() {
			failed = true
		}
		if callPlain {
			fmt.Fprintln(out, element.Text)
			continue
		}
		fmt.Fprintln(out, th.Element(element))
	}

	if failed {
		return errors.New("tool call failed")
	}
	return nil
}
