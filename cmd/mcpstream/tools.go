package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/Bigsy/mcpstream/internal/config"
	"github.com/Bigsy/mcpstream/internal/mcp"
	"github.com/Bigsy/mcpstream/internal/theme"
)

var (
	toolsCached bool
	toolsFormat string
	toolsLimit  int
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List the tools a server exposes",
	Long: `Connect to the configured server and list its tools.

Formats:
  table      name, estimated prompt tokens and description (default)
  json       generic {name, description, parameters} list
  openai     OpenAI function-calling tool definitions
  anthropic  Anthropic tool definitions

Every live listing refreshes the local tool cache; --cached answers from
that cache without contacting the server. With no server configured,
--cached lists the servers in the cache.

Examples:
  mcpstream tools
  mcpstream tools --format openai
  mcpstream tools --cached`,
	Args: cobra.NoArgs,
	RunE: runTools,
}

func init() {
	toolsCmd.Flags().BoolVar(&toolsCached, "cached", false, "Read tools from the local cache instead of the server")
	toolsCmd.Flags().StringVarP(&toolsFormat, "format", "f", "table", "Output format: table, json, openai, anthropic")
	toolsCmd.Flags().IntVar(&toolsLimit, "limit", 0, "Maximum tools in openai/anthropic output (0 = provider default)")

	rootCmd.AddCommand(toolsCmd)
}

func runTools(cmd *cobra.Command, args []string) error {
	switch toolsFormat {
	case "table", "json", "openai", "anthropic":
	default:
		return fmt.Errorf("unknown format %q", toolsFormat)
	}

	var (
		catalog *mcp.Catalog
		counts  map[string]int
		err     error
	)
	if toolsCached {
		cfg, lerr := loadConfig()
		if lerr != nil {
			return lerr
		}
		if cfg.ServerURL == "" {
			return listCachedServers(cmd.OutOrStdout())
		}
		catalog, counts, err = cachedCatalog(cfg.ServerURL)
	} else {
		catalog, counts, err = liveCatalog(cmd)
	}
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	switch toolsFormat {
	case "json":
		return writeJSON(out, catalog.ToExternalFormat())
	case "openai":
		return writeJSON(out, catalog.OpenAITools(toolsLimit))
	case "anthropic":
		return writeJSON(out, catalog.AnthropicTools(toolsLimit))
	}

	fmt.Fprint(out, toolsTable(catalog.Tools(), counts))
	return nil
}

// liveCatalog connects, lists tools and refreshes the cache.
func liveCatalog(cmd *cobra.Command) (*mcp.Catalog, map[string]int, error) {
	ctx, cancel := signalContext(cmd)
	defer cancel()

	s, err := connect(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer s.client.Close()

	catalog := s.client.Catalog()
	counts := catalog.TokenCounts()

	cache, err := config.NewToolCache(configPath)
	if err != nil {
		s.logger.Warn("tool cache unavailable", "error", err)
		return catalog, counts, nil
	}
	cached := make([]config.CachedTool, 0, catalog.Len())
	for _, t := range catalog.Tools() {
		cached = append(cached, config.CachedTool{
			Name:        t.Name,
			Description: t.Description,
			InputSchema: t.InputSchema,
			TokenCount:  counts[t.Name],
		})
	}
	if err := cache.Update(s.cfg.ServerURL, s.client.ServerInfo().Name, cached); err != nil {
		s.logger.Warn("failed to update tool cache", "error", err)
	}
	return catalog, counts, nil
}

// cachedCatalog rebuilds a catalog from the tool cache.
func cachedCatalog(serverURL string) (*mcp.Catalog, map[string]int, error) {
	cache, err := config.NewToolCache(configPath)
	if err != nil {
		return nil, nil, err
	}
	entry, ok := cache.Get(serverURL)
	if !ok {
		return nil, nil, fmt.Errorf("no cached tools for %s (run 'mcpstream tools' first)", serverURL)
	}

	tools := make([]mcp.Tool, 0, len(entry.Tools))
	counts := make(map[string]int, len(entry.Tools))
	for _, t := range entry.Tools {
		tools = append(tools, mcp.Tool{Name: t.Name, Description: t.Description, InputSchema: t.InputSchema})
		counts[t.Name] = t.TokenCount
	}
	catalog := mcp.NewCatalog()
	catalog.Load(tools)
	return catalog, counts, nil
}

// listCachedServers prints every server in the tool cache. It answers
// --cached when no server is configured.
func listCachedServers(out io.Writer) error {
	cache, err := config.NewToolCache(configPath)
	if err != nil {
		return err
	}
	urls := cache.Servers()
	if len(urls) == 0 {
		return fmt.Errorf("no cached servers (set server_url or %s and run 'mcpstream tools')", config.EnvServerURL)
	}

	if toolsFormat == "json" {
		type cachedServer struct {
			URL       string    `json:"url"`
			Name      string    `json:"name,omitempty"`
			Tools     int       `json:"tools"`
			Tokens    int       `json:"tokens"`
			UpdatedAt time.Time `json:"updatedAt"`
		}
		list := make([]cachedServer, 0, len(urls))
		for _, u := range urls {
			entry, _ := cache.Get(u)
			list = append(list, cachedServer{
				URL:       u,
				Name:      entry.ServerName,
				Tools:     len(entry.Tools),
				Tokens:    entry.TotalTokens(),
				UpdatedAt: entry.UpdatedAt,
			})
		}
		return writeJSON(out, list)
	}

	th := theme.New()
	for _, u := range urls {
		entry, _ := cache.Get(u)
		fmt.Fprintf(out, "%s  %d tools, ~%d tokens  %s\n",
			u, len(entry.Tools), entry.TotalTokens(),
			th.Muted.Render("updated "+entry.UpdatedAt.Local().Format(time.DateTime)))
	}
	return nil
}

func toolsTable(tools []mcp.Tool, counts map[string]int) string {
	if len(tools) == 0 {
		return "No tools available\n"
	}

	// Calculate column widths
	nameWidth := 4 // "NAME"
	for _, t := range tools {
		if len(t.Name) > nameWidth {
			nameWidth = len(t.Name)
		}
	}

	th := theme.New()
	var b strings.Builder
	total := 0
	fmt.Fprintf(&b, "%-*s  %6s  %s\n", nameWidth, "NAME", "TOKENS", "DESCRIPTION")
	for _, t := range tools {
		desc := firstLine(t.Description)
		if len(desc) > 60 {
			desc = desc[:57] + "..."
		}
		total += counts[t.Name]
		fmt.Fprintf(&b, "%-*s  %6d  %s\n", nameWidth, t.Name, counts[t.Name], th.Muted.Render(desc))
	}
	fmt.Fprintf(&b, "\n%d tools, ~%d tokens\n", len(tools), total)
	return b.String()
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func writeJSON(w io.Writer, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
