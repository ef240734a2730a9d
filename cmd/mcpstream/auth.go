package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/Bigsy/mcpstream/internal/config"
	"github.com/Bigsy/mcpstream/internal/credentials"
	"github.com/Bigsy/mcpstream/internal/logging"
	"github.com/Bigsy/mcpstream/internal/mcp"
	"github.com/Bigsy/mcpstream/internal/theme"
)

var (
	loginStdin bool
	loginList  bool
)

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store a credential for the configured server",
	Long: `Store a pre-issued API credential for the configured server.

The credential is saved in the system keychain, or in
~/.config/mcpstream/.credentials.json when no keychain is available
(see credential_store in the config file). It is sent in the
credential_header on every request.

Examples:
  mcpstream login
  echo "$TOKEN" | mcpstream login --stdin
  mcpstream login --list`,
	Args: cobra.NoArgs,
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored credential for the configured server",
	Long: `Remove the stored credential for the configured server and drop its
entry from the tool cache.

Examples:
  mcpstream logout`,
	Args: cobra.NoArgs,
	RunE: runLogout,
}

func init() {
	loginCmd.Flags().BoolVar(&loginStdin, "stdin", false, "Read the credential from stdin instead of prompting")
	loginCmd.Flags().BoolVar(&loginList, "list", false, "List the servers with a stored credential")
	loginCmd.MarkFlagsMutuallyExclusive("stdin", "list")

	rootCmd.AddCommand(loginCmd)
	rootCmd.AddCommand(logoutCmd)
}

// authTarget loads the config and opens its credential store.
func authTarget() (*config.Config, credentials.Store, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	store, err := credentials.NewStore(credentials.StoreMode(cfg.CredentialStore))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create credential store: %w", err)
	}
	return cfg, store, nil
}

func runLogin(cmd *cobra.Command, args []string) error {
	if loginList {
		return listLogins(cmd)
	}

	cfg, store, err := authTarget()
	if err != nil {
		return err
	}

	var secret string
	if loginStdin {
		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("failed to read credential: %w", err)
		}
		secret = strings.TrimSpace(line)
	} else {
		form := huh.NewForm(
			huh.NewGroup(
				huh.NewInput().
					Title("Credential for " + cfg.ServerURL).
					Description("Sent in the " + headerName(cfg) + " header").
					EchoMode(huh.EchoModePassword).
					Value(&secret).
					Validate(huh.ValidateNotEmpty()),
			),
		).WithTheme(theme.Form())
		err := form.Run()
		if err != nil {
			return fmt.Errorf("prompt failed: %w", err)
		}
		secret = strings.TrimSpace(secret)
	}
	if secret == "" {
		return errors.New("credential must not be empty")
	}

	if err := store.Put(cfg.ServerURL, secret); err != nil {
		return fmt.Errorf("failed to store credential: %w", err)
	}

	th := theme.New()
	fmt.Fprintf(cmd.OutOrStdout(), "%s Stored credential %s for %s\n",
		th.Success.Render("✓"), credentials.Mask(secret), cfg.ServerURL)
	return nil
}

func runLogout(cmd *cobra.Command, args []string) error {
	cfg, store, err := authTarget()
	if err != nil {
		return err
	}

	if err := store.Delete(cfg.ServerURL); err != nil {
		return fmt.Errorf("failed to remove credential: %w", err)
	}

	// A stale catalog is not worth failing the logout over
	if cache, err := config.NewToolCache(configPath); err != nil {
		logging.FromContext(cmd.Context()).Warn("tool cache unavailable", "error", err)
	} else if err := cache.Delete(cfg.ServerURL); err != nil {
		logging.FromContext(cmd.Context()).Warn("failed to drop cached tools", "error", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Logged out from %s\n", cfg.ServerURL)
	return nil
}

// listLogins prints the servers with a stored credential. The configured
// server, if any, is marked.
func listLogins(cmd *cobra.Command) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	store, err := credentials.NewStore(credentials.StoreMode(cfg.CredentialStore))
	if err != nil {
		return fmt.Errorf("failed to create credential store: %w", err)
	}
	urls, err := store.List()
	if err != nil {
		return fmt.Errorf("failed to list credentials: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(urls) == 0 {
		fmt.Fprintln(out, "No stored credentials")
		return nil
	}
	th := theme.New()
	for _, u := range urls {
		if u == cfg.ServerURL {
			fmt.Fprintf(out, "%s %s\n", th.Success.Render("*"), u)
			continue
		}
		fmt.Fprintf(out, "  %s\n", u)
	}
	return nil
}

func headerName(cfg *config.Config) string {
	if cfg.CredentialHeader != "" {
		return cfg.CredentialHeader
	}
	return mcp.DefaultCredentialHeader
}
