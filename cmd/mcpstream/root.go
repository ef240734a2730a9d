package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Bigsy/mcpstream/internal/config"
	"github.com/Bigsy/mcpstream/internal/credentials"
	"github.com/Bigsy/mcpstream/internal/logging"
	"github.com/Bigsy/mcpstream/internal/mcp"
)

// Version information (set at build time via ldflags)
var (
	version = "dev"
	commit  = "unknown"
)

var (
	configPath string
	logLevel   string
	logFormat  string
)

var rootCmd = &cobra.Command{
	Use:   "mcpstream",
	Short: "Streaming MCP tool client",
	Long: `mcpstream talks to a remote MCP server over streamable HTTP.

It performs the initialize handshake, lists the server's tools and calls
them, printing progress updates as they stream in.

The server is read from ~/.config/mcpstream/config.yaml (server_url) or
the MCPSTREAM_SERVER_URL environment variable.`,
	Version: fmt.Sprintf("%s (commit: %s)", version, commit),
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		cmd.SetContext(logging.WithContext(cmd.Context(), logger))
		return nil
	},
}

func init() {
	// Disable automatic completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	// Suppress errors from being printed twice
	rootCmd.SilenceErrors = true
	rootCmd.SilenceUsage = true

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file (default: ~/.config/mcpstream/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error (default: $"+config.EnvLogLevel+" or warn)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "dev", "Log format: dev, text, json")
}

func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig loads the config selected by --config.
func loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if configPath != "" {
		cfg, err = config.LoadFrom(configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the stderr logger from --log-level and --log-format.
func newLogger() (*slog.Logger, error) {
	lvlName := logLevel
	if lvlName == "" {
		lvlName = os.Getenv(config.EnvLogLevel)
	}
	lvl, err := logging.ParseLevel(lvlName)
	if err != nil {
		return nil, err
	}
	handler, err := logging.ParseHandler(logFormat)
	if err != nil {
		return nil, err
	}
	return logging.New(logging.WithLevel(lvl), logging.WithHandler(handler)), nil
}

// signalContext returns a child of the command context that is also
// cancelled on SIGINT or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
}

// session bundles what every server-facing command needs.
type session struct {
	cfg    *config.Config
	client *mcp.Client
	logger *slog.Logger
}

// openClient validates the config, resolves the credential and creates a
// client. No network I/O happens here.
func openClient(ctx context.Context) (*session, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := logging.FromContext(ctx)

	// A broken keyring should not block servers that need no credential
	store, err := credentials.NewStore(credentials.StoreMode(cfg.CredentialStore))
	if err != nil {
		logger.Warn("credential store unavailable", "error", err)
		store = nil
	}
	credential, source, err := credentials.Resolve(cfg.ServerURL, cfg.CredentialEnv, store)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credential: %w", err)
	}
	logger.Debug("credential resolved", "source", source)

	client, err := mcp.New(mcp.Config{
		URL:              cfg.ServerURL,
		Credential:       credential,
		CredentialHeader: cfg.CredentialHeader,
		SessionHeader:    cfg.SessionHeader,
		Headers:          cfg.Headers,
		ClientName:       cfg.ClientName,
		ClientVersion:    cfg.ClientVersion,
		ProtocolVersion:  cfg.ProtocolVersion,
		InitTimeout:      cfg.InitTimeout.Duration,
		ReadTimeout:      cfg.ReadTimeout.Duration,
		StrictFrames:     cfg.StrictFrames,
		Logger:           logger,
	})
	if err != nil {
		return nil, err
	}
	return &session{cfg: cfg, client: client, logger: logger}, nil
}

// connect opens a client and performs the handshake.
func connect(ctx context.Context) (*session, error) {
	s, err := openClient(ctx)
	if err != nil {
		return nil, err
	}
	if err := s.client.Initialize(ctx); err != nil {
		_ = s.client.Close()
		return nil, fmt.Errorf("failed to connect to %s: %w", s.cfg.ServerURL, err)
	}
	s.logger.Info("connected",
		"server", s.client.ServerInfo().Name,
		"protocol", s.client.ProtocolVersion(),
		"tools", s.client.Catalog().Len())
	return s, nil
}
