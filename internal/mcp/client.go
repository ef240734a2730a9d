package mcp

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/Bigsy/mcpstream/internal/logging"
)

// Config configures a Client.
type Config struct {
	// URL is the MCP endpoint (e.g., "https://mcp.example.com/mcp").
	URL string

	// Credential is the pre-issued API credential (optional).
	Credential string

	// CredentialHeader names the header carrying Credential. The default,
	// Authorization, sends "Bearer <credential>".
	CredentialHeader string

	// SessionHeader names the header carrying the session id.
	SessionHeader string

	// Headers are static headers to include in all requests.
	Headers map[string]string

	// ClientName, ClientVersion and ProtocolVersion are sent in the handshake.
	ClientName      string
	ClientVersion   string
	ProtocolVersion string

	// InitTimeout bounds the handshake. ReadTimeout bounds each read of a
	// streamed tool response.
	InitTimeout time.Duration
	ReadTimeout time.Duration

	// StrictFrames reports undecodable data lines as tool errors instead of
	// dropping them.
	StrictFrames bool

	// MaxLineSize bounds a single SSE line. Zero means MaxSSELineSize.
	MaxLineSize int

	// HTTPClient is the HTTP client to use. If nil, a client derived from
	// http.DefaultTransport is used. Its Timeout is ignored.
	HTTPClient *http.Client

	// Logger receives structured logs. Nil discards them.
	Logger *slog.Logger
}

func (c Config) withDefaults() Config {
	if c.CredentialHeader == "" {
		c.CredentialHeader = DefaultCredentialHeader
	}
	if c.SessionHeader == "" {
		c.SessionHeader = DefaultSessionHeader
	}
	if c.ClientName == "" {
		c.ClientName = DefaultClientName
	}
	if c.ClientVersion == "" {
		c.ClientVersion = DefaultClientVersion
	}
	if c.ProtocolVersion == "" {
		c.ProtocolVersion = DefaultProtocolVersion
	}
	if c.InitTimeout <= 0 {
		c.InitTimeout = DefaultInitTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = DefaultReadTimeout
	}
	if c.Logger == nil {
		c.Logger = logging.Discard()
	}
	return c
}

// Client composes the session, catalog and invoker. It owns the session id,
// the initialized flag and the tool cache; nothing is shared between
// clients. One tool call may stream at a time per Client.
type Client struct {
	cfg       Config
	transport *httpTransport
	catalog   *Catalog
	session   *SessionManager
	invoker   *Invoker
	ids       atomic.Int64
	closed    atomic.Bool
}

var _ ToolClient = (*Client)(nil)

// New creates a client. No network I/O happens until Initialize.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("mcp: server URL is required")
	}
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("mcp: parse server URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, errors.New("mcp: server URL must be http or https")
	}

	cfg = cfg.withDefaults()
	logger := cfg.Logger.With("component", "mcp", "server", u.Host)

	c := &Client{
		cfg:     cfg,
		catalog: NewCatalog(),
	}
	c.transport = newHTTPTransport(cfg, logger)
	c.session = newSessionManager(cfg, c.transport, c.catalog, &c.ids, logger)
	c.invoker = newInvoker(cfg, c.transport, &c.ids, logger)
	return c, nil
}

// Initialize performs the handshake and loads the tool catalog. It is
// idempotent: once it has succeeded later calls return nil without network
// I/O.
func (c *Client) Initialize(ctx context.Context) error {
	if c.closed.Load() {
		return errors.New("client closed")
	}
	return c.session.Initialize(ctx)
}

// ListTools returns the tool descriptors discovered during Initialize.
func (c *Client) ListTools() ([]Tool, error) {
	if !c.session.Initialized() {
		return nil, ErrNotInitialized
	}
	return c.catalog.Tools(), nil
}

// Catalog returns the tool catalog. It is empty until Initialize succeeds.
func (c *Client) Catalog() *Catalog {
	return c.catalog
}

// CallToolStreaming invokes a tool and returns the lazy element sequence.
// It fails with ErrNotInitialized, before any network I/O, if Initialize
// has not succeeded.
func (c *Client) CallToolStreaming(ctx context.Context, name string, arguments any) (iter.Seq[string], error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.invoker.InvokeStreaming(ctx, name, arguments), nil
}

// CallToolElements is CallToolStreaming with each element's kind attached,
// for callers that must tell failures from output.
func (c *Client) CallToolElements(ctx context.Context, name string, arguments any) (iter.Seq[Element], error) {
	if err := c.ready(); err != nil {
		return nil, err
	}
	return c.invoker.InvokeElements(ctx, name, arguments), nil
}

// CallTool invokes a tool and returns the concatenation of every element
// CallToolStreaming would yield.
func (c *Client) CallTool(ctx context.Context, name string, arguments any) (string, error) {
	if err := c.ready(); err != nil {
		return "", err
	}
	return c.invoker.Invoke(ctx, name, arguments), nil
}

// SessionID returns the server-assigned session id, or "" for stateless servers.
func (c *Client) SessionID() string {
	return c.transport.SessionID()
}

// ServerInfo returns information about the connected server.
func (c *Client) ServerInfo() ServerInfo {
	return c.session.ServerInfo()
}

// ProtocolVersion returns the negotiated protocol version.
func (c *Client) ProtocolVersion() string {
	return c.session.ProtocolVersion()
}

// URL returns the endpoint the client talks to.
func (c *Client) URL() string {
	return c.cfg.URL
}

// Close releases idle connections. Streams still being consumed keep their
// own connection until they finish.
func (c *Client) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return nil
	}
	c.transport.close()
	return nil
}

func (c *Client) ready() error {
	if c.closed.Load() {
		return errors.New("client closed")
	}
	if !c.session.Initialized() {
		return ErrNotInitialized
	}
	return nil
}
