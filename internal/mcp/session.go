package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInitTimeout bounds the whole handshake (initialize, notification
// and tools/list).
const DefaultInitTimeout = 30 * time.Second

// SessionManager owns the handshake and the state it produces. Initialize
// runs the network handshake at most once successfully; a failed attempt
// leaves the session uninitialized so it can be retried.
type SessionManager struct {
	transport *httpTransport
	catalog   *Catalog
	ids       *atomic.Int64
	logger    *slog.Logger

	protocolVersion string
	clientName      string
	clientVersion   string
	initTimeout     time.Duration
	strict          bool

	mu          sync.Mutex
	initialized atomic.Bool

	// Written under mu before initialized is set, read-only afterwards.
	serverInfo        ServerInfo
	negotiatedVersion string
}

func newSessionManager(cfg Config, t *httpTransport, catalog *Catalog, ids *atomic.Int64, logger *slog.Logger) *SessionManager {
	return &SessionManager{
		transport:       t,
		catalog:         catalog,
		ids:             ids,
		logger:          logger,
		protocolVersion: cfg.ProtocolVersion,
		clientName:      cfg.ClientName,
		clientVersion:   cfg.ClientVersion,
		initTimeout:     cfg.InitTimeout,
		strict:          cfg.StrictFrames,
	}
}

// Initialized reports whether a handshake has completed.
func (s *SessionManager) Initialized() bool {
	return s.initialized.Load()
}

// Initialize performs the handshake: initialize, notifications/initialized
// and tools/list. It returns immediately if the session is already
// initialized.
func (s *SessionManager) Initialize(ctx context.Context) (err error) {
	if s.initialized.Load() {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.initialized.Load() {
		return nil
	}

	defer func() {
		if err != nil {
			s.transport.resetSession()
			s.logger.Warn("mcp initialize failed", "error", err)
		}
	}()

	if s.initTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.initTimeout)
		defer cancel()
	}

	params := initializeParams{
		ProtocolVersion: s.protocolVersion,
		Capabilities:    map[string]any{"tools": map[string]any{}},
		ClientInfo: clientInfo{
			Name:    s.clientName,
			Version: s.clientVersion,
		},
	}

	var result initializeResult
	resp, err := s.call(ctx, "initialize", params, &result)
	if err != nil {
		return err
	}
	s.transport.captureSession(resp)

	if err := s.notify(ctx, "notifications/initialized"); err != nil {
		return err
	}

	var tools toolsListResult
	if _, err := s.call(ctx, "tools/list", map[string]any{}, &tools); err != nil {
		return err
	}
	s.catalog.Load(tools.Tools)

	s.serverInfo = result.ServerInfo
	s.negotiatedVersion = result.ProtocolVersion
	if s.negotiatedVersion == "" {
		s.negotiatedVersion = s.protocolVersion
	}
	s.initialized.Store(true)

	s.logger.Info("mcp session initialized",
		"server", s.serverInfo.Name,
		"server_version", s.serverInfo.Version,
		"protocol_version", s.negotiatedVersion,
		"stateless", s.transport.SessionID() == "",
		"tools", len(tools.Tools))
	return nil
}

// ServerInfo returns the server identity from the handshake.
func (s *SessionManager) ServerInfo() ServerInfo {
	if !s.initialized.Load() {
		return ServerInfo{}
	}
	return s.serverInfo
}

// ProtocolVersion returns the protocol version the server answered with.
func (s *SessionManager) ProtocolVersion() string {
	if !s.initialized.Load() {
		return ""
	}
	return s.negotiatedVersion
}

// call posts a request and decodes its response into result. Any status
// other than 200, an undecodable body or a JSON-RPC error object is a
// *ProtocolError. The response is returned with its body closed so that
// callers can read headers.
func (s *SessionManager) call(ctx context.Context, method string, params any, result any) (*http.Response, error) {
	id := s.ids.Add(1)

	resp, err := s.transport.post(ctx, method, newRequest(id, method, params))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &ProtocolError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Body:       readBody(resp.Body, 1024),
		}
	}

	env, err := DecodeResponse(resp.Body, id, s.strict)
	if err != nil {
		return nil, &ProtocolError{Method: method, Err: err}
	}
	s.logger.Debug("mcp recv", "method", method, "result", string(env.Result), "error", string(env.Error))

	if rpcErr := env.RPCError(); rpcErr != nil {
		return nil, &ProtocolError{Method: method, Err: rpcErr}
	}
	if result != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, result); err != nil {
			return nil, &ProtocolError{Method: method, Err: fmt.Errorf("unmarshal result: %w", err)}
		}
	}
	return resp, nil
}

// notify sends a notification. The response status and body are ignored;
// only transport failures are reported.
func (s *SessionManager) notify(ctx context.Context, method string) error {
	resp, err := s.transport.post(ctx, method, newNotification(method, nil))
	if err != nil {
		return err
	}
	_ = resp.Body.Close()
	return nil
}
