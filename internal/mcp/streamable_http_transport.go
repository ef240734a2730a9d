package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

const (
	// DefaultConnectTimeout bounds dialing, TLS and waiting for response headers.
	DefaultConnectTimeout = 30 * time.Second

	// DefaultReadTimeout bounds each read of a streamed tool response.
	DefaultReadTimeout = 60 * time.Second
)

// httpTransport posts JSON-RPC messages to a single endpoint and remembers
// the session id once the server has assigned one.
type httpTransport struct {
	url              string
	credential       string
	credentialHeader string
	sessionHeader    string
	headers          map[string]string
	client           *http.Client
	logger           *slog.Logger

	mu        sync.RWMutex
	sessionID string
}

func newHTTPTransport(cfg Config, logger *slog.Logger) *httpTransport {
	return &httpTransport{
		url:              cfg.URL,
		credential:       cfg.Credential,
		credentialHeader: cfg.CredentialHeader,
		sessionHeader:    cfg.SessionHeader,
		headers:          cfg.Headers,
		client:           cloneHTTPClient(cfg.HTTPClient),
		logger:           logger,
	}
}

// post sends msg and returns the response with its body unread. The caller
// owns the body. Only transport failures are returned as errors; status
// handling is left to the caller.
func (t *httpTransport) post(ctx context.Context, method string, msg any) (*http.Response, error) {
	data, err := json.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("marshal %s: %w", method, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.url, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	t.setCommonHeaders(req)

	t.logger.Debug("mcp send", "method", method, "payload", string(data))

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method, Err: err}
	}
	t.logger.Debug("mcp response",
		"method", method,
		"status", resp.StatusCode,
		"content_type", resp.Header.Get("Content-Type"))
	return resp, nil
}

// setCommonHeaders sets headers common to all requests.
func (t *httpTransport) setCommonHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json, text/event-stream")

	if t.credential != "" {
		if strings.EqualFold(t.credentialHeader, DefaultCredentialHeader) && !strings.Contains(t.credential, " ") {
			req.Header.Set(t.credentialHeader, "Bearer "+t.credential)
		} else {
			req.Header.Set(t.credentialHeader, t.credential)
		}
	}

	if sid := t.SessionID(); sid != "" {
		req.Header.Set(t.sessionHeader, sid)
	}

	// Custom headers
	for k, v := range t.headers {
		req.Header.Set(k, v)
	}
}

// captureSession stores the session id from resp if none is set yet.
// Once observed the id never changes for the lifetime of the transport.
func (t *httpTransport) captureSession(resp *http.Response) {
	sid := resp.Header.Get(t.sessionHeader)
	if sid == "" {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID == "" {
		t.sessionID = sid
	}
}

// resetSession forgets a session id captured by a handshake that did not
// complete.
func (t *httpTransport) resetSession() {
	t.mu.Lock()
	t.sessionID = ""
	t.mu.Unlock()
}

// SessionID returns the current session id, if any.
func (t *httpTransport) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

func (t *httpTransport) close() {
	t.client.CloseIdleConnections()
}

// readBody returns at most limit bytes of body for error messages.
func readBody(body io.Reader, limit int64) string {
	data, _ := io.ReadAll(io.LimitReader(body, limit))
	return strings.TrimSpace(string(data))
}

// deadlineBody arms a timer around every Read. If the server stays silent
// past the timeout the request context is cancelled, which unblocks the
// pending read with an error.
type deadlineBody struct {
	rc      io.ReadCloser
	timeout time.Duration
	timer   *time.Timer
	expired atomic.Bool
}

func newDeadlineBody(rc io.ReadCloser, timeout time.Duration, cancel context.CancelFunc) *deadlineBody {
	b := &deadlineBody{rc: rc, timeout: timeout}
	b.timer = time.AfterFunc(timeout, func() {
		b.expired.Store(true)
		cancel()
	})
	b.timer.Stop()
	return b
}

func (b *deadlineBody) Read(p []byte) (int, error) {
	b.timer.Reset(b.timeout)
	n, err := b.rc.Read(p)
	b.timer.Stop()
	if err != nil && !errors.Is(err, io.EOF) && b.expired.Load() {
		err = fmt.Errorf("%w: no data for %s", ErrReadTimeout, b.timeout)
	}
	return n, err
}

func (b *deadlineBody) Close() error {
	b.timer.Stop()
	return b.rc.Close()
}

func cloneHTTPClient(base *http.Client) *http.Client {
	c := &http.Client{}
	if base != nil {
		*c = *base
	}
	// Streamed tool responses are bounded per read, not by a whole-request deadline.
	c.Timeout = 0

	if c.Transport == nil {
		c.Transport = defaultHTTPTransport()
		return c
	}
	if t, ok := c.Transport.(*http.Transport); ok {
		tt := t.Clone()
		if tt.ResponseHeaderTimeout == 0 {
			tt.ResponseHeaderTimeout = DefaultConnectTimeout
		}
		if tt.TLSHandshakeTimeout == 0 {
			tt.TLSHandshakeTimeout = DefaultConnectTimeout
		}
		if tt.DialContext == nil {
			tt.DialContext = (&net.Dialer{
				Timeout:   DefaultConnectTimeout,
				KeepAlive: 30 * time.Second,
			}).DialContext
		}
		c.Transport = tt
	}
	return c
}

func defaultHTTPTransport() *http.Transport {
	if dt, ok := http.DefaultTransport.(*http.Transport); ok {
		t := dt.Clone()
		t.ResponseHeaderTimeout = DefaultConnectTimeout
		if t.TLSHandshakeTimeout == 0 {
			t.TLSHandshakeTimeout = DefaultConnectTimeout
		}
		return t
	}
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   DefaultConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   DefaultConnectTimeout,
		ExpectContinueTimeout: 1 * time.Second,
		ResponseHeaderTimeout: DefaultConnectTimeout,
	}
}
