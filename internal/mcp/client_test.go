package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"iter"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Bigsy/mcpstream/internal/mcptest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, url string, mutate ...func(*Config)) *Client {
	t.Helper()
	cfg := Config{URL: url, ReadTimeout: 5 * time.Second, InitTimeout: 5 * time.Second}
	for _, m := range mutate {
		m(&cfg)
	}
	c, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func initializedClient(t *testing.T, cfg mcptest.FakeServerConfig, mutate ...func(*Config)) (*Client, *mcptest.FakeServer) {
	t.Helper()
	srv := mcptest.StartFakeServer(t, cfg)
	c := newTestClient(t, srv.URL(), mutate...)
	require.NoError(t, c.Initialize(context.Background()))
	return c, srv
}

func collect(seq iter.Seq[string]) []string {
	var out []string
	for s := range seq {
		out = append(out, s)
	}
	return out
}

func TestNew_RejectsBadURL(t *testing.T) {
	for _, u := range []string{"", "ftp://example.com/mcp", "::not a url"} {
		_, err := New(Config{URL: u})
		assert.Error(t, err, "url %q", u)
	}
}

func TestClient_InitializeDiscoversTools(t *testing.T) {
	c, _ := initializedClient(t, mcptest.DefaultConfig())

	tools, err := c.ListTools()
	require.NoError(t, err)
	require.Len(t, tools, 2)
	assert.Equal(t, "read_file", tools[0].Name)
	assert.Equal(t, "write_file", tools[1].Name)
	assert.JSONEq(t, `{"type":"object","properties":{"path":{"type":"string"}},"required":["path"]}`, string(tools[0].InputSchema))

	assert.Equal(t, "fake-server", c.ServerInfo().Name)
	assert.Equal(t, DefaultProtocolVersion, c.ProtocolVersion())
	assert.Equal(t, 2, c.Catalog().Len())
}

func TestClient_HandshakeMessages(t *testing.T) {
	_, srv := initializedClient(t, mcptest.DefaultConfig())

	reqs := srv.Requests()
	require.Len(t, reqs, 3)
	assert.Equal(t, "initialize", reqs[0].Method)
	assert.Equal(t, "notifications/initialized", reqs[1].Method)
	assert.Empty(t, reqs[1].ID)
	assert.Equal(t, "tools/list", reqs[2].Method)

	assert.JSONEq(t, `{
		"protocolVersion": "2024-11-05",
		"capabilities": {"tools": {}},
		"clientInfo": {"name": "mcpstream", "version": "0.1.0"}
	}`, string(reqs[0].Params))
	assert.JSONEq(t, `{}`, string(reqs[2].Params))

	for _, r := range reqs {
		assert.Equal(t, "application/json", http.Header(r.Header).Get("Content-Type"))
		assert.Equal(t, "application/json, text/event-stream", http.Header(r.Header).Get("Accept"))
	}
}

func TestClient_InitializeIsIdempotent(t *testing.T) {
	c, srv := initializedClient(t, mcptest.DefaultConfig())

	require.NoError(t, c.Initialize(context.Background()))
	require.NoError(t, c.Initialize(context.Background()))

	assert.Equal(t, 1, srv.Count("initialize"))
	assert.Equal(t, 1, srv.Count("tools/list"))
}

func TestClient_ConcurrentInitialize(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.SlowInitConfig(50*time.Millisecond))
	c := newTestClient(t, srv.URL())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- c.Initialize(context.Background())
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 1, srv.Count("initialize"))
}

func TestClient_JSONResponses(t *testing.T) {
	cfg := mcptest.DefaultConfig()
	cfg.JSONResponses = true
	c, _ := initializedClient(t, cfg)

	tools, err := c.ListTools()
	require.NoError(t, err)
	assert.Len(t, tools, 2)
}

func TestClient_SessionHeaderEchoed(t *testing.T) {
	c, srv := initializedClient(t, mcptest.SessionConfig("sess-123"))

	assert.Equal(t, "sess-123", c.SessionID())
	_, err := c.CallTool(context.Background(), "echo", map[string]any{"msg": "hi"})
	require.NoError(t, err)

	reqs := srv.Requests()
	require.Len(t, reqs, 4)
	assert.Empty(t, reqs[0].SessionID, "initialize is sent before a session exists")
	for _, r := range reqs[1:] {
		assert.Equal(t, "sess-123", r.SessionID, "method %s", r.Method)
	}
}

func TestClient_StatelessServer(t *testing.T) {
	c, srv := initializedClient(t, mcptest.EchoToolsConfig())

	assert.Empty(t, c.SessionID())
	_, err := c.CallTool(context.Background(), "echo", nil)
	require.NoError(t, err)

	for _, r := range srv.Requests() {
		assert.Empty(t, r.SessionID)
		assert.Empty(t, http.Header(r.Header).Values(DefaultSessionHeader))
	}
}

func TestClient_CustomSessionHeader(t *testing.T) {
	cfg := mcptest.SessionConfig("abc")
	cfg.SessionHeader = "X-Session"
	c, srv := initializedClient(t, cfg, func(c *Config) { c.SessionHeader = "X-Session" })

	assert.Equal(t, "abc", c.SessionID())
	assert.Equal(t, "abc", srv.Requests()[2].SessionID)
}

func TestClient_BearerCredential(t *testing.T) {
	_, srv := initializedClient(t, mcptest.DefaultConfig(), func(c *Config) {
		c.Credential = "secret-token"
	})

	for _, r := range srv.Requests() {
		assert.Equal(t, "Bearer secret-token", http.Header(r.Header).Get("Authorization"))
	}
}

func TestClient_CustomCredentialHeader(t *testing.T) {
	_, srv := initializedClient(t, mcptest.DefaultConfig(), func(c *Config) {
		c.Credential = "k-123"
		c.CredentialHeader = "X-API-Key"
		c.Headers = map[string]string{"X-Trace": "t1"}
	})

	h := http.Header(srv.Requests()[0].Header)
	assert.Equal(t, "k-123", h.Get("X-API-Key"))
	assert.Empty(t, h.Get("Authorization"))
	assert.Equal(t, "t1", h.Get("X-Trace"))
}

func TestClient_NotInitialized(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.EchoToolsConfig())
	c := newTestClient(t, srv.URL())

	_, err := c.CallToolStreaming(context.Background(), "echo", nil)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = c.CallTool(context.Background(), "echo", nil)
	assert.ErrorIs(t, err, ErrNotInitialized)

	_, err = c.ListTools()
	assert.ErrorIs(t, err, ErrNotInitialized)

	assert.Empty(t, srv.Requests(), "no network I/O before Initialize")
}

func TestClient_HandshakeHTTPError(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.FailingMethodConfig("initialize", http.StatusInternalServerError))
	c := newTestClient(t, srv.URL())

	err := c.Initialize(context.Background())
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "initialize", perr.Method)
	assert.Equal(t, http.StatusInternalServerError, perr.StatusCode)
	assert.Contains(t, perr.Error(), "simulated failure")

	_, err = c.ListTools()
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestClient_DiscoveryHTTPError(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.FailingMethodConfig("tools/list", http.StatusInternalServerError))
	c := newTestClient(t, srv.URL())

	err := c.Initialize(context.Background())
	var perr *ProtocolError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, "tools/list", perr.Method)

	_, err = c.CallTool(context.Background(), "test_tool", nil)
	assert.ErrorIs(t, err, ErrNotInitialized)
}

func TestClient_HandshakeRPCError(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.ErrorOnInitConfig(-32600, "unsupported protocol"))
	c := newTestClient(t, srv.URL())

	err := c.Initialize(context.Background())
	var rpcErr *RPCError
	require.ErrorAs(t, err, &rpcErr)
	assert.Equal(t, -32600, rpcErr.Code)
	assert.Equal(t, "unsupported protocol", rpcErr.Message)
}

func TestClient_InitializeRetryAfterFailure(t *testing.T) {
	cfg := mcptest.SessionConfig("sess-9")
	cfg.FailTimes = map[string]int{"tools/list": 1}
	srv := mcptest.StartFakeServer(t, cfg)
	c := newTestClient(t, srv.URL())

	require.Error(t, c.Initialize(context.Background()))
	assert.Empty(t, c.SessionID(), "failed handshake must not leave a session behind")

	require.NoError(t, c.Initialize(context.Background()))
	assert.Equal(t, 2, srv.Count("initialize"))
	assert.Equal(t, "sess-9", c.SessionID())

	tools, err := c.ListTools()
	require.NoError(t, err)
	assert.Len(t, tools, 2)
}

func TestClient_InitializeTransportError(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.DefaultConfig())
	url := srv.URL()
	srv.Close()

	c := newTestClient(t, url)
	err := c.Initialize(context.Background())
	var terr *TransportError
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, "initialize", terr.Op)
}

func TestClient_InitializeTimeout(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.SlowInitConfig(2*time.Second))
	c := newTestClient(t, srv.URL(), func(c *Config) { c.InitTimeout = 50 * time.Millisecond })

	start := time.Now()
	err := c.Initialize(context.Background())
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.Less(t, time.Since(start), time.Second)
}

func TestClient_Close(t *testing.T) {
	c, _ := initializedClient(t, mcptest.EchoToolsConfig())
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.CallTool(context.Background(), "echo", nil)
	assert.Error(t, err)
	assert.Error(t, c.Initialize(context.Background()))
}

func TestCallToolStreaming_ProgressThenResult(t *testing.T) {
	c, srv := initializedClient(t, mcptest.ProgressToolConfig())

	seq, err := c.CallToolStreaming(context.Background(), "slow_task", map[string]any{"n": 2})
	require.NoError(t, err)

	assert.Equal(t, []string{"Progress: 50%", "Progress: 90%", "done"}, collect(seq))

	reqs := srv.Requests()
	last := reqs[len(reqs)-1]
	assert.Equal(t, "tools/call", last.Method)
	assert.JSONEq(t, `{"name":"slow_task","arguments":{"n":2}}`, string(last.Params))
}

func TestCallToolStreaming_ChunkedDelivery(t *testing.T) {
	for _, size := range []int{1, 3, 7, 64} {
		cfg := mcptest.ProgressToolConfig()
		cfg.ChunkSize = size
		c, _ := initializedClient(t, cfg)

		seq, err := c.CallToolStreaming(context.Background(), "slow_task", nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Progress: 50%", "Progress: 90%", "done"}, collect(seq), "chunk size %d", size)
	}
}

func TestCallToolStreaming_NilArgumentsSentAsObject(t *testing.T) {
	c, srv := initializedClient(t, mcptest.EchoToolsConfig())

	out, err := c.CallTool(context.Background(), "greet", nil)
	require.NoError(t, err)
	assert.Equal(t, "greet {}", out)

	reqs := srv.Requests()
	assert.JSONEq(t, `{"name":"greet","arguments":{}}`, string(reqs[len(reqs)-1].Params))
}

func TestCallToolStreaming_TypedNilArgumentsSentAsObject(t *testing.T) {
	c, srv := initializedClient(t, mcptest.EchoToolsConfig())

	var args map[string]any
	require.NoError(t, json.Unmarshal([]byte("null"), &args))

	out, err := c.CallTool(context.Background(), "greet", args)
	require.NoError(t, err)
	assert.Equal(t, "greet {}", out)

	reqs := srv.Requests()
	assert.JSONEq(t, `{"name":"greet","arguments":{}}`, string(reqs[len(reqs)-1].Params))
}

func TestCallToolElements_Kinds(t *testing.T) {
	c, _ := initializedClient(t, mcptest.ProgressToolConfig())

	seq, err := c.CallToolElements(context.Background(), "slow_task", nil)
	require.NoError(t, err)

	var got []Element
	for e := range seq {
		got = append(got, e)
	}
	assert.Equal(t, []Element{
		{Kind: ElementProgress, Text: "Progress: 50%"},
		{Kind: ElementProgress, Text: "Progress: 90%"},
		{Kind: ElementResult, Text: "done"},
	}, got)
}

func TestCallToolElements_ResultStartingWithErrorIsNotFailure(t *testing.T) {
	c, _ := initializedClient(t, mcptest.FakeServerConfig{
		ToolFrames: map[string][]string{
			"lint": {`{"jsonrpc":"2.0","result":{"content":[{"type":"text","text":"Error: none found"}]}}`},
		},
	})

	seq, err := c.CallToolElements(context.Background(), "lint", nil)
	require.NoError(t, err)

	var got []Element
	for e := range seq {
		got = append(got, e)
	}
	require.Len(t, got, 1)
	assert.Equal(t, ElementResult, got[0].Kind)
	assert.False(t, got[0].Failed())
}

func TestCallToolElements_FailureKinds(t *testing.T) {
	c, _ := initializedClient(t, mcptest.ToolStatusConfig(http.StatusBadGateway))
	seq, err := c.CallToolElements(context.Background(), "echo", nil)
	require.NoError(t, err)
	for e := range seq {
		assert.Equal(t, ElementHTTPError, e.Kind)
		assert.True(t, e.Failed())
	}

	cfg := mcptest.EchoToolsConfig()
	cfg.EchoToolCalls = false
	c, _ = initializedClient(t, cfg)
	seq, err = c.CallToolElements(context.Background(), "missing", nil)
	require.NoError(t, err)
	for e := range seq {
		assert.Equal(t, ElementToolError, e.Kind)
	}
}

func TestCallToolStreaming_HTTPError(t *testing.T) {
	c, _ := initializedClient(t, mcptest.ToolStatusConfig(http.StatusInternalServerError))

	seq, err := c.CallToolStreaming(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Error calling tool: HTTP 500"}, collect(seq))
}

func TestCallToolStreaming_ToolNotFound(t *testing.T) {
	c, _ := initializedClient(t, mcptest.DefaultConfig())

	seq, err := c.CallToolStreaming(context.Background(), "missing", nil)
	require.NoError(t, err)

	out := collect(seq)
	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0], "Tool error: "))
	assert.Contains(t, out[0], "tool not found")
}

func TestCallToolStreaming_ErrorStopsStream(t *testing.T) {
	cfg := mcptest.FakeServerConfig{
		ToolFrames: map[string][]string{
			"flaky": {
				`{"jsonrpc":"2.0","result":{"progress":1}}`,
				`{"jsonrpc":"2.0","error":{"code":-1}}`,
				`{"jsonrpc":"2.0","result":{"content":[{"type":"text","text":"late"}]}}`,
			},
		},
	}
	c, _ := initializedClient(t, cfg)

	seq, err := c.CallToolStreaming(context.Background(), "flaky", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Progress: 1", "Tool error: Unknown error"}, collect(seq))
}

func TestCallToolStreaming_NoResult(t *testing.T) {
	cfg := mcptest.FakeServerConfig{
		ToolFrames: map[string][]string{
			"silent": {`{"jsonrpc":"2.0","result":{"progress":"working"}}`},
			"empty":  {`{"jsonrpc":"2.0","result":{}}`},
			"none":   {},
		},
	}
	c, _ := initializedClient(t, cfg)

	out, err := c.CallTool(context.Background(), "silent", nil)
	require.NoError(t, err)
	assert.Equal(t, "Progress: working"+NoResultMessage, out)

	out, err = c.CallTool(context.Background(), "empty", nil)
	require.NoError(t, err)
	assert.Equal(t, NoResultMessage, out)

	out, err = c.CallTool(context.Background(), "none", nil)
	require.NoError(t, err)
	assert.Equal(t, NoResultMessage, out)
}

func TestCallToolStreaming_ResultFallsBackToJSON(t *testing.T) {
	cfg := mcptest.FakeServerConfig{
		ToolFrames: map[string][]string{
			"stats": {`{"jsonrpc":"2.0","result":{"count": 3}}`},
		},
	}
	c, _ := initializedClient(t, cfg)

	out, err := c.CallTool(context.Background(), "stats", nil)
	require.NoError(t, err)
	assert.Equal(t, `{"count":3}`, out)
}

func TestCallToolStreaming_LastResultWins(t *testing.T) {
	cfg := mcptest.FakeServerConfig{
		ToolFrames: map[string][]string{
			"twice": {
				`{"jsonrpc":"2.0","result":{"content":[{"type":"text","text":"first"}]}}`,
				`{"jsonrpc":"2.0","result":{"progress":2}}`,
				`{"jsonrpc":"2.0","result":{"content":[{"type":"text","text":"second"}]}}`,
			},
		},
	}
	c, _ := initializedClient(t, cfg)

	seq, err := c.CallToolStreaming(context.Background(), "twice", nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Progress: 2", "second"}, collect(seq))
}

func TestCallToolStreaming_IgnoresOtherRequestIDs(t *testing.T) {
	cfg := mcptest.FakeServerConfig{
		ToolFrames: map[string][]string{
			"noisy": {
				`{"jsonrpc":"2.0","id":99999,"result":{"progress":"other"}}`,
				`{"jsonrpc":"2.0","id":99999,"error":{"code":1,"message":"not ours"}}`,
				`{"jsonrpc":"2.0","method":"notifications/message","params":{"level":"info"}}`,
				`{"jsonrpc":"2.0","result":{"content":[{"type":"text","text":"mine"}]}}`,
			},
		},
	}
	c, _ := initializedClient(t, cfg)

	out, err := c.CallTool(context.Background(), "noisy", nil)
	require.NoError(t, err)
	assert.Equal(t, "mine", out)
}

func TestCallToolStreaming_MalformedFrames(t *testing.T) {
	cfg := mcptest.FakeServerConfig{
		ToolBodies: map[string]string{
			"garbled": "data: {oops\n\n" + mcptest.SSE(`{"jsonrpc":"2.0","result":{"content":[{"type":"text","text":"ok"}]}}`),
		},
	}

	t.Run("lenient", func(t *testing.T) {
		c, _ := initializedClient(t, cfg)
		out, err := c.CallTool(context.Background(), "garbled", nil)
		require.NoError(t, err)
		assert.Equal(t, "ok", out)
	})

	t.Run("strict", func(t *testing.T) {
		c, _ := initializedClient(t, cfg, func(c *Config) { c.StrictFrames = true })
		seq, err := c.CallToolStreaming(context.Background(), "garbled", nil)
		require.NoError(t, err)

		out := collect(seq)
		require.Len(t, out, 1)
		assert.True(t, strings.HasPrefix(out[0], "Tool error: malformed frame"), out[0])
	})
}

func TestCallToolStreaming_LineTooLong(t *testing.T) {
	cfg := mcptest.FakeServerConfig{
		ToolBodies: map[string]string{
			"huge": "data: " + strings.Repeat("x", 256),
		},
	}
	c, _ := initializedClient(t, cfg, func(c *Config) { c.MaxLineSize = 64 })

	seq, err := c.CallToolStreaming(context.Background(), "huge", nil)
	require.NoError(t, err)

	out := collect(seq)
	require.Len(t, out, 1)
	assert.Contains(t, out[0], ErrLineTooLong.Error())
}

func TestCallToolStreaming_CompleteLineTooLong(t *testing.T) {
	cfg := mcptest.FakeServerConfig{
		ToolFrames: map[string][]string{
			"huge": {
				`{"jsonrpc":"2.0","result":{"progress":1}}`,
				`{"jsonrpc":"2.0","result":{"content":[{"type":"text","text":"` + strings.Repeat("x", 256) + `"}]}}`,
			},
		},
	}
	for _, size := range []int{0, 80} {
		cfg.ChunkSize = size
		c, _ := initializedClient(t, cfg, func(c *Config) { c.MaxLineSize = 64 })

		seq, err := c.CallToolStreaming(context.Background(), "huge", nil)
		require.NoError(t, err)

		out := collect(seq)
		require.Len(t, out, 2, "chunk size %d", size)
		assert.Equal(t, "Progress: 1", out[0])
		assert.Contains(t, out[1], ErrLineTooLong.Error(), "chunk size %d", size)
	}
}

func TestCallTool_EqualsConcatenation(t *testing.T) {
	c, _ := initializedClient(t, mcptest.ProgressToolConfig())

	seq, err := c.CallToolStreaming(context.Background(), "slow_task", nil)
	require.NoError(t, err)
	joined := strings.Join(collect(seq), "")

	out, err := c.CallTool(context.Background(), "slow_task", nil)
	require.NoError(t, err)
	assert.Equal(t, joined, out)
	assert.Equal(t, "Progress: 50%Progress: 90%done", out)
}

func TestCallToolStreaming_Lazy(t *testing.T) {
	c, srv := initializedClient(t, mcptest.EchoToolsConfig())

	seq, err := c.CallToolStreaming(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Zero(t, srv.Count("tools/call"), "request must wait for iteration")

	collect(seq)
	assert.Equal(t, 1, srv.Count("tools/call"))
}

func TestCallToolStreaming_NotRestartable(t *testing.T) {
	c, srv := initializedClient(t, mcptest.EchoToolsConfig())

	seq, err := c.CallToolStreaming(context.Background(), "echo", nil)
	require.NoError(t, err)

	assert.Len(t, collect(seq), 1)
	assert.Empty(t, collect(seq))
	assert.Equal(t, 1, srv.Count("tools/call"))
}

func TestCallToolStreaming_EarlyBreakClosesStream(t *testing.T) {
	c, srv := initializedClient(t, mcptest.HangingToolConfig())

	seq, err := c.CallToolStreaming(context.Background(), "hang", nil)
	require.NoError(t, err)

	var got []string
	for s := range seq {
		got = append(got, s)
		break
	}
	assert.Equal(t, []string{"Progress: 1"}, got)

	select {
	case <-srv.Disconnected():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not observe the client disconnect")
	}
}

func TestCallToolStreaming_ContextCancel(t *testing.T) {
	c, srv := initializedClient(t, mcptest.HangingToolConfig())

	ctx, cancel := context.WithCancel(context.Background())
	seq, err := c.CallToolStreaming(ctx, "hang", nil)
	require.NoError(t, err)

	var got []string
	for s := range seq {
		got = append(got, s)
		if len(got) == 1 {
			cancel()
		}
	}
	require.Len(t, got, 2)
	assert.True(t, strings.HasPrefix(got[1], "Error: "), got[1])

	select {
	case <-srv.Disconnected():
	case <-time.After(2 * time.Second):
		t.Fatal("server did not observe the client disconnect")
	}
}

func TestCallToolStreaming_ReadTimeout(t *testing.T) {
	c, _ := initializedClient(t, mcptest.HangingToolConfig(), func(c *Config) {
		c.ReadTimeout = 100 * time.Millisecond
	})

	start := time.Now()
	seq, err := c.CallToolStreaming(context.Background(), "hang", nil)
	require.NoError(t, err)

	out := collect(seq)
	require.Len(t, out, 2)
	assert.Equal(t, "Progress: 1", out[0])
	assert.Contains(t, out[1], ErrReadTimeout.Error())
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestCallToolStreaming_SlowButSteadyStreamDoesNotTimeOut(t *testing.T) {
	cfg := mcptest.ProgressToolConfig()
	cfg.ChunkSize = 20
	cfg.FrameDelay = 20 * time.Millisecond
	c, _ := initializedClient(t, cfg, func(c *Config) { c.ReadTimeout = 200 * time.Millisecond })

	out, err := c.CallTool(context.Background(), "slow_task", nil)
	require.NoError(t, err)
	assert.Equal(t, "Progress: 50%Progress: 90%done", out)
}

func TestCallToolStreaming_OneCallInFlight(t *testing.T) {
	cfg := mcptest.HangingToolConfig()
	cfg.EchoToolCalls = true
	c, _ := initializedClient(t, cfg)

	seq, err := c.CallToolStreaming(context.Background(), "hang", nil)
	require.NoError(t, err)

	next, stop := iter.Pull(seq)
	first, ok := next()
	require.True(t, ok)
	assert.Equal(t, "Progress: 1", first)

	out, err := c.CallTool(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "Error: "+ErrCallInFlight.Error(), out)

	stop()

	out, err = c.CallTool(context.Background(), "echo", nil)
	require.NoError(t, err)
	assert.Equal(t, "echo {}", out)
}

func TestCallToolStreaming_ServerGone(t *testing.T) {
	srv := mcptest.StartFakeServer(t, mcptest.EchoToolsConfig())
	c := newTestClient(t, srv.URL())
	require.NoError(t, c.Initialize(context.Background()))
	srv.Close()

	seq, err := c.CallToolStreaming(context.Background(), "echo", nil)
	require.NoError(t, err)

	out := collect(seq)
	require.Len(t, out, 1)
	assert.True(t, strings.HasPrefix(out[0], "Error: tools/call: "), out[0])
}
