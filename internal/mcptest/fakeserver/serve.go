package fakeserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"
)

// DefaultSessionHeader is the header the fake server assigns sessions in.
const DefaultSessionHeader = "Mcp-Session-Id"

// Server is a running fake MCP endpoint.
type Server struct {
	cfg Config
	srv *httptest.Server

	mu       sync.Mutex
	requests []Request
	failures map[string]int

	disconnected chan struct{}
}

// Start runs the fake server on a local listener. The endpoint is URL().
func Start(cfg Config) *Server {
	if cfg.SessionHeader == "" {
		cfg.SessionHeader = DefaultSessionHeader
	}
	s := &Server{
		cfg:          cfg,
		failures:     make(map[string]int),
		disconnected: make(chan struct{}, 16),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/mcp", s.handle)
	s.srv = httptest.NewServer(mux)
	return s
}

// URL returns the MCP endpoint URL.
func (s *Server) URL() string {
	return s.srv.URL + "/mcp"
}

// Close shuts the server down.
func (s *Server) Close() {
	s.srv.CloseClientConnections()
	s.srv.Close()
}

// Requests returns every request received so far, in arrival order.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := make([]Request, len(s.requests))
	copy(cp, s.requests)
	return cp
}

// Count returns how many requests for method were received.
func (s *Server) Count(method string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method {
			n++
		}
	}
	return n
}

// Disconnected receives a value each time a client goes away while a tool
// response was still being streamed.
func (s *Server) Disconnected() <-chan struct{} {
	return s.disconnected
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Method:    req.Method,
		ID:        req.ID,
		Params:    req.Params,
		SessionID: r.Header.Get(s.cfg.SessionHeader),
		Header:    r.Header.Clone(),
	})
	fail := s.failures[req.Method] < s.cfg.FailTimes[req.Method]
	if fail {
		s.failures[req.Method]++
	}
	s.mu.Unlock()

	// Apply delay if configured
	if delay, ok := s.cfg.Delays[req.Method]; ok {
		select {
		case <-time.After(delay):
		case <-r.Context().Done():
			return
		}
	}

	if fail {
		http.Error(w, "simulated transient failure", http.StatusInternalServerError)
		return
	}
	if status, ok := s.cfg.Statuses[req.Method]; ok && status != http.StatusOK {
		http.Error(w, "simulated failure", status)
		return
	}

	// Notifications get no body
	if len(req.ID) == 0 {
		w.WriteHeader(http.StatusAccepted)
		return
	}

	if rpcErr, ok := s.cfg.Errors[req.Method]; ok {
		s.writeMessage(w, marshalError(req.ID, rpcErr))
		return
	}

	switch req.Method {
	case "initialize":
		if s.cfg.SessionID != "" {
			w.Header().Set(s.cfg.SessionHeader, s.cfg.SessionID)
		}
		s.writeMessage(w, marshalResponse(req.ID, InitializeResult{
			ProtocolVersion: "2024-11-05",
			ServerInfo:      ServerInfo{Name: "fake-server", Version: "1.0.0"},
			Capabilities:    Capabilities{Tools: &ToolsCapability{}},
		}))

	case "tools/list":
		tools := s.cfg.Tools
		if tools == nil {
			tools = []Tool{}
		}
		s.writeMessage(w, marshalResponse(req.ID, ToolsListResult{Tools: tools}))

	case "tools/call":
		s.streamTool(w, r, req)

	default:
		s.writeMessage(w, marshalError(req.ID, JSONRPCError{
			Code: -32601, Message: "Method not found",
		}))
	}
}

// writeMessage writes a single response, as JSON or as a one-event stream.
func (s *Server) writeMessage(w http.ResponseWriter, data []byte) {
	if s.cfg.JSONResponses {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "event: message\ndata: %s\n\n", data)
}

func (s *Server) streamTool(w http.ResponseWriter, r *http.Request, req rpcRequest) {
	var params ToolCallParams
	_ = json.Unmarshal(req.Params, &params)

	body, ok := s.cfg.ToolBodies[params.Name]
	if !ok {
		if frames, found := s.cfg.ToolFrames[params.Name]; found {
			body = SSEBody(frames...)
		} else if s.cfg.EchoToolCalls {
			text := params.Name + " " + string(params.Arguments)
			body = SSEBody(string(marshalResponse(req.ID, ToolCallResult{
				Content: []ContentBlock{{Type: "text", Text: text}},
			})))
		} else {
			body = SSEBody(string(marshalError(req.ID, JSONRPCError{
				Code: -32602, Message: "tool not found: " + params.Name,
			})))
		}
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(http.StatusOK)

	flusher, _ := w.(http.Flusher)
	flush := func() {
		if flusher != nil {
			flusher.Flush()
		}
	}
	flush()

	chunk := s.cfg.ChunkSize
	if chunk <= 0 {
		chunk = len(body)
	}
	for len(body) > 0 {
		n := min(chunk, len(body))
		if _, err := w.Write([]byte(body[:n])); err != nil {
			s.signalDisconnect()
			return
		}
		flush()
		body = body[n:]

		if s.cfg.FrameDelay > 0 && len(body) > 0 {
			select {
			case <-time.After(s.cfg.FrameDelay):
			case <-r.Context().Done():
				s.signalDisconnect()
				return
			}
		}
	}

	if s.cfg.HoldOpen[params.Name] {
		<-r.Context().Done()
		s.signalDisconnect()
	}
}

func (s *Server) signalDisconnect() {
	select {
	case s.disconnected <- struct{}{}:
	default:
	}
}
