package mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"iter"
	"log/slog"
	"net/http"
	"reflect"
	"strings"
	"sync/atomic"
	"time"
)

// NoResultMessage is the final element of a call whose stream ended without
// a result frame.
const NoResultMessage = "No result returned from tool"

const readChunkSize = 4096

// Invoker issues tools/call requests and turns the streamed response into a
// sequence of elements.
type Invoker struct {
	transport   *httpTransport
	ids         *atomic.Int64
	logger      *slog.Logger
	readTimeout time.Duration
	decoderOpts DecoderOptions

	inFlight atomic.Bool
}

func newInvoker(cfg Config, t *httpTransport, ids *atomic.Int64, logger *slog.Logger) *Invoker {
	return &Invoker{
		transport:   t,
		ids:         ids,
		logger:      logger,
		readTimeout: cfg.ReadTimeout,
		decoderOpts: DecoderOptions{Strict: cfg.StrictFrames, MaxLineSize: cfg.MaxLineSize},
	}
}

// InvokeElements returns a lazy, single-use sequence for one tool call. The
// request is sent when iteration starts. Progress elements come in arrival
// order; the result text, when present, is always the last element.
// Failures are reported as a single element whose Failed method is true
// rather than an error so that orchestration loops can move on to the next
// call.
//
// Breaking out of the range loop closes the response body. Ranging over the
// sequence a second time yields nothing.
func (inv *Invoker) InvokeElements(ctx context.Context, name string, arguments any) iter.Seq[Element] {
	var used atomic.Bool
	return func(yield func(Element) bool) {
		if !used.CompareAndSwap(false, true) {
			return
		}
		if !inv.inFlight.CompareAndSwap(false, true) {
			yield(errorElement(ErrCallInFlight))
			return
		}
		defer inv.inFlight.Store(false)

		inv.stream(ctx, name, arguments, yield)
	}
}

// InvokeStreaming is InvokeElements reduced to element text.
func (inv *Invoker) InvokeStreaming(ctx context.Context, name string, arguments any) iter.Seq[string] {
	elements := inv.InvokeElements(ctx, name, arguments)
	return func(yield func(string) bool) {
		for e := range elements {
			if !yield(e.Text) {
				return
			}
		}
	}
}

// Invoke drains InvokeStreaming and concatenates every element.
func (inv *Invoker) Invoke(ctx context.Context, name string, arguments any) string {
	var sb strings.Builder
	for chunk := range inv.InvokeStreaming(ctx, name, arguments) {
		sb.WriteString(chunk)
	}
	return sb.String()
}

// invocation is the state of a single streamed call.
type invocation struct {
	id       int64
	tool     string
	yield    func(Element) bool
	final    json.RawMessage
	progress int
	stopped  bool
}

// handle processes one frame and reports whether the stream should continue.
func (c *invocation) handle(f Frame, logger *slog.Logger) bool {
	if f.Kind == FrameMalformed {
		c.emit(toolErrorElement(f.Err.Error()))
		return false
	}
	if f.Envelope == nil || !f.Envelope.MatchesID(c.id) {
		return true
	}

	switch f.Kind {
	case FrameError:
		logger.Debug("mcp tool error frame", "tool", c.tool, "reason", f.Reason)
		c.emit(toolErrorElement(f.Reason))
		return false
	case FrameProgress:
		c.progress++
		return c.emit(progressElement(f.ProgressText()))
	case FrameResult:
		c.final = f.Result
	}
	return true
}

func (c *invocation) emit(e Element) bool {
	if c.stopped {
		return false
	}
	if !c.yield(e) {
		c.stopped = true
		return false
	}
	return true
}

func (inv *Invoker) stream(ctx context.Context, name string, arguments any, yield func(Element) bool) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	arguments = normalizeArguments(arguments)

	call := &invocation{id: inv.ids.Add(1), tool: name, yield: yield}
	start := time.Now()

	resp, err := inv.transport.post(ctx, "tools/call", newRequest(call.id, "tools/call", toolCallParams{
		Name:      name,
		Arguments: arguments,
	}))
	if err != nil {
		inv.logger.Warn("mcp tool call failed", "tool", name, "error", err)
		call.emit(errorElement(err))
		return
	}

	body := newDeadlineBody(resp.Body, inv.readTimeout, cancel)
	defer body.Close()

	if resp.StatusCode != http.StatusOK {
		inv.logger.Warn("mcp tool call rejected", "tool", name, "status", resp.StatusCode)
		call.emit(httpErrorElement(resp.StatusCode))
		return
	}

	dec := NewDecoder(inv.decoderOpts)
	buf := make([]byte, readChunkSize)
	for {
		n, rerr := body.Read(buf)
		if n > 0 {
			frames, ferr := dec.Feed(buf[:n])
			for _, f := range frames {
				if !call.handle(f, inv.logger) {
					return
				}
			}
			if ferr != nil {
				call.emit(errorElement(ferr))
				return
			}
		}
		if errors.Is(rerr, io.EOF) {
			break
		}
		if rerr != nil {
			inv.logger.Warn("mcp tool stream interrupted", "tool", name, "error", rerr)
			call.emit(errorElement(&TransportError{Op: "tools/call", Err: rerr}))
			return
		}
	}

	if n := dec.Pending(); n > 0 {
		inv.logger.Debug("mcp stream ended mid-line", "tool", name, "bytes", n)
	}
	for _, f := range dec.Flush() {
		if !call.handle(f, inv.logger) {
			return
		}
	}

	inv.logger.Debug("mcp tool call finished",
		"tool", name,
		"progress_events", call.progress,
		"has_result", !isEmptyResult(call.final),
		"elapsed", time.Since(start))

	if isEmptyResult(call.final) {
		call.emit(noResultElement)
		return
	}
	call.emit(resultElement(ResultText(call.final)))
}

// ResultText extracts result.content[0].text, falling back to the compact
// JSON form of the whole result.
func ResultText(result json.RawMessage) string {
	var shaped struct {
		Content []map[string]json.RawMessage `json:"content"`
	}
	if err := json.Unmarshal(result, &shaped); err == nil && len(shaped.Content) > 0 {
		if text, ok := shaped.Content[0]["text"]; ok {
			return rawText(text)
		}
	}
	return rawText(result)
}

func isEmptyResult(result json.RawMessage) bool {
	switch string(bytes.TrimSpace(result)) {
	case "", "null", "{}", "[]", `""`:
		return true
	}
	return false
}

// normalizeArguments turns every flavor of "no arguments" into an empty
// object, so the request never carries "arguments": null. A nil map or
// pointer stored in an interface is not == nil and needs reflection.
func normalizeArguments(arguments any) any {
	if arguments == nil {
		return map[string]any{}
	}
	switch v := reflect.ValueOf(arguments); v.Kind() {
	case reflect.Map, reflect.Pointer, reflect.Slice:
		if v.IsNil() {
			return map[string]any{}
		}
	}
	if raw, ok := arguments.(json.RawMessage); ok {
		if t := string(bytes.TrimSpace(raw)); t == "" || t == "null" {
			return map[string]any{}
		}
	}
	return arguments
}
