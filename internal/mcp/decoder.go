package mcp

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

const (
	// MaxSSELineSize is the default cap on a single SSE line (16MB).
	MaxSSELineSize = 16 * 1024 * 1024

	// MaxResponseSize caps non-streamed handshake and discovery bodies.
	MaxResponseSize = 16 * 1024 * 1024

	dataPrefix = "data: "
)

// FrameKind is the classification of a decoded `data:` payload.
type FrameKind int

const (
	FrameIgnored FrameKind = iota
	FrameProgress
	FrameResult
	FrameError
	FrameMalformed
)

func (k FrameKind) String() string {
	switch k {
	case FrameProgress:
		return "progress"
	case FrameResult:
		return "result"
	case FrameError:
		return "error"
	case FrameMalformed:
		return "malformed"
	default:
		return "ignored"
	}
}

// Frame is one classified payload.
type Frame struct {
	Kind FrameKind

	// Envelope is nil for malformed frames.
	Envelope *Envelope

	// Progress holds result.progress for FrameProgress.
	Progress json.RawMessage

	// Result holds the result member for FrameResult.
	Result json.RawMessage

	// Reason is the error message for FrameError.
	Reason string

	// Err is *RPCError for FrameError and *MalformedFrameError for FrameMalformed.
	Err error
}

// ProgressText renders the progress value: JSON strings unquoted, anything
// else as compact JSON.
func (f Frame) ProgressText() string {
	return rawText(f.Progress)
}

// DecoderOptions configures a Decoder.
type DecoderOptions struct {
	// Strict reports undecodable `data:` payloads as FrameMalformed instead
	// of dropping them.
	Strict bool

	// MaxLineSize bounds a single line, terminated or not. Zero means
	// MaxSSELineSize.
	MaxLineSize int
}

// Decoder turns arbitrarily split byte chunks of an SSE stream into
// classified frames. A line is only parsed once its newline has arrived, so
// the output does not depend on where the chunks were split.
type Decoder struct {
	buf     []byte
	strict  bool
	maxLine int
}

// NewDecoder creates a decoder.
func NewDecoder(opts DecoderOptions) *Decoder {
	maxLine := opts.MaxLineSize
	if maxLine <= 0 {
		maxLine = MaxSSELineSize
	}
	return &Decoder{strict: opts.Strict, maxLine: maxLine}
}

// Feed appends chunk to the carry-over buffer and returns the frames for
// every line completed by it. The trailing fragment is kept for the next call.
//
// A line longer than the cap fails with ErrLineTooLong whether it arrived
// whole or split, after the frames of the lines before it.
func (d *Decoder) Feed(chunk []byte) ([]Frame, error) {
	d.buf = append(d.buf, chunk...)

	var frames []Frame
	for {
		i := bytes.IndexByte(d.buf, '\n')
		if i < 0 {
			break
		}
		if i > d.maxLine {
			d.buf = nil
			return frames, d.lineTooLong()
		}
		if f, ok := d.ParseLine(d.buf[:i]); ok {
			frames = append(frames, f)
		}
		d.buf = d.buf[i+1:]
	}

	if len(d.buf) > d.maxLine {
		d.buf = nil
		return frames, d.lineTooLong()
	}
	return frames, nil
}

func (d *Decoder) lineTooLong() error {
	return fmt.Errorf("%w (%d bytes)", ErrLineTooLong, d.maxLine)
}

// Flush gives an unterminated trailing fragment one parse attempt and
// resets the buffer. Call it once the stream has ended.
func (d *Decoder) Flush() []Frame {
	rest := d.buf
	d.buf = nil
	if f, ok := d.ParseLine(rest); ok {
		return []Frame{f}
	}
	return nil
}

// Pending returns the number of buffered bytes not yet terminated by a newline.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// ParseLine decodes a single line. It returns false for blank lines, lines
// without the exact `data: ` prefix and, in lenient mode, payloads that are
// not a JSON object.
func (d *Decoder) ParseLine(line []byte) (Frame, bool) {
	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || !bytes.HasPrefix(trimmed, []byte(dataPrefix)) {
		return Frame{}, false
	}
	payload := trimmed[len(dataPrefix):]

	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		if !d.strict {
			return Frame{}, false
		}
		return Frame{
			Kind: FrameMalformed,
			Err:  &MalformedFrameError{Line: string(trimmed), Err: err},
		}, true
	}
	return Classify(&env), true
}

// Classify maps an envelope to a frame. An error member wins over a result;
// a result object carrying a progress key is progress, any other result is
// the final result.
func Classify(env *Envelope) Frame {
	switch env.Kind() {
	case KindFailure:
		rpcErr := env.RPCError()
		reason := rpcErr.Message
		if reason == "" {
			reason = "Unknown error"
		}
		return Frame{Kind: FrameError, Envelope: env, Reason: reason, Err: rpcErr}
	case KindSuccess:
		var fields map[string]json.RawMessage
		if err := json.Unmarshal(env.Result, &fields); err == nil {
			if progress, ok := fields["progress"]; ok {
				return Frame{Kind: FrameProgress, Envelope: env, Progress: progress}
			}
		}
		return Frame{Kind: FrameResult, Envelope: env, Result: env.Result}
	default:
		return Frame{Kind: FrameIgnored, Envelope: env}
	}
}

// DecodeResponse decodes a complete non-streamed response body. A body that
// is a bare JSON object is decoded directly; anything else is read as SSE and
// the first frame answering id is returned.
func DecodeResponse(r io.Reader, id int64, strict bool) (*Envelope, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty response body")
	}
	if trimmed[0] == '{' {
		var env Envelope
		if err := json.Unmarshal(trimmed, &env); err != nil {
			return nil, fmt.Errorf("unmarshal response: %w", err)
		}
		return &env, nil
	}

	dec := NewDecoder(DecoderOptions{Strict: strict, MaxLineSize: MaxResponseSize})
	frames, err := dec.Feed(trimmed)
	if err != nil {
		return nil, err
	}
	frames = append(frames, dec.Flush()...)
	for _, f := range frames {
		if f.Kind == FrameMalformed {
			return nil, f.Err
		}
		if f.Kind == FrameIgnored || f.Kind == FrameProgress || !f.Envelope.MatchesID(id) {
			continue
		}
		return f.Envelope, nil
	}
	return nil, fmt.Errorf("no response for request %d in event stream", id)
}

// rawText unquotes JSON strings and compacts everything else.
func rawText(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return string(bytes.TrimSpace(raw))
	}
	return buf.String()
}
