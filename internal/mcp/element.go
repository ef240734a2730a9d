package mcp

import "fmt"

// ElementKind says where a streamed element came from.
type ElementKind int

const (
	// ElementProgress is a "Progress: <value>" notification.
	ElementProgress ElementKind = iota
	// ElementResult is the text of the final result frame.
	ElementResult
	// ElementToolError is an error frame sent by the server.
	ElementToolError
	// ElementHTTPError is a non-200 response to tools/call.
	ElementHTTPError
	// ElementNoResult means the stream ended without a result frame.
	ElementNoResult
	// ElementError is a local failure: transport, timeout or framing.
	ElementError
)

func (k ElementKind) String() string {
	switch k {
	case ElementProgress:
		return "progress"
	case ElementResult:
		return "result"
	case ElementToolError:
		return "tool_error"
	case ElementHTTPError:
		return "http_error"
	case ElementNoResult:
		return "no_result"
	case ElementError:
		return "error"
	default:
		return fmt.Sprintf("ElementKind(%d)", int(k))
	}
}

// Element is one item of a streamed tool call. Text is exactly what
// CallToolStreaming yields for it.
type Element struct {
	Kind ElementKind
	Text string
}

func (e Element) String() string {
	return e.Text
}

// Failed reports whether the element describes a failed call rather than
// tool output. A result whose text happens to start with "Error: " is
// still a result.
func (e Element) Failed() bool {
	switch e.Kind {
	case ElementProgress, ElementResult:
		return false
	default:
		return true
	}
}

func progressElement(value string) Element {
	return Element{Kind: ElementProgress, Text: "Progress: " + value}
}

func resultElement(text string) Element {
	return Element{Kind: ElementResult, Text: text}
}

func toolErrorElement(reason string) Element {
	return Element{Kind: ElementToolError, Text: "Tool error: " + reason}
}

func httpErrorElement(status int) Element {
	return Element{Kind: ElementHTTPError, Text: fmt.Sprintf("Error calling tool: HTTP %d", status)}
}

func errorElement(err error) Element {
	return Element{Kind: ElementError, Text: "Error: " + err.Error()}
}

var noResultElement = Element{Kind: ElementNoResult, Text: NoResultMessage}
