// Package llm defines the narrow ChatProvider capability the agent core
// consumes, the closed error taxonomy every adapter must translate its
// transport failures into, and the streamed-message shape a provider yields.
// Concrete providers live in sibling packages (anthropic, openai, google) and
// a scripted fake for tests (fake).
package llm

import (
	"context"
	"fmt"

	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
)

// ThinkingEffort selects a provider's extended-reasoning budget, when it
// supports one. The zero value, EffortOff, means no thinking budget is
// requested.
type ThinkingEffort string

const (
	EffortOff    ThinkingEffort = ""
	EffortLow    ThinkingEffort = "low"
	EffortMedium ThinkingEffort = "medium"
	EffortHigh   ThinkingEffort = "high"
)

// ChatProvider is the capability the agent core depends on: one streamed
// turn of content parts, tool calls, and tool-call argument deltas, plus a
// final usage report. Implementations must classify every network or
// streaming failure into the closed error taxonomy below rather than letting
// a raw transport error escape.
type ChatProvider interface {
	// Generate starts one streamed completion. tools is the toolset's full
	// schema list; history is the context's message vector in order.
	Generate(ctx context.Context, systemPrompt string, tools []toolset.Schema, history []message.Message) (*Stream, error)

	// WithThinking returns a provider configured to request the given
	// thinking effort; implementations that don't support extended
	// reasoning return themselves unchanged.
	WithThinking(effort ThinkingEffort) ChatProvider

	// ThinkingEffort reports the effort this provider is currently
	// configured with.
	ThinkingEffort() ThinkingEffort

	// ModelName reports the concrete model identifier in use, for
	// StatusUpdate events and logging.
	ModelName() string
}

// Capability is one optional feature a provider may be missing, surfaced as
// LLMNotSupported so the Soul can explain precisely why a request (e.g. a
// thinking-effort change, or a multimodal content part) can't be honored.
type Capability string

const (
	CapThinking   Capability = "thinking"
	CapImageInput Capability = "image_input"
	CapAudioInput Capability = "audio_input"
	CapVideoInput Capability = "video_input"
)

// APIConnectionError means the request never reached the provider (DNS,
// dial, TLS, connection reset). Retryable.
type APIConnectionError struct{ Cause error }

func (e *APIConnectionError) Error() string { return fmt.Sprintf("llm: connection error: %v", e.Cause) }
func (e *APIConnectionError) Unwrap() error { return e.Cause }

// APITimeoutError means the request exceeded its deadline before the
// provider finished responding. Retryable.
type APITimeoutError struct{ Cause error }

func (e *APITimeoutError) Error() string { return fmt.Sprintf("llm: timeout: %v", e.Cause) }
func (e *APITimeoutError) Unwrap() error { return e.Cause }

// APIStatusError wraps a non-2xx HTTP response from the provider. Only
// 429/500/502/503 are retryable; IsRetryable reports which.
type APIStatusError struct {
	Code    int
	Message string
}

func (e *APIStatusError) Error() string {
	return fmt.Sprintf("llm: provider returned status %d: %s", e.Code, e.Message)
}

// IsRetryable reports whether this status is in the retryable subset.
func (e *APIStatusError) IsRetryable() bool {
	switch e.Code {
	case 429, 500, 502, 503:
		return true
	default:
		return false
	}
}

// APIEmptyResponseError means the stream completed with no content parts,
// no tool calls, and no usage report — a malformed but non-transport
// failure. Retryable.
type APIEmptyResponseError struct{}

func (e *APIEmptyResponseError) Error() string { return "llm: provider returned an empty response" }

// IsRetryable reports whether err belongs to the retryable subset of the
// closed chat-provider error taxonomy: APIConnectionError, APITimeoutError,
// APIEmptyResponseError, or an APIStatusError carrying a retryable code.
func IsRetryable(err error) bool {
	switch e := err.(type) {
	case *APIConnectionError, *APITimeoutError, *APIEmptyResponseError:
		return true
	case *APIStatusError:
		return e.IsRetryable()
	default:
		return false
	}
}

// StreamItemKind is the closed set of shapes a Stream yields.
type StreamItemKind string

const (
	ItemContentPart  StreamItemKind = "content_part"
	ItemToolCall     StreamItemKind = "tool_call"
	ItemToolCallPart StreamItemKind = "tool_call_part"
)

// ToolCallDelta is an incremental argument-string fragment for a tool call
// still streaming in, forwarded to the wire as EventToolCallPart.
type ToolCallDelta struct {
	ToolCallID string
	ToolName   string
	Delta      string
}

// StreamItem is one item yielded mid-stream; exactly the field matching Kind
// is populated.
type StreamItem struct {
	Kind         StreamItemKind
	ContentPart  message.ContentPart
	ToolCall     message.ToolCall
	ToolCallPart ToolCallDelta
}

// Stream is the async iterator Generate returns: pull items with Next/Item
// until Next reports false, then read ID/Usage/Err. Err is always checked
// after Next returns false — a closed channel alone doesn't distinguish a
// clean finish from a failure mid-stream.
type Stream struct {
	items chan StreamItem
	cur   StreamItem
	id    string
	usage message.TokenUsage
	err   error
}

// NewStream constructs an empty Stream for a provider adapter to drive from
// its own read-loop goroutine: Push each item, then Finish exactly once.
func NewStream() *Stream {
	return &Stream{items: make(chan StreamItem, 32)}
}

// Push delivers one item to the consumer. Must not be called after Finish.
func (s *Stream) Push(item StreamItem) { s.items <- item }

// Finish records the terminal id/usage/err and closes the item channel. The
// write here happens-before the consumer observes the closed channel, so no
// further synchronization is needed to read ID/Usage/Err after Next is false.
func (s *Stream) Finish(id string, usage message.TokenUsage, err error) {
	s.id, s.usage, s.err = id, usage, err
	close(s.items)
}

// Next advances to the next item, returning false once the stream is
// exhausted (check Err to see whether that's because it finished cleanly).
func (s *Stream) Next() bool {
	item, ok := <-s.items
	if !ok {
		return false
	}
	s.cur = item
	return true
}

// Item returns the item Next just advanced to.
func (s *Stream) Item() StreamItem { return s.cur }

// ID returns the provider-assigned message id, valid once Next returns false.
func (s *Stream) ID() string { return s.id }

// Usage returns the terminal usage report, valid once Next returns false.
func (s *Stream) Usage() message.TokenUsage { return s.usage }

// Err returns the terminal error, if any, valid once Next returns false.
func (s *Stream) Err() error { return s.err }

// Collect drains a Stream into content parts and tool calls, discarding
// argument deltas. Used by non-streaming callers (subagent runs that don't
// forward ContentPart/ToolCallPart events to a Wire).
func Collect(s *Stream) ([]message.ContentPart, []message.ToolCall, message.TokenUsage, string, error) {
	var parts []message.ContentPart
	var calls []message.ToolCall
	for s.Next() {
		switch item := s.Item(); item.Kind {
		case ItemContentPart:
			parts = append(parts, item.ContentPart)
		case ItemToolCall:
			calls = append(calls, item.ToolCall)
		}
	}
	return parts, calls, s.Usage(), s.ID(), s.Err()
}
