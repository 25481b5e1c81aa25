// Package message defines the wire-and-disk shape of a single conversation
// entry: roles, structured content parts, tool calls and their results, and
// token usage. It is the data model shared by Context, Wire, and the LLM
// adapter layer.
package message

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// Role is one of the four message roles in a conversation.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// PartType identifies the shape of a ContentPart.
type PartType string

const (
	PartText     PartType = "text"
	PartThink    PartType = "think"
	PartImageURL PartType = "image_url"
	PartAudioURL PartType = "audio_url"
	PartVideoURL PartType = "video_url"
	PartToolCall PartType = "tool_call"
)

func isKnownPartType(t PartType) bool {
	switch t {
	case PartText, PartThink, PartImageURL, PartAudioURL, PartVideoURL, PartToolCall:
		return true
	default:
		return false
	}
}

// ToolCall is one function call requested by the assistant. Arguments is the
// raw JSON-encoded argument string as streamed by the model, not a decoded
// object — Toolset is responsible for parsing and schema-validating it.
type ToolCall struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Arguments string          `json:"arguments"`
	Extras    json.RawMessage `json:"extras,omitempty"`
}

// ContentPart is one element of a structured message body. Only known
// variants populate their typed fields; an unrecognized Type is preserved
// verbatim via raw so that older or newer schema versions round-trip
// losslessly through context.jsonl (spec invariant: unknown content-part
// types survive reload unchanged).
type ContentPart struct {
	Type PartType `json:"type"`

	Text     string    `json:"text,omitempty"`
	ImageURL string    `json:"image_url,omitempty"`
	AudioURL string    `json:"audio_url,omitempty"`
	VideoURL string    `json:"video_url,omitempty"`
	ToolCall *ToolCall `json:"tool_call,omitempty"`

	raw json.RawMessage
}

// Text builds a text content part.
func Text(s string) ContentPart { return ContentPart{Type: PartText, Text: s} }

// Think builds an assistant reasoning-trace content part.
func Think(s string) ContentPart { return ContentPart{Type: PartThink, Text: s} }

// ImageURLPart builds an image_url content part.
func ImageURLPart(url string) ContentPart { return ContentPart{Type: PartImageURL, ImageURL: url} }

// ToolCallPart wraps a ToolCall as a content part (assistant messages only).
func ToolCallPart(tc ToolCall) ContentPart {
	c := tc
	return ContentPart{Type: PartToolCall, ToolCall: &c}
}

func (p ContentPart) MarshalJSON() ([]byte, error) {
	if !isKnownPartType(p.Type) && len(p.raw) > 0 {
		return p.raw, nil
	}
	type known struct {
		Type     PartType  `json:"type"`
		Text     string    `json:"text,omitempty"`
		ImageURL string    `json:"image_url,omitempty"`
		AudioURL string    `json:"audio_url,omitempty"`
		VideoURL string    `json:"video_url,omitempty"`
		ToolCall *ToolCall `json:"tool_call,omitempty"`
	}
	return json.Marshal(known{p.Type, p.Text, p.ImageURL, p.AudioURL, p.VideoURL, p.ToolCall})
}

func (p *ContentPart) UnmarshalJSON(data []byte) error {
	var head struct {
		Type PartType `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return fmt.Errorf("content part: %w", err)
	}
	p.Type = head.Type
	if !isKnownPartType(head.Type) {
		p.raw = append(json.RawMessage(nil), data...)
		return nil
	}
	var known struct {
		Text     string    `json:"text,omitempty"`
		ImageURL string    `json:"image_url,omitempty"`
		AudioURL string    `json:"audio_url,omitempty"`
		VideoURL string    `json:"video_url,omitempty"`
		ToolCall *ToolCall `json:"tool_call,omitempty"`
	}
	if err := json.Unmarshal(data, &known); err != nil {
		return fmt.Errorf("content part %q: %w", head.Type, err)
	}
	p.Text, p.ImageURL, p.AudioURL, p.VideoURL, p.ToolCall = known.Text, known.ImageURL, known.AudioURL, known.VideoURL, known.ToolCall
	return nil
}

// RawType exposes the unknown-variant payload's declared type, or "" for a
// known variant. Used by capability checks that must still treat unknown
// parts conservatively.
func (p ContentPart) RawType() string {
	if len(p.raw) > 0 {
		return string(p.Type)
	}
	return ""
}

// Content is a message body: either a bare string or an ordered sequence of
// ContentPart. It always normalizes internally to a part list, but remembers
// whether it was constructed from a plain string so re-serialization takes
// the same shape (round-trip fidelity, spec testable property 6).
type Content struct {
	Parts []ContentPart
	plain bool
}

// PlainText builds Content that serializes back out as a bare JSON string.
func PlainText(s string) Content {
	return Content{Parts: []ContentPart{Text(s)}, plain: true}
}

// Parts builds Content from an explicit part list.
func Parts(parts ...ContentPart) Content {
	return Content{Parts: parts}
}

// ExtractText concatenates every text/think part's text, joined by sep.
func (c Content) ExtractText(sep string) string {
	var buf bytes.Buffer
	first := true
	for _, p := range c.Parts {
		if p.Type != PartText && p.Type != PartThink {
			continue
		}
		if !first {
			buf.WriteString(sep)
		}
		buf.WriteString(p.Text)
		first = false
	}
	return buf.String()
}

// ToolCalls returns every tool_call part's ToolCall, in order.
func (c Content) ToolCalls() []ToolCall {
	var calls []ToolCall
	for _, p := range c.Parts {
		if p.Type == PartToolCall && p.ToolCall != nil {
			calls = append(calls, *p.ToolCall)
		}
	}
	return calls
}

func (c Content) MarshalJSON() ([]byte, error) {
	if c.plain && len(c.Parts) == 1 && c.Parts[0].Type == PartText && c.Parts[0].raw == nil {
		return json.Marshal(c.Parts[0].Text)
	}
	return json.Marshal(c.Parts)
}

func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("content: %w", err)
		}
		*c = PlainText(s)
		return nil
	}
	var parts []ContentPart
	if err := json.Unmarshal(data, &parts); err != nil {
		return fmt.Errorf("content: %w", err)
	}
	c.Parts, c.plain = parts, false
	return nil
}

// Message is one conversation entry.
type Message struct {
	Role       Role       `json:"role"`
	Content    Content    `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
}

// NewUserMessage builds a plain-text user message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: PlainText(text)}
}

// NewUserMessageParts builds a user message from explicit content parts
// (e.g. text mixed with image_url parts).
func NewUserMessageParts(parts ...ContentPart) Message {
	return Message{Role: RoleUser, Content: Parts(parts...)}
}

// NewSystemMessage builds the plain text content part of a system-injected
// note, after kimi-cli's `system(...)` helper. It returns a ContentPart, not a
// Message.
func NewSystemMessage(text string) ContentPart {
	return Text(text)
}

// NewToolMessage builds a tool-result message answering a specific tool call.
func NewToolMessage(toolCallID string, content Content) Message {
	return Message{Role: RoleTool, Content: content, ToolCallID: toolCallID}
}

// ExtractText concatenates the message's text/think content, joined by sep.
func (m Message) ExtractText(sep string) string { return m.Content.ExtractText(sep) }

// TokenUsage reports token accounting for one LLM step, mirroring the three
// input-token buckets a provider may distinguish (plain input, cache-read,
// cache-creation) plus output tokens.
type TokenUsage struct {
	InputOther        int `json:"input_other"`
	InputCacheRead     int `json:"input_cache_read"`
	InputCacheCreation int `json:"input_cache_creation"`
	Output             int `json:"output"`
}

// Input is the total prompt-token count across all input buckets.
func (u TokenUsage) Input() int {
	return u.InputOther + u.InputCacheRead + u.InputCacheCreation
}

// Total is prompt tokens plus output tokens.
func (u TokenUsage) Total() int { return u.Input() + u.Output }
