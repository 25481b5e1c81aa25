// Package toolset implements the dispatcher that routes LLM-issued tool calls
// to built-in, MCP, and UI-hosted external tool implementations, enforcing
// JSON-schema validation and approval gating along the way.
package toolset

import (
	"context"
	"encoding/json"

	"github.com/gencode-ai/agentcore/internal/message"
)

// DisplayBlock is one renderer-agnostic display hint attached to a
// ToolReturnValue (e.g. a unified diff, a file listing). Unknown Type values
// are preserved through Data so older/newer display shapes round-trip
// losslessly, the same tagged-union discipline as message.ContentPart.
type DisplayBlock struct {
	Type string
	Data json.RawMessage
}

func (d DisplayBlock) MarshalJSON() ([]byte, error) {
	var m map[string]json.RawMessage
	if len(d.Data) > 0 {
		if err := json.Unmarshal(d.Data, &m); err != nil {
			return nil, err
		}
	}
	if m == nil {
		m = map[string]json.RawMessage{}
	}
	typeJSON, err := json.Marshal(d.Type)
	if err != nil {
		return nil, err
	}
	m["type"] = typeJSON
	return json.Marshal(m)
}

func (d *DisplayBlock) UnmarshalJSON(data []byte) error {
	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal(data, &head); err != nil {
		return err
	}
	d.Type = head.Type
	d.Data = append(json.RawMessage(nil), data...)
	return nil
}

// NewDiffDisplay builds the display block a file-editing tool attaches to its
// approval request / result so the UI can render a unified diff.
func NewDiffDisplay(unifiedDiff string) DisplayBlock {
	data, _ := json.Marshal(map[string]string{"unified_diff": unifiedDiff})
	return DisplayBlock{Type: "diff", Data: data}
}

// ReturnKind is the closed two-case outcome of a tool invocation.
type ReturnKind string

const (
	ReturnOk    ReturnKind = "ok"
	ReturnError ReturnKind = "error"
)

// ToolReturnValue is the sum type every tool invocation resolves to. It never
// crosses back as a Go `error` — tool failures are always local, materialized
// data the model (and the user, via Display) can see.
type ToolReturnValue struct {
	Kind ReturnKind `json:"kind"`

	// Ok variant.
	Output      string               `json:"output,omitempty"`
	OutputParts []message.ContentPart `json:"output_parts,omitempty"`

	// Error variant.
	Message string `json:"message,omitempty"`
	Brief   string `json:"brief,omitempty"`

	Display []DisplayBlock `json:"display,omitempty"`
}

// Ok builds a successful ToolReturnValue with plain string output.
func Ok(output string, display ...DisplayBlock) ToolReturnValue {
	return ToolReturnValue{Kind: ReturnOk, Output: output, Display: display}
}

// OkParts builds a successful ToolReturnValue with structured output parts.
func OkParts(parts []message.ContentPart, display ...DisplayBlock) ToolReturnValue {
	return ToolReturnValue{Kind: ReturnOk, OutputParts: parts, Display: display}
}

// Error kinds closed by spec §7. Each maps to a distinct Brief so the model
// and UI can distinguish them without string-matching Message.
const (
	BriefParseError    = "ParseError"
	BriefValidateError = "ValidateError"
	BriefNotFoundError = "NotFoundError"
	BriefRuntimeError  = "RuntimeError"
	BriefRejectedError = "RejectedError"
	BriefTimeout       = "Timeout"
)

// ErrorValue builds a failed ToolReturnValue.
func ErrorValue(brief, message string, display ...DisplayBlock) ToolReturnValue {
	return ToolReturnValue{Kind: ReturnError, Brief: brief, Message: message, Display: display}
}

// IsRejected reports whether this return value represents a user rejection
// of an approval request (ToolRejectedError in spec terms).
func (v ToolReturnValue) IsRejected() bool {
	return v.Kind == ReturnError && v.Brief == BriefRejectedError
}

// Result pairs a tool call id with its settled ToolReturnValue; it is the
// payload of both the Wire ToolResult event and the `tool` context message.
type Result struct {
	ToolCallID  string          `json:"tool_call_id"`
	ReturnValue ToolReturnValue `json:"return_value"`
}

// ToMessage converts a Result into the `tool` role context message that
// answers the originating assistant tool call.
func (r Result) ToMessage() message.Message {
	if r.ReturnValue.Kind == ReturnOk && len(r.ReturnValue.OutputParts) > 0 {
		return message.NewToolMessage(r.ToolCallID, message.Parts(r.ReturnValue.OutputParts...))
	}
	text := r.ReturnValue.Output
	if r.ReturnValue.Kind == ReturnError {
		text = r.ReturnValue.Message
	}
	return message.NewToolMessage(r.ToolCallID, message.PlainText(text))
}

// Schema is the LLM-facing description of one callable tool.
type Schema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Tool is the closed capability surface every built-in or MCP-backed tool
// implementation satisfies.
type Tool interface {
	Name() string
	Description() string
	// Parameters returns the tool's JSON Schema for its arguments object.
	Parameters() json.RawMessage
	// RequiresApproval inspects already-parsed arguments and reports whether
	// this particular call needs user approval before executing, along with
	// the approval action key, a human description, and optional display
	// hints (e.g. a diff) to show alongside the request.
	RequiresApproval(args map[string]any) (action string, description string, display []DisplayBlock)
	// Execute runs the tool. Called only after any required approval has
	// been granted. Must not panic; runtime failures are reported as an
	// Error-kind ToolReturnValue.
	Execute(ctx context.Context, args map[string]any) ToolReturnValue
}
