package wire

import (
	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
)

// TurnBeginPayload is Event{Type: EventTurnBegin}'s payload.
type TurnBeginPayload struct {
	UserInput any `json:"user_input"`
}

// StepBeginPayload is Event{Type: EventStepBegin}'s payload.
type StepBeginPayload struct {
	Step int `json:"step"`
}

// StepInterruptedPayload is Event{Type: EventStepInterrupted}'s payload.
type StepInterruptedPayload struct {
	Step   int    `json:"step"`
	Reason string `json:"reason,omitempty"`
}

// CompactionBeginPayload is Event{Type: EventCompactionBegin}'s payload.
type CompactionBeginPayload struct{}

// CompactionEndPayload is Event{Type: EventCompactionEnd}'s payload.
type CompactionEndPayload struct{}

// StatusUpdatePayload is Event{Type: EventStatusUpdate}'s payload.
type StatusUpdatePayload struct {
	TokenUsage   message.TokenUsage `json:"token_usage"`
	MessageID    string             `json:"message_id"`
	ContextUsage float64            `json:"context_usage"`
}

// ContentPartPayload is Event{Type: EventContentPart}'s payload.
type ContentPartPayload struct {
	Part message.ContentPart `json:"part"`
}

// ToolCallPayload is Event{Type: EventToolCall}'s payload.
type ToolCallPayload struct {
	ToolCall message.ToolCall `json:"tool_call"`
}

// ToolCallPartPayload is Event{Type: EventToolCallPart}'s payload: an
// incremental delta of a tool call still streaming in.
type ToolCallPartPayload struct {
	ToolCallID string `json:"tool_call_id"`
	Delta      string `json:"delta"`
}

// ToolResultPayload is Event{Type: EventToolResult}'s payload.
type ToolResultPayload struct {
	ToolCallID string                  `json:"tool_call_id"`
	IsError    bool                    `json:"is_error"`
	Output     string                  `json:"output,omitempty"`
	Message    string                  `json:"message,omitempty"`
	Brief      string                  `json:"brief,omitempty"`
	Display    []toolset.DisplayBlock  `json:"display,omitempty"`
}

// NewToolResultPayload converts a settled toolset.Result into its wire shape.
func NewToolResultPayload(r toolset.Result) ToolResultPayload {
	rv := r.ReturnValue
	return ToolResultPayload{
		ToolCallID: r.ToolCallID,
		IsError:    rv.Kind == toolset.ReturnError,
		Output:     rv.Output,
		Message:    rv.Message,
		Brief:      rv.Brief,
		Display:    rv.Display,
	}
}

// ApprovalResponsePayload is Event{Type: EventApprovalResponse}'s payload,
// also the shape a UI client sends as the response to an ApprovalRequest.
type ApprovalResponsePayload struct {
	RequestID string `json:"request_id"`
	Response  string `json:"response"` // "approve" | "approve_for_session" | "reject"
}

// SubagentEventPayload is Event{Type: EventSubagentEvent}'s payload: a nested
// event forwarded from a subagent's own Wire.
type SubagentEventPayload struct {
	SubagentName string `json:"subagent_name"`
	Event        Event  `json:"event"`
}

// ApprovalRequestPayload is Request{Type: RequestApprovalRequest}'s payload.
type ApprovalRequestPayload struct {
	RequestID   string                 `json:"request_id"`
	Sender      string                 `json:"sender"`
	Action      string                 `json:"action"`
	Description string                 `json:"description"`
	Display     []toolset.DisplayBlock `json:"display,omitempty"`
}

// ToolCallRequestPayload is Request{Type: RequestToolCallRequest}'s payload,
// sent to a UI hosting an externally registered tool.
type ToolCallRequestPayload struct {
	ToolCallID string `json:"tool_call_id"`
	Name       string `json:"name"`
	Arguments  string `json:"arguments"`
}

// ToolCallResponsePayload is the shape a UI client sends back in answer to a
// ToolCallRequest.
type ToolCallResponsePayload struct {
	ToolCallID  string                  `json:"tool_call_id"`
	ReturnValue toolset.ToolReturnValue `json:"return_value"`
}
