package log

import (
	"encoding/json"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
)

// messageMarshaler wraps a Message for zap logging
type messageMarshaler message.Message

func (m messageMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("role", string(m.Role))
	if text := m.Content.ExtractText("\n"); text != "" {
		enc.AddString("content", text)
	}
	if m.ToolCallID != "" {
		enc.AddString("tool_call_id", m.ToolCallID)
	}
	if len(m.ToolCalls) > 0 {
		_ = enc.AddArray("tool_calls", toolCallsMarshaler(m.ToolCalls))
	}
	return nil
}

// messagesMarshaler wraps a slice of Messages for zap logging
type messagesMarshaler []message.Message

func (m messagesMarshaler) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, msg := range m {
		_ = enc.AppendObject(messageMarshaler(msg))
	}
	return nil
}

// MessagesField creates a zap field for messages
func MessagesField(messages []message.Message) zap.Field {
	return zap.Array("messages", messagesMarshaler(messages))
}

// schemaMarshaler wraps a tool schema for zap logging
type schemaMarshaler toolset.Schema

func (t schemaMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("name", t.Name)
	enc.AddString("description", t.Description)
	// Marshal parameters as JSON string for readability
	if t.Parameters != nil {
		paramsJSON, err := json.Marshal(t.Parameters)
		if err == nil {
			enc.AddString("parameters", string(paramsJSON))
		}
	}
	return nil
}

// schemasMarshaler wraps a slice of tool schemas for zap logging
type schemasMarshaler []toolset.Schema

func (t schemasMarshaler) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, tool := range t {
		_ = enc.AppendObject(schemaMarshaler(tool))
	}
	return nil
}

// ToolsField creates a zap field for the schemas offered to one step.
func ToolsField(tools []toolset.Schema) zap.Field {
	return zap.Array("tools", schemasMarshaler(tools))
}

// toolCallMarshaler wraps a ToolCall for zap logging
type toolCallMarshaler message.ToolCall

func (tc toolCallMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("id", tc.ID)
	enc.AddString("name", tc.Name)
	enc.AddString("arguments", tc.Arguments)
	return nil
}

// toolCallsMarshaler wraps a slice of ToolCalls for zap logging
type toolCallsMarshaler []message.ToolCall

func (tc toolCallsMarshaler) MarshalLogArray(enc zapcore.ArrayEncoder) error {
	for _, call := range tc {
		_ = enc.AppendObject(toolCallMarshaler(call))
	}
	return nil
}

// ToolCallsField creates a zap field for tool calls
func ToolCallsField(toolCalls []message.ToolCall) zap.Field {
	return zap.Array("tool_calls", toolCallsMarshaler(toolCalls))
}

// toolResultMarshaler wraps a Result for zap logging
type toolResultMarshaler toolset.Result

func (tr toolResultMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("tool_call_id", tr.ToolCallID)
	enc.AddBool("is_error", tr.ReturnValue.Kind == toolset.ReturnError)
	if tr.ReturnValue.Brief != "" {
		enc.AddString("brief", tr.ReturnValue.Brief)
	}
	return nil
}

// ToolResultField creates a zap field for one tool result.
func ToolResultField(result toolset.Result) zap.Field {
	return zap.Object("tool_result", toolResultMarshaler(result))
}

// usageMarshaler wraps TokenUsage for zap logging
type usageMarshaler message.TokenUsage

func (u usageMarshaler) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddInt("input_tokens", u.Input())
	enc.AddInt("output_tokens", u.Output)
	enc.AddInt("cache_read_tokens", u.InputCacheRead)
	enc.AddInt("cache_creation_tokens", u.InputCacheCreation)
	return nil
}

// UsageField creates a zap field for token usage.
func UsageField(usage message.TokenUsage) zap.Field {
	return zap.Object("usage", usageMarshaler(usage))
}
