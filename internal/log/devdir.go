package log

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
)

// DevRequest represents the request data saved to JSON file
type DevRequest struct {
	Turn         int               `json:"turn"`
	Timestamp    time.Time         `json:"timestamp"`
	Provider     string            `json:"provider"`
	Model        string            `json:"model"`
	SystemPrompt string            `json:"system_prompt,omitempty"`
	Tools        []toolset.Schema  `json:"tools,omitempty"`
	Messages     []message.Message `json:"messages"`
}

// DevResponse represents the response data saved to JSON file
type DevResponse struct {
	Turn      int                    `json:"turn"`
	Timestamp time.Time              `json:"timestamp"`
	Provider  string                 `json:"provider"`
	Parts     []message.ContentPart `json:"parts,omitempty"`
	ToolCalls []message.ToolCall     `json:"tool_calls,omitempty"`
	Usage     message.TokenUsage     `json:"usage"`
	Err       string                 `json:"error,omitempty"`
}

// WriteDevRequest writes request data to JSON file in GENCODE_DEV_DIR
func WriteDevRequest(providerName, model, systemPrompt string, tools []toolset.Schema, history []message.Message, turn int) {
	if !devEnabled {
		return
	}
	req := DevRequest{
		Turn:         turn,
		Timestamp:    time.Now().UTC(),
		Provider:     providerName,
		Model:        model,
		SystemPrompt: systemPrompt,
		Tools:        tools,
		Messages:     history,
	}
	filename := filepath.Join(devDir, fmt.Sprintf("turn-%03d-request.json", turn))
	writeJSON(filename, req)
}

// WriteDevResponse writes response data to JSON file in GENCODE_DEV_DIR
func WriteDevResponse(providerName string, parts []message.ContentPart, toolCalls []message.ToolCall, usage message.TokenUsage, genErr error, turn int) {
	if !devEnabled {
		return
	}
	res := DevResponse{
		Turn:      turn,
		Timestamp: time.Now().UTC(),
		Provider:  providerName,
		Parts:     parts,
		ToolCalls: toolCalls,
		Usage:     usage,
	}
	if genErr != nil {
		res.Err = genErr.Error()
	}
	filename := filepath.Join(devDir, fmt.Sprintf("turn-%03d-response.json", turn))
	writeJSON(filename, res)
}

// WriteAgentDevRequest is WriteDevRequest's subagent-tracked variant: the
// filename carries the tracker's nested prefix (main-005:explore-002, written
// with colons as underscores: main-005_explore-002) rather
// than a bare turn number, so concurrent subagent dumps don't collide.
func WriteAgentDevRequest(tracker *AgentTurnTracker, providerName, model, systemPrompt string, tools []toolset.Schema, history []message.Message, turn int) {
	if !devEnabled {
		return
	}
	req := DevRequest{
		Turn:         turn,
		Timestamp:    time.Now().UTC(),
		Provider:     providerName,
		Model:        model,
		SystemPrompt: systemPrompt,
		Tools:        tools,
		Messages:     history,
	}
	filename := filepath.Join(devDir, fmt.Sprintf("%s-request.json", sanitizeAgentName(tracker.GetTurnPrefix(turn))))
	writeJSON(filename, req)
}

// WriteAgentDevResponse is WriteDevResponse's subagent-tracked variant.
func WriteAgentDevResponse(tracker *AgentTurnTracker, providerName string, parts []message.ContentPart, toolCalls []message.ToolCall, usage message.TokenUsage, genErr error, turn int) {
	if !devEnabled {
		return
	}
	res := DevResponse{
		Turn:      turn,
		Timestamp: time.Now().UTC(),
		Provider:  providerName,
		Parts:     parts,
		ToolCalls: toolCalls,
		Usage:     usage,
	}
	if genErr != nil {
		res.Err = genErr.Error()
	}
	filename := filepath.Join(devDir, fmt.Sprintf("%s-response.json", sanitizeAgentName(tracker.GetTurnPrefix(turn))))
	writeJSON(filename, res)
}

func writeJSON(filename string, data any) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return
	}
	_ = os.WriteFile(filename, jsonData, 0644)
}
