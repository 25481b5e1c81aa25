package log

import (
	"context"
	"fmt"
	"strings"

	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
)

// agentTrackerKey is the context key for AgentTurnTracker
type agentTrackerKey struct{}

// WithAgentTracker returns a context with the agent tracker attached
func WithAgentTracker(ctx context.Context, tracker *AgentTurnTracker) context.Context {
	return context.WithValue(ctx, agentTrackerKey{}, tracker)
}

// GetAgentTracker retrieves the agent tracker from context, or nil if not present
func GetAgentTracker(ctx context.Context) *AgentTurnTracker {
	if tracker, ok := ctx.Value(agentTrackerKey{}).(*AgentTurnTracker); ok {
		return tracker
	}
	return nil
}

func formatMessages(sb *strings.Builder, history []message.Message) {
	fmt.Fprintf(sb, "    Messages(%d):\n", len(history))
	for i, msg := range history {
		switch msg.Role {
		case message.RoleUser:
			if text := msg.ExtractText(" "); text != "" {
				fmt.Fprintf(sb, "      [%d] User: %s\n", i, escapeForLog(text))
			}
		case message.RoleTool:
			fmt.Fprintf(sb, "      [%d] ToolResult[%s]: %s\n", i, msg.ToolCallID, escapeForLog(msg.ExtractText(" ")))
		case message.RoleAssistant:
			if text := msg.ExtractText(" "); text != "" {
				fmt.Fprintf(sb, "      [%d] Assistant: %s\n", i, escapeForLog(text))
			}
			for _, tc := range msg.ToolCalls {
				fmt.Fprintf(sb, "      [%d] ToolCall: %s(%s)\n", i, tc.Name, escapeForLog(tc.Arguments))
			}
		}
	}
}

// LogRequestCtx logs an LLM request with context (supports agent tracking)
func LogRequestCtx(ctx context.Context, providerName, model, systemPrompt string, tools []toolset.Schema, history []message.Message) {
	tracker := GetAgentTracker(ctx)
	var turn int
	var prefix string

	if tracker != nil {
		turn = tracker.NextTurn()
		prefix = tracker.GetTurnPrefix(turn)
		WriteAgentDevRequest(tracker, providerName, model, systemPrompt, tools, history, turn)
	} else {
		turn = NextTurn()
		prefix = GetTurnPrefix(turn)
		WriteDevRequest(providerName, model, systemPrompt, tools, history, turn)
	}

	if !enabled {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "───────────────────────────────────────── %s ─────────────────────────────────────────\n", prefix)
	fmt.Fprintf(&sb, ">>> [%s] %s\n", providerName, model)

	if systemPrompt != "" {
		fmt.Fprintf(&sb, "    System: %s\n", escapeForLog(systemPrompt))
	}

	if len(tools) > 0 {
		toolNames := make([]string, len(tools))
		for i, t := range tools {
			toolNames[i] = t.Name
		}
		fmt.Fprintf(&sb, "    Tools(%d): [%s]\n", len(tools), strings.Join(toolNames, ", "))
	}

	formatMessages(&sb, history)

	logger.Info(sb.String())
}

// LogRequest logs an LLM request in human-readable format (main loop only)
func LogRequest(providerName, model, systemPrompt string, tools []toolset.Schema, history []message.Message) {
	LogRequestCtx(context.Background(), providerName, model, systemPrompt, tools, history)
}
