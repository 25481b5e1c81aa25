package log

import (
	"context"
	"fmt"
	"strings"

	"github.com/gencode-ai/agentcore/internal/message"
)

func formatResponse(sb *strings.Builder, parts []message.ContentPart, toolCalls []message.ToolCall, usage message.TokenUsage) {
	if text := message.Parts(parts...).ExtractText(" "); text != "" {
		sb.WriteString("    Content:\n")
		for _, line := range strings.Split(text, "\n") {
			fmt.Fprintf(sb, "        %s\n", line)
		}
	}
	if len(toolCalls) > 0 {
		fmt.Fprintf(sb, "    ToolCalls(%d):\n", len(toolCalls))
		for _, tc := range toolCalls {
			fmt.Fprintf(sb, "      [%s] %s(%s)\n", tc.ID, tc.Name, escapeForLog(tc.Arguments))
		}
	}
	fmt.Fprintf(sb, "    Usage: in=%d out=%d\n", usage.Input(), usage.Output)
}

// LogResponseCtx logs an LLM response with context (supports agent tracking)
func LogResponseCtx(ctx context.Context, providerName string, parts []message.ContentPart, toolCalls []message.ToolCall, usage message.TokenUsage, genErr error) {
	tracker := GetAgentTracker(ctx)
	var turn int
	var prefix string

	if tracker != nil {
		turn = tracker.CurrentTurn()
		prefix = tracker.GetTurnPrefix(turn)
		WriteAgentDevResponse(tracker, providerName, parts, toolCalls, usage, genErr, turn)
	} else {
		turn = CurrentTurn()
		prefix = GetTurnPrefix(turn)
		WriteDevResponse(providerName, parts, toolCalls, usage, genErr, turn)
	}

	if !enabled {
		return
	}

	var sb strings.Builder
	if genErr != nil {
		fmt.Fprintf(&sb, "<<< [%s] %s ERROR: %v\n", prefix, providerName, genErr)
		logger.Info(sb.String())
		return
	}

	fmt.Fprintf(&sb, "<<< [%s] %s\n", prefix, providerName)
	formatResponse(&sb, parts, toolCalls, usage)

	logger.Info(sb.String())
}

// LogResponse logs an LLM response in human-readable format (main loop only)
func LogResponse(providerName string, parts []message.ContentPart, toolCalls []message.ToolCall, usage message.TokenUsage, genErr error) {
	LogResponseCtx(context.Background(), providerName, parts, toolCalls, usage, genErr)
}

// LogError logs an error in human-readable format
func LogError(ctx string, err error) {
	if !enabled {
		return
	}
	logger.Error(fmt.Sprintf("!!! ERROR [%s] %v", ctx, err))
}
