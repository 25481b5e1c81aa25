package soul

import (
	"context"
	"fmt"

	"github.com/gencode-ai/agentcore/internal/llm"
	"github.com/gencode-ai/agentcore/internal/message"
)

// Compaction replaces a context's history with a smaller one that preserves
// enough information to continue the conversation. It is invoked with the
// full history so far and the chat provider to summarize with.
type Compaction interface {
	Compact(ctx context.Context, history []message.Message, provider llm.ChatProvider) ([]message.Message, error)
}

const compactionSystemPrompt = `You are compacting a long agent conversation so it fits in a smaller context window.
Summarize the conversation so far into a single message that preserves:
- the user's original goal and any constraints they stated
- decisions already made and their rationale
- files read or modified, commands run, and their outcomes
- anything still in progress or left to do
Be thorough but concise. Do not invent information that isn't in the conversation.`

// SimpleCompaction is the default Compaction: one extra LLM call that
// summarizes the entire history into a single assistant message, which
// becomes the whole of the new history.
type SimpleCompaction struct{}

func (SimpleCompaction) Compact(ctx context.Context, history []message.Message, provider llm.ChatProvider) ([]message.Message, error) {
	stream, err := provider.Generate(ctx, compactionSystemPrompt, nil, history)
	if err != nil {
		return nil, err
	}
	parts, _, _, _, err := llm.Collect(stream)
	if err != nil {
		return nil, err
	}
	if len(parts) == 0 {
		return nil, fmt.Errorf("compaction: model returned no content")
	}
	summary := "Summary of the conversation so far, compacted to save context:\n\n" +
		message.Parts(parts...).ExtractText("\n")
	return []message.Message{{Role: message.RoleAssistant, Content: message.PlainText(summary)}}, nil
}
