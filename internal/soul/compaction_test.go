package soul

import (
	"context"
	"testing"

	"github.com/gencode-ai/agentcore/internal/llm/fake"
	"github.com/gencode-ai/agentcore/internal/message"
)

func TestSimpleCompactionSummarizesHistory(t *testing.T) {
	provider := fake.New(fake.Response{ID: "summary", Parts: []message.ContentPart{message.Text("the gist of it")}})
	history := []message.Message{
		message.NewUserMessage("do the thing"),
		{Role: message.RoleAssistant, Content: message.PlainText("working on it")},
	}

	out, err := (SimpleCompaction{}).Compact(context.Background(), history, provider)
	if err != nil {
		t.Fatalf("Compact: %v", err)
	}
	if len(out) != 1 {
		t.Fatalf("len(out) = %d, want 1", len(out))
	}
	if out[0].Role != message.RoleAssistant {
		t.Fatalf("Role = %q, want %q", out[0].Role, message.RoleAssistant)
	}
	if got := out[0].ExtractText("\n"); got == "" {
		t.Fatalf("compacted message has no text")
	}
}

func TestSimpleCompactionPropagatesProviderError(t *testing.T) {
	wantErr := context.DeadlineExceeded
	provider := fake.New(fake.Response{Err: wantErr})

	_, err := (SimpleCompaction{}).Compact(context.Background(), nil, provider)
	if err == nil {
		t.Fatalf("expected error")
	}
}

func TestTurnCompactsWhenContextIsNearlyFull(t *testing.T) {
	provider := fake.New(
		fake.Response{ID: "summary", Parts: []message.ContentPart{message.Text("summary")}},
		fake.Response{ID: "reply", Parts: []message.ContentPart{message.Text("hi")}},
	)
	s, rt := newTestSoul(t, provider)
	rt.LLM.MaxContextSize = 100
	rt.Config.LoopControl.ReservedContextSize = 100
	s.context.UpdateTokenCount(50)

	outcome, err := s.turn(context.Background(), message.NewUserMessage("hello"))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if outcome.Stop != TurnFinished {
		t.Fatalf("Stop = %q, want %q", outcome.Stop, TurnFinished)
	}

	msgs := s.context.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(messages) after compaction = %d, want 2 (summary + reply)", len(msgs))
	}
}
