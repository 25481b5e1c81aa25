package soul

import (
	"context"
	"testing"

	"github.com/gencode-ai/agentcore/internal/llm/fake"
	"github.com/gencode-ai/agentcore/internal/message"
)

func TestRalphLoopStopsOnChoice(t *testing.T) {
	provider := fake.New(
		fake.Response{ID: "task1", Parts: []message.ContentPart{message.Text("did the work")}},
		fake.Response{ID: "decision1", Parts: []message.ContentPart{message.Text("<choice>STOP</choice>")}},
	)
	s, _ := newTestSoul(t, provider)

	runner := RalphLoop(s, "do the thing", -1)
	outcome, err := runner.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Stop != TurnFinished {
		t.Fatalf("Stop = %q, want %q", outcome.Stop, TurnFinished)
	}
}

func TestRalphLoopRepromptsOnUnknownChoice(t *testing.T) {
	provider := fake.New(
		fake.Response{ID: "task1", Parts: []message.ContentPart{message.Text("did the work")}},
		fake.Response{ID: "decision-bad", Parts: []message.ContentPart{message.Text("<choice>MAYBE</choice>")}},
		fake.Response{ID: "decision-good", Parts: []message.ContentPart{message.Text("<choice>STOP</choice>")}},
	)
	s, _ := newTestSoul(t, provider)

	runner := RalphLoop(s, "do the thing", -1)
	outcome, err := runner.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Stop != TurnFinished {
		t.Fatalf("Stop = %q, want %q", outcome.Stop, TurnFinished)
	}
}

func TestRalphLoopCapsIterations(t *testing.T) {
	var responses []fake.Response
	for i := 0; i < 10; i++ {
		responses = append(responses,
			fake.Response{ID: "task", Parts: []message.ContentPart{message.Text("working")}},
			fake.Response{ID: "decision", Parts: []message.ContentPart{message.Text("<choice>CONTINUE</choice>")}},
		)
	}
	provider := fake.New(responses...)
	s, _ := newTestSoul(t, provider)

	runner := RalphLoop(s, "do the thing", 1) // at most 2 task executions
	outcome, err := runner.Run(context.Background(), "do the thing")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if outcome.Stop != TurnMaxStepsReached {
		t.Fatalf("Stop = %q, want %q", outcome.Stop, TurnMaxStepsReached)
	}
}
