package soul

import (
	"context"
	"testing"

	"github.com/gencode-ai/agentcore/internal/llm/fake"
	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
	"github.com/gencode-ai/agentcore/internal/wire"
)

func TestSpawnSubagentReturnsItsFinalAnswer(t *testing.T) {
	provider := fake.New(fake.Response{ID: "r1", Parts: []message.ContentPart{message.Text("child says hi")}})
	s, rt := newTestSoul(t, provider)

	_, sub := rt.Wire.Subscribe()

	got := s.SpawnSubagent(context.Background(), "", "say hi", "say hi back")
	if got.Kind != toolset.ReturnOk || got.Output != "child says hi" {
		t.Fatalf("got %+v, want the subagent's final assistant text", got)
	}

	if list := rt.LaborMarket.List(); len(list) != 0 {
		t.Fatalf("LaborMarket.List() = %v, want the finished subagent removed", list)
	}

	// SpawnSubagent only returns once its event-forwarding goroutine has
	// drained the child's Wire, so every forwarded event is already queued
	// here; a closed done channel drains it without blocking.
	done := make(chan struct{})
	close(done)
	sawSubagentEvent := false
	for {
		env, ok := sub.Receive(done)
		if !ok {
			break
		}
		if env.Type == wire.EventSubagentEvent {
			sawSubagentEvent = true
		}
	}
	if !sawSubagentEvent {
		t.Fatal("expected at least one SubagentEvent forwarded onto the parent Wire")
	}
}

func TestSpawnSubagentRejectsEmptyPrompt(t *testing.T) {
	provider := fake.New()
	s, _ := newTestSoul(t, provider)

	got := s.SpawnSubagent(context.Background(), "", "desc", "")
	if got.Kind != toolset.ReturnError || got.Brief != toolset.BriefValidateError {
		t.Fatalf("got %+v, want a ValidateError", got)
	}
}

func TestLookupFixedSubagentFallsBackToDynamic(t *testing.T) {
	provider := fake.New()
	s, _ := newTestSoul(t, provider)

	cfg, fixed := s.lookupFixedSubagent("reviewer")
	if fixed {
		t.Fatal("expected no fixed subagent named reviewer on a bare root Config")
	}
	if cfg.Name != "reviewer" {
		t.Fatalf("dynamic subagent name = %q, want the requested subagent_type echoed back", cfg.Name)
	}
}

func TestLookupFixedSubagentDefaultsNameWhenUnset(t *testing.T) {
	provider := fake.New()
	s, _ := newTestSoul(t, provider)

	cfg, fixed := s.lookupFixedSubagent("")
	if fixed {
		t.Fatal("expected no fixed subagent match for an empty subagent_type")
	}
	if cfg.Name != defaultSubagentName {
		t.Fatalf("dynamic subagent name = %q, want %q", cfg.Name, defaultSubagentName)
	}
}
