package agent

import (
	"path/filepath"
	"testing"

	"github.com/gencode-ai/agentcore/internal/approval"
	"github.com/gencode-ai/agentcore/internal/context"
	"github.com/gencode-ai/agentcore/internal/llm"
	"github.com/gencode-ai/agentcore/internal/llm/fake"
	"github.com/gencode-ai/agentcore/internal/toolset"
	"github.com/gencode-ai/agentcore/internal/wire"
)

func testModel() *llm.Model {
	return &llm.Model{Provider: fake.New(), MaxContextSize: 128000}
}

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	dir := t.TempDir()

	ctx, err := context.Open(filepath.Join(dir, "context.jsonl"))
	if err != nil {
		t.Fatalf("context.Open: %v", err)
	}
	w, err := wire.New(filepath.Join(dir, "wire.jsonl"))
	if err != nil {
		t.Fatalf("wire.New: %v", err)
	}
	appr := approval.New(nil, false)
	ts := toolset.New(appr, nil)

	return &Runtime{
		Config:      Config{Name: "root"},
		LLM:         testModel(),
		Wire:        w,
		Context:     ctx,
		Approval:    appr,
		Toolset:     ts,
		LaborMarket: NewLaborMarket(),
	}
}

func TestNewBuildsAgentFromRuntime(t *testing.T) {
	rt := newTestRuntime(t)
	cfg := Config{Name: "root", SystemPrompt: "be helpful"}

	a := New(cfg, rt)
	if a.Name != "root" || a.SystemPrompt != "be helpful" {
		t.Fatalf("unexpected agent: %+v", a)
	}
	if a.Toolset != rt.Toolset {
		t.Fatal("Agent.Toolset should be the Runtime's toolset")
	}
}

func TestFixedSubagentGetsPrivateLaborMarket(t *testing.T) {
	parent := newTestRuntime(t)
	childCtx, _ := context.Open(filepath.Join(t.TempDir(), "context.jsonl"))
	childWire, _ := wire.New(filepath.Join(t.TempDir(), "wire.jsonl"))
	childTools := toolset.New(parent.Approval, nil)

	child := NewFixedSubagentRuntime(parent, Config{Name: "reviewer"}, testModel(), childWire, childCtx, childTools)

	if child.LaborMarket == parent.LaborMarket {
		t.Fatal("fixed subagent must not share the parent's LaborMarket")
	}
	if child.Approval != parent.Approval {
		t.Fatal("fixed subagent must share the parent's Approval")
	}
	if child.DMail == nil {
		t.Fatal("fixed subagent must get a fresh DenwaRenji")
	}
}

func TestDynamicSubagentSharesLaborMarket(t *testing.T) {
	parent := newTestRuntime(t)
	childCtx, _ := context.Open(filepath.Join(t.TempDir(), "context.jsonl"))
	childWire, _ := wire.New(filepath.Join(t.TempDir(), "wire.jsonl"))
	childTools := toolset.New(parent.Approval, nil)

	child := NewDynamicSubagentRuntime(parent, Config{Name: "task-runner"}, testModel(), childWire, childCtx, childTools)

	if child.LaborMarket != parent.LaborMarket {
		t.Fatal("dynamic subagent must share the parent's LaborMarket")
	}
	if child.Approval != parent.Approval {
		t.Fatal("dynamic subagent must share the parent's Approval")
	}
}

func TestToolAccessAllowsEverythingByDefault(t *testing.T) {
	var access ToolAccess
	if !access.Allows("anything") {
		t.Fatal("zero-value ToolAccess should allow everything")
	}
}

func TestToolAccessDenylist(t *testing.T) {
	access := ToolAccess{Mode: ToolAccessDenylist, Deny: []string{"Bash"}}
	if access.Allows("Bash") {
		t.Fatal("denylist should block Bash")
	}
	if !access.Allows("ReadFile") {
		t.Fatal("denylist should allow everything else")
	}
}
