package builtin

import (
	"context"
	"testing"

	"github.com/gencode-ai/agentcore/internal/toolset"
)

type fakeSpawner struct {
	gotType, gotDesc, gotPrompt string
	result                      toolset.ToolReturnValue
}

func (f *fakeSpawner) SpawnSubagent(_ context.Context, subagentType, description, prompt string) toolset.ToolReturnValue {
	f.gotType, f.gotDesc, f.gotPrompt = subagentType, description, prompt
	return f.result
}

func TestTaskRejectsMissingPrompt(t *testing.T) {
	tk := &Task{Spawner: &fakeSpawner{}}
	got := tk.Execute(context.Background(), map[string]any{"description": "do a thing"})
	if got.Kind != toolset.ReturnError || got.Brief != toolset.BriefValidateError {
		t.Fatalf("got %+v, want a ValidateError", got)
	}
}

func TestTaskRejectsWithNoSpawnerAttached(t *testing.T) {
	tk := &Task{}
	got := tk.Execute(context.Background(), map[string]any{"description": "x", "prompt": "do it"})
	if got.Kind != toolset.ReturnError || got.Brief != toolset.BriefRuntimeError {
		t.Fatalf("got %+v, want a RuntimeError", got)
	}
}

func TestTaskForwardsArgsToSpawner(t *testing.T) {
	spawner := &fakeSpawner{result: toolset.Ok("subagent says hi")}
	tk := &Task{Spawner: spawner}

	got := tk.Execute(context.Background(), map[string]any{
		"description":   "review the diff",
		"prompt":        "review internal/soul for bugs",
		"subagent_type": "reviewer",
	})

	if got.Kind != toolset.ReturnOk || got.Output != "subagent says hi" {
		t.Fatalf("got %+v, want the spawner's result passed through", got)
	}
	if spawner.gotType != "reviewer" || spawner.gotDesc != "review the diff" || spawner.gotPrompt != "review internal/soul for bugs" {
		t.Fatalf("spawner got (%q, %q, %q), want the tool's args forwarded verbatim", spawner.gotType, spawner.gotDesc, spawner.gotPrompt)
	}
}
