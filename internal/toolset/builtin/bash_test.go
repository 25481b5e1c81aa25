package builtin

import (
	"context"
	"strings"
	"testing"

	"github.com/gencode-ai/agentcore/internal/toolset"
)

func TestBashExecuteReturnsCommandOutput(t *testing.T) {
	b := &Bash{}
	got := b.Execute(context.Background(), map[string]any{"command": "echo hi"})
	if got.Kind != toolset.ReturnOk {
		t.Fatalf("Kind = %q, want ok (message=%s)", got.Kind, got.Message)
	}
	if strings.TrimSpace(got.Output) != "hi" {
		t.Fatalf("Output = %q, want %q", got.Output, "hi")
	}
}

func TestBashRequiresApprovalTruncatesLongDescription(t *testing.T) {
	b := &Bash{}
	long := strings.Repeat("x", 200)
	_, description, _ := b.RequiresApproval(map[string]any{"command": "echo hi", "description": long})
	if len(description) > 80 {
		t.Fatalf("description length = %d, want <= 80 columns", len(description))
	}
	if !strings.HasSuffix(description, "...") {
		t.Fatalf("description = %q, want a truncation ellipsis", description)
	}
}

func TestBashRequiresApprovalFallsBackToCommand(t *testing.T) {
	b := &Bash{}
	_, description, _ := b.RequiresApproval(map[string]any{"command": "echo hi"})
	if description != "echo hi" {
		t.Fatalf("description = %q, want the command itself", description)
	}
}
