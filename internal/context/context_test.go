package context

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/gencode-ai/agentcore/internal/message"
)

func newTestContext(t *testing.T) (*Context, string) {
	t.Helper()
	dir, err := os.MkdirTemp("", "context-test-*")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.RemoveAll(dir) })

	path := filepath.Join(dir, "context.jsonl")
	c, err := Open(path)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { c.Close() })
	return c, path
}

func TestAppendAndReload(t *testing.T) {
	c, path := newTestContext(t)

	if err := c.AppendMessage(message.NewUserMessage("hello")); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	if err := c.AppendMessage(message.Message{Role: message.RoleAssistant, Content: message.PlainText("hi there")}); err != nil {
		t.Fatalf("AppendMessage failed: %v", err)
	}
	c.Close()

	reloaded, err := Open(path)
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	defer reloaded.Close()

	msgs := reloaded.Messages()
	if len(msgs) != 2 {
		t.Fatalf("expected 2 messages after reload, got %d", len(msgs))
	}
	if msgs[0].ExtractText("") != "hello" {
		t.Errorf("expected first message text 'hello', got %q", msgs[0].ExtractText(""))
	}
}

func TestCheckpointAndRevert(t *testing.T) {
	c, _ := newTestContext(t)

	cp0 := c.Checkpoint(false)
	if cp0 != 0 {
		t.Fatalf("expected first checkpoint id 0, got %d", cp0)
	}

	if err := c.AppendMessage(message.NewUserMessage("turn one")); err != nil {
		t.Fatal(err)
	}
	if err := c.AppendMessage(message.Message{Role: message.RoleAssistant, Content: message.PlainText("reply one")}); err != nil {
		t.Fatal(err)
	}

	cp1 := c.Checkpoint(true)
	if cp1 != 1 {
		t.Fatalf("expected second checkpoint id 1, got %d", cp1)
	}

	if err := c.AppendMessage(message.NewUserMessage("turn two")); err != nil {
		t.Fatal(err)
	}
	if len(c.Messages()) != 3 {
		t.Fatalf("expected 3 messages before revert, got %d", len(c.Messages()))
	}

	if err := c.RevertTo(cp1); err != nil {
		t.Fatalf("RevertTo failed: %v", err)
	}
	if len(c.Messages()) != 2 {
		t.Fatalf("expected 2 messages after revert, got %d", len(c.Messages()))
	}
	if c.NCheckpoints() != 2 {
		t.Fatalf("expected 2 surviving checkpoints, got %d", c.NCheckpoints())
	}
}

func TestCheckpointExcludesTrailingUserMessage(t *testing.T) {
	c, _ := newTestContext(t)

	if err := c.AppendMessage(message.NewUserMessage("pending prompt")); err != nil {
		t.Fatal(err)
	}
	id := c.Checkpoint(false)
	if err := c.RevertTo(id); err != nil {
		t.Fatalf("RevertTo failed: %v", err)
	}
	if len(c.Messages()) != 0 {
		t.Fatalf("expected checkpoint(false) to land before the trailing user message, got %d messages", len(c.Messages()))
	}
}

func TestCheckpointIdempotent(t *testing.T) {
	c, _ := newTestContext(t)

	first := c.Checkpoint(true)
	second := c.Checkpoint(true)
	if first != second {
		t.Fatalf("expected repeated Checkpoint at the same offset to be idempotent, got %d then %d", first, second)
	}
}

func TestRevertRejectsOutOfRangeID(t *testing.T) {
	c, _ := newTestContext(t)
	if err := c.RevertTo(5); err == nil {
		t.Fatal("expected RevertTo with an out-of-range id to fail")
	}
}

func TestClearRotatesAndResets(t *testing.T) {
	c, path := newTestContext(t)

	if err := c.AppendMessage(message.NewUserMessage("before clear")); err != nil {
		t.Fatal(err)
	}
	c.UpdateTokenCount(42)
	c.Checkpoint(true)

	if err := c.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	if len(c.Messages()) != 0 {
		t.Fatalf("expected empty log after Clear, got %d messages", len(c.Messages()))
	}
	if c.TokenCount() != 0 {
		t.Fatalf("expected token count reset to 0, got %d", c.TokenCount())
	}
	if c.NCheckpoints() != 0 {
		t.Fatalf("expected checkpoints reset, got %d", c.NCheckpoints())
	}

	matches, err := filepath.Glob(path + ".*.bak")
	if err != nil {
		t.Fatal(err)
	}
	if len(matches) != 1 {
		t.Fatalf("expected exactly one rotated backup file, found %v", matches)
	}
}
