package soul

import (
	"context"
	"testing"

	"github.com/gencode-ai/agentcore/internal/llm/fake"
	"github.com/gencode-ai/agentcore/internal/message"
)

func TestFindSlashCommandMatchesNameAndArg(t *testing.T) {
	s, _ := newTestSoul(t, fake.New())

	cmd, arg, ok := s.findSlashCommand("/compact now please")
	if !ok {
		t.Fatalf("expected /compact to be found")
	}
	if cmd.Name != "compact" {
		t.Fatalf("Name = %q, want %q", cmd.Name, "compact")
	}
	if arg != "now please" {
		t.Fatalf("arg = %q, want %q", arg, "now please")
	}
}

func TestFindSlashCommandRejectsPlainText(t *testing.T) {
	s, _ := newTestSoul(t, fake.New())
	if _, _, ok := s.findSlashCommand("not a command"); ok {
		t.Fatalf("expected plain text to not match a slash command")
	}
}

func TestFindSlashCommandRejectsUnknownName(t *testing.T) {
	s, _ := newTestSoul(t, fake.New())
	if _, _, ok := s.findSlashCommand("/does-not-exist"); ok {
		t.Fatalf("expected unknown command name to not match")
	}
}

func TestYoloTogglesApproval(t *testing.T) {
	s, _ := newTestSoul(t, fake.New())
	if s.yolo.Load() {
		t.Fatalf("yolo should start disabled")
	}

	cmd, _, ok := s.findSlashCommand("/yolo")
	if !ok {
		t.Fatalf("expected /yolo to be found")
	}
	if _, err := cmd.Run(context.Background(), s, ""); err != nil {
		t.Fatalf("run /yolo: %v", err)
	}
	if !s.yolo.Load() {
		t.Fatalf("yolo should be enabled after toggling once")
	}
}

func TestClearEmptiesContext(t *testing.T) {
	s, _ := newTestSoul(t, fake.New())
	if err := s.context.AppendMessage(message.NewUserMessage("hi")); err != nil {
		t.Fatalf("AppendMessage: %v", err)
	}

	cmd, _, ok := s.findSlashCommand("/clear")
	if !ok {
		t.Fatalf("expected /clear to be found")
	}
	if _, err := cmd.Run(context.Background(), s, ""); err != nil {
		t.Fatalf("run /clear: %v", err)
	}
	if len(s.context.Messages()) != 0 {
		t.Fatalf("expected empty context after /clear, got %d messages", len(s.context.Messages()))
	}
}
