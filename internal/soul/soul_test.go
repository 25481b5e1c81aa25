package soul

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/gencode-ai/agentcore/internal/agent"
	"github.com/gencode-ai/agentcore/internal/approval"
	agentcontext "github.com/gencode-ai/agentcore/internal/context"
	"github.com/gencode-ai/agentcore/internal/denwarenji"
	"github.com/gencode-ai/agentcore/internal/llm"
	"github.com/gencode-ai/agentcore/internal/llm/fake"
	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
	"github.com/gencode-ai/agentcore/internal/toolset/builtin"
	"github.com/gencode-ai/agentcore/internal/wire"
)

// newTestSoul builds a Soul over a scratch context.jsonl and a fresh Wire,
// with the given provider wired in as a model of unbounded context size
// unless overridden by the caller afterward.
func newTestSoul(t *testing.T, provider llm.ChatProvider) (*Soul, *agent.Runtime) {
	t.Helper()

	ctx, err := agentcontext.Open(filepath.Join(t.TempDir(), "context.jsonl"))
	if err != nil {
		t.Fatalf("context.Open: %v", err)
	}
	t.Cleanup(func() { ctx.Close() })

	w, err := wire.New("")
	if err != nil {
		t.Fatalf("wire.New: %v", err)
	}
	t.Cleanup(func() { w.Close() })

	ts := toolset.New(nil, nil)
	dmail := denwarenji.New()
	ts.RegisterBuiltin(&builtin.SendDMail{DMail: dmail})

	rt := &agent.Runtime{
		Config: agent.Config{Name: "root", LoopControl: agent.LoopControl{
			MaxStepsPerTurn:     10,
			MaxRetriesPerStep:   2,
			ReservedContextSize: 64,
		}},
		LLM: &llm.Model{
			Provider:       provider,
			MaxContextSize: 1_000_000,
			Capabilities:   map[llm.Capability]bool{},
		},
		Wire:        w,
		Context:     ctx,
		Approval:    approval.New(nil, true),
		DMail:       dmail,
		Toolset:     ts,
		LaborMarket: agent.NewLaborMarket(),
	}
	a := agent.New(rt.Config, rt)
	return New(a, nil), rt
}

func TestTurnFinishesOnContentOnlyReply(t *testing.T) {
	provider := fake.New(fake.Response{ID: "r1", Parts: []message.ContentPart{message.Text("hi there")}})
	s, _ := newTestSoul(t, provider)

	outcome, err := s.turn(context.Background(), message.NewUserMessage("hello"))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	if outcome.Stop != TurnFinished {
		t.Fatalf("Stop = %q, want %q", outcome.Stop, TurnFinished)
	}
	if outcome.Steps != 1 {
		t.Fatalf("Steps = %d, want 1", outcome.Steps)
	}

	msgs := s.context.Messages()
	if len(msgs) != 2 {
		t.Fatalf("len(messages) = %d, want 2 (user + assistant)", len(msgs))
	}
	if msgs[0].Role != message.RoleUser || msgs[1].Role != message.RoleAssistant {
		t.Fatalf("unexpected roles: %+v %+v", msgs[0].Role, msgs[1].Role)
	}
}

func TestTurnWithoutLLMReturnsError(t *testing.T) {
	s, rt := newTestSoul(t, fake.New())
	rt.LLM = nil

	_, err := s.turn(context.Background(), message.NewUserMessage("hello"))
	if _, ok := err.(LLMNotSetError); !ok {
		t.Fatalf("err = %v, want LLMNotSetError", err)
	}
}

func TestTurnRunsToolCallThenFinishes(t *testing.T) {
	toolCall := message.ToolCall{ID: "call1", Name: "SendDMail", Arguments: `{"checkpoint_id":0,"message":"note"}`}
	provider := fake.New(
		fake.Response{ID: "r1", ToolCalls: []message.ToolCall{toolCall}},
		fake.Response{ID: "r2", Parts: []message.ContentPart{message.Text("done")}},
	)
	s, _ := newTestSoul(t, provider)

	outcome, err := s.turn(context.Background(), message.NewUserMessage("please rewind"))
	if err != nil {
		t.Fatalf("turn: %v", err)
	}
	// The first step's tool call rewinds the turn back to checkpoint 0, so the
	// loop restarts; the second generate call (the fake's r2) then finishes
	// the replayed turn with plain content.
	if outcome.Stop != TurnFinished {
		t.Fatalf("Stop = %q, want %q", outcome.Stop, TurnFinished)
	}
}

func TestMaxStepsReachedIsNotAnError(t *testing.T) {
	toolCall := message.ToolCall{ID: "loop", Name: "Noop", Arguments: `{}`}
	var responses []fake.Response
	for i := 0; i < 5; i++ {
		responses = append(responses, fake.Response{ID: "r", ToolCalls: []message.ToolCall{toolCall}})
	}
	provider := fake.New(responses...)
	s, rt := newTestSoul(t, provider)
	rt.Toolset.RegisterBuiltin(&noopTool{})
	rt.Config.LoopControl.MaxStepsPerTurn = 3

	outcome, err := s.turn(context.Background(), message.NewUserMessage("loop forever"))
	if err != nil {
		t.Fatalf("turn returned error for max-steps-reached: %v", err)
	}
	if outcome.Stop != TurnMaxStepsReached {
		t.Fatalf("Stop = %q, want %q", outcome.Stop, TurnMaxStepsReached)
	}
	if outcome.Steps != 3 {
		t.Fatalf("Steps = %d, want 3", outcome.Steps)
	}
}

func TestDecodeUserInputAcceptsBareString(t *testing.T) {
	msg, raw, err := decodeUserInput([]byte(`"hello world"`))
	if err != nil {
		t.Fatalf("decodeUserInput: %v", err)
	}
	if raw != "hello world" {
		t.Fatalf("raw = %q", raw)
	}
	if got := msg.Content.ExtractText(""); got != "hello world" {
		t.Fatalf("msg text = %q", got)
	}
}

func TestDecodeUserInputAcceptsPartsArray(t *testing.T) {
	raw := []byte(`[{"type":"text","text":"a"},{"type":"text","text":"b"}]`)
	msg, rawText, err := decodeUserInput(raw)
	if err != nil {
		t.Fatalf("decodeUserInput: %v", err)
	}
	if rawText != "a b" {
		t.Fatalf("rawText = %q, want %q", rawText, "a b")
	}
	if len(msg.Content.Parts) != 2 {
		t.Fatalf("parts = %+v", msg.Content.Parts)
	}
}

// noopTool is a tool call with no external effect, used to drive the agent
// loop a fixed number of steps without requiring approval plumbing.
type noopTool struct{}

func (noopTool) Name() string                { return "Noop" }
func (noopTool) Description() string         { return "does nothing" }
func (noopTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (noopTool) RequiresApproval(map[string]any) (string, string, []toolset.DisplayBlock) {
	return "", "", nil
}
func (noopTool) Execute(context.Context, map[string]any) toolset.ToolReturnValue {
	return toolset.Ok("ok")
}
