package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
)

func TestStreamDeliversItemsThenTerminalState(t *testing.T) {
	s := NewStream()
	go func() {
		s.Push(StreamItem{Kind: ItemContentPart, ContentPart: message.Text("a")})
		s.Push(StreamItem{Kind: ItemToolCall, ToolCall: message.ToolCall{ID: "1", Name: "fn"}})
		s.Finish("msg-1", message.TokenUsage{Output: 7}, nil)
	}()

	var parts []message.ContentPart
	var calls []message.ToolCall
	for s.Next() {
		switch item := s.Item(); item.Kind {
		case ItemContentPart:
			parts = append(parts, item.ContentPart)
		case ItemToolCall:
			calls = append(calls, item.ToolCall)
		}
	}
	if s.Err() != nil {
		t.Fatalf("Err() = %v, want nil", s.Err())
	}
	if s.ID() != "msg-1" {
		t.Fatalf("ID() = %q", s.ID())
	}
	if s.Usage().Output != 7 {
		t.Fatalf("Usage().Output = %d", s.Usage().Output)
	}
	if len(parts) != 1 || len(calls) != 1 {
		t.Fatalf("parts=%+v calls=%+v", parts, calls)
	}
}

func TestStreamSurfacesTerminalError(t *testing.T) {
	s := NewStream()
	wantErr := &APIConnectionError{Cause: errors.New("dial refused")}
	go s.Finish("", message.TokenUsage{}, wantErr)

	for s.Next() {
	}
	if s.Err() != wantErr {
		t.Fatalf("Err() = %v, want %v", s.Err(), wantErr)
	}
}

func TestIsRetryableClassification(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"connection", &APIConnectionError{Cause: errors.New("x")}, true},
		{"timeout", &APITimeoutError{Cause: errors.New("x")}, true},
		{"empty response", &APIEmptyResponseError{}, true},
		{"status 429", &APIStatusError{Code: 429}, true},
		{"status 500", &APIStatusError{Code: 500}, true},
		{"status 400", &APIStatusError{Code: 400}, false},
		{"status 401", &APIStatusError{Code: 401}, false},
		{"plain error", errors.New("nope"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := IsRetryable(tc.err); got != tc.want {
				t.Fatalf("IsRetryable(%v) = %v, want %v", tc.err, got, tc.want)
			}
		})
	}
}

// scriptedProvider is a minimal ChatProvider stub for retry tests, independent
// of the fake package to avoid an import cycle (fake depends on llm).
type scriptedProvider struct {
	attempts int
	fail     int // number of leading calls that return an error
	err      error
}

func (p *scriptedProvider) Generate(_ context.Context, _ string, _ []toolset.Schema, _ []message.Message) (*Stream, error) {
	p.attempts++
	if p.attempts <= p.fail {
		return nil, p.err
	}
	s := NewStream()
	s.Finish("ok", message.TokenUsage{}, nil)
	return s, nil
}
func (p *scriptedProvider) WithThinking(ThinkingEffort) ChatProvider { return p }
func (p *scriptedProvider) ThinkingEffort() ThinkingEffort           { return EffortOff }
func (p *scriptedProvider) ModelName() string                       { return "scripted" }

func TestGenerateWithRetrySucceedsAfterRetryableFailures(t *testing.T) {
	p := &scriptedProvider{fail: 2, err: &APIConnectionError{Cause: errors.New("flaky")}}
	s, err := GenerateWithRetry(context.Background(), p, "", nil, nil, 3)
	if err != nil {
		t.Fatalf("GenerateWithRetry: %v", err)
	}
	if s.ID() != "" {
		// stream not yet drained; draining is the caller's job.
	}
	if p.attempts != 3 {
		t.Fatalf("attempts = %d, want 3", p.attempts)
	}
}

func TestGenerateWithRetryStopsOnNonRetryableError(t *testing.T) {
	p := &scriptedProvider{fail: 1, err: &APIStatusError{Code: 401, Message: "bad key"}}
	_, err := GenerateWithRetry(context.Background(), p, "", nil, nil, 5)
	if err == nil {
		t.Fatal("expected error")
	}
	if p.attempts != 1 {
		t.Fatalf("attempts = %d, want 1 (no retry on non-retryable error)", p.attempts)
	}
}

func TestGenerateWithRetryExhaustsMaxRetries(t *testing.T) {
	p := &scriptedProvider{fail: 100, err: &APITimeoutError{Cause: errors.New("slow")}}
	_, err := GenerateWithRetry(context.Background(), p, "", nil, nil, 2)
	if err == nil {
		t.Fatal("expected error")
	}
	if p.attempts != 3 {
		t.Fatalf("attempts = %d, want 3 (initial + 2 retries)", p.attempts)
	}
}

func TestGenerateWithRetryRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &scriptedProvider{fail: 100, err: &APIConnectionError{Cause: errors.New("x")}}
	_, err := GenerateWithRetry(ctx, p, "", nil, nil, 5)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
