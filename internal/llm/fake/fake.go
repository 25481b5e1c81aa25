// Package fake provides a scripted llm.ChatProvider double for deterministic
// tests elsewhere in the tree, mirroring the teacher's own FakeClient.
package fake

import (
	"context"
	"sync"

	"github.com/gencode-ai/agentcore/internal/llm"
	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
)

// Response is one scripted turn: either content parts and tool calls to
// stream back, or an error to fail the call with.
type Response struct {
	ID        string
	Parts     []message.ContentPart
	ToolCalls []message.ToolCall
	Usage     message.TokenUsage
	Err       error
}

// Call records the arguments Generate was invoked with, for assertions.
type Call struct {
	SystemPrompt string
	Tools        []toolset.Schema
	History      []message.Message
	Effort       llm.ThinkingEffort
}

// Provider is a test double that pops scripted Responses in order. Once
// Responses is exhausted it returns a fixed text-only reply ("no more
// responses"), matching the
// teacher's "no more responses" fallback rather than panicking.
type Provider struct {
	mu        sync.Mutex
	Responses []Response
	Model     string
	effort    llm.ThinkingEffort

	// Calls records every Generate invocation, in order.
	Calls []Call
}

func New(responses ...Response) *Provider {
	return &Provider{Responses: responses, Model: "fake-model"}
}

func (p *Provider) ModelName() string {
	if p.Model != "" {
		return p.Model
	}
	return "fake-model"
}

func (p *Provider) ThinkingEffort() llm.ThinkingEffort { return p.effort }

func (p *Provider) WithThinking(effort llm.ThinkingEffort) llm.ChatProvider {
	next := *p
	next.effort = effort
	return &next
}

func (p *Provider) Generate(_ context.Context, systemPrompt string, tools []toolset.Schema, history []message.Message) (*llm.Stream, error) {
	p.mu.Lock()
	p.Calls = append(p.Calls, Call{SystemPrompt: systemPrompt, Tools: tools, History: history, Effort: p.effort})
	resp := p.next()
	p.mu.Unlock()

	out := llm.NewStream()
	go func() {
		if resp.Err != nil {
			out.Finish(resp.ID, resp.Usage, resp.Err)
			return
		}
		for _, part := range resp.Parts {
			out.Push(llm.StreamItem{Kind: llm.ItemContentPart, ContentPart: part})
		}
		for _, tc := range resp.ToolCalls {
			out.Push(llm.StreamItem{Kind: llm.ItemToolCall, ToolCall: tc})
		}
		out.Finish(resp.ID, resp.Usage, nil)
	}()
	return out, nil
}

func (p *Provider) next() Response {
	if len(p.Responses) == 0 {
		return Response{ID: "fake-empty", Parts: []message.ContentPart{message.Text("no more responses")}}
	}
	resp := p.Responses[0]
	p.Responses = p.Responses[1:]
	return resp
}

var _ llm.ChatProvider = (*Provider)(nil)
