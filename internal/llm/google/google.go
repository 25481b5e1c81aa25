// Package google adapts the Gemini API to the llm.ChatProvider capability
// using the official google.golang.org/genai SDK.
package google

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"google.golang.org/genai"

	"github.com/gencode-ai/agentcore/internal/llm"
	"github.com/gencode-ai/agentcore/internal/log"
	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
	"go.uber.org/zap"
)

// Provider adapts one Gemini model to llm.ChatProvider.
type Provider struct {
	client *genai.Client
	model  string
	effort llm.ThinkingEffort
}

// NewAPIKey constructs a Provider authenticated via GOOGLE_API_KEY (falling
// back to GEMINI_API_KEY), matching how the Gemini API is configured
// everywhere else in the corpus.
func NewAPIKey(ctx context.Context, model string) (*Provider, error) {
	apiKey := os.Getenv("GOOGLE_API_KEY")
	if apiKey == "" {
		apiKey = os.Getenv("GEMINI_API_KEY")
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, fmt.Errorf("google: building client: %w", err)
	}
	return &Provider{client: client, model: model}, nil
}

func (p *Provider) ModelName() string { return p.model }

func (p *Provider) ThinkingEffort() llm.ThinkingEffort { return p.effort }

func (p *Provider) WithThinking(effort llm.ThinkingEffort) llm.ChatProvider {
	next := *p
	next.effort = effort
	return &next
}

var thinkingBudgets = map[llm.ThinkingEffort]int32{
	llm.EffortLow:    4000,
	llm.EffortMedium: 10000,
	llm.EffortHigh:   24000,
}

func roleFor(r message.Role) string {
	switch r {
	case message.RoleAssistant:
		return "model"
	default:
		return "user"
	}
}

func toGeminiContents(history []message.Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(history))
	for _, msg := range history {
		var parts []*genai.Part

		switch msg.Role {
		case message.RoleTool:
			var result map[string]any
			text := msg.Content.ExtractText("\n")
			if err := json.Unmarshal([]byte(text), &result); err != nil {
				result = map[string]any{"result": text}
			}
			parts = append(parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{ID: msg.ToolCallID, Response: result},
			})

		case message.RoleAssistant:
			calls := msg.Content.ToolCalls()
			if text := msg.Content.ExtractText("\n"); text != "" {
				parts = append(parts, &genai.Part{Text: text})
			}
			for _, tc := range calls {
				var args map[string]any
				if tc.Arguments != "" {
					_ = json.Unmarshal([]byte(tc.Arguments), &args)
				}
				parts = append(parts, &genai.Part{FunctionCall: &genai.FunctionCall{ID: tc.ID, Name: tc.Name, Args: args}})
			}

		default:
			parts = append(parts, &genai.Part{Text: msg.Content.ExtractText("\n")})
		}

		out = append(out, &genai.Content{Role: roleFor(msg.Role), Parts: parts})
	}
	return out
}

func toGeminiTools(tools []toolset.Schema) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		fd := &genai.FunctionDeclaration{Name: t.Name, Description: t.Description}
		if len(t.Parameters) > 0 {
			var schema any
			if err := json.Unmarshal(t.Parameters, &schema); err == nil {
				fd.ParametersJsonSchema = schema
			}
		}
		decls = append(decls, fd)
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func (p *Provider) Generate(ctx context.Context, systemPrompt string, tools []toolset.Schema, history []message.Message) (*llm.Stream, error) {
	log.LogRequestCtx(ctx, "google", p.model, systemPrompt, tools, history)

	config := &genai.GenerateContentConfig{}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: systemPrompt}}}
	}
	if toolParams := toGeminiTools(tools); toolParams != nil {
		config.Tools = toolParams
	}
	if budget, ok := thinkingBudgets[p.effort]; ok {
		config.ThinkingConfig = &genai.ThinkingConfig{ThinkingBudget: &budget}
	}

	contents := toGeminiContents(history)
	out := llm.NewStream()
	go p.pump(ctx, contents, config, out)
	return out, nil
}

func (p *Provider) pump(ctx context.Context, contents []*genai.Content, config *genai.GenerateContentConfig, out *llm.Stream) {
	var usage message.TokenUsage
	var messageID string

	for result, err := range p.client.Models.GenerateContentStream(ctx, p.model, contents, config) {
		if err != nil {
			log.Logger().Warn("google stream error", zap.Error(err))
			out.Finish(messageID, usage, &llm.APIConnectionError{Cause: err})
			return
		}
		if result.ResponseID != "" {
			messageID = result.ResponseID
		}

		for _, candidate := range result.Candidates {
			if candidate.Content == nil {
				continue
			}
			for _, part := range candidate.Content.Parts {
				if part.Text != "" {
					out.Push(llm.StreamItem{Kind: llm.ItemContentPart, ContentPart: message.Text(part.Text)})
				}
				if part.FunctionCall != nil {
					argsJSON, _ := json.Marshal(part.FunctionCall.Args)
					out.Push(llm.StreamItem{Kind: llm.ItemToolCall, ToolCall: message.ToolCall{
						ID: part.FunctionCall.ID, Name: part.FunctionCall.Name, Arguments: string(argsJSON),
					}})
				}
			}
		}

		if result.UsageMetadata != nil {
			usage.InputOther = int(result.UsageMetadata.PromptTokenCount)
			usage.Output = int(result.UsageMetadata.CandidatesTokenCount)
		}
	}

	out.Finish(messageID, usage, nil)
}

var _ llm.ChatProvider = (*Provider)(nil)
