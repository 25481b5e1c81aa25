// Package openai adapts the OpenAI Chat Completions API to the
// llm.ChatProvider capability using the official openai-go SDK. Moonshot's
// Kimi models speak the same OpenAI-compatible wire format, so NewCompatible
// also backs cmd/gencoded's Moonshot provider with a custom base URL.
package openai

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/gencode-ai/agentcore/internal/llm"
	"github.com/gencode-ai/agentcore/internal/log"
	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
	"go.uber.org/zap"
)

// Provider adapts one Chat Completions model to llm.ChatProvider.
type Provider struct {
	client openai.Client
	model  string
	effort llm.ThinkingEffort
}

// NewAPIKey constructs a Provider authenticated via OPENAI_API_KEY (the SDK
// reads it from the environment when no option.WithAPIKey is given).
func NewAPIKey(model string) *Provider {
	return &Provider{client: openai.NewClient(), model: model}
}

// NewCompatible constructs a Provider against any OpenAI-compatible
// endpoint (Moonshot/Kimi, a self-hosted gateway, etc).
func NewCompatible(baseURL, apiKey, model string) *Provider {
	client := openai.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL))
	return &Provider{client: client, model: model}
}

func (p *Provider) ModelName() string { return p.model }

func (p *Provider) ThinkingEffort() llm.ThinkingEffort { return p.effort }

func (p *Provider) WithThinking(effort llm.ThinkingEffort) llm.ChatProvider {
	next := *p
	next.effort = effort
	return &next
}

var effortLevels = map[llm.ThinkingEffort]shared.ReasoningEffort{
	llm.EffortLow:    shared.ReasoningEffortLow,
	llm.EffortMedium: shared.ReasoningEffortMedium,
	llm.EffortHigh:   shared.ReasoningEffortHigh,
}

func toOpenAIMessages(systemPrompt string, history []message.Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(history)+1)
	if systemPrompt != "" {
		out = append(out, openai.SystemMessage(systemPrompt))
	}
	for _, msg := range history {
		switch msg.Role {
		case message.RoleTool:
			out = append(out, openai.ToolMessage(msg.Content.ExtractText("\n"), msg.ToolCallID))

		case message.RoleUser:
			out = append(out, openai.UserMessage(msg.Content.ExtractText("\n")))

		case message.RoleAssistant:
			calls := msg.Content.ToolCalls()
			if len(calls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content.ExtractText("\n")))
				continue
			}
			asst := openai.ChatCompletionAssistantMessageParam{}
			if text := msg.Content.ExtractText("\n"); text != "" {
				asst.Content.OfString = openai.Opt(text)
			}
			asst.ToolCalls = make([]openai.ChatCompletionMessageToolCallUnionParam, len(calls))
			for i, tc := range calls {
				asst.ToolCalls[i] = openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: tc.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      tc.Name,
							Arguments: tc.Arguments,
						},
					},
				}
			}
			out = append(out, openai.ChatCompletionMessageParamUnion{OfAssistant: &asst})

		default:
			out = append(out, openai.SystemMessage(msg.Content.ExtractText("\n")))
		}
	}
	return out
}

func toOpenAITools(tools []toolset.Schema) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]openai.ChatCompletionToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var params openai.FunctionParameters
		if len(t.Parameters) > 0 {
			var decoded map[string]any
			if err := json.Unmarshal(t.Parameters, &decoded); err == nil {
				params = decoded
			}
		}
		out = append(out, openai.ChatCompletionToolUnionParam{
			OfFunction: &openai.ChatCompletionFunctionToolParam{
				Function: openai.FunctionDefinitionParam{
					Name:        t.Name,
					Description: openai.String(t.Description),
					Parameters:  params,
				},
			},
		})
	}
	return out
}

func (p *Provider) Generate(ctx context.Context, systemPrompt string, tools []toolset.Schema, history []message.Message) (*llm.Stream, error) {
	log.LogRequestCtx(ctx, "openai", p.model, systemPrompt, tools, history)

	params := openai.ChatCompletionNewParams{
		Model:    p.model,
		Messages: toOpenAIMessages(systemPrompt, history),
	}
	if toolParams := toOpenAITools(tools); toolParams != nil {
		params.Tools = toolParams
	}
	if effort, ok := effortLevels[p.effort]; ok {
		params.ReasoningEffort = effort
	}

	stream := p.client.Chat.Completions.NewStreaming(ctx, params)
	out := llm.NewStream()
	go p.pump(stream, out)
	return out, nil
}

// chunkStream is the slice of the SDK's streaming response type this
// adapter depends on, named locally so it doesn't have to guess at the
// concrete ssestream generic's import path.
type chunkStream interface {
	Next() bool
	Current() openai.ChatCompletionChunk
	Err() error
}

func (p *Provider) pump(stream chunkStream, out *llm.Stream) {
	toolCalls := map[int64]*message.ToolCall{}
	order := []int64{}
	var usage message.TokenUsage
	var messageID string

	for stream.Next() {
		chunk := stream.Current()
		if chunk.ID != "" {
			messageID = chunk.ID
		}

		for _, choice := range chunk.Choices {
			if choice.Delta.Content != "" {
				out.Push(llm.StreamItem{Kind: llm.ItemContentPart, ContentPart: message.Text(choice.Delta.Content)})
			}
			for _, delta := range choice.Delta.ToolCalls {
				idx := int64(delta.Index)
				tc, seen := toolCalls[idx]
				if !seen {
					tc = &message.ToolCall{ID: delta.ID, Name: delta.Function.Name}
					toolCalls[idx] = tc
					order = append(order, idx)
				}
				if delta.Function.Arguments != "" {
					tc.Arguments += delta.Function.Arguments
					out.Push(llm.StreamItem{Kind: llm.ItemToolCallPart, ToolCallPart: llm.ToolCallDelta{
						ToolCallID: tc.ID, ToolName: tc.Name, Delta: delta.Function.Arguments,
					}})
				}
			}
		}

		if chunk.Usage.PromptTokens > 0 {
			usage.InputOther = int(chunk.Usage.PromptTokens)
		}
		if chunk.Usage.CompletionTokens > 0 {
			usage.Output = int(chunk.Usage.CompletionTokens)
		}
	}

	if err := stream.Err(); err != nil {
		out.Finish(messageID, usage, classifyErr(err))
		return
	}

	for _, idx := range order {
		out.Push(llm.StreamItem{Kind: llm.ItemToolCall, ToolCall: *toolCalls[idx]})
	}
	out.Finish(messageID, usage, nil)
}

func classifyErr(err error) error {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return &llm.APIStatusError{Code: apiErr.StatusCode, Message: apiErr.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.APITimeoutError{Cause: err}
	}
	log.Logger().Warn("openai stream error", zap.Error(err))
	return &llm.APIConnectionError{Cause: err}
}

var _ llm.ChatProvider = (*Provider)(nil)
