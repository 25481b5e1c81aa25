// Package anthropic adapts the Anthropic Messages API to the llm.ChatProvider
// capability using the official anthropic-sdk-go client.
package anthropic

import (
	"context"
	"encoding/json"
	"errors"
	"os"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"
	"github.com/anthropics/anthropic-sdk-go/vertex"

	"github.com/gencode-ai/agentcore/internal/llm"
	"github.com/gencode-ai/agentcore/internal/log"
	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
	"go.uber.org/zap"
)

// defaultThinkingBudget is the token budget requested when a caller asks for
// extended thinking without a specific budget in mind.
const defaultThinkingBudget = int64(10000)

var thinkingBudgets = map[llm.ThinkingEffort]int64{
	llm.EffortLow:    4000,
	llm.EffortMedium: 10000,
	llm.EffortHigh:   32000,
}

// Provider adapts one Anthropic model to llm.ChatProvider. Immutable once
// constructed except for the effort set by WithThinking, which returns a new
// value rather than mutating in place (ChatProvider.WithThinking is meant to
// be cheap to call per-step).
type Provider struct {
	client anthropic.Client
	model  string
	effort llm.ThinkingEffort
}

// NewAPIKey constructs a Provider authenticated via ANTHROPIC_API_KEY.
func NewAPIKey(model string) *Provider {
	return &Provider{client: anthropic.NewClient(), model: model}
}

// NewVertex constructs a Provider authenticated against Vertex AI, reading
// CLOUD_ML_REGION / ANTHROPIC_VERTEX_PROJECT_ID from the environment.
func NewVertex(ctx context.Context, model string) *Provider {
	region := os.Getenv("CLOUD_ML_REGION")
	if region == "" {
		region = "us-east5"
	}
	projectID := os.Getenv("ANTHROPIC_VERTEX_PROJECT_ID")
	client := anthropic.NewClient(vertex.WithGoogleAuth(ctx, region, projectID))
	return &Provider{client: client, model: model}
}

// NewWithBaseURL constructs a Provider against an Anthropic-API-compatible
// endpoint other than the default (used by self-hosted gateways).
func NewWithBaseURL(baseURL, apiKey, model string) *Provider {
	client := anthropic.NewClient(option.WithAPIKey(apiKey), option.WithBaseURL(baseURL))
	return &Provider{client: client, model: model}
}

func (p *Provider) ModelName() string { return p.model }

func (p *Provider) ThinkingEffort() llm.ThinkingEffort { return p.effort }

func (p *Provider) WithThinking(effort llm.ThinkingEffort) llm.ChatProvider {
	next := *p
	next.effort = effort
	return &next
}

func toAnthropicTools(tools []toolset.Schema) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}
	out := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, t := range tools {
		var shape struct {
			Properties any      `json:"properties"`
			Required   []string `json:"required"`
		}
		if len(t.Parameters) > 0 {
			_ = json.Unmarshal(t.Parameters, &shape)
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        t.Name,
				Description: anthropic.String(t.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Properties: shape.Properties,
					Required:   shape.Required,
				},
			},
		})
	}
	return out
}

func toAnthropicMessages(history []message.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(history))
	for _, msg := range history {
		switch msg.Role {
		case message.RoleTool:
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content.ExtractText("\n"), false),
			))

		case message.RoleUser:
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Content.Parts))
			for _, part := range msg.Content.Parts {
				switch part.Type {
				case message.PartImageURL, message.PartAudioURL, message.PartVideoURL:
					// The Messages API takes inline base64 image blocks, not bare
					// URLs; Context only carries a URL for these part types, so
					// reference it in text rather than guess at a fetch-and-embed.
					blocks = append(blocks, anthropic.NewTextBlock("[attachment: "+part.ImageURL+part.AudioURL+part.VideoURL+"]"))
				case message.PartText:
					if part.Text != "" {
						blocks = append(blocks, anthropic.NewTextBlock(part.Text))
					}
				}
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content.ExtractText("\n")))
			}
			out = append(out, anthropic.NewUserMessage(blocks...))

		case message.RoleAssistant:
			calls := msg.Content.ToolCalls()
			blocks := make([]anthropic.ContentBlockParamUnion, 0, len(calls)+1)
			if text := msg.Content.ExtractText("\n"); text != "" {
				blocks = append(blocks, anthropic.NewTextBlock(text))
			}
			for _, tc := range calls {
				var input any = map[string]any{}
				if tc.Arguments != "" {
					if err := json.Unmarshal([]byte(tc.Arguments), &input); err != nil {
						input = tc.Arguments
					}
				}
				blocks = append(blocks, anthropic.NewToolUseBlock(tc.ID, input, tc.Name))
			}
			if len(blocks) == 0 {
				blocks = append(blocks, anthropic.NewTextBlock(""))
			}
			out = append(out, anthropic.NewAssistantMessage(blocks...))
		}
	}
	return out
}

func (p *Provider) Generate(ctx context.Context, systemPrompt string, tools []toolset.Schema, history []message.Message) (*llm.Stream, error) {
	log.LogRequestCtx(ctx, "anthropic", p.model, systemPrompt, tools, history)

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(p.model),
		MaxTokens: 8192,
		Messages:  toAnthropicMessages(history),
	}
	if systemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: systemPrompt}}
	}
	if toolParams := toAnthropicTools(tools); toolParams != nil {
		params.Tools = toolParams
	}
	if budget, ok := thinkingBudgets[p.effort]; ok {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	} else if p.effort != llm.EffortOff {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(defaultThinkingBudget)
	}

	stream := p.client.Messages.NewStreaming(ctx, params)
	out := llm.NewStream()
	go p.pump(stream, out)
	return out, nil
}

func (p *Provider) pump(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out *llm.Stream) {
	var usage message.TokenUsage
	var messageID string
	var currentToolID, currentToolName, currentToolInput string

	for stream.Next() {
		event := stream.Current()
		switch event.Type {
		case "message_start":
			start := event.AsMessageStart()
			messageID = start.Message.ID
			usage.InputOther = int(start.Message.Usage.InputTokens)
			usage.InputCacheRead = int(start.Message.Usage.CacheReadInputTokens)
			usage.InputCacheCreation = int(start.Message.Usage.CacheCreationInputTokens)

		case "content_block_start":
			block := event.AsContentBlockStart()
			if block.ContentBlock.Type == "tool_use" {
				currentToolID = block.ContentBlock.ID
				currentToolName = block.ContentBlock.Name
				currentToolInput = ""
			}

		case "content_block_delta":
			delta := event.AsContentBlockDelta()
			switch delta.Delta.Type {
			case "text_delta":
				if delta.Delta.Text != "" {
					out.Push(llm.StreamItem{Kind: llm.ItemContentPart, ContentPart: message.Text(delta.Delta.Text)})
				}
			case "thinking_delta":
				if delta.Delta.Thinking != "" {
					out.Push(llm.StreamItem{Kind: llm.ItemContentPart, ContentPart: message.Think(delta.Delta.Thinking)})
				}
			case "input_json_delta":
				if delta.Delta.PartialJSON != "" {
					currentToolInput += delta.Delta.PartialJSON
					out.Push(llm.StreamItem{Kind: llm.ItemToolCallPart, ToolCallPart: llm.ToolCallDelta{
						ToolCallID: currentToolID,
						ToolName:   currentToolName,
						Delta:      delta.Delta.PartialJSON,
					}})
				}
			}

		case "content_block_stop":
			if currentToolID != "" {
				out.Push(llm.StreamItem{Kind: llm.ItemToolCall, ToolCall: message.ToolCall{
					ID: currentToolID, Name: currentToolName, Arguments: currentToolInput,
				}})
				currentToolID, currentToolName, currentToolInput = "", "", ""
			}

		case "message_delta":
			delta := event.AsMessageDelta()
			usage.Output = int(delta.Usage.OutputTokens)
		}
	}

	if err := stream.Err(); err != nil {
		out.Finish(messageID, usage, classifyErr(err))
		return
	}
	out.Finish(messageID, usage, nil)
}

func classifyErr(err error) error {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return &llm.APIStatusError{Code: apiErr.StatusCode, Message: apiErr.Message}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &llm.APITimeoutError{Cause: err}
	}
	log.Logger().Warn("anthropic stream error", zap.Error(err))
	return &llm.APIConnectionError{Cause: err}
}

var _ llm.ChatProvider = (*Provider)(nil)
