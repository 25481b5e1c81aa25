package soul

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gencode-ai/agentcore/internal/agent"
	"github.com/gencode-ai/agentcore/internal/approval"
	agentcontext "github.com/gencode-ai/agentcore/internal/context"
	"github.com/gencode-ai/agentcore/internal/llm"
	"github.com/gencode-ai/agentcore/internal/log"
	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
	"github.com/gencode-ai/agentcore/internal/toolset/builtin"
	"github.com/gencode-ai/agentcore/internal/wire"
	"go.uber.org/zap"
)

// Version is this runtime's server identity, reported in Initialize.
const Version = "0.1.0"

// Soul drives one Agent's turns against its Runtime: it implements
// wire.Handler so a wire.Server can dispatch initialize/prompt/cancel
// straight onto it.
type Soul struct {
	ag      *agent.Agent
	runtime *agent.Runtime
	context *agentcontext.Context
	wire    *wire.Wire
	toolset *toolset.Toolset

	compaction    Compaction
	slashCommands map[string]*SlashCommand

	// checkpointWithUserMessage: true when the toolset carries SendDMail, so
	// every checkpoint includes the user message that triggered it — a
	// D-Mail rewind to that point replays starting from the original ask
	// rather than immediately before it.
	checkpointWithUserMessage bool

	yolo atomic.Bool

	mu     sync.Mutex
	cancel context.CancelFunc
}

// New constructs a Soul for agentObj. compaction may be nil to use
// SimpleCompaction.
func New(agentObj *agent.Agent, compaction Compaction) *Soul {
	if compaction == nil {
		compaction = SimpleCompaction{}
	}
	s := &Soul{
		ag:         agentObj,
		runtime:    agentObj.Runtime,
		context:    agentObj.Runtime.Context,
		wire:       agentObj.Runtime.Wire,
		toolset:    agentObj.Runtime.Toolset,
		compaction: compaction,
	}
	for _, schema := range s.toolset.Tools() {
		if schema.Name == builtin.SendDMailName {
			s.checkpointWithUserMessage = true
			break
		}
	}
	s.slashCommands = s.buildSlashCommands()
	return s
}

// Initialize implements wire.Handler.
func (s *Soul) Initialize(_ context.Context, params wire.InitializeParams) (wire.InitializeResult, error) {
	names := make([]string, 0, len(s.slashCommands))
	for name := range s.slashCommands {
		names = append(names, name)
	}
	sort.Strings(names)

	result := wire.InitializeResult{
		ProtocolVersion: params.ProtocolVersion,
		Server:          wire.ServerInfo{Name: "gencoded", Version: Version},
		SlashCommands:   names,
	}

	if len(params.ExternalTools) > 0 {
		accepted := make([]string, 0, len(params.ExternalTools))
		var rejected []wire.RejectedTool
		for _, decl := range params.ExternalTools {
			if err := s.toolset.RegisterExternalTool(decl.Name, decl.Description, decl.Parameters); err != nil {
				rejected = append(rejected, wire.RejectedTool{Name: decl.Name, Reason: err.Error()})
				continue
			}
			accepted = append(accepted, decl.Name)
		}
		result.ExternalTools = &wire.ExternalToolsResult{Accepted: accepted, Rejected: rejected}
	}
	return result, nil
}

// Cancel implements wire.Handler: it signals the in-flight Prompt's context,
// if any. A Cancel with no turn in progress is a harmless no-op.
func (s *Soul) Cancel(_ context.Context) error {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

// Prompt implements wire.Handler. The wire.Server already enforces
// single-flight (spec E5): Prompt itself never needs to guard against
// concurrent invocation.
func (s *Soul) Prompt(ctx context.Context, params wire.PromptParams) (wire.PromptResult, error) {
	turnCtx, cancel := context.WithCancel(ctx)
	s.mu.Lock()
	s.cancel = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.cancel = nil
		s.mu.Unlock()
		cancel()
	}()

	userMsg, rawText, err := decodeUserInput(params.UserInput)
	if err != nil {
		return wire.PromptResult{}, &wire.RPCError{Code: wire.ErrInvalidParams, Message: err.Error()}
	}

	if cmd, arg, ok := s.findSlashCommand(rawText); ok {
		s.wire.Emit(wire.Event{Type: wire.EventTurnBegin, Payload: wire.TurnBeginPayload{UserInput: rawText}})
		outcome, err := cmd.Run(turnCtx, s, arg)
		return s.toPromptResult(outcome, err)
	}

	if lc := s.runtime.Config.LoopControl.Resolved(); lc.MaxRalphIterations != 0 {
		s.wire.Emit(wire.Event{Type: wire.EventTurnBegin, Payload: wire.TurnBeginPayload{UserInput: rawText}})
		runner := RalphLoop(s, rawText, lc.MaxRalphIterations)
		outcome, err := runner.Run(turnCtx, rawText)
		return s.toPromptResult(outcome, err)
	}

	s.wire.Emit(wire.Event{Type: wire.EventTurnBegin, Payload: wire.TurnBeginPayload{UserInput: rawText}})
	outcome, err := s.turn(turnCtx, userMsg)
	return s.toPromptResult(outcome, err)
}

func decodeUserInput(raw json.RawMessage) (message.Message, string, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return message.Message{}, "", fmt.Errorf("soul: empty user_input")
	}
	if trimmed[0] == '"' {
		var text string
		if err := json.Unmarshal(trimmed, &text); err != nil {
			return message.Message{}, "", fmt.Errorf("soul: invalid user_input: %w", err)
		}
		return message.NewUserMessage(text), text, nil
	}
	var parts []message.ContentPart
	if err := json.Unmarshal(trimmed, &parts); err != nil {
		return message.Message{}, "", fmt.Errorf("soul: invalid user_input: %w", err)
	}
	msg := message.NewUserMessageParts(parts...)
	return msg, msg.ExtractText(" "), nil
}

func (s *Soul) toPromptResult(outcome TurnOutcome, err error) (wire.PromptResult, error) {
	if err != nil {
		var notSet LLMNotSetError
		var notSupported LLMNotSupportedError
		switch {
		case errors.As(err, &notSet):
			return wire.PromptResult{}, &wire.RPCError{Code: wire.ErrLLMNotSet, Message: err.Error()}
		case errors.As(err, &notSupported):
			return wire.PromptResult{}, &wire.RPCError{Code: wire.ErrLLMNotSupported, Message: err.Error()}
		case isChatProviderError(err):
			return wire.PromptResult{}, &wire.RPCError{Code: wire.ErrChatProviderErr, Message: err.Error()}
		default:
			return wire.PromptResult{}, err
		}
	}

	steps := outcome.Steps
	status := "finished"
	switch outcome.Stop {
	case TurnMaxStepsReached:
		status = "max_steps_reached"
	case TurnCancelled:
		status = "cancelled"
	}
	return wire.PromptResult{Status: status, Steps: &steps}, nil
}

func isChatProviderError(err error) bool {
	var connErr *llm.APIConnectionError
	var timeoutErr *llm.APITimeoutError
	var statusErr *llm.APIStatusError
	var emptyErr *llm.APIEmptyResponseError
	return errors.As(err, &connErr) || errors.As(err, &timeoutErr) || errors.As(err, &statusErr) || errors.As(err, &emptyErr)
}

// turn runs spec §4.5's turn entry: validate the LLM and userMsg's required
// capabilities before any mutation, checkpoint, append the user message, then
// drive the agent loop.
func (s *Soul) turn(ctx context.Context, userMsg message.Message) (TurnOutcome, error) {
	if s.runtime.LLM == nil {
		return TurnOutcome{}, LLMNotSetError{}
	}
	if missing := s.runtime.LLM.MissingCapabilities(userMsg); len(missing) > 0 {
		return TurnOutcome{}, LLMNotSupportedError{MissingCapabilities: capStrings(missing)}
	}

	s.context.Checkpoint(s.checkpointWithUserMessage)
	if err := s.context.AppendMessage(userMsg); err != nil {
		return TurnOutcome{}, err
	}

	return s.agentLoop(ctx)
}

// agentLoop runs spec §4.5's per-step loop: compaction check, checkpoint,
// StepBegin, one step, then branch on its outcome.
func (s *Soul) agentLoop(ctx context.Context) (TurnOutcome, error) {
	s.toolset.WaitForMCPTools()
	lc := s.runtime.Config.LoopControl.Resolved()

	for step := 1; ; step++ {
		if ctx.Err() != nil {
			return TurnOutcome{Stop: TurnCancelled, Steps: step - 1}, nil
		}
		if step > lc.MaxStepsPerTurn {
			return TurnOutcome{Stop: TurnMaxStepsReached, Steps: step - 1}, nil
		}

		if s.context.TokenCount()+lc.ReservedContextSize >= s.maxContextSize() {
			if err := s.compactContext(ctx); err != nil {
				return TurnOutcome{}, err
			}
		}

		s.context.Checkpoint(true)
		s.runtime.DMail.SetNCheckpoints(s.context.NCheckpoints())
		s.wire.Emit(wire.Event{Type: wire.EventStepBegin, Payload: wire.StepBeginPayload{Step: step}})

		approvalCtx, cancelApproval := context.WithCancel(ctx)
		approvalDone := make(chan struct{})
		go func() {
			defer close(approvalDone)
			s.pipeApprovals(approvalCtx)
		}()

		outcome, err := s.step(ctx, step)

		cancelApproval()
		<-approvalDone

		if err != nil {
			if ctx.Err() != nil {
				return TurnOutcome{Stop: TurnCancelled, Steps: step}, nil
			}
			s.wire.Emit(wire.Event{Type: wire.EventStepInterrupted, Payload: wire.StepInterruptedPayload{Step: step, Reason: err.Error()}})
			return TurnOutcome{}, err
		}

		switch outcome.Stop {
		case StepDone:
			return TurnOutcome{Stop: TurnFinished, Steps: step}, nil
		case StepRejected:
			return TurnOutcome{Stop: TurnToolRejected, Steps: step}, nil
		case StepContinue:
			continue
		case StepRewind:
			if err := s.context.RevertTo(outcome.Rewind.CheckpointID); err != nil {
				return TurnOutcome{}, err
			}
			for _, m := range outcome.Rewind.Messages {
				if err := s.context.AppendMessage(m); err != nil {
					return TurnOutcome{}, err
				}
			}
			continue
		default:
			return TurnOutcome{}, fmt.Errorf("soul: step returned unknown stop reason %q", outcome.Stop)
		}
	}
}

func (s *Soul) maxContextSize() int {
	if s.runtime.LLM == nil {
		return math.MaxInt
	}
	return s.runtime.LLM.MaxContextSize
}

// step runs spec §4.5's one-step sequence: generate (streamed, with live
// wire emission and retry), grow the context, dispatch tool calls, and
// report what should happen next.
func (s *Soul) step(ctx context.Context, stepNo int) (StepOutcome, error) {
	parts, toolCalls, usage, msgID, err := s.generateAndStream(ctx, stepNo)
	if err != nil {
		return StepOutcome{}, err
	}

	s.context.UpdateTokenCount(usage.Input())
	s.wire.Emit(wire.Event{
		Type:    wire.EventStatusUpdate,
		Payload: wire.StatusUpdatePayload{TokenUsage: usage, MessageID: msgID, ContextUsage: s.contextUsage()},
	})

	if len(toolCalls) == 0 {
		if err := s.growContext(parts, nil, nil); err != nil {
			return StepOutcome{}, err
		}
		return StepOutcome{Stop: StepDone}, nil
	}

	results := s.dispatchToolCalls(ctx, toolCalls)

	if err := s.growContext(parts, toolCalls, results); err != nil {
		return StepOutcome{}, err
	}

	rejected := false
	for _, r := range results {
		s.wire.Emit(wire.Event{Type: wire.EventToolResult, Payload: wire.NewToolResultPayload(r)})
		if r.ReturnValue.IsRejected() {
			rejected = true
		}
	}

	if rejected {
		// The tool that would have sent a D-Mail also logically failed: it
		// should not survive to rewind a turn the user just rejected.
		s.runtime.DMail.FetchPendingDMail()
		return StepOutcome{Stop: StepRejected}, nil
	}

	if dmail, ok := s.runtime.DMail.FetchPendingDMail(); ok {
		return StepOutcome{Stop: StepRewind, Rewind: &Rewind{CheckpointID: dmail.CheckpointID, Messages: dmail.Messages}}, nil
	}

	return StepOutcome{Stop: StepContinue}, nil
}

func (s *Soul) dispatchToolCalls(ctx context.Context, calls []message.ToolCall) []toolset.Result {
	channels := make([]<-chan toolset.Result, len(calls))
	for i, call := range calls {
		channels[i] = s.toolset.Handle(ctx, call)
	}
	results := make([]toolset.Result, len(calls))
	for i, ch := range channels {
		results[i] = <-ch
	}
	return results
}

// growContext appends the assistant message and every tool result message
// for this step. It is never interrupted by ctx cancellation (AppendMessage
// takes none), so the step's context growth is always all-or-nothing (spec
// testable property 8).
func (s *Soul) growContext(parts []message.ContentPart, toolCalls []message.ToolCall, results []toolset.Result) error {
	assistantMsg := message.Message{Role: message.RoleAssistant, Content: message.Parts(parts...), ToolCalls: toolCalls}
	if err := s.context.AppendMessage(assistantMsg); err != nil {
		return err
	}

	var capsErr error
	for _, r := range results {
		toolMsg := r.ToMessage()
		if err := s.context.AppendMessage(toolMsg); err != nil {
			return err
		}
		if capsErr == nil {
			if missing := s.runtime.LLM.MissingCapabilities(toolMsg); len(missing) > 0 {
				capsErr = LLMNotSupportedError{MissingCapabilities: capStrings(missing)}
			}
		}
	}
	return capsErr
}

func (s *Soul) contextUsage() float64 {
	if s.runtime.LLM == nil || s.runtime.LLM.MaxContextSize <= 0 {
		return 0
	}
	return float64(s.context.TokenCount()) / float64(s.runtime.LLM.MaxContextSize)
}

func (s *Soul) lastAssistantText() string {
	msgs := s.context.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleAssistant {
			return msgs[i].ExtractText("\n")
		}
	}
	return ""
}

func capStrings(caps []llm.Capability) []string {
	out := make([]string, len(caps))
	for i, c := range caps {
		out[i] = string(c)
	}
	return out
}

// generateAndStream retries the entire generate-then-consume-stream sequence
// on a retryable error, the way kimisoul.py's tenacity decorator wraps
// kosong.step rather than just the initial request: a stream interruption
// partway through restarts the whole step. Content parts, tool calls, and
// tool-call argument deltas are forwarded to the Wire as they arrive.
func (s *Soul) generateAndStream(ctx context.Context, stepNo int) ([]message.ContentPart, []message.ToolCall, message.TokenUsage, string, error) {
	lc := s.runtime.Config.LoopControl.Resolved()
	provider := s.runtime.LLM.Provider
	tools := s.toolset.Tools()
	history := s.context.Messages()

	log.LogRequestCtx(ctx, provider.ModelName(), provider.ModelName(), s.ag.SystemPrompt, tools, history)

	var lastErr error
	for attempt := 0; attempt <= lc.MaxRetriesPerStep; attempt++ {
		if attempt > 0 {
			sleep := retryDelay(attempt - 1)
			s.retryLog("step", attempt, sleep)
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return nil, nil, message.TokenUsage{}, "", ctx.Err()
			}
		}

		stream, err := provider.Generate(ctx, s.ag.SystemPrompt, tools, history)
		if err == nil {
			parts, calls, usage, msgID, serr := s.drainStream(stream)
			if serr == nil {
				log.LogResponseCtx(ctx, provider.ModelName(), parts, calls, usage, nil)
				return parts, calls, usage, msgID, nil
			}
			err = serr
		}
		lastErr = err
		if !llm.IsRetryable(err) {
			log.LogResponseCtx(ctx, provider.ModelName(), nil, nil, message.TokenUsage{}, err)
			return nil, nil, message.TokenUsage{}, "", err
		}
	}
	log.LogResponseCtx(ctx, provider.ModelName(), nil, nil, message.TokenUsage{}, lastErr)
	return nil, nil, message.TokenUsage{}, "", lastErr
}

func (s *Soul) drainStream(stream *llm.Stream) ([]message.ContentPart, []message.ToolCall, message.TokenUsage, string, error) {
	var parts []message.ContentPart
	var calls []message.ToolCall
	for stream.Next() {
		item := stream.Item()
		switch item.Kind {
		case llm.ItemContentPart:
			parts = append(parts, item.ContentPart)
			s.wire.Emit(wire.Event{Type: wire.EventContentPart, Payload: wire.ContentPartPayload{Part: item.ContentPart}})
		case llm.ItemToolCall:
			calls = append(calls, item.ToolCall)
			s.wire.Emit(wire.Event{Type: wire.EventToolCall, Payload: wire.ToolCallPayload{ToolCall: item.ToolCall}})
		case llm.ItemToolCallPart:
			delta := item.ToolCallPart
			s.wire.Emit(wire.Event{Type: wire.EventToolCallPart, Payload: wire.ToolCallPartPayload{ToolCallID: delta.ToolCallID, Delta: delta.Delta}})
		}
	}
	return parts, calls, stream.Usage(), stream.ID(), stream.Err()
}

// compactContext runs spec §4.5.1: summarize the full history via one extra
// LLM call, then replace the context with just that summary.
func (s *Soul) compactContext(ctx context.Context) error {
	if s.runtime.LLM == nil {
		return LLMNotSetError{}
	}
	lc := s.runtime.Config.LoopControl.Resolved()

	s.wire.Emit(wire.Event{Type: wire.EventCompactionBegin, Payload: wire.CompactionBeginPayload{}})

	var compacted []message.Message
	var lastErr error
	for attempt := 0; attempt <= lc.MaxRetriesPerStep; attempt++ {
		if attempt > 0 {
			sleep := retryDelay(attempt - 1)
			s.retryLog("compaction", attempt, sleep)
			select {
			case <-time.After(sleep):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		msgs, err := s.compaction.Compact(ctx, s.context.Messages(), s.runtime.LLM.Provider)
		if err == nil {
			compacted, lastErr = msgs, nil
			break
		}
		lastErr = err
		if !llm.IsRetryable(err) {
			return err
		}
	}
	if lastErr != nil {
		return lastErr
	}

	if err := s.context.Clear(); err != nil {
		return err
	}
	s.context.Checkpoint(s.checkpointWithUserMessage)
	for _, m := range compacted {
		if err := s.context.AppendMessage(m); err != nil {
			return err
		}
	}
	s.wire.Emit(wire.Event{Type: wire.EventCompactionEnd, Payload: wire.CompactionEndPayload{}})
	return nil
}

// pipeApprovals forwards every pending approval request to the Wire for the
// duration of one step, spawning a fresh goroutine per request so a slow UI
// response doesn't stall fetching the next one. It runs until ctx is
// cancelled (the step finished, or the turn was cancelled).
func (s *Soul) pipeApprovals(ctx context.Context) {
	for {
		req, ok := s.runtime.Approval.FetchRequest(ctx)
		if !ok {
			return
		}
		go s.forwardApproval(ctx, req)
	}
}

func (s *Soul) forwardApproval(ctx context.Context, req *approval.PendingRequest) {
	payload := wire.ApprovalRequestPayload{
		RequestID:   req.ID,
		Sender:      req.ToolName,
		Action:      req.Action,
		Description: req.Description,
		Display:     req.Display,
	}
	resp, ok := s.wire.SendRequest(ctx.Done(), wire.Request{Type: wire.RequestApprovalRequest, Payload: payload})
	if !ok {
		s.runtime.Approval.ResolveRequest(req.ID, approval.ResolveReject)
		return
	}
	if resp.Err != nil {
		log.Logger().Warn("approval request failed", zap.String("request_id", req.ID), zap.Error(resp.Err))
		s.runtime.Approval.ResolveRequest(req.ID, approval.ResolveReject)
		return
	}
	var decoded wire.ApprovalResponsePayload
	if err := json.Unmarshal(resp.Result, &decoded); err != nil {
		log.Logger().Warn("approval response decode failed", zap.String("request_id", req.ID), zap.Error(err))
		s.runtime.Approval.ResolveRequest(req.ID, approval.ResolveReject)
		return
	}
	s.wire.Emit(wire.Event{Type: wire.EventApprovalResponse, Payload: decoded})
	s.runtime.Approval.ResolveRequest(req.ID, approval.Resolution(decoded.Response))
}

const (
	retryBackoffBase = 250 * time.Millisecond
	retryBackoffCap  = 8 * time.Second
)

func retryDelay(attempt int) time.Duration {
	scaled := float64(retryBackoffBase) * math.Pow(2, float64(attempt))
	if scaled > float64(retryBackoffCap) {
		scaled = float64(retryBackoffCap)
	}
	return time.Duration(rand.Int63n(int64(scaled) + 1))
}

func (s *Soul) retryLog(name string, attempt int, sleep time.Duration) {
	log.Logger().Info("retrying "+name, zap.Int("attempt", attempt), zap.Duration("sleep", sleep))
}
