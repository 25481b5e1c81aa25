// Package soul drives the agent loop: it turns one user prompt into a
// sequence of steps against the LLM and the toolset, emitting Wire events as
// it goes, honoring checkpoints/D-Mail rewinds, approval gating, context
// compaction, and the Ralph loop. It is the Soul of a gencode agent, the way
// kimisoul.py is the soul of a kimi-cli agent.
package soul

import (
	"fmt"

	"github.com/gencode-ai/agentcore/internal/message"
)

// StepStopReason is why one step of the agent loop ended.
type StepStopReason string

const (
	// StepDone means the step produced only content, no tool calls: the turn
	// is finished unless a flow/slash-command driver wants another turn.
	StepDone StepStopReason = "done"
	// StepContinue means the step produced tool calls and grew the context;
	// the agent loop should run another step.
	StepContinue StepStopReason = "continue"
	// StepRejected means at least one of the step's tool calls was rejected
	// by the user; the turn ends without a further step.
	StepRejected StepStopReason = "tool_rejected"
	// StepRewind means a pending D-Mail was found after this step committed
	// its context growth; the turn must revert to a past checkpoint and
	// restart from there instead of taking another ordinary step. This is
	// the normal-value replacement for kimisoul.py's BackToTheFuture
	// exception (see spec §9's re-architecture note on D-Mail).
	StepRewind StepStopReason = "rewind"
)

// Rewind carries the checkpoint to revert to and the D-Mail messages to
// append once there. It is never an error: callers switch on
// StepOutcome.Stop == StepRewind to find one.
type Rewind struct {
	CheckpointID int
	Messages     []message.Message
}

// StepOutcome is the result of running exactly one step of the agent loop.
type StepOutcome struct {
	Stop   StepStopReason
	Rewind *Rewind
}

// TurnStopReason is why an entire turn (one call to Prompt) ended. All of
// these are normal values, never errors: MaxStepsReached and Cancelled in
// particular must never be returned as a Go error, only as a stop reason on
// a successful TurnOutcome (spec §7).
type TurnStopReason string

const (
	TurnFinished         TurnStopReason = "finished"
	TurnMaxStepsReached  TurnStopReason = "max_steps_reached"
	TurnCancelled        TurnStopReason = "cancelled"
	TurnToolRejected     TurnStopReason = "tool_rejected"
)

// TurnOutcome is the result of a complete turn: everything wire.Handler's
// Prompt method needs to build its PromptResult.
type TurnOutcome struct {
	Stop  TurnStopReason
	Steps int
}

// LLMNotSetError reports that no chat provider is configured. Per spec §7
// this is a real error: the turn aborts before any context mutation.
type LLMNotSetError struct{}

func (LLMNotSetError) Error() string { return "no LLM provider is configured" }

// LLMNotSupportedError reports that the current model lacks a capability the
// user input or a tool result requires.
type LLMNotSupportedError struct {
	MissingCapabilities []string
}

func (e LLMNotSupportedError) Error() string {
	return fmt.Sprintf("current model does not support: %v", e.MissingCapabilities)
}

// StatusSnapshot is the status-line information the TUI/wire clients poll or
// are pushed on StatusUpdate, beyond the raw token usage already on the Wire
// payload.
type StatusSnapshot struct {
	ContextUsage float64
	YoloEnabled  bool
}
