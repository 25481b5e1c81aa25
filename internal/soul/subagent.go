package soul

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gencode-ai/agentcore/internal/agent"
	agentcontext "github.com/gencode-ai/agentcore/internal/context"
	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
	"github.com/gencode-ai/agentcore/internal/wire"
)

// defaultSubagentName names a dynamic Task call whose subagent_type doesn't
// match any of the parent's declared Config.Subagents.
const defaultSubagentName = "general-purpose"

// SpawnSubagent implements builtin.Spawner: it drives subagentType — fixed if
// declared in the parent's Config.Subagents, otherwise a dynamic
// general-purpose child — through one full turn on its own Context and Wire,
// forwarding every event the child emits back onto the parent's Wire as
// SubagentEvent and reporting progress through the shared LaborMarket (spec
// §3.5/§5). The Task tool that calls this never touches a Runtime itself.
func (s *Soul) SpawnSubagent(ctx context.Context, subagentType, description, prompt string) toolset.ToolReturnValue {
	if prompt == "" {
		return toolset.ErrorValue(toolset.BriefValidateError, "prompt is required")
	}

	cfg, fixed := s.lookupFixedSubagent(subagentType)

	ctxPath, cleanup, err := tempSubagentContextFile()
	if err != nil {
		return toolset.ErrorValue(toolset.BriefRuntimeError, "subagent context: "+err.Error())
	}
	defer cleanup()

	childContext, err := agentcontext.Open(ctxPath)
	if err != nil {
		return toolset.ErrorValue(toolset.BriefRuntimeError, "subagent context: "+err.Error())
	}
	defer childContext.Close()

	childWire, err := wire.New("")
	if err != nil {
		return toolset.ErrorValue(toolset.BriefRuntimeError, "subagent wire: "+err.Error())
	}

	var childRuntime *agent.Runtime
	if fixed {
		childRuntime = agent.NewFixedSubagentRuntime(s.runtime, cfg, s.runtime.LLM, childWire, childContext, s.toolset)
	} else {
		childRuntime = agent.NewDynamicSubagentRuntime(s.runtime, cfg, s.runtime.LLM, childWire, childContext, s.toolset)
	}

	childAgent := agent.New(cfg, childRuntime)
	child := New(childAgent, s.compaction)

	handle := s.runtime.LaborMarket.Spawn(ctx, childAgent.Name, description)
	defer s.runtime.LaborMarket.Remove(handle.ID())

	forwardDone := make(chan struct{})
	go func() {
		defer close(forwardDone)
		s.forwardSubagentEvents(childAgent.Name, childWire, handle)
	}()

	outcome, turnErr := child.turn(handle.Context(), message.NewUserMessage(prompt))

	childWire.Close()
	<-forwardDone

	handle.Complete(turnErr)
	if turnErr != nil {
		return toolset.ErrorValue(toolset.BriefRuntimeError, "subagent failed: "+turnErr.Error())
	}
	if outcome.Stop == TurnCancelled {
		return toolset.ErrorValue(toolset.BriefRuntimeError, "subagent cancelled")
	}
	return toolset.Ok(child.lastAssistantText())
}

// lookupFixedSubagent resolves subagent_type against the parent's
// Config.Subagents. A match is returned as a fixed subagent; anything else
// (empty, or naming no declared subagent) is treated as a dynamic
// general-purpose child sharing the parent's system prompt and loop control.
func (s *Soul) lookupFixedSubagent(name string) (agent.Config, bool) {
	for _, sub := range s.runtime.Config.Subagents {
		if sub.Name == name {
			return sub, true
		}
	}
	dynName := name
	if dynName == "" {
		dynName = defaultSubagentName
	}
	return agent.Config{
		Name:         dynName,
		SystemPrompt: s.ag.SystemPrompt,
		LoopControl:  s.runtime.Config.LoopControl,
	}, false
}

// forwardSubagentEvents relays every event a subagent's Wire emits onto the
// parent Wire as SubagentEvent, and turns its StepBegin events into
// LaborMarket progress/turn-count updates, until childWire closes.
func (s *Soul) forwardSubagentEvents(name string, childWire *wire.Wire, handle *agent.SubagentHandle) {
	_, sub := childWire.Subscribe()
	steps := 0
	for {
		env, ok := sub.Receive(nil)
		if !ok {
			return
		}
		if env.Kind != "event" {
			continue
		}
		s.wire.Emit(wire.Event{
			Type:    wire.EventSubagentEvent,
			Payload: wire.SubagentEventPayload{SubagentName: name, Event: wire.Event{Type: env.Type, Payload: env.Payload}},
		})
		if env.Type == wire.EventStepBegin {
			steps++
			handle.UpdateTurn(steps, 0)
			handle.Progress(fmt.Sprintf("step %d", steps))
		}
	}
}

func tempSubagentContextFile() (string, func(), error) {
	dir, err := os.MkdirTemp("", "gencode-subagent-")
	if err != nil {
		return "", func() {}, err
	}
	return filepath.Join(dir, "context.jsonl"), func() { os.RemoveAll(dir) }, nil
}
