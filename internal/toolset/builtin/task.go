package builtin

import (
	"context"
	"encoding/json"

	"github.com/gencode-ai/agentcore/internal/toolset"
)

const taskParamsSchema = `{
  "type": "object",
  "properties": {
    "description": {"type": "string", "description": "short (3-5 word) summary of the task, used for status reporting"},
    "prompt": {"type": "string", "description": "the task for the subagent to carry out, in full"},
    "subagent_type": {"type": "string", "description": "name of a subagent declared in this agent's spec to run the task as; omitted or unmatched falls back to a general-purpose child"}
  },
  "required": ["description", "prompt"]
}`

// Spawner runs one subagent turn to completion and reports it back as a
// ToolReturnValue, forwarding the subagent's own progress into the caller's
// LaborMarket along the way. Soul satisfies this directly; Task never builds
// a subagent Runtime itself, keeping this package free of a dependency on
// the turn loop that drives one.
type Spawner interface {
	SpawnSubagent(ctx context.Context, subagentType, description, prompt string) toolset.ToolReturnValue
}

// Task lets the model delegate a piece of work to a subagent: a fixed one
// pre-declared in the running agent's Config.Subagents if subagent_type names
// one, otherwise a dynamic general-purpose child instantiated on the spot.
// Approval for whatever the subagent does is still enforced — it shares the
// parent's Approval gate — so Task itself never requires approval.
type Task struct {
	Spawner Spawner
}

func (t *Task) Name() string { return "Task" }

func (t *Task) Description() string {
	return "Delegate a task to a subagent and return its final answer."
}

func (t *Task) Parameters() json.RawMessage { return json.RawMessage(taskParamsSchema) }

func (t *Task) RequiresApproval(map[string]any) (string, string, []toolset.DisplayBlock) {
	return "", "", nil
}

func (t *Task) Execute(ctx context.Context, args map[string]any) toolset.ToolReturnValue {
	prompt, _ := args["prompt"].(string)
	if prompt == "" {
		return toolset.ErrorValue(toolset.BriefValidateError, "prompt is required")
	}
	description, _ := args["description"].(string)
	subagentType, _ := args["subagent_type"].(string)

	if t.Spawner == nil {
		return toolset.ErrorValue(toolset.BriefRuntimeError, "no subagent runtime attached to this toolset")
	}
	return t.Spawner.SpawnSubagent(ctx, subagentType, description, prompt)
}
