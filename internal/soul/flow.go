package soul

import (
	"context"
	"fmt"
	"strings"

	"github.com/gencode-ai/agentcore/internal/flow"
	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/wire"
)

// ralphUnbounded stands in for an unbounded Ralph loop (max_ralph_iterations
// < 0): large enough that the task-execution cap never binds in practice.
const ralphUnbounded = 1 << 30

// DefaultMaxFlowMoves bounds an ordinary `/flow:<name>` skill invocation,
// independent of the agent's Ralph-loop configuration: a flow skill's move
// budget and max_ralph_iterations are unrelated knobs (kimisoul.py's
// ralph_loop computes its own total_runs separately from the FlowRunner it
// builds for a named skill, which always runs under DEFAULT_MAX_FLOW_MOVES).
const DefaultMaxFlowMoves = 1000

// FlowRunner walks a flow.Flow one user-turn at a time: task nodes run as an
// ordinary turn, decision nodes re-prompt until a parsed <choice> tag names
// one of the node's outgoing edges.
type FlowRunner struct {
	soul     *Soul
	f        *flow.Flow
	name     string
	maxMoves int
}

// RalphLoop builds the two-node flow the Ralph loop walks: BEGIN -> R1 (task:
// do the work) -> R2 (decision: CONTINUE goes back to R1 and re-runs the
// task, STOP ends the flow); R2 does not loop back on itself.
// maxRalphIterations < 0 runs effectively unbounded; otherwise the
// flow runs at most maxRalphIterations+1 task executions (spec testable
// property 7).
func RalphLoop(s *Soul, task string, maxRalphIterations int) *FlowRunner {
	nodes := map[string]flow.Node{
		"BEGIN": {ID: "BEGIN", Kind: flow.KindBegin},
		"END":   {ID: "END", Kind: flow.KindEnd},
		"R1":    {ID: "R1", Label: task, Kind: flow.KindTask},
		"R2": {
			ID:    "R2",
			Label: "Have you completed the task?",
			Kind:  flow.KindDecision,
		},
	}
	outgoing := map[string][]flow.Edge{
		"BEGIN": {{Src: "BEGIN", Dst: "R1"}},
		"R1":    {{Src: "R1", Dst: "R2"}},
		"R2": {
			{Src: "R2", Dst: "R1", Label: "CONTINUE"},
			{Src: "R2", Dst: "END", Label: "STOP"},
		},
	}
	f, err := flow.New(nodes, outgoing)
	if err != nil {
		// Fixed, hand-built graph: a validation failure here is a bug in this
		// function, not a runtime condition a caller can recover from.
		panic(fmt.Sprintf("soul: ralph loop flow is invalid: %v", err))
	}

	total := ralphUnbounded
	if maxRalphIterations >= 0 {
		total = maxRalphIterations + 1
	}
	return &FlowRunner{soul: s, f: f, name: "ralph", maxMoves: total}
}

// NewFlowRunner wraps an already-parsed flow skill for the Soul's
// `/flow:<name>` command.
func NewFlowRunner(s *Soul, name string, f *flow.Flow, maxMoves int) *FlowRunner {
	if maxMoves <= 0 {
		maxMoves = ralphUnbounded
	}
	return &FlowRunner{soul: s, f: f, name: name, maxMoves: maxMoves}
}

// Run walks the flow from BEGIN to END, running one turn per task/decision
// node. A task node's prompt falls back to userInput when the node
// carries no label of its own.
func (r *FlowRunner) Run(ctx context.Context, userInput string) (TurnOutcome, error) {
	current := r.f.BeginID
	taskRuns := 0
	totalSteps := 0

	for {
		node := r.f.Nodes[current]
		edges := r.f.Outgoing[current]

		var nextID string
		switch node.Kind {
		case flow.KindBegin:
			if len(edges) != 1 {
				return TurnOutcome{}, fmt.Errorf("soul: flow %q: begin node must have exactly one outgoing edge", r.name)
			}
			nextID = edges[0].Dst

		case flow.KindTask:
			if taskRuns >= r.maxMoves {
				return TurnOutcome{Stop: TurnMaxStepsReached, Steps: totalSteps}, nil
			}
			taskRuns++
			prompt := node.LabelText()
			if prompt == "" {
				prompt = userInput
			}
			outcome, err := r.flowTurn(ctx, prompt)
			totalSteps += outcome.Steps
			if err != nil || outcome.Stop != TurnFinished {
				return outcome, err
			}
			if len(edges) != 1 {
				return TurnOutcome{}, fmt.Errorf("soul: flow %q: task node %q must have exactly one outgoing edge", r.name, node.ID)
			}
			nextID = edges[0].Dst

		case flow.KindDecision:
			edge, outcome, err := r.decide(ctx, node, edges)
			totalSteps += outcome.Steps
			if err != nil || outcome.Stop != TurnFinished {
				return outcome, err
			}
			nextID = edge.Dst

		default:
			return TurnOutcome{}, fmt.Errorf("soul: flow %q: node %q has unhandled kind %q", r.name, node.ID, node.Kind)
		}

		if nextID == r.f.EndID {
			return TurnOutcome{Stop: TurnFinished, Steps: totalSteps}, nil
		}
		current = nextID
	}
}

// decide runs a decision node's turn, re-prompting with a clarification
// suffix each time the reply fails to name one of edges' labels.
func (r *FlowRunner) decide(ctx context.Context, node flow.Node, edges []flow.Edge) (flow.Edge, TurnOutcome, error) {
	prompt := buildFlowPrompt(node, edges, "")
	for {
		outcome, err := r.flowTurn(ctx, prompt)
		if err != nil || outcome.Stop != TurnFinished {
			return flow.Edge{}, outcome, err
		}
		choice := flow.ParseChoice(r.soul.lastAssistantText())
		if edge, ok := matchFlowEdge(edges, choice); ok {
			return edge, outcome, nil
		}
		prompt = buildFlowPrompt(node, edges, choice)
	}
}

func buildFlowPrompt(node flow.Node, edges []flow.Edge, invalidChoice string) string {
	var b strings.Builder
	if invalidChoice == "" {
		b.WriteString(node.LabelText())
	} else {
		fmt.Fprintf(&b, "%q is not one of the available choices. %s", invalidChoice, node.LabelText())
	}
	b.WriteString("\n\nAvailable choices:\n")
	for _, e := range edges {
		fmt.Fprintf(&b, "- %s\n", e.Label)
	}
	b.WriteString("\nRespond with exactly one of the choices above, wrapped in a <choice>...</choice> tag.")
	return b.String()
}

func matchFlowEdge(edges []flow.Edge, choice string) (flow.Edge, bool) {
	for _, e := range edges {
		if strings.EqualFold(strings.TrimSpace(e.Label), choice) {
			return e, true
		}
	}
	return flow.Edge{}, false
}

func (r *FlowRunner) flowTurn(ctx context.Context, prompt string) (TurnOutcome, error) {
	r.soul.wire.Emit(wire.Event{Type: wire.EventTurnBegin, Payload: wire.TurnBeginPayload{UserInput: prompt}})
	return r.soul.turn(ctx, message.NewUserMessage(prompt))
}
