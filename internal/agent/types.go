// Package agent loads an agent spec — system prompt, tool access, optional
// declared subagents — and constructs the per-turn Runtime the Soul drives:
// the current LLM, the live Context/Wire/DenwaRenji, Approval, and the
// LaborMarket subagent registry.
package agent

import (
	"github.com/gencode-ai/agentcore/internal/approval"
	"github.com/gencode-ai/agentcore/internal/context"
	"github.com/gencode-ai/agentcore/internal/denwarenji"
	"github.com/gencode-ai/agentcore/internal/flow"
	"github.com/gencode-ai/agentcore/internal/llm"
	"github.com/gencode-ai/agentcore/internal/toolset"
	"github.com/gencode-ai/agentcore/internal/wire"
)

// PermissionMode controls how the agent handles permission requests.
type PermissionMode string

const (
	PermissionDefault     PermissionMode = "default"
	PermissionAcceptEdits PermissionMode = "acceptEdits"
	PermissionDontAsk     PermissionMode = "dontAsk"
	PermissionPlan        PermissionMode = "plan"
)

// ToolAccessMode selects how a Config's Allow/Deny lists are interpreted.
type ToolAccessMode string

const (
	ToolAccessAllowlist ToolAccessMode = "allowlist"
	ToolAccessDenylist  ToolAccessMode = "denylist"
)

// ToolAccess configures which of a Toolset's tools an agent may call.
type ToolAccess struct {
	Mode  ToolAccessMode `yaml:"mode" json:"mode"`
	Allow []string       `yaml:"allow,omitempty" json:"allow,omitempty"`
	Deny  []string       `yaml:"deny,omitempty" json:"deny,omitempty"`
}

// Allows reports whether a tool named name may be exposed under this access
// policy. The empty ToolAccess (zero Mode) allows everything.
func (a ToolAccess) Allows(name string) bool {
	switch a.Mode {
	case ToolAccessAllowlist:
		for _, n := range a.Allow {
			if n == name {
				return true
			}
		}
		return false
	case ToolAccessDenylist:
		for _, n := range a.Deny {
			if n == name {
				return false
			}
		}
		return true
	default:
		return true
	}
}

// Config is the declarative shape of one agent spec, parsed from an AGENT.md
// front matter block (see loader.go) or constructed in code for the root
// agent.
type Config struct {
	Name           string         `yaml:"name" json:"name"`
	Description    string         `yaml:"description" json:"description"`
	Model          string         `yaml:"model" json:"model"`
	PermissionMode PermissionMode `yaml:"permission-mode" json:"permission_mode"`
	Tools          ToolAccess     `yaml:"tools" json:"tools"`
	Skills         []string       `yaml:"skills,omitempty" json:"skills,omitempty"`
	SystemPrompt   string         `yaml:"system-prompt,omitempty" json:"system_prompt,omitempty"`
	MaxTurns       int            `yaml:"max-turns" json:"max_turns"`
	Background     bool           `yaml:"background" json:"background"`
	LoopControl    LoopControl    `yaml:"loop-control,omitempty" json:"loop_control,omitempty"`

	// Subagents declares the agents this one may spawn as fixed (pre-declared,
	// own private LaborMarket) subagents, per spec §3.5.
	Subagents []Config `yaml:"subagents,omitempty" json:"subagents,omitempty"`

	// SourceFile is the AGENT.md path this config was loaded from, if any.
	SourceFile string `yaml:"-" json:"-"`
}

// DefaultMaxTurns is used when a Config doesn't set MaxTurns.
const DefaultMaxTurns = 100

// LoopControl bounds one Soul's agent loop: step/retry budgets, the
// compaction trigger margin, and the Ralph-loop iteration cap.
type LoopControl struct {
	MaxStepsPerTurn     int `yaml:"max-steps-per-turn" json:"max_steps_per_turn"`
	MaxRetriesPerStep   int `yaml:"max-retries-per-step" json:"max_retries_per_step"`
	ReservedContextSize int `yaml:"reserved-context-size" json:"reserved_context_size"`

	// MaxRalphIterations: 0 disables the Ralph loop (the default turn path
	// runs instead); a positive N runs at most N+1 task executions; -1 runs
	// effectively unbounded.
	MaxRalphIterations int `yaml:"max-ralph-iterations" json:"max_ralph_iterations"`
}

// Default loop-control values, used by Resolved for each LoopControl field
// that is zero or negative.
const (
	DefaultMaxStepsPerTurn     = 50
	DefaultMaxRetriesPerStep   = 3
	DefaultReservedContextSize = 4096
)

// Resolved fills in default values for every unset (zero/non-positive) field.
func (lc LoopControl) Resolved() LoopControl {
	if lc.MaxStepsPerTurn <= 0 {
		lc.MaxStepsPerTurn = DefaultMaxStepsPerTurn
	}
	if lc.MaxRetriesPerStep <= 0 {
		lc.MaxRetriesPerStep = DefaultMaxRetriesPerStep
	}
	if lc.ReservedContextSize <= 0 {
		lc.ReservedContextSize = DefaultReservedContextSize
	}
	return lc
}

// SkillType distinguishes a plain text skill from one whose body parses as a
// flow graph.
type SkillType string

const (
	SkillStandard SkillType = "standard"
	SkillFlow     SkillType = "flow"
)

// Skill is an already-discovered skill the Runtime carries for the Soul's
// `/skill:<name>` and `/flow:<name>` commands. Discovery itself (where skills
// live on disk, and parsing a flow body into Flow) is out of scope here;
// Runtime only consumes the result. Description, if set, is shown as the
// slash command's help text.
type Skill struct {
	Name        string
	Type        SkillType
	Body        string
	Description string

	// Flow is non-nil only for Type == SkillFlow.
	Flow *flow.Flow
}

// Env captures the builtin template args the spec's Runtime exposes to
// system-prompt construction: cwd, a directory listing, the current time,
// AGENTS.md content, and the skills catalog.
type Env struct {
	Cwd          string
	Ls           string
	Now          string
	AgentsMD     string
	SkillCatalog []Skill
}

// Runtime bundles everything one turn of the Soul needs beyond the Context
// itself: the active LLM, Approval gate, DenwaRenji mailbox, LaborMarket
// subagent registry, and the Wire events/requests flow through.
type Runtime struct {
	Config Config
	Env    Env

	LLM      *llm.Model
	Wire     *wire.Wire
	Context  *context.Context
	Approval *approval.Approval
	DMail    *denwarenji.DenwaRenji
	Toolset  *toolset.Toolset

	// LaborMarket is the subagent registry this Runtime spawns into: private
	// for a fixed subagent, shared with the parent for a dynamic one.
	LaborMarket *LaborMarket
}

// Agent wraps the pieces the Soul actually drives: a name, the system prompt
// to send the LLM, the toolset it may call, and its Runtime.
type Agent struct {
	Name         string
	SystemPrompt string
	Toolset      *toolset.Toolset
	Runtime      *Runtime
}

// New constructs an Agent from a resolved Config and Runtime. The system
// prompt is the Config's static prompt; callers that need environment
// interpolation build it beforehand (out of scope here — see spec §1's
// "prompt completion" non-goal).
func New(cfg Config, rt *Runtime) *Agent {
	return &Agent{
		Name:         cfg.Name,
		SystemPrompt: cfg.SystemPrompt,
		Toolset:      rt.Toolset,
		Runtime:      rt,
	}
}

// NewFixedSubagentRuntime builds the Runtime for a fixed subagent: one
// pre-declared in the parent's Config.Subagents. It gets a private
// LaborMarket (so its own dynamic spawns don't appear in the parent's
// registry) and a fresh DenwaRenji, but shares the parent's Approval so
// session-wide approvals still apply (spec §3.5/§5).
func NewFixedSubagentRuntime(parent *Runtime, cfg Config, model *llm.Model, w *wire.Wire, ctx *context.Context, ts *toolset.Toolset) *Runtime {
	return &Runtime{
		Config:      cfg,
		Env:         parent.Env,
		LLM:         model,
		Wire:        w,
		Context:     ctx,
		Approval:    parent.Approval.Share(),
		DMail:       denwarenji.New(),
		Toolset:     ts,
		LaborMarket: NewLaborMarket(),
	}
}

// NewDynamicSubagentRuntime builds the Runtime for a dynamic subagent:
// instantiated by a Task tool at call time. It shares the parent's
// LaborMarket (so it shows up alongside sibling dynamic subagents) and
// Approval, but still gets its own fresh DenwaRenji.
func NewDynamicSubagentRuntime(parent *Runtime, cfg Config, model *llm.Model, w *wire.Wire, ctx *context.Context, ts *toolset.Toolset) *Runtime {
	return &Runtime{
		Config:      cfg,
		Env:         parent.Env,
		LLM:         model,
		Wire:        w,
		Context:     ctx,
		Approval:    parent.Approval.Share(),
		DMail:       denwarenji.New(),
		Toolset:     ts,
		LaborMarket: parent.LaborMarket,
	}
}
