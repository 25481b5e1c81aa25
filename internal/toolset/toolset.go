package toolset

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gencode-ai/agentcore/internal/log"
	"github.com/gencode-ai/agentcore/internal/mcp"
	"github.com/gencode-ai/agentcore/internal/message"
	"go.uber.org/zap"
)

// Approver is the narrow slice of Approval that the dispatcher needs: ask the
// gate whether a call may proceed, blocking until resolved. Defined here
// (rather than importing internal/approval directly) so toolset has no
// dependency on the Soul-owned approval wiring, matching spec §9's guidance to
// pass collaborators explicitly rather than reach for a global.
type Approver interface {
	Request(ctx context.Context, toolName, action, description string, display []DisplayBlock) bool
}

// ExternalDispatcher sends a ToolCallRequest over the Wire to a UI-hosted
// external tool and blocks for its response.
type ExternalDispatcher interface {
	DispatchExternalTool(ctx context.Context, call message.ToolCall) (ToolReturnValue, error)
}

// externalTool is a UI-registered tool descriptor; its calls are routed
// through the Wire instead of executed locally.
type externalTool struct {
	name        string
	description string
	parameters  json.RawMessage
}

// mcpTool adapts one MCP server's advertised tool into the local Tool
// interface, routing Execute through the owning mcp.Client.
type mcpTool struct {
	server *mcp.Client
	tool   mcp.MCPTool
}

func (t mcpTool) Name() string              { return t.tool.Name }
func (t mcpTool) Description() string       { return t.tool.Description }
func (t mcpTool) Parameters() json.RawMessage { return t.tool.InputSchema }
func (t mcpTool) RequiresApproval(map[string]any) (string, string, []DisplayBlock) {
	return "mcp:" + t.tool.Name, fmt.Sprintf("Call MCP tool %q", t.tool.Name), nil
}
func (t mcpTool) Execute(ctx context.Context, args map[string]any) ToolReturnValue {
	result, err := t.server.CallTool(ctx, t.tool.Name, args)
	if err != nil {
		return ErrorValue(BriefRuntimeError, err.Error())
	}
	var parts []message.ContentPart
	for _, c := range result.Content {
		if c.Text != "" {
			parts = append(parts, message.Text(c.Text))
		}
	}
	if result.IsError {
		return ErrorValue(BriefRuntimeError, joinParts(parts))
	}
	return OkParts(parts)
}

func joinParts(parts []message.ContentPart) string {
	return message.Parts(parts...).ExtractText("\n")
}

// mcpServerState tracks one configured MCP server's connection lifecycle.
type mcpServerState struct {
	client *mcp.Client
	done   chan struct{}
}

// Toolset owns the name->tool registry, dynamically attached external and MCP
// tools, and routes tool calls per spec §4.2.
type Toolset struct {
	approval Approver
	external ExternalDispatcher

	mcpTimeout time.Duration

	mu        sync.RWMutex
	builtins  map[string]Tool
	externals map[string]externalTool
	mcpTools  map[string]mcpTool
	servers   map[string]*mcpServerState
}

// New constructs an empty Toolset. approval and external may be nil if the
// runtime has no approval-gated or UI-external tools wired (tests).
func New(approval Approver, external ExternalDispatcher) *Toolset {
	return &Toolset{
		approval:   approval,
		external:   external,
		mcpTimeout: 60 * time.Second,
		builtins:   make(map[string]Tool),
		externals:  make(map[string]externalTool),
		mcpTools:   make(map[string]mcpTool),
		servers:    make(map[string]*mcpServerState),
	}
}

// RegisterBuiltin adds a local tool implementation to the registry.
func (ts *Toolset) RegisterBuiltin(t Tool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	ts.builtins[t.Name()] = t
}

// Tools returns the LLM-facing schema for every currently registered tool
// (builtins, externals, and MCP-backed tools), per spec §4.2 `tools()`.
func (ts *Toolset) Tools() []Schema {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	schemas := make([]Schema, 0, len(ts.builtins)+len(ts.externals)+len(ts.mcpTools))
	for _, t := range ts.builtins {
		schemas = append(schemas, Schema{Name: t.Name(), Description: t.Description(), Parameters: t.Parameters()})
	}
	for _, e := range ts.externals {
		schemas = append(schemas, Schema{Name: e.name, Description: e.description, Parameters: e.parameters})
	}
	for _, m := range ts.mcpTools {
		schemas = append(schemas, Schema{Name: m.tool.Name, Description: m.tool.Description, Parameters: m.tool.InputSchema})
	}
	return schemas
}

// RegisterExternalTool implements spec §4.2 `register_external_tool`:
// succeeds only if no conflicting built-in is present and the schema parses;
// replaces any prior external registration with the same name.
func (ts *Toolset) RegisterExternalTool(name, description string, parameters json.RawMessage) error {
	if !json.Valid(parameters) {
		return fmt.Errorf("external tool %q: parameters is not valid JSON", name)
	}
	ts.mu.Lock()
	defer ts.mu.Unlock()
	if _, isBuiltin := ts.builtins[name]; isBuiltin {
		return fmt.Errorf("external tool %q conflicts with a built-in tool", name)
	}
	ts.externals[name] = externalTool{name: name, description: description, parameters: parameters}
	return nil
}

// LoadMCP connects to every configured MCP server asynchronously; each
// server's status moves pending -> connecting -> (connected | failed |
// unauthorized) and its list_tools result, once available, is merged into the
// registry. WaitForMCPTools joins all in-flight connections.
func (ts *Toolset) LoadMCP(ctx context.Context, configs []mcp.ServerConfig) {
	for _, cfg := range configs {
		client := mcp.NewClient(cfg)
		state := &mcpServerState{client: client, done: make(chan struct{})}
		ts.mu.Lock()
		ts.servers[cfg.Name] = state
		ts.mu.Unlock()

		go func(cfg mcp.ServerConfig, state *mcpServerState) {
			defer close(state.done)
			if err := state.client.Connect(ctx); err != nil {
				log.Logger().Warn("mcp server connect failed", zap.String("server", cfg.Name), zap.Error(err))
				return
			}
			tools := state.client.GetCachedTools()
			ts.mu.Lock()
			for _, tl := range tools {
				ts.mcpTools[tl.Name] = mcpTool{server: state.client, tool: tl}
			}
			ts.mu.Unlock()
		}(cfg, state)
	}
}

// WaitForMCPTools blocks until every in-flight LoadMCP connection has
// resolved (connected, failed, or unauthorized), per spec §4.2.
func (ts *Toolset) WaitForMCPTools() {
	ts.mu.RLock()
	states := make([]*mcpServerState, 0, len(ts.servers))
	for _, s := range ts.servers {
		states = append(states, s)
	}
	ts.mu.RUnlock()
	for _, s := range states {
		<-s.done
	}
}

// MCPServerStatus reports the current lifecycle state of a configured server.
func (ts *Toolset) MCPServerStatus(name string) (mcp.ServerStatus, bool) {
	ts.mu.RLock()
	state, ok := ts.servers[name]
	ts.mu.RUnlock()
	if !ok {
		return "", false
	}
	return state.client.Status(), true
}

func (ts *Toolset) lookup(name string) (builtin Tool, external *externalTool, mcpT *mcpTool) {
	ts.mu.RLock()
	defer ts.mu.RUnlock()
	if t, ok := ts.builtins[name]; ok {
		return t, nil, nil
	}
	if e, ok := ts.externals[name]; ok {
		return nil, &e, nil
	}
	if m, ok := ts.mcpTools[name]; ok {
		return nil, nil, &m
	}
	return nil, nil, nil
}

// Handle dispatches one tool call per spec §4.2 `handle`. It MUST NOT block:
// the settled Result is delivered on the returned channel (buffered by 1),
// and the caller decides whether to wait for it immediately or collect it
// alongside sibling calls.
func (ts *Toolset) Handle(ctx context.Context, call message.ToolCall) <-chan Result {
	out := make(chan Result, 1)

	var args map[string]any
	if call.Arguments == "" {
		args = map[string]any{}
	} else if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
		out <- Result{ToolCallID: call.ID, ReturnValue: ErrorValue(BriefParseError, "invalid JSON arguments: "+err.Error())}
		close(out)
		return out
	}

	builtin, external, mcpT := ts.lookup(call.Name)
	switch {
	case builtin != nil:
		if err := validateAgainstSchema(builtin.Parameters(), args); err != nil {
			out <- Result{ToolCallID: call.ID, ReturnValue: ErrorValue(BriefValidateError, err.Error())}
			close(out)
			return out
		}
		go ts.runLocal(ctx, call, builtin, args, out)
	case mcpT != nil:
		if err := validateAgainstSchema(mcpT.Parameters(), args); err != nil {
			out <- Result{ToolCallID: call.ID, ReturnValue: ErrorValue(BriefValidateError, err.Error())}
			close(out)
			return out
		}
		go ts.runLocalWithTimeout(ctx, call, *mcpT, args, out, ts.mcpTimeout)
	case external != nil:
		if err := validateAgainstSchema(external.parameters, args); err != nil {
			out <- Result{ToolCallID: call.ID, ReturnValue: ErrorValue(BriefValidateError, err.Error())}
			close(out)
			return out
		}
		go ts.runExternal(ctx, call, out)
	default:
		out <- Result{ToolCallID: call.ID, ReturnValue: ErrorValue(BriefNotFoundError, fmt.Sprintf("unknown tool %q", call.Name))}
		close(out)
	}
	return out
}

func (ts *Toolset) runLocal(ctx context.Context, call message.ToolCall, t Tool, args map[string]any, out chan<- Result) {
	defer close(out)
	if approved := ts.gate(ctx, t, call, args); !approved {
		out <- Result{ToolCallID: call.ID, ReturnValue: ErrorValue(BriefRejectedError, "rejected by the user")}
		return
	}
	out <- Result{ToolCallID: call.ID, ReturnValue: t.Execute(ctx, args)}
}

func (ts *Toolset) runLocalWithTimeout(ctx context.Context, call message.ToolCall, t Tool, args map[string]any, out chan<- Result, timeout time.Duration) {
	defer close(out)
	if approved := ts.gate(ctx, t, call, args); !approved {
		out <- Result{ToolCallID: call.ID, ReturnValue: ErrorValue(BriefRejectedError, "rejected by the user")}
		return
	}
	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	done := make(chan ToolReturnValue, 1)
	go func() { done <- t.Execute(tctx, args) }()
	select {
	case rv := <-done:
		out <- Result{ToolCallID: call.ID, ReturnValue: rv}
	case <-tctx.Done():
		out <- Result{ToolCallID: call.ID, ReturnValue: ErrorValue(BriefTimeout, "Timeout")}
	}
}

func (ts *Toolset) gate(ctx context.Context, t Tool, call message.ToolCall, args map[string]any) bool {
	action, description, display := t.RequiresApproval(args)
	if action == "" {
		return true
	}
	if ts.approval == nil {
		return true
	}
	return ts.approval.Request(ctx, call.Name, action, description, display)
}

func (ts *Toolset) runExternal(ctx context.Context, call message.ToolCall, out chan<- Result) {
	defer close(out)
	if ts.external == nil {
		out <- Result{ToolCallID: call.ID, ReturnValue: ErrorValue(BriefRuntimeError, "no external tool dispatcher attached")}
		return
	}
	rv, err := ts.external.DispatchExternalTool(ctx, call)
	if err != nil {
		out <- Result{ToolCallID: call.ID, ReturnValue: ErrorValue(BriefRuntimeError, err.Error())}
		return
	}
	out <- Result{ToolCallID: call.ID, ReturnValue: rv}
}
