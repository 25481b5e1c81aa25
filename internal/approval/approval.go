// Package approval implements the per-action decision gate: tools ask before
// taking an effectful action, the Soul forwards the request to the UI over
// the Wire, and the resolution both answers the waiting tool and, for
// approve_for_session, short-circuits every later request for the same
// action.
package approval

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/gencode-ai/agentcore/internal/toolset"
)

// Outcome is a standing decision recorded against an action key.
type Outcome string

const (
	OutcomeAsk              Outcome = "ask"
	OutcomeAllowForSession  Outcome = "allow_for_session"
	OutcomeReject           Outcome = "reject"
)

// Resolution is how the Soul settles one specific pending request. It is
// distinct from Outcome: "approve" resolves only this request, while
// "approve_for_session" also updates the action map.
type Resolution string

const (
	ResolveApprove           Resolution = "approve"
	ResolveApproveForSession Resolution = "approve_for_session"
	ResolveReject            Resolution = "reject"
)

// Rule is a pre-seeded glob pattern matched against an action key the first
// time it is seen, e.g. `Bash(npm *)` -> allow_for_session. Patterns use
// doublestar syntax (`**`, `*`, `?`, character classes).
type Rule struct {
	Pattern string
	Outcome Outcome
}

// PendingRequest is one in-flight approval request awaiting a UI decision.
type PendingRequest struct {
	ID          string
	ToolName    string
	Action      string
	Description string
	Display     []toolset.DisplayBlock

	done chan bool
}

// Approval is the shared, subagent-shareable decision gate. The zero value is
// not usable; construct with New.
type Approval struct {
	yolo atomic.Bool

	mu      sync.Mutex
	actions map[string]Outcome
	rules   []Rule
	pending map[string]*PendingRequest
	nextID  int64

	queue chan *PendingRequest
}

// New constructs an Approval gate. rules are evaluated, in order, the first
// time an action key has no recorded outcome; yolo bypasses every request as
// approved without ever enqueuing one.
func New(rules []Rule, yolo bool) *Approval {
	a := &Approval{
		actions: make(map[string]Outcome),
		rules:   rules,
		pending: make(map[string]*PendingRequest),
		queue:   make(chan *PendingRequest, 256),
	}
	a.yolo.Store(yolo)
	return a
}

// SetYOLO toggles the bypass flag at runtime (e.g. a slash command).
func (a *Approval) SetYOLO(enabled bool) {
	a.yolo.Store(enabled)
}

// Share returns a handle to the same underlying state, so session-wide
// approvals (and YOLO) apply identically inside a subagent.
func (a *Approval) Share() *Approval {
	return a
}

func (a *Approval) recordedOutcome(action string) Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	if outcome, ok := a.actions[action]; ok {
		return outcome
	}
	for _, r := range a.rules {
		if ok, _ := doublestar.Match(r.Pattern, action); ok {
			a.actions[action] = r.Outcome
			return r.Outcome
		}
	}
	return OutcomeAsk
}

// Request implements toolset.Approver. It looks up action's recorded
// outcome: allow_for_session returns true immediately, reject returns false
// immediately, and ask enqueues an ApprovalRequest and blocks until resolved
// or ctx is done.
func (a *Approval) Request(ctx context.Context, toolName, action, description string, display []toolset.DisplayBlock) bool {
	if a.yolo.Load() {
		return true
	}

	switch a.recordedOutcome(action) {
	case OutcomeAllowForSession:
		return true
	case OutcomeReject:
		return false
	}

	req := &PendingRequest{
		ID:          a.newID(),
		ToolName:    toolName,
		Action:      action,
		Description: description,
		Display:     display,
		done:        make(chan bool, 1),
	}

	a.mu.Lock()
	a.pending[req.ID] = req
	a.mu.Unlock()

	select {
	case a.queue <- req:
	case <-ctx.Done():
		a.mu.Lock()
		delete(a.pending, req.ID)
		a.mu.Unlock()
		return false
	}

	select {
	case approved := <-req.done:
		return approved
	case <-ctx.Done():
		return false
	}
}

func (a *Approval) newID() string {
	id := atomic.AddInt64(&a.nextID, 1)
	return fmt.Sprintf("approval-%d", id)
}

// FetchRequest drains the next pending request, blocking until one arrives or
// ctx is cancelled. The Soul calls this in a loop, forwarding each request to
// the Wire as an ApprovalRequest.
func (a *Approval) FetchRequest(ctx context.Context) (*PendingRequest, bool) {
	select {
	case req := <-a.queue:
		return req, true
	case <-ctx.Done():
		return nil, false
	}
}

// ResolveRequest settles one pending request. Resolution is one-shot and
// idempotent: resolving an id that is no longer pending (already resolved, or
// unknown) is a no-op. approve_for_session additionally records the action as
// allow_for_session so every later request for it short-circuits.
func (a *Approval) ResolveRequest(id string, resolution Resolution) {
	a.mu.Lock()
	req, ok := a.pending[id]
	if !ok {
		a.mu.Unlock()
		return
	}
	delete(a.pending, id)
	if resolution == ResolveApproveForSession {
		a.actions[req.Action] = OutcomeAllowForSession
	}
	a.mu.Unlock()

	req.done <- resolution != ResolveReject
	close(req.done)
}
