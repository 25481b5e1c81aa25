// Package denwarenji implements the one-shot "D-Mail" mailbox: a tool may
// request that the Soul rewind the conversation to a past checkpoint and
// inject a synthetic user message, the way a time-travel letter in Steins;Gate
// rewrites the present from a message sent to the past.
package denwarenji

import (
	"fmt"
	"sync"

	"github.com/gencode-ai/agentcore/internal/message"
)

// DMail is one pending rewind request: roll the context back to CheckpointID
// and append Messages as a synthetic turn.
type DMail struct {
	CheckpointID int
	Messages     []message.Message
}

// DenwaRenji holds at most one pending D-Mail at a time. Send overwrites any
// previously pending, unfetched D-Mail — only the most recent request
// matters, matching a tool call's one-shot intent.
type DenwaRenji struct {
	mu           sync.Mutex
	nCheckpoints int
	pending      *DMail
}

// New constructs an empty mailbox.
func New() *DenwaRenji {
	return &DenwaRenji{}
}

// SetNCheckpoints records the context's current checkpoint count, defining
// the valid range for Send's checkpoint_id argument. The Soul calls this once
// per step, right after taking that step's checkpoint.
func (d *DenwaRenji) SetNCheckpoints(n int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nCheckpoints = n
}

// Send validates and records a rewind request. Returns an error without
// recording anything if checkpointID is out of the current valid range.
func (d *DenwaRenji) Send(checkpointID int, messages []message.Message) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if checkpointID < 0 || checkpointID >= d.nCheckpoints {
		return fmt.Errorf("denwarenji: checkpoint id %d out of range [0,%d)", checkpointID, d.nCheckpoints)
	}
	d.pending = &DMail{CheckpointID: checkpointID, Messages: messages}
	return nil
}

// FetchPendingDMail returns and clears the pending D-Mail, if any. Calling it
// when nothing is pending returns nil, false.
func (d *DenwaRenji) FetchPendingDMail() (*DMail, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.pending == nil {
		return nil, false
	}
	mail := d.pending
	d.pending = nil
	return mail, true
}
