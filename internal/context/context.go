// Package context implements the append-only conversation log backing one
// session: an in-memory message vector mirrored line-by-line to
// context.jsonl, with labeled rollback-safe checkpoints and a running
// prompt-token tally.
package context

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/gencode-ai/agentcore/internal/message"
)

// checkpoint pins a rollback-safe prefix: how many messages were committed,
// and the exact on-disk byte length at that point, recorded together so
// revert_to can truncate both the in-memory vector and the file in one shot.
type checkpoint struct {
	messageCount int
	byteOffset   int64
}

// Context is the append-only log for one session. All methods are safe for
// concurrent use.
type Context struct {
	mu   sync.Mutex
	path string
	file *os.File

	messages    []message.Message
	byteOffsets []int64 // byteOffsets[i] = file length after messages[i] was written

	checkpoints []checkpoint
	tokenCount  int
}

// Open loads an existing context.jsonl at path, or creates an empty one if it
// does not exist yet.
func Open(path string) (*Context, error) {
	c := &Context{path: path}

	if existing, err := os.ReadFile(path); err == nil {
		if err := c.loadFrom(existing); err != nil {
			return nil, fmt.Errorf("context: loading %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("context: reading %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("context: opening %s: %w", path, err)
	}
	c.file = f
	return c, nil
}

func (c *Context) loadFrom(data []byte) error {
	var offset int64
	lines := splitLines(data)
	for _, line := range lines {
		if len(line) == 0 {
			continue
		}
		var msg message.Message
		if err := json.Unmarshal(line, &msg); err != nil {
			return err
		}
		offset += int64(len(line)) + 1 // +1 for the trailing newline
		c.messages = append(c.messages, msg)
		c.byteOffsets = append(c.byteOffsets, offset)
	}
	return nil
}

func splitLines(data []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, b := range data {
		if b == '\n' {
			lines = append(lines, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		lines = append(lines, data[start:])
	}
	return lines
}

// AppendMessage commits one message to the log: marshaled and written as a
// single line in one Write call, so a concurrent reader never observes a
// partial record.
func (c *Context) AppendMessage(msg message.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	encoded, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("context: marshaling message: %w", err)
	}
	line := append(encoded, '\n')

	n, err := c.file.Write(line)
	if err != nil {
		return fmt.Errorf("context: writing to %s: %w", c.path, err)
	}
	if err := c.file.Sync(); err != nil {
		return fmt.Errorf("context: syncing %s: %w", c.path, err)
	}

	prevOffset := c.tailOffset()
	c.messages = append(c.messages, msg)
	c.byteOffsets = append(c.byteOffsets, prevOffset+int64(n))
	return nil
}

func (c *Context) tailOffset() int64 {
	if len(c.byteOffsets) == 0 {
		return 0
	}
	return c.byteOffsets[len(c.byteOffsets)-1]
}

func (c *Context) offsetAfter(count int) int64 {
	if count == 0 {
		return 0
	}
	return c.byteOffsets[count-1]
}

// Checkpoint records a rollback-safe prefix and returns its id (its index in
// checkpoints). If withUserMessage is false and the tail message is a user
// message, that message is excluded from the checkpoint so revert_to lands
// immediately before it. Calling Checkpoint again at an offset identical to
// the last checkpoint is idempotent: it returns the existing id.
func (c *Context) Checkpoint(withUserMessage bool) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	count := len(c.messages)
	if !withUserMessage && count > 0 && c.messages[count-1].Role == message.RoleUser {
		count--
	}
	offset := c.offsetAfter(count)

	if n := len(c.checkpoints); n > 0 {
		last := c.checkpoints[n-1]
		if last.messageCount == count && last.byteOffset == offset {
			return n - 1
		}
	}
	c.checkpoints = append(c.checkpoints, checkpoint{messageCount: count, byteOffset: offset})
	return len(c.checkpoints) - 1
}

// RevertTo truncates the in-memory log and context.jsonl to the prefix
// recorded at checkpoint id, discarding every later checkpoint.
func (c *Context) RevertTo(id int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if id < 0 || id >= len(c.checkpoints) {
		return fmt.Errorf("context: checkpoint id %d out of range [0,%d)", id, len(c.checkpoints))
	}
	cp := c.checkpoints[id]

	if err := c.file.Truncate(cp.byteOffset); err != nil {
		return fmt.Errorf("context: truncating %s: %w", c.path, err)
	}
	if _, err := c.file.Seek(cp.byteOffset, io.SeekStart); err != nil {
		return fmt.Errorf("context: seeking %s: %w", c.path, err)
	}

	c.messages = c.messages[:cp.messageCount]
	c.byteOffsets = c.byteOffsets[:cp.messageCount]
	c.checkpoints = c.checkpoints[:id+1]
	return nil
}

// NCheckpoints reports the current checkpoint count, for DenwaRenji's
// validity window.
func (c *Context) NCheckpoints() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.checkpoints)
}

// UpdateTokenCount replaces the stored prompt-token tally.
func (c *Context) UpdateTokenCount(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tokenCount = n
}

// TokenCount returns the current prompt-token tally.
func (c *Context) TokenCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tokenCount
}

// Messages returns a copy of the current message vector.
func (c *Context) Messages() []message.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]message.Message, len(c.messages))
	copy(out, c.messages)
	return out
}

// Clear rotates context.jsonl to a timestamped backup and resets all state:
// token_count to zero, checkpoints discarded, the in-memory log emptied.
func (c *Context) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := c.file.Close(); err != nil {
		return fmt.Errorf("context: closing %s: %w", c.path, err)
	}

	backup := fmt.Sprintf("%s.%s.bak", c.path, time.Now().UTC().Format("20060102T150405Z"))
	if err := os.Rename(c.path, backup); err != nil {
		return fmt.Errorf("context: rotating %s: %w", c.path, err)
	}

	f, err := os.OpenFile(c.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("context: reopening %s: %w", c.path, err)
	}
	c.file = f
	c.messages = nil
	c.byteOffsets = nil
	c.checkpoints = nil
	c.tokenCount = 0
	return nil
}

// Close releases the underlying file handle.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.file.Close()
}
