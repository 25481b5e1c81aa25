// Package builtin provides a minimal reference set of concrete tools —
// Bash, ReadFile, WriteFile, WebFetch, SendDMail, Task — wired against the toolset.Tool interface so the
// dispatcher has something real to exercise end to end. A production agent
// would register a much larger tool surface; that surface is out of scope
// here.
package builtin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/gencode-ai/agentcore/internal/toolset"
)

const bashParamsSchema = `{
  "type": "object",
  "properties": {
    "command": {"type": "string", "description": "the shell command to run"},
    "description": {"type": "string", "description": "a short human-readable summary of what the command does"},
    "timeout_ms": {"type": "integer", "description": "max time to allow the command to run, in milliseconds"}
  },
  "required": ["command"]
}`

// Bash runs a shell command through bash -c, capturing combined stdout and
// stderr. It always requires approval — there is no way to statically tell a
// safe command from a destructive one.
type Bash struct {
	// Dir is the working directory commands run in. Empty means the
	// process's own working directory.
	Dir string
}

func (b *Bash) Name() string        { return "Bash" }
func (b *Bash) Description() string { return "Execute a shell command and return its combined output." }
func (b *Bash) Parameters() json.RawMessage { return json.RawMessage(bashParamsSchema) }

const bashApprovalDescriptionWidth = 80

func (b *Bash) RequiresApproval(args map[string]any) (string, string, []toolset.DisplayBlock) {
	command, _ := args["command"].(string)
	description, _ := args["description"].(string)
	if description == "" {
		description = command
	}
	return "bash:run", toolset.TruncateForDisplay(description, bashApprovalDescriptionWidth), nil
}

func (b *Bash) Execute(ctx context.Context, args map[string]any) toolset.ToolReturnValue {
	command, ok := args["command"].(string)
	if !ok || command == "" {
		return toolset.ErrorValue(toolset.BriefValidateError, "command is required")
	}

	timeout := 120 * time.Second
	if ms, ok := args["timeout_ms"].(float64); ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
		if timeout > 600*time.Second {
			timeout = 600 * time.Second
		}
	}

	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, "bash", "-c", command)
	cmd.Dir = b.Dir

	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out

	err := cmd.Run()

	output := out.String()
	const maxLen = 30000
	if len(output) > maxLen {
		output = output[:maxLen] + "\n... (output truncated)"
	}

	if runCtx.Err() == context.DeadlineExceeded {
		return toolset.ErrorValue(toolset.BriefTimeout, fmt.Sprintf("command timed out after %s", timeout))
	}
	if err != nil {
		if exitErr, ok := err.(*exec.ExitError); ok {
			return toolset.ErrorValue(toolset.BriefRuntimeError, fmt.Sprintf("exit code %d\n%s", exitErr.ExitCode(), strings.TrimSpace(output)))
		}
		return toolset.ErrorValue(toolset.BriefRuntimeError, err.Error())
	}
	return toolset.Ok(output)
}
