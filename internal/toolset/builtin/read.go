package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/gencode-ai/agentcore/internal/toolset"
)

const readParamsSchema = `{
  "type": "object",
  "properties": {
    "file_path": {"type": "string", "description": "absolute or working-directory-relative path to read"},
    "offset": {"type": "integer", "description": "1-based line to start reading from"},
    "limit": {"type": "integer", "description": "maximum number of lines to return"}
  },
  "required": ["file_path"]
}`

// ReadFile reads a text file, optionally a line range, and never requires
// approval — reading is non-destructive.
type ReadFile struct {
	Dir string
}

func (r *ReadFile) Name() string             { return "ReadFile" }
func (r *ReadFile) Description() string      { return "Read a text file, optionally a line range." }
func (r *ReadFile) Parameters() json.RawMessage { return json.RawMessage(readParamsSchema) }

func (r *ReadFile) RequiresApproval(map[string]any) (string, string, []toolset.DisplayBlock) {
	return "", "", nil
}

func (r *ReadFile) Execute(_ context.Context, args map[string]any) toolset.ToolReturnValue {
	path, ok := args["file_path"].(string)
	if !ok || path == "" {
		return toolset.ErrorValue(toolset.BriefValidateError, "file_path is required")
	}
	path = resolvePath(r.Dir, path)

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return toolset.ErrorValue(toolset.BriefNotFoundError, fmt.Sprintf("no such file: %s", path))
		}
		return toolset.ErrorValue(toolset.BriefRuntimeError, err.Error())
	}

	lines := strings.Split(string(data), "\n")
	offset := 1
	if v, ok := args["offset"].(float64); ok && v >= 1 {
		offset = int(v)
	}
	limit := len(lines)
	if v, ok := args["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	start := offset - 1
	if start < 0 {
		start = 0
	}
	if start > len(lines) {
		start = len(lines)
	}
	end := start + limit
	if end > len(lines) {
		end = len(lines)
	}
	return toolset.Ok(strings.Join(lines[start:end], "\n"))
}
