package builtin

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/hexops/gotextdiff"
	"github.com/hexops/gotextdiff/myers"
	"github.com/hexops/gotextdiff/span"

	"github.com/gencode-ai/agentcore/internal/toolset"
)

const writeParamsSchema = `{
  "type": "object",
  "properties": {
    "file_path": {"type": "string", "description": "absolute or working-directory-relative path to write"},
    "content": {"type": "string", "description": "full file content to write"}
  },
  "required": ["file_path", "content"]
}`

// WriteFile overwrites (or creates) a file with the given content. It always
// requires approval, attaching a unified diff against the file's current
// contents (or the full content as an all-additions diff for a new file) so
// the approval gate can show the reviewer what will actually change.
type WriteFile struct {
	Dir string
}

func (w *WriteFile) Name() string        { return "WriteFile" }
func (w *WriteFile) Description() string { return "Write content to a file, creating or overwriting it." }
func (w *WriteFile) Parameters() json.RawMessage { return json.RawMessage(writeParamsSchema) }

func (w *WriteFile) RequiresApproval(args map[string]any) (string, string, []toolset.DisplayBlock) {
	path, _ := args["file_path"].(string)
	content, _ := args["content"].(string)
	resolved := resolvePath(w.Dir, path)

	old, err := os.ReadFile(resolved)
	isNewFile := err != nil && os.IsNotExist(err)

	description := "Overwrite existing file"
	if isNewFile {
		description = "Create new file"
		old = nil
	}

	edits := myers.ComputeEdits(span.URIFromPath(resolved), string(old), content)
	unified := fmt.Sprint(gotextdiff.ToUnified(resolved, resolved, string(old), edits))

	return "write_file:" + resolved, description, []toolset.DisplayBlock{toolset.NewDiffDisplay(unified)}
}

func (w *WriteFile) Execute(_ context.Context, args map[string]any) toolset.ToolReturnValue {
	path, ok := args["file_path"].(string)
	if !ok || path == "" {
		return toolset.ErrorValue(toolset.BriefValidateError, "file_path is required")
	}
	content, ok := args["content"].(string)
	if !ok {
		return toolset.ErrorValue(toolset.BriefValidateError, "content is required")
	}
	resolved := resolvePath(w.Dir, path)

	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return toolset.ErrorValue(toolset.BriefRuntimeError, err.Error())
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return toolset.ErrorValue(toolset.BriefRuntimeError, err.Error())
	}
	return toolset.Ok(fmt.Sprintf("wrote %d bytes to %s", len(content), resolved))
}

func resolvePath(dir, path string) string {
	if filepath.IsAbs(path) || dir == "" {
		return path
	}
	return filepath.Join(dir, path)
}
