package builtin

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gencode-ai/agentcore/internal/denwarenji"
	"github.com/gencode-ai/agentcore/internal/message"
	"github.com/gencode-ai/agentcore/internal/toolset"
)

// SendDMailName is the tool name internal/soul checks for at Soul
// construction to decide whether the first checkpoint includes the trailing
// user message (see internal/soul.New).
const SendDMailName = "SendDMail"

const dmailParamsSchema = `{
  "type": "object",
  "properties": {
    "checkpoint_id": {"type": "integer", "description": "id of the checkpoint to rewind the conversation to"},
    "message": {"type": "string", "description": "note for the rewound self to read on waking up"}
  },
  "required": ["checkpoint_id", "message"]
}`

// SendDMail lets the model rewind the conversation to a past checkpoint and
// leave itself a note there, the way a D-Mail rewrites the present from a
// message sent to the past. It never requires approval: the rewind is
// visible to the user only as a resumed turn, not an effectful action on the
// outside world.
type SendDMail struct {
	DMail *denwarenji.DenwaRenji
}

func (s *SendDMail) Name() string        { return SendDMailName }
func (s *SendDMail) Description() string {
	return "Rewind the conversation to a past checkpoint and leave a note for your rewound self."
}
func (s *SendDMail) Parameters() json.RawMessage { return json.RawMessage(dmailParamsSchema) }

func (s *SendDMail) RequiresApproval(map[string]any) (string, string, []toolset.DisplayBlock) {
	return "", "", nil
}

func (s *SendDMail) Execute(_ context.Context, args map[string]any) toolset.ToolReturnValue {
	idFloat, ok := args["checkpoint_id"].(float64)
	if !ok {
		return toolset.ErrorValue(toolset.BriefValidateError, "checkpoint_id is required")
	}
	note, ok := args["message"].(string)
	if !ok || note == "" {
		return toolset.ErrorValue(toolset.BriefValidateError, "message is required")
	}

	checkpointID := int(idFloat)
	if err := s.DMail.Send(checkpointID, []message.Message{message.NewUserMessage(note)}); err != nil {
		return toolset.ErrorValue(toolset.BriefValidateError, err.Error())
	}
	return toolset.Ok(fmt.Sprintf("D-Mail sent to checkpoint %d.", checkpointID))
}
