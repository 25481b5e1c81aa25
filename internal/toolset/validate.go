package toolset

import (
	"encoding/json"
	"fmt"
)

// jsonSchemaShape is the minimal slice of JSON Schema this package enforces:
// the "required" property list on an object schema. Full schema validation
// (types, enums, nested objects) is intentionally not implemented here — no
// library in the example pack pulls in a JSON Schema validator, and tool
// parameter schemas in practice are flat objects where "required" is the only
// check that catches a malformed LLM call before Execute runs.
type jsonSchemaShape struct {
	Required []string `json:"required"`
}

// validateAgainstSchema reports a missing required argument as an error; it
// does not attempt type checking beyond that.
func validateAgainstSchema(schema json.RawMessage, args map[string]any) error {
	if len(schema) == 0 {
		return nil
	}
	var shape jsonSchemaShape
	if err := json.Unmarshal(schema, &shape); err != nil {
		return nil
	}
	for _, name := range shape.Required {
		if _, ok := args[name]; !ok {
			return fmt.Errorf("missing required argument %q", name)
		}
	}
	return nil
}
