package llm

import "github.com/gencode-ai/agentcore/internal/message"

// Model pairs a ChatProvider with the context-window size and capability set
// the Soul needs for compaction triggering and input/output capability
// checks — pieces of model configuration that sit above the bare generate/
// with_thinking surface ChatProvider exposes.
type Model struct {
	Provider       ChatProvider
	MaxContextSize int
	Capabilities   map[Capability]bool
}

// Supports reports whether this model advertises capability c.
func (m *Model) Supports(c Capability) bool {
	if m == nil {
		return false
	}
	return m.Capabilities[c]
}

// partCapability maps a content part's type to the capability a model must
// advertise to accept it as input, or "" if the part type is unconstrained
// (plain text, tool calls).
func partCapability(t message.PartType) Capability {
	switch t {
	case message.PartImageURL:
		return CapImageInput
	case message.PartAudioURL:
		return CapAudioInput
	case message.PartVideoURL:
		return CapVideoInput
	case message.PartThink:
		return CapThinking
	default:
		return ""
	}
}

// MissingCapabilities reports, in first-seen order and without duplicates,
// every capability msg's content requires that this model does not
// advertise.
func (m *Model) MissingCapabilities(msg message.Message) []Capability {
	var missing []Capability
	seen := make(map[Capability]bool)
	for _, part := range msg.Content.Parts {
		c := partCapability(part.Type)
		if c == "" || m.Supports(c) || seen[c] {
			continue
		}
		seen[c] = true
		missing = append(missing, c)
	}
	return missing
}
