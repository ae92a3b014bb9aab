package core

import (
	"encoding/json"
	"fmt"
)

// partEnvelope is the wire shape for a Part. The Type discriminator keeps
// the closed part set decodable without reflection.
type partEnvelope struct {
	Type      string         `json:"type"`
	Text      string         `json:"text,omitempty"`
	ID        string         `json:"id,omitempty"`
	Name      string         `json:"name,omitempty"`
	Input     map[string]any `json:"input,omitempty"`
	ToolUseID string         `json:"tool_use_id,omitempty"`
	Content   string         `json:"content,omitempty"`
	IsError   bool           `json:"is_error,omitempty"`
}

type messageEnvelope struct {
	Role  Role           `json:"role"`
	Parts []partEnvelope `json:"parts"`
}

// MarshalJSON implements json.Marshaler. Persistence adapters rely on this
// encoding; it is part of the stored representation and must stay
// backward compatible.
func (m Message) MarshalJSON() ([]byte, error) {
	env := messageEnvelope{Role: m.Role, Parts: make([]partEnvelope, 0, len(m.Parts))}
	for _, p := range m.Parts {
		switch part := p.(type) {
		case TextPart:
			env.Parts = append(env.Parts, partEnvelope{Type: "text", Text: part.Text})
		case ToolUsePart:
			env.Parts = append(env.Parts, partEnvelope{Type: "tool_use", ID: part.ID, Name: part.Name, Input: part.Input})
		case ToolResultPart:
			env.Parts = append(env.Parts, partEnvelope{Type: "tool_result", ToolUseID: part.ToolUseID, Content: part.Content, IsError: part.IsError})
		default:
			return nil, fmt.Errorf("unknown message part type %T", p)
		}
	}
	return json.Marshal(env)
}

// UnmarshalJSON implements json.Unmarshaler.
func (m *Message) UnmarshalJSON(data []byte) error {
	var env messageEnvelope
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	m.Role = env.Role
	m.Parts = make([]Part, 0, len(env.Parts))
	for _, p := range env.Parts {
		switch p.Type {
		case "text":
			m.Parts = append(m.Parts, TextPart{Text: p.Text})
		case "tool_use":
			m.Parts = append(m.Parts, ToolUsePart{ID: p.ID, Name: p.Name, Input: p.Input})
		case "tool_result":
			m.Parts = append(m.Parts, ToolResultPart{ToolUseID: p.ToolUseID, Content: p.Content, IsError: p.IsError})
		default:
			return fmt.Errorf("unknown message part type %q", p.Type)
		}
	}
	return nil
}
