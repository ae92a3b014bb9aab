package core

import "strings"

// Role identifies the speaker of a conversation message.
type Role string

const (
	// RoleUser marks messages authored by the end user (including
	// synthesized tool-result turns).
	RoleUser Role = "user"
	// RoleAssistant marks messages produced by an agent.
	RoleAssistant Role = "assistant"
)

// Part represents a polymorphic segment of message content. Concrete part
// types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text string
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// ToolUsePart is an agent's request to execute an external tool before it
// can produce a final answer.
type ToolUsePart struct {
	ID    string         // Stable id correlating the eventual result
	Name  string         // Tool name
	Input map[string]any // Structured arguments
}

// isPart implements the Part interface for ToolUsePart.
func (ToolUsePart) isPart() {}

// ToolResultPart carries the outcome of a tool execution back to the agent.
type ToolResultPart struct {
	ToolUseID string // Matches the originating ToolUsePart ID
	Content   string // Result payload (serialized if structured)
	IsError   bool   // Marks the result as a tool failure
}

// isPart implements the Part interface for ToolResultPart.
func (ToolResultPart) isPart() {}

// Message holds a role plus ordered content parts. Messages are immutable
// once appended to a history.
type Message struct {
	Role  Role
	Parts []Part
}

// NewUserMessage builds a user message from plain text.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Parts: []Part{TextPart{Text: text}}}
}

// NewAssistantMessage builds an assistant message from plain text.
func NewAssistantMessage(text string) Message {
	return Message{Role: RoleAssistant, Parts: []Part{TextPart{Text: text}}}
}

// Text concatenates the text parts of the message in order.
func (m Message) Text() string {
	var sb strings.Builder
	for _, p := range m.Parts {
		if tp, ok := p.(TextPart); ok {
			sb.WriteString(tp.Text)
		}
	}
	return sb.String()
}

// ToolUses returns the tool-use parts of the message in order.
func (m Message) ToolUses() []ToolUsePart {
	var uses []ToolUsePart
	for _, p := range m.Parts {
		if tu, ok := p.(ToolUsePart); ok {
			uses = append(uses, tu)
		}
	}
	return uses
}

// HasToolUse reports whether the message contains a tool-use part.
func (m Message) HasToolUse() bool {
	for _, p := range m.Parts {
		if _, ok := p.(ToolUsePart); ok {
			return true
		}
	}
	return false
}
