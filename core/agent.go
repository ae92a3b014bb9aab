package core

import "context"

// Request carries one routed turn into an agent invocation. History is
// the full working conversation for the selected (user, session, agent)
// key and always ends in a user-role message: the new input on the first
// invocation, a tool-result turn on re-invocations during tool
// resolution.
type Request struct {
	InputText string    // Raw user text for this turn (retrieval query, logging)
	UserID    string    // Requesting user
	SessionID string    // Conversation scope within the user
	History   []Message // Working conversation including the pending user turn
	Stream    bool      // Caller wants partial chunks
}

// Chunk is a partial or final unit emitted by an agent invocation.
// Partial chunks carry a text delta. The terminal chunk carries the
// complete assistant message, giving streaming and non-streaming agents
// the same post-hoc structured response for tool detection and history
// commit.
type Chunk struct {
	Partial bool
	Delta   string   // Text delta (partial chunks only)
	Message *Message // Full assistant message (terminal chunk only)
}

// Agent is the unit the orchestrator dispatches a classified request to.
//
// Implementations must:
//   - Respect context cancellation on the backend call
//   - Close both channels when the invocation finishes
//   - Emit exactly one terminal chunk (Partial == false) on success
//   - Hold no per-invocation mutable state so concurrent sessions can
//     share a single instance
//
// A non-streaming agent simply emits the terminal chunk and closes.
type Agent interface {
	// ID returns the unique registry identifier.
	ID() string

	// Name returns the human-readable agent name.
	Name() string

	// Description explains what requests the agent is suited for. The
	// classifier feeds descriptions to its selection strategy.
	Description() string

	// StreamingEnabled reports whether the agent emits partial chunks.
	StreamingEnabled() bool

	// Process answers the request given the working history. The error
	// channel carries at most one terminal error.
	Process(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
}

// PromptConfigurable is implemented by agents whose system prompt can be
// replaced at runtime. The swap is atomic: invocations already in flight
// keep the snapshot taken at call start and the new prompt applies from
// the next invocation on.
type PromptConfigurable interface {
	SetSystemPrompt(template string, variables map[string]string)
}
