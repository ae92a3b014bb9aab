package core

import (
	"errors"
	"fmt"
)

// Sentinel errors surfaced by the orchestrator before any dispatch work
// happens. Wrap with %w so callers can test with errors.Is.
var (
	// ErrNoAgents is returned when routing is attempted against an empty
	// agent registry.
	ErrNoAgents = errors.New("no agents registered")

	// ErrInvalidInput is returned for empty input text or missing
	// identifiers. It is rejected before classification with no history
	// mutation.
	ErrInvalidInput = errors.New("invalid input")
)

// DuplicateAgentError reports a second registration under an existing id.
type DuplicateAgentError struct {
	ID string
}

func (e *DuplicateAgentError) Error() string {
	return fmt.Sprintf("agent %q already registered", e.ID)
}

// LowConfidenceError is returned when classification confidence falls
// below the configured threshold and no default-agent fallback is
// enabled. It carries the advisory result so the caller can prompt the
// user for clarification.
type LowConfidenceError struct {
	Result ClassifierResult
}

func (e *LowConfidenceError) Error() string {
	candidate := "none"
	if e.Result.Agent != nil {
		candidate = e.Result.Agent.ID()
	}
	return fmt.Sprintf("classification confidence %.2f below threshold (candidate agent %s)", e.Result.Confidence, candidate)
}

// InvocationError wraps a backend failure with enough routing context to
// diagnose it without leaking raw backend payloads. The originating cause
// is available through Unwrap.
type InvocationError struct {
	AgentID   string
	UserID    string
	SessionID string
	Stage     string // pipeline stage that failed (dispatch, tool, commit)
	Err       error
}

func (e *InvocationError) Error() string {
	return fmt.Sprintf("agent %s failed during %s (user=%s session=%s): %v", e.AgentID, e.Stage, e.UserID, e.SessionID, e.Err)
}

func (e *InvocationError) Unwrap() error { return e.Err }

// ToolLoopError reports a tool-resolution loop that hit its cycle cap,
// which indicates a looping tool handler. Exchange holds the partial
// conversation for diagnostics.
type ToolLoopError struct {
	AgentID  string
	Cycles   int
	Exchange []Message
}

func (e *ToolLoopError) Error() string {
	return fmt.Sprintf("agent %s exceeded %d tool resolution cycles", e.AgentID, e.Cycles)
}
