// Package testutil contains fakes and helper builders used across tests
// to exercise the orchestrator without real model backends. These helpers
// are intentionally minimal and not intended for production usage.
package testutil

import (
	"context"
	"sync"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/tool"
)

// FakeAgent implements core.Agent with scripted replies. Replies are
// consumed in order; the last one repeats once the script is exhausted.
// When Err is set every invocation fails with it.
type FakeAgent struct {
	AgentID   string
	AgentName string
	Desc      string
	Streaming bool
	Replies   []core.Message
	Tools     *tool.Config
	Err       error
	// Hang makes the agent emit its partial chunks and then block until
	// the context is cancelled, modelling a backend that never completes.
	Hang bool

	mu    sync.Mutex
	calls int
}

var (
	_ core.Agent        = (*FakeAgent)(nil)
	_ tool.CapableAgent = (*FakeAgent)(nil)
)

// NewFakeAgent builds a non-streaming fake answering every request with
// the given text.
func NewFakeAgent(id, text string) *FakeAgent {
	return &FakeAgent{
		AgentID:   id,
		AgentName: id,
		Desc:      "fake agent " + id,
		Replies:   []core.Message{core.NewAssistantMessage(text)},
	}
}

// ID implements core.Agent.
func (f *FakeAgent) ID() string { return f.AgentID }

// Name implements core.Agent.
func (f *FakeAgent) Name() string { return f.AgentName }

// Description implements core.Agent.
func (f *FakeAgent) Description() string { return f.Desc }

// StreamingEnabled implements core.Agent.
func (f *FakeAgent) StreamingEnabled() bool { return f.Streaming }

// ToolConfig implements tool.CapableAgent.
func (f *FakeAgent) ToolConfig() *tool.Config { return f.Tools }

// Calls reports how many invocations the agent has served.
func (f *FakeAgent) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

// Process implements core.Agent. Streaming fakes emit the reply text as
// per-rune partial chunks before the terminal chunk.
func (f *FakeAgent) Process(ctx context.Context, req core.Request) (<-chan core.Chunk, <-chan error) {
	out := make(chan core.Chunk, 16)
	errCh := make(chan error, 1)

	f.mu.Lock()
	idx := f.calls
	f.calls++
	if idx >= len(f.Replies) {
		idx = len(f.Replies) - 1
	}
	f.mu.Unlock()

	go func() {
		defer close(out)
		defer close(errCh)

		if f.Err != nil {
			errCh <- f.Err
			return
		}

		reply := f.Replies[idx]
		if f.Streaming && req.Stream {
			for _, r := range reply.Text() {
				select {
				case <-ctx.Done():
					errCh <- ctx.Err()
					return
				case out <- core.Chunk{Partial: true, Delta: string(r)}:
				}
			}
		}
		if f.Hang {
			<-ctx.Done()
			errCh <- ctx.Err()
			return
		}
		select {
		case <-ctx.Done():
			errCh <- ctx.Err()
		case out <- core.Chunk{Message: &reply}:
		}
	}()

	return out, errCh
}

// FakeClassifier returns a fixed result (or error) for every input.
type FakeClassifier struct {
	Result core.ClassifierResult
	Err    error

	mu          sync.Mutex
	lastHistory []core.Message
}

var _ core.Classifier = (*FakeClassifier)(nil)

// Classify implements core.Classifier.
func (f *FakeClassifier) Classify(_ context.Context, _ string, history []core.Message, agents []core.Agent) (core.ClassifierResult, error) {
	if len(agents) == 0 {
		return core.ClassifierResult{}, core.ErrNoAgents
	}
	f.mu.Lock()
	f.lastHistory = history
	f.mu.Unlock()
	if f.Err != nil {
		return core.ClassifierResult{}, f.Err
	}
	return f.Result, nil
}

// LastHistory returns the history passed to the most recent Classify call.
func (f *FakeClassifier) LastHistory() []core.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lastHistory
}

// ToolUseMessage builds an assistant message requesting a single tool.
func ToolUseMessage(id, name string, input map[string]any) core.Message {
	return core.Message{
		Role:  core.RoleAssistant,
		Parts: []core.Part{core.ToolUsePart{ID: id, Name: name, Input: input}},
	}
}
