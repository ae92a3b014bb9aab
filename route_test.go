package agentroute

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/internal/testutil"
	"github.com/hupe1980/agentroute/tool"
)

func TestRouteValidation(t *testing.T) {
	o := New()
	require.NoError(t, o.AddAgent(testutil.NewFakeAgent("a", "hi")))

	tests := []struct {
		name      string
		input     string
		userID    string
		sessionID string
	}{
		{name: "empty input", input: "", userID: "u1", sessionID: "s1"},
		{name: "blank input", input: "   ", userID: "u1", sessionID: "s1"},
		{name: "missing user", input: "hello", userID: "", sessionID: "s1"},
		{name: "missing session", input: "hello", userID: "u1", sessionID: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := o.Route(context.Background(), tt.input, tt.userID, tt.sessionID)
			assert.ErrorIs(t, err, core.ErrInvalidInput)
		})
	}
}

func TestRouteNoAgents(t *testing.T) {
	o := New()
	_, err := o.Route(context.Background(), "hello", "u1", "s1")
	assert.ErrorIs(t, err, core.ErrNoAgents)
}

func TestAddAgentDuplicateID(t *testing.T) {
	o := New()
	require.NoError(t, o.AddAgent(testutil.NewFakeAgent("a", "hi")))

	err := o.AddAgent(testutil.NewFakeAgent("a", "other"))
	var dup *core.DuplicateAgentError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "a", dup.ID)
}

// Below-threshold classifications dispatch to the default agent, not the
// classifier's raw pick.
func TestRouteDefaultFallback(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "answer from a")
	agentB := testutil.NewFakeAgent("b", "answer from b")

	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{
			Result: core.ClassifierResult{Agent: agentB, Confidence: 0.3},
		}
		o.ConfidenceThreshold = 0.5
	})
	require.NoError(t, o.AddAgent(agentA))
	require.NoError(t, o.AddAgent(agentB))

	resp, err := o.Route(context.Background(), "hello", "u1", "s1")
	require.NoError(t, err)

	assert.Equal(t, "a", resp.AgentID)
	assert.Equal(t, "answer from a", resp.Message.Text())
	assert.Equal(t, 0, agentB.Calls())

	history, err := o.store.Get(context.Background(), core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "a"})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, core.RoleUser, history[0].Role)
	assert.Equal(t, "hello", history[0].Text())
	assert.Equal(t, core.RoleAssistant, history[1].Role)
	assert.Equal(t, "answer from a", history[1].Text())
}

func TestRouteAboveThresholdUsesClassifierPick(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "answer from a")
	agentB := testutil.NewFakeAgent("b", "answer from b")

	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{
			Result: core.ClassifierResult{Agent: agentB, Confidence: 0.9},
		}
	})
	require.NoError(t, o.AddAgent(agentA))
	require.NoError(t, o.AddAgent(agentB))

	resp, err := o.Route(context.Background(), "hello", "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "b", resp.AgentID)
	assert.Equal(t, 0.9, resp.Confidence)
}

func TestRouteLowConfidenceWithoutFallback(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "answer from a")

	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{
			Result: core.ClassifierResult{Agent: agentA, Confidence: 0.1},
		}
		o.FallbackToDefault = false
	})
	require.NoError(t, o.AddAgent(agentA))

	_, err := o.Route(context.Background(), "hello", "u1", "s1")
	var low *core.LowConfidenceError
	require.ErrorAs(t, err, &low)
	assert.Equal(t, 0.1, low.Result.Confidence)
	assert.Equal(t, "a", low.Result.Agent.ID())
}

func TestRouteClassifierErrorDegradesToDefault(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "answer from a")

	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Err: errors.New("backend down")}
	})
	require.NoError(t, o.AddAgent(agentA))

	resp, err := o.Route(context.Background(), "hello", "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "a", resp.AgentID)
	assert.Equal(t, float64(0), resp.Confidence)
}

// Histories for different agents under the same session stay independent.
func TestSessionIsolationBetweenAgents(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "answer from a")
	agentB := testutil.NewFakeAgent("b", "answer from b")

	clf := &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}
	o := New(func(o *Options) { o.Classifier = clf })
	require.NoError(t, o.AddAgent(agentA))
	require.NoError(t, o.AddAgent(agentB))

	_, err := o.Route(context.Background(), "first", "u1", "s1")
	require.NoError(t, err)

	clf.Result = core.ClassifierResult{Agent: agentB, Confidence: 1}
	_, err = o.Route(context.Background(), "second", "u1", "s1")
	require.NoError(t, err)

	ctx := context.Background()
	historyA, err := o.store.Get(ctx, core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "a"})
	require.NoError(t, err)
	historyB, err := o.store.Get(ctx, core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "b"})
	require.NoError(t, err)

	require.Len(t, historyA, 2)
	require.Len(t, historyB, 2)
	assert.Equal(t, "first", historyA[0].Text())
	assert.Equal(t, "second", historyB[0].Text())
}

// Sequential and concurrent requests on the same key commit ordered
// (user, assistant) pairs.
func TestHistoryOrdering(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "ok")
	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}
	})
	require.NoError(t, o.AddAgent(agentA))

	const turns = 5
	for i := 0; i < turns; i++ {
		_, err := o.Route(context.Background(), fmt.Sprintf("turn %d", i), "u1", "s1")
		require.NoError(t, err)
	}

	history, err := o.store.Get(context.Background(), core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "a"})
	require.NoError(t, err)
	require.Len(t, history, 2*turns)
	for i := 0; i < turns; i++ {
		assert.Equal(t, core.RoleUser, history[2*i].Role)
		assert.Equal(t, fmt.Sprintf("turn %d", i), history[2*i].Text())
		assert.Equal(t, core.RoleAssistant, history[2*i+1].Role)
	}
}

func TestHistoryPairingUnderConcurrency(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "ok")
	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}
	})
	require.NoError(t, o.AddAgent(agentA))

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := o.Route(context.Background(), fmt.Sprintf("turn %d", i), "u1", "s1")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	history, err := o.store.Get(context.Background(), core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "a"})
	require.NoError(t, err)
	require.Len(t, history, 2*turns)
	// Serialization keeps each turn's pair adjacent even under concurrent
	// submission.
	for i := 0; i < turns; i++ {
		assert.Equal(t, core.RoleUser, history[2*i].Role)
		assert.Equal(t, core.RoleAssistant, history[2*i+1].Role)
	}
}

func TestHistoryWindowTrim(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "ok")
	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}
		o.MaxHistoryMessages = 4
	})
	require.NoError(t, o.AddAgent(agentA))

	for i := 0; i < 5; i++ {
		_, err := o.Route(context.Background(), fmt.Sprintf("turn %d", i), "u1", "s1")
		require.NoError(t, err)
	}

	history, err := o.store.Get(context.Background(), core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "a"})
	require.NoError(t, err)
	require.Len(t, history, 4)
	assert.Equal(t, "turn 3", history[0].Text())
	assert.Equal(t, "turn 4", history[2].Text())
}

// An agent that always requests tool use with a handler that always
// re-triggers must fail at exactly the configured cycle cap.
func TestToolLoopTermination(t *testing.T) {
	handlerCalls := 0
	agentA := &testutil.FakeAgent{
		AgentID:   "a",
		AgentName: "a",
		Replies:   []core.Message{testutil.ToolUseMessage("tu-1", "loop_forever", nil)},
		Tools: &tool.Config{
			Tools:     []tool.Tool{{Name: "loop_forever", Description: "never settles"}},
			MaxCycles: 3,
			Handler: func(_ context.Context, _ core.Message, _ []core.Message) (core.Message, error) {
				handlerCalls++
				return tool.Result("tu-1", "try again", false), nil
			},
		},
	}

	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}
	})
	require.NoError(t, o.AddAgent(agentA))

	_, err := o.Route(context.Background(), "go", "u1", "s1")
	var loopErr *core.ToolLoopError
	require.ErrorAs(t, err, &loopErr)
	assert.Equal(t, 3, loopErr.Cycles)
	assert.Equal(t, 3, handlerCalls)
	assert.NotEmpty(t, loopErr.Exchange)

	// The failed turn must not have been committed.
	history, err := o.store.Get(context.Background(), core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "a"})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestToolResolutionProducesFinalAnswer(t *testing.T) {
	agentA := &testutil.FakeAgent{
		AgentID:   "a",
		AgentName: "a",
		Replies: []core.Message{
			testutil.ToolUseMessage("tu-1", "lookup", map[string]any{"q": "x"}),
			core.NewAssistantMessage("final answer"),
		},
		Tools: &tool.Config{
			Tools: []tool.Tool{{Name: "lookup", Description: "look things up"}},
			Handler: func(_ context.Context, toolUse core.Message, _ []core.Message) (core.Message, error) {
				uses := toolUse.ToolUses()
				if len(uses) != 1 {
					return core.Message{}, errors.New("expected one tool use")
				}
				return tool.Result(uses[0].ID, "lookup result", false), nil
			},
		},
	}

	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}
	})
	require.NoError(t, o.AddAgent(agentA))

	resp, err := o.Route(context.Background(), "look up x", "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "final answer", resp.Message.Text())
	assert.Equal(t, 2, agentA.Calls())

	// Only the (user, final assistant) pair is committed; the tool
	// exchange stays out of history.
	history, err := o.store.Get(context.Background(), core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "a"})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "final answer", history[1].Text())
}

// A failed invocation leaves no dangling user-only turn.
func TestRollbackOnFailure(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "unused")
	agentA.Err = errors.New("backend exploded")

	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}
	})
	require.NoError(t, o.AddAgent(agentA))

	_, err := o.Route(context.Background(), "hello", "u1", "s1")
	var invErr *core.InvocationError
	require.ErrorAs(t, err, &invErr)
	assert.Equal(t, "a", invErr.AgentID)
	assert.ErrorContains(t, invErr.Err, "backend exploded")

	history, err := o.store.Get(context.Background(), core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "a"})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestStreamingDeliversChunksAndCommits(t *testing.T) {
	agentA := &testutil.FakeAgent{
		AgentID:   "a",
		AgentName: "a",
		Streaming: true,
		Replies:   []core.Message{core.NewAssistantMessage("hello world")},
	}

	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}
	})
	require.NoError(t, o.AddAgent(agentA))

	resp, err := o.Route(context.Background(), "hi", "u1", "s1")
	require.NoError(t, err)
	require.True(t, resp.Streaming)
	require.NotNil(t, resp.Stream)

	var accumulated string
	var final *core.Message
	for c := range resp.Stream {
		if c.Partial {
			accumulated += c.Delta
			continue
		}
		final = c.Message
	}
	for err := range resp.Errs {
		require.NoError(t, err)
	}

	assert.Equal(t, "hello world", accumulated)
	require.NotNil(t, final)
	assert.Equal(t, "hello world", final.Text())

	history, err := o.store.Get(context.Background(), core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "a"})
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "hello world", history[1].Text())
}

func TestStreamingCancellationDiscardsTurn(t *testing.T) {
	agentA := &testutil.FakeAgent{
		AgentID:   "a",
		AgentName: "a",
		Streaming: true,
		Replies:   []core.Message{core.NewAssistantMessage("partial answer")},
		Hang:      true,
	}

	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}
		o.ChunkBufferSize = 1
	})
	require.NoError(t, o.AddAgent(agentA))

	ctx, cancel := context.WithCancel(context.Background())
	resp, err := o.Route(ctx, "hi", "u1", "s1")
	require.NoError(t, err)

	// Read one chunk, then disconnect.
	<-resp.Stream
	cancel()
	for range resp.Stream {
	}
	var streamErr error
	for err := range resp.Errs {
		streamErr = err
	}
	assert.ErrorIs(t, streamErr, context.Canceled)

	// A half-received turn must not be persisted.
	history, err := o.store.Get(context.Background(), core.ConversationKey{UserID: "u1", SessionID: "s1", AgentID: "a"})
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestRouteSyncDrainsStream(t *testing.T) {
	agentA := &testutil.FakeAgent{
		AgentID:   "a",
		AgentName: "a",
		Streaming: true,
		Replies:   []core.Message{core.NewAssistantMessage("streamed")},
	}

	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}
	})
	require.NoError(t, o.AddAgent(agentA))

	resp, err := o.RouteSync(context.Background(), "hi", "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "streamed", resp.Message.Text())
}

func TestClassificationSeesMostRecentAgentHistory(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "ok")
	clf := &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}

	o := New(func(o *Options) { o.Classifier = clf })
	require.NoError(t, o.AddAgent(agentA))

	_, err := o.Route(context.Background(), "first", "u1", "s1")
	require.NoError(t, err)
	assert.Empty(t, clf.LastHistory())

	_, err = o.Route(context.Background(), "second", "u1", "s1")
	require.NoError(t, err)
	require.Len(t, clf.LastHistory(), 2)
	assert.Equal(t, "first", clf.LastHistory()[0].Text())
}

func TestSetDefaultAgent(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "from a")
	agentB := testutil.NewFakeAgent("b", "from b")

	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Result: core.ClassifierResult{Confidence: 0}}
	})
	require.NoError(t, o.AddAgent(agentA))
	require.NoError(t, o.AddAgent(agentB))
	require.NoError(t, o.SetDefaultAgent("b"))

	resp, err := o.Route(context.Background(), "hello", "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "b", resp.AgentID)

	assert.Error(t, o.SetDefaultAgent("nope"))
}

func TestSetSystemPrompt(t *testing.T) {
	o := New()
	require.NoError(t, o.AddAgent(testutil.NewFakeAgent("a", "hi")))

	// FakeAgent has no prompt surface.
	assert.Error(t, o.SetSystemPrompt("a", "template", nil))
	assert.Error(t, o.SetSystemPrompt("missing", "template", nil))
}

func TestIndependentKeysDoNotContend(t *testing.T) {
	agentA := testutil.NewFakeAgent("a", "ok")
	o := New(func(o *Options) {
		o.Classifier = &testutil.FakeClassifier{Result: core.ClassifierResult{Agent: agentA, Confidence: 1}}
	})
	require.NoError(t, o.AddAgent(agentA))

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := o.Route(context.Background(), "hello", fmt.Sprintf("u%d", i), "s1")
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	for i := 0; i < 10; i++ {
		history, err := o.store.Get(context.Background(), core.ConversationKey{UserID: fmt.Sprintf("u%d", i), SessionID: "s1", AgentID: "a"})
		require.NoError(t, err)
		assert.Len(t, history, 2)
	}
}
