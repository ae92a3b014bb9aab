package agentroute

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/agentroute/core"
	"github.com/hupe1980/agentroute/tool"
)

// Pipeline stages recorded in InvocationError.
const (
	stageDispatch = "dispatch"
	stageTool     = "tool"
	stageCommit   = "commit"
)

// Response is the result of a routed request.
//
// For non-streaming agents, Message holds the final assistant message.
// For streaming agents (Streaming == true), Stream delivers ordered
// chunks as the agent produces them: partial chunks carry text deltas and
// the terminal chunk carries the complete assistant message. Stream
// closes once the turn is committed; Errs carries at most one terminal
// error and closes with the stream. RouteSync drains all of this for
// callers that only want the final result.
type Response struct {
	AgentID    string
	AgentName  string
	Confidence float64
	Streaming  bool
	Message    core.Message
	Stream     <-chan core.Chunk
	Errs       <-chan error
}

// Route classifies the input, dispatches to the selected agent and
// commits the finished turn. Requests against the same conversation key
// serialize; independent keys run fully in parallel.
func (o *Orchestrator) Route(ctx context.Context, inputText, userID, sessionID string) (*Response, error) {
	if strings.TrimSpace(inputText) == "" {
		return nil, fmt.Errorf("%w: input text must not be empty", core.ErrInvalidInput)
	}
	if strings.TrimSpace(userID) == "" {
		return nil, fmt.Errorf("%w: user id must not be empty", core.ErrInvalidInput)
	}
	if strings.TrimSpace(sessionID) == "" {
		return nil, fmt.Errorf("%w: session id must not be empty", core.ErrInvalidInput)
	}

	agents := o.Agents()
	if len(agents) == 0 {
		return nil, core.ErrNoAgents
	}

	selected, confidence, err := o.classify(ctx, inputText, userID, sessionID, agents)
	if err != nil {
		return nil, err
	}

	key := core.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: selected.ID()}
	userMsg := core.NewUserMessage(inputText)
	streaming := selected.StreamingEnabled()

	resp := &Response{
		AgentID:    selected.ID(),
		AgentName:  selected.Name(),
		Confidence: confidence,
		Streaming:  streaming,
	}

	lockKey := key.UserID + "\x00" + key.SessionID + "\x00" + key.AgentID
	o.keys.Lock(lockKey)

	if !streaming {
		defer o.keys.Unlock(lockKey)
		final, err := o.runTurn(ctx, selected, key, userMsg, false, nil)
		if err != nil {
			return nil, err
		}
		resp.Message = final
		return resp, nil
	}

	chunks := make(chan core.Chunk, o.chunkBuffer)
	errs := make(chan error, 1)
	resp.Stream = chunks
	resp.Errs = errs

	go func() {
		defer o.keys.Unlock(lockKey)
		defer close(chunks)
		defer close(errs)

		final, err := o.runTurn(ctx, selected, key, userMsg, true, chunks)
		if err != nil {
			errs <- err
			return
		}
		select {
		case <-ctx.Done():
		case chunks <- core.Chunk{Message: &final}:
		}
	}()

	return resp, nil
}

// RouteSync routes a request and, for streaming agents, drains the stream
// before returning the final response. Partial chunks are discarded.
func (o *Orchestrator) RouteSync(ctx context.Context, inputText, userID, sessionID string) (*Response, error) {
	resp, err := o.Route(ctx, inputText, userID, sessionID)
	if err != nil {
		return nil, err
	}
	if !resp.Streaming {
		return resp, nil
	}

	stream, streamErrs := resp.Stream, resp.Errs
	for stream != nil || streamErrs != nil {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case c, ok := <-stream:
			if !ok {
				stream = nil
				continue
			}
			if !c.Partial && c.Message != nil {
				resp.Message = *c.Message
			}
		case err, ok := <-streamErrs:
			if !ok {
				streamErrs = nil
				continue
			}
			if err != nil {
				return nil, err
			}
		}
	}
	return resp, nil
}

// classify runs the classifier against the most recently used agent's
// history and applies the confidence-threshold policy. Classifier errors
// degrade to the default agent; only an empty registry is fatal.
func (o *Orchestrator) classify(ctx context.Context, inputText, userID, sessionID string, agents []core.Agent) (core.Agent, float64, error) {
	history := o.classificationHistory(ctx, userID, sessionID)

	result, err := o.classifierStrategy.Classify(ctx, inputText, history, agents)
	if err != nil {
		if errors.Is(err, core.ErrNoAgents) {
			return nil, 0, err
		}
		o.logger.Warn("classification failed, falling back to default agent",
			"user_id", userID, "session_id", sessionID, "error", err)
		result = core.ClassifierResult{}
	}

	if result.Agent != nil && result.Confidence >= o.threshold {
		o.logger.Debug("request classified",
			"agent", result.Agent.ID(), "confidence", result.Confidence,
			"user_id", userID, "session_id", sessionID)
		return result.Agent, result.Confidence, nil
	}

	// Below threshold (or undecided): the classifier's pick is advisory only.
	if o.fallbackToDefault {
		if def := o.DefaultAgent(); def != nil {
			o.logger.Debug("low confidence, dispatching to default agent",
				"default", def.ID(), "confidence", result.Confidence,
				"user_id", userID, "session_id", sessionID)
			return def, result.Confidence, nil
		}
	}
	return nil, 0, &core.LowConfidenceError{Result: result}
}

// classificationHistory loads the most recently used agent's history for
// the session; a fresh session classifies against an empty history. Load
// failures degrade to empty rather than blocking classification.
func (o *Orchestrator) classificationHistory(ctx context.Context, userID, sessionID string) []core.Message {
	o.mu.RLock()
	agentID := o.lastAgent[userID+"\x00"+sessionID]
	o.mu.RUnlock()
	if agentID == "" {
		return nil
	}

	history, err := o.store.Get(ctx, core.ConversationKey{UserID: userID, SessionID: sessionID, AgentID: agentID})
	if err != nil {
		o.logger.Warn("failed to load history for classification",
			"user_id", userID, "session_id", sessionID, "agent", agentID, "error", err)
		return nil
	}
	return history
}

// runTurn executes dispatch, tool resolution and commit for one request
// while the caller holds the key lock. The (user, assistant) pair is
// committed atomically after the agent succeeds, so a failed invocation
// never leaves a dangling user-only turn.
func (o *Orchestrator) runTurn(ctx context.Context, agent core.Agent, key core.ConversationKey, userMsg core.Message, stream bool, forward chan<- core.Chunk) (core.Message, error) {
	history, err := o.store.Get(ctx, key)
	if err != nil {
		return core.Message{}, o.invocationError(agent, key, stageDispatch, err)
	}

	working := append(history, userMsg)
	req := core.Request{
		InputText: userMsg.Text(),
		UserID:    key.UserID,
		SessionID: key.SessionID,
		History:   working,
		Stream:    stream,
	}

	final, err := o.invoke(ctx, agent, req, forward)
	if err != nil {
		return core.Message{}, o.invocationError(agent, key, stageDispatch, err)
	}

	final, err = o.resolveTools(ctx, agent, key, req, working, final, forward)
	if err != nil {
		return core.Message{}, err
	}

	if err := o.store.Append(ctx, key, userMsg, final); err != nil {
		return core.Message{}, o.invocationError(agent, key, stageCommit, err)
	}
	if o.maxHistory > 0 {
		if err := o.store.Trim(ctx, key, o.maxHistory); err != nil {
			o.logger.Warn("failed to trim history", "agent", key.AgentID,
				"user_id", key.UserID, "session_id", key.SessionID, "error", err)
		}
	}

	o.mu.Lock()
	o.lastAgent[key.UserID+"\x00"+key.SessionID] = key.AgentID
	o.mu.Unlock()

	return final, nil
}

// resolveTools drives the bounded tool-resolution loop: as long as the
// assistant message requests tool use, the handler synthesizes the next
// user-role message and the agent is re-invoked. Exceeding the cycle cap
// is fatal since it indicates a looping handler.
func (o *Orchestrator) resolveTools(ctx context.Context, agent core.Agent, key core.ConversationKey, req core.Request, working []core.Message, final core.Message, forward chan<- core.Chunk) (core.Message, error) {
	tc := tool.ConfigFor(agent)
	if tc == nil || tc.Handler == nil {
		return final, nil
	}

	maxCycles := o.maxToolCycles
	if tc.MaxCycles > 0 {
		maxCycles = tc.MaxCycles
	}

	cycles := 0
	for final.HasToolUse() {
		if cycles >= maxCycles {
			return core.Message{}, &core.ToolLoopError{
				AgentID:  agent.ID(),
				Cycles:   maxCycles,
				Exchange: append(working, final),
			}
		}
		cycles++
		o.logger.Debug("resolving tool use", "agent", agent.ID(), "cycle", cycles,
			"user_id", key.UserID, "session_id", key.SessionID)

		working = append(working, final)
		next, err := tc.Handler(ctx, final, working)
		if err != nil {
			return core.Message{}, o.invocationError(agent, key, stageTool, err)
		}
		working = append(working, next)

		req.History = working
		final, err = o.invoke(ctx, agent, req, forward)
		if err != nil {
			return core.Message{}, o.invocationError(agent, key, stageTool, err)
		}
	}
	return final, nil
}

// invoke drains one agent invocation, forwarding partial chunks as
// produced (in order, at most once each) and returning the terminal
// message. Cancellation abandons the invocation and discards whatever was
// accumulated so far.
func (o *Orchestrator) invoke(ctx context.Context, agent core.Agent, req core.Request, forward chan<- core.Chunk) (core.Message, error) {
	chunks, errs := agent.Process(ctx, req)

	var final *core.Message
	for chunks != nil || errs != nil {
		select {
		case <-ctx.Done():
			return core.Message{}, ctx.Err()
		case c, ok := <-chunks:
			if !ok {
				chunks = nil
				continue
			}
			if c.Partial {
				if forward != nil {
					select {
					case <-ctx.Done():
						return core.Message{}, ctx.Err()
					case forward <- c:
					}
				}
				continue
			}
			if c.Message != nil {
				msg := *c.Message
				final = &msg
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			if err != nil {
				return core.Message{}, err
			}
		}
	}

	if final == nil {
		return core.Message{}, errors.New("agent produced no terminal message")
	}
	return *final, nil
}

func (o *Orchestrator) invocationError(agent core.Agent, key core.ConversationKey, stage string, err error) error {
	o.logger.Error("agent invocation failed", "agent", agent.ID(), "stage", stage,
		"user_id", key.UserID, "session_id", key.SessionID, "error", err)
	return &core.InvocationError{
		AgentID:   agent.ID(),
		UserID:    key.UserID,
		SessionID: key.SessionID,
		Stage:     stage,
		Err:       err,
	}
}
