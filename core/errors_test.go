package core

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInvocationErrorUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := &InvocationError{AgentID: "a", UserID: "u1", SessionID: "s1", Stage: "dispatch", Err: cause}

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "agent a")
	assert.Contains(t, err.Error(), "dispatch")
}

func TestInvalidInputWrapping(t *testing.T) {
	err := fmt.Errorf("%w: input text must not be empty", ErrInvalidInput)
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestLowConfidenceErrorMessage(t *testing.T) {
	err := &LowConfidenceError{Result: ClassifierResult{Confidence: 0.25}}
	assert.Contains(t, err.Error(), "0.25")
	assert.Contains(t, err.Error(), "none")
}

func TestToolLoopError(t *testing.T) {
	err := &ToolLoopError{AgentID: "a", Cycles: 5, Exchange: []Message{NewUserMessage("hi")}}

	var loopErr *ToolLoopError
	require.ErrorAs(t, fmt.Errorf("routing failed: %w", err), &loopErr)
	assert.Equal(t, 5, loopErr.Cycles)
	assert.Len(t, loopErr.Exchange, 1)
}
