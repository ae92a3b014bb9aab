package core

import "context"

// ClassifierResult carries the selected agent and an advisory confidence
// in [0, 1]. Agent may be nil when the strategy cannot decide; the
// orchestrator then applies its default-agent policy. Confidence is not
// a probability and needs no normalization across agents.
type ClassifierResult struct {
	Agent      Agent
	Confidence float64
}

// Classifier selects which agent should handle a request given the raw
// input text, the requesting session's prior turns and the registered
// agent set.
//
// Implementations must be side-effect free and safe for concurrent use
// across independent sessions. A strategy that cannot decide must fall
// back to a deterministic default (conventionally the first registered
// agent) with a low confidence instead of failing: classification must
// never block the pipeline.
type Classifier interface {
	Classify(ctx context.Context, input string, history []Message, agents []Agent) (ClassifierResult, error)
}
