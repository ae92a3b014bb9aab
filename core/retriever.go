package core

import "context"

// Retriever supplies contextual text to augment a request before the
// backend call. Agents treat retrieval as best effort: a failure degrades
// to no context rather than blocking the invocation.
type Retriever interface {
	Retrieve(ctx context.Context, query string) (string, error)
}
