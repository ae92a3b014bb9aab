package retriever

import (
	"context"

	"github.com/sony/gobreaker/v2"

	"github.com/hupe1980/agentroute/core"
)

// BreakerRetriever wraps another retriever with a circuit breaker so a
// flapping retrieval backend fails fast instead of adding its timeout to
// every turn. Agents already treat retrieval errors as no-context, so an
// open breaker simply means a few turns run without augmentation.
type BreakerRetriever struct {
	inner core.Retriever
	cb    *gobreaker.CircuitBreaker[string]
}

var _ core.Retriever = (*BreakerRetriever)(nil)

// NewBreakerRetriever wraps inner with a circuit breaker. Settings can be
// tuned through the option functions; the name defaults to "retriever".
func NewBreakerRetriever(inner core.Retriever, optFns ...func(st *gobreaker.Settings)) *BreakerRetriever {
	st := gobreaker.Settings{Name: "retriever"}
	for _, fn := range optFns {
		fn(&st)
	}
	return &BreakerRetriever{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker[string](st),
	}
}

// Retrieve implements core.Retriever. While the breaker is open it
// returns gobreaker.ErrOpenState without touching the backend.
func (r *BreakerRetriever) Retrieve(ctx context.Context, query string) (string, error) {
	return r.cb.Execute(func() (string, error) {
		return r.inner.Retrieve(ctx, query)
	})
}
