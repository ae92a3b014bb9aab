// Package retriever provides Retriever implementations used to augment
// agent requests with contextual text: an in-process keyword retriever
// for small corpora and tests, and a circuit-breaker wrapper for flaky
// external retrieval backends.
package retriever

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/hupe1980/agentroute/core"
)

// Document is one retrievable corpus entry.
type Document struct {
	ID      string
	Content string
}

// KeywordRetriever serves snippets from an in-process corpus using
// case-insensitive word matching. Scoring is the number of query words
// contained in a document. Suitable for tests and small static corpora;
// swap for a vector index for production retrieval.
type KeywordRetriever struct {
	mu   sync.RWMutex
	docs []Document
	topK int
}

var _ core.Retriever = (*KeywordRetriever)(nil)

// KeywordOptions configures the keyword retriever.
type KeywordOptions struct {
	// TopK caps how many documents a single query returns (default 3).
	TopK int
}

// NewKeywordRetriever builds a retriever over the given documents.
func NewKeywordRetriever(docs []Document, optFns ...func(o *KeywordOptions)) *KeywordRetriever {
	opts := KeywordOptions{TopK: 3}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &KeywordRetriever{docs: append([]Document(nil), docs...), topK: opts.TopK}
}

// Add appends a document to the corpus.
func (r *KeywordRetriever) Add(doc Document) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.docs = append(r.docs, doc)
}

// Retrieve implements core.Retriever. Matching document contents are
// joined by blank lines, best match first. An empty result is not an
// error.
func (r *KeywordRetriever) Retrieve(_ context.Context, query string) (string, error) {
	words := strings.Fields(strings.ToLower(query))
	if len(words) == 0 {
		return "", nil
	}

	type scored struct {
		index int
		score int
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var hits []scored
	for i, doc := range r.docs {
		content := strings.ToLower(doc.Content)
		score := 0
		for _, w := range words {
			if strings.Contains(content, w) {
				score++
			}
		}
		if score > 0 {
			hits = append(hits, scored{index: i, score: score})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if len(hits) > r.topK {
		hits = hits[:r.topK]
	}
	snippets := make([]string, len(hits))
	for i, h := range hits {
		snippets[i] = r.docs[h.index].Content
	}
	return strings.Join(snippets, "\n\n"), nil
}
