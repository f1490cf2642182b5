// Package index wraps the embedding and similarity-search backends behind a
// narrow search interface over normalized corpus documents.
package index

import (
	"context"
	"errors"

	"github.com/fabfab/symptom-agent/corpus"
)

var (
	// ErrBuild marks a failure constructing an index. Fatal at startup.
	ErrBuild = errors.New("index build error")
	// ErrRetrievalUnavailable marks a per-request search failure.
	ErrRetrievalUnavailable = errors.New("retrieval unavailable")
)

// Index returns the documents most similar to query, most similar first.
// Implementations are read-only once built and safe for concurrent use.
type Index interface {
	Search(ctx context.Context, query string, topK int) ([]corpus.Document, error)
}

// Builder constructs an Index over one corpus version.
type Builder interface {
	Build(ctx context.Context, docs []corpus.Document, version string) (Index, error)
}

const defaultTopK = 4

func clampTopK(topK, available int) int {
	if topK <= 0 {
		topK = defaultTopK
	}
	if topK > available {
		topK = available
	}
	return topK
}
