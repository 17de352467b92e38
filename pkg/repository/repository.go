package repository

import (
	"context"

	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

var (
	// ErrRetrievalUnavailable marks transient search failures. Callers
	// may retry; the orchestrator does so with backoff.
	ErrRetrievalUnavailable = goerr.New("memory retrieval unavailable")
)

const (
	MinTopK     = 1
	MaxTopK     = 50
	DefaultTopK = 12
)

// ClampTopK coerces a requested result count into the allowed range.
// Zero and negative values get the default.
func ClampTopK(k int) int {
	switch {
	case k <= 0:
		return DefaultTopK
	case k < MinTopK:
		return MinTopK
	case k > MaxTopK:
		return MaxTopK
	default:
		return k
	}
}

// Repository stores member memory snippets and answers vector searches
// over them. SearchSnippets filters by member server-side: results for
// other members never reach the caller. Returned snippets are ordered
// by descending relevance with Score and SourceRank populated.
type Repository interface {
	PutSnippet(ctx context.Context, snippet *model.MemorySnippet) error
	SearchSnippets(ctx context.Context, memberID model.MemberID, embedding []float32, limit int) ([]*model.MemorySnippet, error)
}
