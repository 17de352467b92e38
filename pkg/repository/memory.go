package repository

import (
	"context"
	"math"
	"sort"
	"sync"

	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Memory is an in-process Repository for tests and local runs. Search
// ranks by cosine similarity over the stored embeddings.
type Memory struct {
	mu       sync.RWMutex
	snippets map[model.SnippetID]*model.MemorySnippet
}

func NewMemory() *Memory {
	return &Memory{
		snippets: make(map[model.SnippetID]*model.MemorySnippet),
	}
}

func (r *Memory) PutSnippet(_ context.Context, snippet *model.MemorySnippet) error {
	if snippet.ID == "" {
		return goerr.New("snippet ID is empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.snippets[snippet.ID] = snippet.Clone()
	return nil
}

func (r *Memory) SearchSnippets(_ context.Context, memberID model.MemberID, embedding []float32, limit int) ([]*model.MemorySnippet, error) {
	if memberID == "" {
		return nil, goerr.New("member ID is empty")
	}
	limit = ClampTopK(limit)

	r.mu.RLock()
	var matched []*model.MemorySnippet
	for _, s := range r.snippets {
		if s.MemberID != memberID {
			continue
		}
		c := s.Clone()
		c.Score = cosineSimilarity(embedding, c.Embedding)
		matched = append(matched, c)
	}
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Score != matched[j].Score {
			return matched[i].Score > matched[j].Score
		}
		return matched[i].ID < matched[j].ID
	})

	if len(matched) > limit {
		matched = matched[:limit]
	}
	for i, s := range matched {
		s.SourceRank = i
	}
	return matched, nil
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
