package qa

import (
	"github.com/aurora-qa/aurora/pkg/model"
)

type factGroup struct {
	memberID model.MemberID
	factKey  string
}

// Merge folds a batch of search results into the accumulated evidence
// and recomputes statuses. It is pure: inputs are never mutated and
// the result is a fresh set. Merging the same batch twice yields the
// same evidence.
//
// Rules:
//   - Duplicates (same snippet ID) are kept once with the highest
//     score seen; first-seen order is preserved.
//   - Preference statements about the same fact: the latest timestamp
//     wins, ties broken by higher score, then by smaller snippet ID.
//     Losers stay in the set marked superseded.
//   - Booking-like snippets all stay, marked intent unless the
//     classification says confirmed.
func Merge(existing model.EvidenceSet, incoming []*model.MemorySnippet, classify ClassifyFunc) model.EvidenceSet {
	merged := make(model.EvidenceSet, 0, len(existing)+len(incoming))
	pos := make(map[model.SnippetID]int, len(existing)+len(incoming))

	for _, s := range existing {
		pos[s.ID] = len(merged)
		merged = append(merged, s.Clone())
	}
	for _, s := range incoming {
		if i, ok := pos[s.ID]; ok {
			if s.Score > merged[i].Score {
				merged[i].Score = s.Score
			}
			continue
		}
		pos[s.ID] = len(merged)
		merged = append(merged, s.Clone())
	}

	annotate(merged, classify)
	return merged
}

func annotate(set model.EvidenceSet, classify ClassifyFunc) {
	winners := make(map[factGroup]*model.MemorySnippet)
	groups := make(map[model.SnippetID]factGroup)

	for _, s := range set {
		c := classify(s)
		switch {
		case c.Booking && c.Confirmed:
			s.Status = model.StatusConfirmed
		case c.Booking:
			s.Status = model.StatusIntent
		case c.FactKey != "":
			s.Status = model.StatusActive
			g := factGroup{memberID: s.MemberID, factKey: c.FactKey}
			groups[s.ID] = g
			if w, ok := winners[g]; !ok || beats(s, w) {
				winners[g] = s
			}
		default:
			s.Status = model.StatusActive
		}
	}

	for _, s := range set {
		g, ok := groups[s.ID]
		if !ok {
			continue
		}
		if winners[g] != s {
			s.Status = model.StatusSuperseded
		}
	}
}

// beats reports whether a overrides b within the same fact group:
// later statement wins, ties resolved by score and then snippet ID so
// the outcome never depends on arrival order.
func beats(a, b *model.MemorySnippet) bool {
	if !a.Timestamp.Equal(b.Timestamp) {
		return a.Timestamp.After(b.Timestamp)
	}
	if a.Score != b.Score {
		return a.Score > b.Score
	}
	return a.ID < b.ID
}
