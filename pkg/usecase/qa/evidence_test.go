package qa_test

import (
	"testing"
	"time"

	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/aurora-qa/aurora/pkg/usecase/qa"
	"github.com/m-mizutani/gt"
)

var classify = qa.DefaultPolicy().Classify

func snippet(id string, ts time.Time, text string, score float64) *model.MemorySnippet {
	return &model.MemorySnippet{
		ID:        model.SnippetID(id),
		MemberID:  "u1",
		Text:      text,
		Timestamp: ts,
		Score:     score,
	}
}

func day(d int) time.Time {
	return time.Date(2025, 6, d, 10, 0, 0, 0, time.UTC)
}

func TestMergeDeduplicatesBySnippetID(t *testing.T) {
	a := snippet("s1", day(1), "likes hiking", 0.4)
	b := snippet("s1", day(1), "likes hiking", 0.9)
	c := snippet("s2", day(2), "lives in Lisbon", 0.5)

	merged := qa.Merge(nil, []*model.MemorySnippet{a, c, b}, classify)
	gt.A(t, merged).Length(2)
	gt.V(t, merged[0].ID).Equal(model.SnippetID("s1"))
	gt.V(t, merged[0].Score).Equal(0.9)
	gt.V(t, merged[1].ID).Equal(model.SnippetID("s2"))
}

func TestMergeIsIdempotent(t *testing.T) {
	batch := []*model.MemorySnippet{
		snippet("s1", day(1), "I prefer the window seat", 0.8),
		snippet("s2", day(3), "I prefer the aisle seat now", 0.7),
	}

	once := qa.Merge(nil, batch, classify)
	twice := qa.Merge(once, batch, classify)

	gt.A(t, twice).Length(len(once))
	for i := range once {
		gt.V(t, twice[i].ID).Equal(once[i].ID)
		gt.V(t, twice[i].Score).Equal(once[i].Score)
		gt.V(t, twice[i].Status).Equal(once[i].Status)
	}
}

func TestMergePreferenceLatestWins(t *testing.T) {
	older := snippet("s1", day(1), "I prefer the window seat", 0.9)
	newer := snippet("s2", day(5), "I prefer the aisle seat now", 0.3)

	merged := qa.Merge(nil, []*model.MemorySnippet{older, newer}, classify)
	gt.V(t, merged.Find("s1").Status).Equal(model.StatusSuperseded)
	gt.V(t, merged.Find("s2").Status).Equal(model.StatusActive)

	// Arrival order must not matter.
	reversed := qa.Merge(nil, []*model.MemorySnippet{newer, older}, classify)
	gt.V(t, reversed.Find("s1").Status).Equal(model.StatusSuperseded)
	gt.V(t, reversed.Find("s2").Status).Equal(model.StatusActive)

	// Across separate calls too.
	incremental := qa.Merge(qa.Merge(nil, []*model.MemorySnippet{newer}, classify), []*model.MemorySnippet{older}, classify)
	gt.V(t, incremental.Find("s1").Status).Equal(model.StatusSuperseded)
	gt.V(t, incremental.Find("s2").Status).Equal(model.StatusActive)
}

func TestMergePreferenceTimestampTie(t *testing.T) {
	low := snippet("s9", day(2), "window seat please", 0.2)
	high := snippet("s5", day(2), "aisle seat please", 0.8)

	merged := qa.Merge(nil, []*model.MemorySnippet{low, high}, classify)
	gt.V(t, merged.Find("s5").Status).Equal(model.StatusActive)
	gt.V(t, merged.Find("s9").Status).Equal(model.StatusSuperseded)

	// Same score: smaller snippet ID wins, deterministically.
	tied := qa.Merge(nil, []*model.MemorySnippet{
		snippet("s9", day(2), "window seat please", 0.5),
		snippet("s5", day(2), "aisle seat please", 0.5),
	}, classify)
	gt.V(t, tied.Find("s5").Status).Equal(model.StatusActive)
	gt.V(t, tied.Find("s9").Status).Equal(model.StatusSuperseded)
}

func TestMergeDifferentFactsDoNotConflict(t *testing.T) {
	seat := snippet("s1", day(1), "I prefer the window seat", 0.5)
	diet := snippet("s2", day(2), "I'm vegetarian", 0.5)

	merged := qa.Merge(nil, []*model.MemorySnippet{seat, diet}, classify)
	gt.V(t, merged.Find("s1").Status).Equal(model.StatusActive)
	gt.V(t, merged.Find("s2").Status).Equal(model.StatusActive)
}

func TestMergePreferencesScopedToMember(t *testing.T) {
	mine := snippet("s1", day(1), "I prefer the window seat", 0.5)
	other := snippet("s2", day(5), "I prefer the aisle seat", 0.5)
	other.MemberID = "u2"

	merged := qa.Merge(nil, []*model.MemorySnippet{mine, other}, classify)
	gt.V(t, merged.Find("s1").Status).Equal(model.StatusActive)
	gt.V(t, merged.Find("s2").Status).Equal(model.StatusActive)
}

func TestMergeBookingsAllRetained(t *testing.T) {
	paris := snippet("b1", day(1), "booked a flight to Paris", 0.5)
	rome := snippet("b2", day(1), "booked a flight to Rome", 0.5)
	confirmed := snippet("b3", day(2), "your flight to Madrid is confirmed", 0.5)

	merged := qa.Merge(nil, []*model.MemorySnippet{paris, rome, confirmed}, classify)
	gt.A(t, merged).Length(3)
	gt.V(t, merged.Find("b1").Status).Equal(model.StatusIntent)
	gt.V(t, merged.Find("b2").Status).Equal(model.StatusIntent)
	gt.V(t, merged.Find("b3").Status).Equal(model.StatusConfirmed)
}

func TestMergeDoesNotMutateInputs(t *testing.T) {
	in := snippet("s1", day(1), "I prefer the window seat", 0.5)
	existing := qa.Merge(nil, []*model.MemorySnippet{snippet("s2", day(5), "I prefer the aisle seat", 0.5)}, classify)
	existingStatus := existing.Find("s2").Status

	merged := qa.Merge(existing, []*model.MemorySnippet{in}, classify)

	gt.V(t, in.Status).Equal(model.SnippetStatus(""))
	gt.V(t, existing.Find("s2").Status).Equal(existingStatus)
	gt.V(t, merged.Find("s1").Status).Equal(model.StatusSuperseded)
}

func TestMergeUnclassifiedStaysActive(t *testing.T) {
	merged := qa.Merge(nil, []*model.MemorySnippet{
		snippet("s1", day(1), "mentioned enjoying jazz concerts", 0.5),
		snippet("s2", day(2), "asked about the weather in Oslo", 0.5),
	}, classify)

	for _, s := range merged {
		gt.V(t, s.Status).Equal(model.StatusActive)
	}
	gt.A(t, merged.Active()).Length(2)
}
