package roster

import (
	"slices"
	"strings"
	"unicode"

	"github.com/aurora-qa/aurora/pkg/model"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// foldAccents strips diacritics so that "Renée" and "Renee" normalize
// to the same key.
var foldAccents = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// Normalize canonicalizes a name for matching: accent folding,
// lowercasing, and collapsing punctuation and whitespace runs into
// single spaces.
func Normalize(s string) string {
	folded, _, err := transform.String(foldAccents, s)
	if err != nil {
		folded = s
	}

	var b strings.Builder
	for _, r := range strings.ToLower(folded) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// Index resolves free-text name fragments to member IDs. Lookups never
// fail: every input maps to exactly one of resolved, ambiguous or
// not-found. There is no fuzzy matching; a misspelled name is
// not-found rather than a guess.
type Index struct {
	members map[model.MemberID]*model.Member
	full    map[string][]model.MemberID
	tokens  map[string][]model.MemberID
}

// NewIndex builds the lookup tables from a roster. Both display names
// and aliases contribute full-name and token keys.
func NewIndex(members []*model.Member) *Index {
	x := &Index{
		members: make(map[model.MemberID]*model.Member, len(members)),
		full:    make(map[string][]model.MemberID),
		tokens:  make(map[string][]model.MemberID),
	}

	for _, m := range members {
		x.members[m.ID] = m
		for _, name := range append([]string{m.DisplayName}, m.Aliases...) {
			q := Normalize(name)
			if q == "" {
				continue
			}
			x.full[q] = appendID(x.full[q], m.ID)
			for _, tok := range strings.Fields(q) {
				x.tokens[tok] = appendID(x.tokens[tok], m.ID)
			}
		}
	}

	return x
}

func appendID(ids []model.MemberID, id model.MemberID) []model.MemberID {
	if slices.Contains(ids, id) {
		return ids
	}
	return append(ids, id)
}

// Member returns the roster entry for an ID, or nil.
func (x *Index) Member(id model.MemberID) *model.Member {
	return x.members[id]
}

// Len returns the number of members in the index.
func (x *Index) Len() int {
	return len(x.members)
}

// Resolve maps a name fragment to a resolution. Exact full-name match
// wins; otherwise the fragment tokens are matched against name tokens,
// and a member qualifies when it carries every fragment token.
func (x *Index) Resolve(fragment string) model.Resolution {
	q := Normalize(fragment)
	if q == "" {
		return model.Resolution{Kind: model.ResolutionNotFound}
	}

	if ids := x.full[q]; len(ids) > 0 {
		return resolutionFor(ids)
	}

	qTokens := strings.Fields(q)
	candidates := x.tokens[qTokens[0]]
	for _, tok := range qTokens[1:] {
		candidates = intersect(candidates, x.tokens[tok])
		if len(candidates) == 0 {
			break
		}
	}

	if len(candidates) == 0 {
		return model.Resolution{Kind: model.ResolutionNotFound}
	}
	return resolutionFor(candidates)
}

func resolutionFor(ids []model.MemberID) model.Resolution {
	if len(ids) == 1 {
		return model.Resolution{Kind: model.ResolutionResolved, MemberID: ids[0]}
	}

	sorted := slices.Clone(ids)
	slices.Sort(sorted)
	return model.Resolution{Kind: model.ResolutionAmbiguous, Candidates: sorted}
}

func intersect(a, b []model.MemberID) []model.MemberID {
	var out []model.MemberID
	for _, id := range a {
		if slices.Contains(b, id) {
			out = append(out, id)
		}
	}
	return out
}
