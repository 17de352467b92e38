package roster

import (
	"encoding/json"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/aurora-qa/aurora/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// Build derives a roster from the message history. The display name is
// the one attached to the member's latest message; earlier spellings
// become aliases so old names still resolve.
func Build(messages []*model.Message) []*model.Member {
	type entry struct {
		displayName string
		latest      time.Time
		order       int
		names       []string
	}

	byID := make(map[model.MemberID]*entry)
	var ids []model.MemberID

	for i, msg := range messages {
		if msg.MemberID == "" || strings.TrimSpace(msg.MemberName) == "" {
			continue
		}

		e, ok := byID[msg.MemberID]
		if !ok {
			e = &entry{}
			byID[msg.MemberID] = e
			ids = append(ids, msg.MemberID)
		}

		ts := msg.ParseTimestamp()
		if e.displayName == "" || ts.After(e.latest) || (ts.Equal(e.latest) && i >= e.order) {
			e.displayName = msg.MemberName
			e.latest = ts
			e.order = i
		}
		if !slices.Contains(e.names, msg.MemberName) {
			e.names = append(e.names, msg.MemberName)
		}
	}

	slices.Sort(ids)
	members := make([]*model.Member, 0, len(ids))
	for _, id := range ids {
		e := byID[id]
		var aliases []string
		for _, name := range e.names {
			if name != e.displayName {
				aliases = append(aliases, name)
			}
		}
		members = append(members, &model.Member{
			ID:          id,
			DisplayName: e.displayName,
			Aliases:     aliases,
		})
	}
	return members
}

// ErrRosterNotFound indicates the roster file has not been built yet.
// Commands that need name resolution fail fast on it.
var ErrRosterNotFound = goerr.New("roster not found")

type rosterFile struct {
	Members []*model.Member `json:"members"`
}

// Save writes a roster as JSON.
func Save(w io.Writer, members []*model.Member) error {
	sorted := slices.Clone(members)
	slices.SortFunc(sorted, func(a, b *model.Member) int {
		return strings.Compare(string(a.ID), string(b.ID))
	})

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(rosterFile{Members: sorted}); err != nil {
		return goerr.Wrap(err, "failed to encode roster")
	}
	return nil
}

// Load reads a roster JSON file and builds the resolution index.
func Load(r io.Reader) (*Index, error) {
	var f rosterFile
	if err := json.NewDecoder(r).Decode(&f); err != nil {
		return nil, goerr.Wrap(err, "failed to decode roster")
	}
	if len(f.Members) == 0 {
		return nil, goerr.New("roster has no members")
	}
	return NewIndex(f.Members), nil
}
