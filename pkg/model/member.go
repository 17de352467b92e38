package model

// MemberID identifies a member in the upstream message platform.
type MemberID string

// Member is a single entry of the roster built from the message history.
// DisplayName is the most recent name the member used; Aliases keeps
// older spellings so that name resolution still matches them.
type Member struct {
	ID          MemberID `json:"id"`
	DisplayName string   `json:"display_name"`
	Aliases     []string `json:"aliases,omitempty"`
}

// ResolutionKind is the outcome class of a name lookup.
type ResolutionKind string

const (
	ResolutionResolved  ResolutionKind = "resolved"
	ResolutionAmbiguous ResolutionKind = "ambiguous"
	ResolutionNotFound  ResolutionKind = "not_found"
)

// Resolution is the result of resolving a free-text name fragment.
// MemberID is set only for Resolved; Candidates only for Ambiguous,
// sorted by member ID for determinism.
type Resolution struct {
	Kind       ResolutionKind
	MemberID   MemberID
	Candidates []MemberID
}
