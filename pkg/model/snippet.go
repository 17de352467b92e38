package model

import (
	"time"

	"cloud.google.com/go/firestore"
	"github.com/google/uuid"
)

// SnippetID identifies a memory snippet.
type SnippetID string

func NewSnippetID() SnippetID {
	return SnippetID(uuid.New().String())
}

// SnippetStatus is the annotation the evidence aggregation assigns to a
// snippet after conflict resolution.
type SnippetStatus string

const (
	// StatusActive marks the snippet as current evidence.
	StatusActive SnippetStatus = "active"
	// StatusSuperseded marks a preference statement overridden by a
	// newer statement about the same fact.
	StatusSuperseded SnippetStatus = "superseded"
	// StatusIntent marks a booking-like event that was requested but
	// never confirmed.
	StatusIntent SnippetStatus = "intent"
	// StatusConfirmed marks a booking-like event that was confirmed.
	StatusConfirmed SnippetStatus = "confirmed"
)

// MemorySnippet is one retrieved memory about a member. Score and
// SourceRank are assigned per search call; Status is assigned by
// evidence aggregation and is never persisted.
type MemorySnippet struct {
	ID         SnippetID `json:"id"`
	MemberID   MemberID  `json:"member_id"`
	MemberName string    `json:"member_name,omitempty"`
	MessageID  string    `json:"message_id,omitempty"`
	Text       string    `json:"text"`
	Timestamp  time.Time `json:"timestamp"`
	Categories []string  `json:"categories,omitempty"`

	Score      float64       `json:"score"`
	SourceRank int           `json:"source_rank"`
	Status     SnippetStatus `json:"status,omitempty"`

	Embedding firestore.Vector32 `json:"-"`
}

// Clone returns a shallow copy so that aggregation can annotate
// snippets without mutating the caller's values.
func (x *MemorySnippet) Clone() *MemorySnippet {
	c := *x
	return &c
}

// EvidenceSet is the ordered, deduplicated collection of snippets the
// orchestrator accumulates across search calls.
type EvidenceSet []*MemorySnippet

// Active returns the snippets not superseded by newer statements.
func (x EvidenceSet) Active() []*MemorySnippet {
	var out []*MemorySnippet
	for _, s := range x {
		if s.Status != StatusSuperseded {
			out = append(out, s)
		}
	}
	return out
}

// Find returns the snippet with the given ID, or nil.
func (x EvidenceSet) Find(id SnippetID) *MemorySnippet {
	for _, s := range x {
		if s.ID == id {
			return s
		}
	}
	return nil
}
