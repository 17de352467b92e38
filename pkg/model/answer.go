package model

// AnswerResult is the outcome of one question-answering run.
type AnswerResult struct {
	// Text is the answer shown to the caller. Always non-empty, even
	// when the iteration budget ran out before the engine finished.
	Text string `json:"answer"`

	// Iterations is the number of engine decisions consumed.
	Iterations int `json:"iterations"`

	// MemberID is the member the last successful memory search
	// resolved to, or empty if no search succeeded.
	MemberID MemberID `json:"member_id,omitempty"`

	// Exhausted is true when the run hit the iteration budget and the
	// answer was composed from partial evidence.
	Exhausted bool `json:"exhausted,omitempty"`
}
