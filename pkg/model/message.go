package model

import "time"

// Message is one record of the upstream message history API. Timestamp
// is kept as the raw string because the upstream data contains entries
// that are not valid RFC 3339; use ParseTimestamp for a best-effort
// value.
type Message struct {
	ID         string   `json:"id"`
	MemberID   MemberID `json:"user_id"`
	MemberName string   `json:"user_name"`
	Text       string   `json:"message"`
	Timestamp  string   `json:"timestamp"`
}

// ParseTimestamp returns the parsed timestamp, or the zero time when
// the raw value is missing or malformed.
func (x *Message) ParseTimestamp() time.Time {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04:05"} {
		if ts, err := time.Parse(layout, x.Timestamp); err == nil {
			return ts
		}
	}
	return time.Time{}
}

// MessagePage is one page of the message history listing.
type MessagePage struct {
	Items []*Message `json:"items"`
	Total int        `json:"total"`
}
