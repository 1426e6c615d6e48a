/*
Package message defines the direct message record and the parameters used to
create and query it.
*/
package message

import "time"

// Message is a persisted direct message.
// IsRead flips from false to true once, by the receiver; nothing else changes after creation.
type Message struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"created_at"`
	IsRead     bool      `json:"is_read"`
	SenderID   int64     `json:"sender_id"`
	ReceiverID int64     `json:"receiver_id"`
}

// New holds the fields supplied when appending a message.
type New struct {
	SenderID   int64
	ReceiverID int64
	Content    string
	CreatedAt  time.Time
}

// Timestamp returns the creation time to store, in UTC. A zero CreatedAt means now.
func (n New) Timestamp(now time.Time) time.Time {
	if n.CreatedAt.IsZero() {
		return now.UTC()
	}
	return n.CreatedAt.UTC()
}

// Filter selects message history for one user.
// With OtherUserID set, only the conversation between the two users is returned.
type Filter struct {
	UserID      int64
	OtherUserID int64
	Limit       int
	Skip        int
}

const (
	// DefaultLimit is the page size used when none is requested.
	DefaultLimit = 50

	// MaxLimit caps any requested page size.
	MaxLimit = 200
)

// Normalize clamps Limit and Skip into their allowed ranges.
func (f Filter) Normalize() Filter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Skip < 0 {
		f.Skip = 0
	}
	return f
}

// Involves reports whether m belongs to the history selected by f.
func (f Filter) Involves(m Message) bool {
	if f.OtherUserID != 0 {
		return (m.SenderID == f.UserID && m.ReceiverID == f.OtherUserID) ||
			(m.SenderID == f.OtherUserID && m.ReceiverID == f.UserID)
	}
	return m.SenderID == f.UserID || m.ReceiverID == f.UserID
}
