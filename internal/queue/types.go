package queue

import "time"

// Conversation is the per-match record. Create once when the match is first
// observed, mutate on every message event, never delete.
type Conversation struct {
	ID              string    `json:"id"`
	Name            string    `json:"name"`
	LastMessage     string    `json:"last_message"`
	LastMessageTime time.Time `json:"last_message_time"`
	MessageCount    int       `json:"message_count"`
	NoReplyCount    int       `json:"no_reply_count"`
	Language        string    `json:"language"`
	Tone            string    `json:"tone"`
}

// EntryType is the kind of message a queue entry asks for
type EntryType string

const (
	TypeOpener   EntryType = "opener"
	TypeFollowup EntryType = "followup"
	TypeMeetup   EntryType = "meetup"
)

// EntryStatus tracks a queue entry's outcome
type EntryStatus string

const (
	StatusPending EntryStatus = "pending"
	StatusSent    EntryStatus = "sent"
	StatusFailed  EntryStatus = "failed"
)

// Entry is one queued message-generation job, consumed strictly FIFO
type Entry struct {
	ID        string      `json:"id"`
	MatchID   string      `json:"match_id"`
	Type      EntryType   `json:"type"`
	Context   string      `json:"context"`
	Timestamp time.Time   `json:"timestamp"`
	Status    EntryStatus `json:"status"`
}

// Pending is the single in-flight draft awaiting a human decision
type Pending struct {
	Entry    Entry  `json:"entry"`
	Text     string `json:"text"`
	Provider string `json:"provider"`
}
