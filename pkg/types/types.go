package types

import (
	"time"
)

// Participant roles. Every room has exactly one of each.
const (
	RoleApplicant = "applicant"
	RoleRecruiter = "recruiter"
)

// Connection health states for a transport session.
type ConnState string

const (
	ConnDisconnected ConnState = "disconnected"
	ConnConnecting   ConnState = "connecting"
	ConnConnected    ConnState = "connected"
	ConnFailed       ConnState = "failed"
)

// JobRef identifies the job application a room belongs to.
type JobRef struct {
	ID      string `json:"id"`
	Title   string `json:"title"`
	Company string `json:"company,omitempty"`
}

// Room is a two-party conversation tied to one job application.
// Structure is fixed after creation; only Preview, LastActivity, Unread
// and Selected change afterwards.
type Room struct {
	ID               string    `json:"id"`
	CounterpartyName string    `json:"counterpartyName"`
	CounterpartyRole string    `json:"counterpartyRole"`
	Job              JobRef    `json:"job"`
	Preview          string    `json:"preview"`
	LastActivity     time.Time `json:"lastActivity"`
	Unread           int       `json:"unread"`
	Selected         bool      `json:"-"`
}

// Message is immutable once created except for Seen, which transitions
// false→true exactly once and never reverts.
type Message struct {
	ID         string    `json:"id"`
	RoomID     string    `json:"roomId"`
	SenderRole string    `json:"senderRole"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"createdAt"`
	Seen       bool      `json:"seen"`
}

// Less reports whether m sorts before other. Server-assigned timestamps
// are authoritative; the identifier breaks ties under clock skew.
func (m *Message) Less(other *Message) bool {
	if m.CreatedAt.Equal(other.CreatedAt) {
		return m.ID < other.ID
	}
	return m.CreatedAt.Before(other.CreatedAt)
}

// MessagePage is one ordered page of history. Page 1 is the most recent.
type MessagePage struct {
	Messages []*Message `json:"messages"`
	Page     int        `json:"page"`
	PageSize int        `json:"pageSize"`
}
