package model

import "time"

// MessageStatus tracks delivery through the message lifecycle. Status is
// monotonically non-decreasing along sending → sent → delivered → read;
// failed is a terminal absorbing state reachable from sending only. A failed
// message may be resubmitted, which mints a fresh temporary id and restarts
// the lifecycle as a new logical attempt.
type MessageStatus string

const (
	StatusComposing MessageStatus = "composing"
	StatusSending   MessageStatus = "sending"
	StatusSent      MessageStatus = "sent"
	StatusDelivered MessageStatus = "delivered"
	StatusRead      MessageStatus = "read"
	StatusFailed    MessageStatus = "failed"
)

var statusRank = map[MessageStatus]int{
	StatusComposing: 0,
	StatusSending:   1,
	StatusSent:      2,
	StatusDelivered: 3,
	StatusRead:      4,
}

// Rank returns the position of a status along the delivery ladder.
// Failed has no rank; it sits outside the ladder.
func (s MessageStatus) Rank() int {
	if r, ok := statusRank[s]; ok {
		return r
	}
	return -1
}

// CanAdvanceTo reports whether a transition from s to next is legal.
func (s MessageStatus) CanAdvanceTo(next MessageStatus) bool {
	if s == StatusFailed {
		// Absorbing; resend supersedes the record instead of mutating it
		return false
	}
	if next == StatusFailed {
		return s == StatusSending
	}
	return next.Rank() > s.Rank()
}

type Message struct {
	ID        string        `json:"id"`
	ThreadKey string        `json:"thread_key"`
	Sender    Author        `json:"sender"`
	Body      string        `json:"body"`
	Status    MessageStatus `json:"status"`
	CreatedAt time.Time     `json:"created_at"`
}

func (m Message) EntityID() string { return m.ID }
