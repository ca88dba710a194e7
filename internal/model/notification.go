package model

import "time"

type Notification struct {
	ID        string    `json:"id"`
	Type      string    `json:"type"` // 'like_post', 'comment_post', 'challenge', 'message'
	Message   string    `json:"message"`
	TargetID  string    `json:"target_id,omitempty"` // post, thread or challenge the payload points at
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

func (n Notification) EntityID() string { return n.ID }
