package model

import "time"

// Comment is created optimistically with a temporary id, then replaced in
// place by the server-confirmed record, or removed entirely on failure.
type Comment struct {
	ID         string    `json:"id"`
	PostID     string    `json:"post_id"`
	AuthorName string    `json:"author_name"`
	Text       string    `json:"text"`
	CreatedAt  time.Time `json:"created_at"`

	// Pending is true while the comment has not been confirmed by the server.
	Pending bool `json:"-"`
}

func (c Comment) EntityID() string { return c.ID }
