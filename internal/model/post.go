package model

import "time"

type Post struct {
	ID            string    `json:"id"`
	Author        Author    `json:"author"`
	Caption       string    `json:"caption"`
	MediaURL      *string   `json:"media_url,omitempty"`
	LikesCount    int       `json:"likes_count"`
	LikedByMe     bool      `json:"liked_by_me"`
	CommentsCount int       `json:"comments_count"`
	CreatedAt     time.Time `json:"created_at"`
}

func (p Post) EntityID() string { return p.ID }
