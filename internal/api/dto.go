package api

import "github.com/vitalhub/thrivesync/internal/model"

// Page envelopes. next_cursor is omitted by the server at end of collection.

type PostPage struct {
	Items      []model.Post `json:"items"`
	NextCursor *string      `json:"next_cursor"`
}

type MessagePage struct {
	Items      []model.Message `json:"items"`
	NextCursor *string         `json:"next_cursor"`
}

type TaskPage struct {
	Items      []model.Task `json:"items"`
	NextCursor *string      `json:"next_cursor"`
}

type LikeResult struct {
	LikesCount int  `json:"likes_count"`
	LikedByMe  bool `json:"liked_by_me"`
}

type CreateCommentRequest struct {
	Text string `json:"text"`
}

type SendMessageRequest struct {
	Body string `json:"body"`
}
