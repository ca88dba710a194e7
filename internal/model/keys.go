package model

import "fmt"

// Collection keys name the ordered id lists held by the store. Feed and chat
// share one pagination engine, so every paged surface is just a key.

const FeedKey = "feed"

const NotificationsKey = "notifications"

func CommentsKey(postID string) string {
	return "comments:" + postID
}

func ChallengeDayKey(challengeID string, day int) string {
	return fmt.Sprintf("challenge:%s:%d", challengeID, day)
}
