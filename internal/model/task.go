package model

import "time"

// Task is a single submission slot on a challenge day page.
type Task struct {
	ID          string    `json:"id"`
	ChallengeID string    `json:"challenge_id"`
	Day         int       `json:"day"`
	Title       string    `json:"title"`
	Points      int       `json:"points"`
	Completed   bool      `json:"completed"`
	CreatedAt   time.Time `json:"created_at"`
}

func (t Task) EntityID() string { return t.ID }
