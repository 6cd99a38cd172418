package models

import "time"

// Activity types recorded for goal mutations.
const (
	ActivityGoalCreated = "goal_created"
	ActivityGoalUpdated = "goal_updated"
	ActivityGoalDeleted = "goal_deleted"
)

type Activity struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`      // e.g. "goal_created", "goal_deleted"
	TargetID  string    `json:"target_id"` // the goal the action touched
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}
