package models

import "time"

// Notification types emitted on the side channel.
const (
	NotificationGoalCreated  = "goal_created"
	NotificationGoalUpdated  = "goal_updated"
	NotificationGoalDeleted  = "goal_deleted"
	NotificationGoalArchived = "goal_archived"
	NotificationGoalDueSoon  = "goal_due_soon"
)

type Notification struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Type      string    `json:"type"`                // e.g. "goal_archived", "goal_due_soon"
	Title     string    `json:"title"`               // Short headline
	Message   string    `json:"message"`             // Descriptive content
	Read      bool      `json:"read"`                // True if user viewed it
	TargetID  string    `json:"target_id,omitempty"` // Goal the notification refers to
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Durable reports whether the notification is worth persisting rather than only toasting.
func (n Notification) Durable() bool {
	return n.Type == NotificationGoalArchived || n.Type == NotificationGoalDueSoon
}
