// Package goalrule derives a goal's status and archive flag from its amounts and deadline.
package goalrule

import (
	"time"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/shopspring/decimal"
)

// Derive is total and pure: the same inputs and now always give the same state.
// A nil deadline never expires. A deadline equal to now has not expired yet.
func Derive(current, target decimal.Decimal, deadline *time.Time, now time.Time) models.GoalState {
	achieved := current.GreaterThanOrEqual(target)
	expired := deadline != nil && deadline.Before(now)

	switch {
	case achieved && expired:
		return models.GoalState{Status: models.GoalStatusCompleted, Archived: true}
	case expired:
		return models.GoalState{Status: models.GoalStatusExpired}
	case achieved:
		return models.GoalState{Status: models.GoalStatusCompleted}
	default:
		return models.GoalState{Status: models.GoalStatusInProgress}
	}
}

// ParseDeadline turns a stored deadline into an instant. A date-only value is the start
// of that day in loc. Empty or unparseable values mean no deadline.
func ParseDeadline(s string, loc *time.Location) (*time.Time, bool) {
	if s == "" {
		return nil, false
	}
	if loc == nil {
		loc = time.UTC
	}
	if t, err := time.ParseInLocation(models.DeadlineLayout, s, loc); err == nil {
		return &t, true
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, true
	}
	return nil, false
}

// Reconcile derives the state goal should hold at now and reports whether it differs
// from what is stored.
func Reconcile(goal models.Goal, now time.Time, loc *time.Location) (models.GoalState, bool) {
	deadline, _ := ParseDeadline(goal.Deadline, loc)
	state := Derive(goal.CurrentAmount, goal.TargetAmount, deadline, now)
	return state, state != goal.State()
}
