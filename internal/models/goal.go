package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// GoalStatus is derived from amounts and the deadline; clients never set it directly.
type GoalStatus string

const (
	GoalStatusInProgress GoalStatus = "in-progress"
	GoalStatusCompleted  GoalStatus = "completed"
	GoalStatusExpired    GoalStatus = "expired"
)

// DeadlineLayout is the ISO calendar date format deadlines are stored in.
const DeadlineLayout = "2006-01-02"

var ErrInvalidGoal = errors.New("invalid goal")

// Goal is a user-owned savings target.
type Goal struct {
	ID            string          `json:"id"`
	UserID        string          `json:"userId"`
	Title         string          `json:"title"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"`
	Deadline      string          `json:"deadline,omitempty"` // empty means no deadline
	CreatedAt     time.Time       `json:"createdAt"`
	Status        GoalStatus      `json:"status,omitempty"`
	Archived      bool            `json:"archived"`
}

// GoalState is the derived pair kept in sync with the store.
type GoalState struct {
	Status   GoalStatus `json:"status"`
	Archived bool       `json:"archived"`
}

// State returns the stored status/archived pair.
func (g Goal) State() GoalState {
	return GoalState{Status: g.Status, Archived: g.Archived}
}

// Progress is the percentage achieved, rounded down and capped at 100.
func (g Goal) Progress() int {
	if !g.TargetAmount.IsPositive() {
		return 0
	}
	pct := g.CurrentAmount.Mul(decimal.NewFromInt(100)).Div(g.TargetAmount).Floor()
	if pct.GreaterThan(decimal.NewFromInt(100)) {
		return 100
	}
	if pct.IsNegative() {
		return 0
	}
	return int(pct.IntPart())
}

// GoalInput is what a client submits to create a goal.
type GoalInput struct {
	Title         string          `json:"title"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	CurrentAmount decimal.Decimal `json:"currentAmount"` // accepted for form parity, forced to 0 on create
	Deadline      string          `json:"deadline,omitempty"`
}

// Validate applies the goal form rules.
func (in GoalInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidGoal)
	}
	if !in.TargetAmount.IsPositive() {
		return fmt.Errorf("%w: target amount must be positive", ErrInvalidGoal)
	}
	if in.CurrentAmount.IsNegative() {
		return fmt.Errorf("%w: current amount must be at least 0", ErrInvalidGoal)
	}
	return validateDeadline(in.Deadline)
}

// GoalUpdate is a shallow partial update; nil fields are left untouched.
// A Deadline pointing at "" clears the deadline.
type GoalUpdate struct {
	Title         *string          `json:"title,omitempty"`
	TargetAmount  *decimal.Decimal `json:"targetAmount,omitempty"`
	CurrentAmount *decimal.Decimal `json:"currentAmount,omitempty"`
	Deadline      *string          `json:"deadline,omitempty"`
	Status        *GoalStatus      `json:"status,omitempty"`
	Archived      *bool            `json:"archived,omitempty"`
}

// IsEmpty reports whether the update names no field.
func (u GoalUpdate) IsEmpty() bool {
	return u.Title == nil && u.TargetAmount == nil && u.CurrentAmount == nil &&
		u.Deadline == nil && u.Status == nil && u.Archived == nil
}

// Validate checks the fields a client may edit. Status is rejected: it is derived.
func (u GoalUpdate) Validate() error {
	if u.IsEmpty() {
		return fmt.Errorf("%w: no fields to update", ErrInvalidGoal)
	}
	if u.Status != nil {
		return fmt.Errorf("%w: status is derived and cannot be set", ErrInvalidGoal)
	}
	if u.Title != nil && strings.TrimSpace(*u.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidGoal)
	}
	if u.TargetAmount != nil && !u.TargetAmount.IsPositive() {
		return fmt.Errorf("%w: target amount must be positive", ErrInvalidGoal)
	}
	if u.CurrentAmount != nil && u.CurrentAmount.IsNegative() {
		return fmt.Errorf("%w: current amount must be at least 0", ErrInvalidGoal)
	}
	if u.Deadline != nil {
		return validateDeadline(*u.Deadline)
	}
	return nil
}

func validateDeadline(s string) error {
	if s == "" {
		return nil
	}
	if _, err := time.Parse(DeadlineLayout, s); err != nil {
		return fmt.Errorf("%w: deadline must be a YYYY-MM-DD date", ErrInvalidGoal)
	}
	return nil
}

// ActiveGoals are neither archived nor expired.
func ActiveGoals(goals []Goal) []Goal {
	return filterGoals(goals, func(g Goal) bool { return !g.Archived && g.Status != GoalStatusExpired })
}

// AchievedGoals were completed and archived.
func AchievedGoals(goals []Goal) []Goal {
	return filterGoals(goals, func(g Goal) bool { return g.Archived && g.Status == GoalStatusCompleted })
}

// MissedGoals expired without being archived.
func MissedGoals(goals []Goal) []Goal {
	return filterGoals(goals, func(g Goal) bool { return !g.Archived && g.Status == GoalStatusExpired })
}

func filterGoals(goals []Goal, keep func(Goal) bool) []Goal {
	out := make([]Goal, 0, len(goals))
	for _, g := range goals {
		if keep(g) {
			out = append(out, g)
		}
	}
	return out
}
