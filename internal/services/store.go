package services

import (
	"context"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/internal/repository"
)

// GoalStore is the document store the goal services run against.
// *repository.GoalRepository is the production implementation.
type GoalStore interface {
	Subscribe(ctx context.Context, userID string, onSnapshot func([]models.Goal), onError func(error)) (repository.CancelFunc, error)
	GetGoals(ctx context.Context, userID string) ([]models.Goal, error)
	CreateGoal(ctx context.Context, goal *models.Goal) (*models.Goal, error)
	UpdateGoal(ctx context.Context, userID, id string, update models.GoalUpdate) error
	CorrectGoalState(ctx context.Context, userID, id string, from, to models.GoalState) (bool, error)
	DeleteGoal(ctx context.Context, userID, id string) error
}

// Notifier is the fire-and-forget side channel for user-facing notifications.
// Implementations must not block for long and never report failure to the caller.
type Notifier interface {
	Notify(ctx context.Context, n models.Notification)
}

// NotifierFunc adapts a function to Notifier.
type NotifierFunc func(ctx context.Context, n models.Notification)

func (f NotifierFunc) Notify(ctx context.Context, n models.Notification) { f(ctx, n) }

// MultiNotifier fans a notification out to every non-nil notifier.
type MultiNotifier []Notifier

func (m MultiNotifier) Notify(ctx context.Context, n models.Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, models.Notification) {}

// ActivityRecorder keeps the audit trail of goal mutations.
type ActivityRecorder interface {
	LogActivity(ctx context.Context, userID, actionType, targetID, message string) error
}
