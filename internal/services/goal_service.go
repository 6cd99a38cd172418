package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/savings-goals/internal/goalrule"
	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrNoSession is returned by mutations attempted without an active user.
var ErrNoSession = errors.New("no active session")

// GoalService wraps the store's document operations for one owner at a time.
// It validates nothing: input is checked upstream by the form or handler.
type GoalService struct {
	store    GoalStore
	notifier Notifier
	activity ActivityRecorder
	loc      *time.Location
	now      func() time.Time
}

// NewGoalService creates a new instance of GoalService. notifier and activity may be nil.
func NewGoalService(store GoalStore, notifier Notifier, activity ActivityRecorder, loc *time.Location) *GoalService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GoalService{
		store:    store,
		notifier: notifier,
		activity: activity,
		loc:      loc,
		now:      time.Now,
	}
}

// WithNotifier returns a copy of the service that reports to notifier instead.
func (s *GoalService) WithNotifier(notifier Notifier) *GoalService {
	clone := *s
	if notifier == nil {
		notifier = nopNotifier{}
	}
	clone.notifier = notifier
	return &clone
}

// Create stores a new goal for userID with nothing saved yet.
func (s *GoalService) Create(ctx context.Context, userID string, in models.GoalInput) (*models.Goal, error) {
	if userID == "" {
		return nil, ErrNoSession
	}

	goal := &models.Goal{
		UserID:        userID,
		Title:         in.Title,
		TargetAmount:  in.TargetAmount,
		CurrentAmount: decimal.Zero,
		Deadline:      in.Deadline,
		CreatedAt:     s.now().UTC(),
	}

	created, err := s.store.CreateGoal(ctx, goal)
	if err != nil {
		logger.Log.WithError(err).WithField("user_id", userID).Error("Service failed to create goal")
		return nil, fmt.Errorf("failed to create goal: %w", err)
	}

	s.record(ctx, userID, models.ActivityGoalCreated, created.ID, fmt.Sprintf("Created goal: %s", created.Title))
	s.notifier.Notify(ctx, models.Notification{
		UserID:   userID,
		Type:     models.NotificationGoalCreated,
		Title:    "Goal Added",
		Message:  "Your goal has been created.",
		TargetID: created.ID,
	})
	return created, nil
}

// Update forwards a partial write. Status is not recomputed here; the next
// reconciliation pass does that.
func (s *GoalService) Update(ctx context.Context, userID, id string, update models.GoalUpdate) error {
	if userID == "" {
		return ErrNoSession
	}
	if err := s.store.UpdateGoal(ctx, userID, id, update); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "goal_id": id}).Warn("Service failed to update goal")
		return fmt.Errorf("failed to update goal: %w", err)
	}

	s.record(ctx, userID, models.ActivityGoalUpdated, id, "Updated goal")
	s.notifier.Notify(ctx, models.Notification{
		UserID:   userID,
		Type:     models.NotificationGoalUpdated,
		Title:    "Goal Updated",
		TargetID: id,
	})
	return nil
}

// Delete removes a goal permanently.
func (s *GoalService) Delete(ctx context.Context, userID, id string) error {
	if userID == "" {
		return ErrNoSession
	}
	if err := s.store.DeleteGoal(ctx, userID, id); err != nil {
		logger.Log.WithError(err).WithFields(logrus.Fields{"user_id": userID, "goal_id": id}).Warn("Service failed to delete goal")
		return fmt.Errorf("failed to delete goal: %w", err)
	}

	s.record(ctx, userID, models.ActivityGoalDeleted, id, "Deleted goal")
	s.notifier.Notify(ctx, models.Notification{
		UserID:   userID,
		Type:     models.NotificationGoalDeleted,
		Title:    "Goal Deleted",
		TargetID: id,
	})
	return nil
}

// List reads the owner's goals once and reports derived status values. It writes nothing.
func (s *GoalService) List(ctx context.Context, userID string) ([]models.Goal, error) {
	if userID == "" {
		return nil, ErrNoSession
	}
	goals, err := s.store.GetGoals(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list goals: %w", err)
	}

	now := s.now()
	for i := range goals {
		state, _ := goalrule.Reconcile(goals[i], now, s.loc)
		goals[i].Status, goals[i].Archived = state.Status, state.Archived
	}
	return goals, nil
}

func (s *GoalService) record(ctx context.Context, userID, actionType, targetID, message string) {
	if s.activity == nil {
		return
	}
	if err := s.activity.LogActivity(ctx, userID, actionType, targetID, message); err != nil {
		logger.Log.WithError(err).WithField("goal_id", targetID).Warn("Failed to record goal activity")
	}
}
