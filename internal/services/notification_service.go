package services

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/savings-goals/internal/goalrule"
	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/pkg/logger"
)

// NotificationStore persists notifications.
type NotificationStore interface {
	CreateNotification(ctx context.Context, notif *models.Notification) error
	GetUserNotifications(ctx context.Context, userID string) ([]models.Notification, error)
	MarkAsRead(ctx context.Context, userID, id string) error
	LatestForTarget(ctx context.Context, userID, notifType, targetID string) (*models.Notification, error)
	DeleteExpiredNotifications(ctx context.Context) (int64, error)
}

// GoalScanner walks every goal in the store.
type GoalScanner interface {
	ScanGoals(ctx context.Context, fn func(models.Goal) error) error
}

const dueSoonWindow = 24 * time.Hour

type NotificationService struct {
	repo  NotificationStore
	goals GoalScanner
	loc   *time.Location
	now   func() time.Time
}

func NewNotificationService(repo NotificationStore, goals GoalScanner, loc *time.Location) *NotificationService {
	if loc == nil {
		loc = time.UTC
	}
	return &NotificationService{
		repo:  repo,
		goals: goals,
		loc:   loc,
		now:   time.Now,
	}
}

// CreateNotification logs a new notification for a user
func (s *NotificationService) CreateNotification(ctx context.Context, n models.Notification) error {
	return s.repo.CreateNotification(ctx, &n)
}

// Notify persists durable notifications and drops transient confirmations.
func (s *NotificationService) Notify(ctx context.Context, n models.Notification) {
	if !n.Durable() {
		return
	}
	if err := s.CreateNotification(ctx, n); err != nil {
		logger.Log.WithError(err).WithField("type", n.Type).Warn("Failed to persist notification")
	}
}

// GetUserNotifications returns all notifications for a user
func (s *NotificationService) GetUserNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	return s.repo.GetUserNotifications(ctx, userID)
}

// MarkNotificationAsRead sets the "read" status of a notification to true
func (s *NotificationService) MarkNotificationAsRead(ctx context.Context, userID, id string) error {
	return s.repo.MarkAsRead(ctx, userID, id)
}

func (s *NotificationService) DeleteExpiredNotifications(ctx context.Context) error {
	deleted, err := s.repo.DeleteExpiredNotifications(ctx)
	if err != nil {
		return err
	}
	logger.Log.Infof("Deleted %d expired notifications", deleted)
	return nil
}

// CheckGoalDueSoon reminds owners of unfinished goals whose deadline falls within the
// next 24 hours, once per goal.
func (s *NotificationService) CheckGoalDueSoon(ctx context.Context) error {
	now := s.now()
	sent := 0

	err := s.goals.ScanGoals(ctx, func(goal models.Goal) error {
		deadline, ok := goalrule.ParseDeadline(goal.Deadline, s.loc)
		if !ok {
			return nil
		}
		state := goalrule.Derive(goal.CurrentAmount, goal.TargetAmount, deadline, now)
		if state.Status != models.GoalStatusInProgress {
			return nil
		}

		timeLeft := deadline.Sub(now)
		if timeLeft <= 0 || timeLeft > dueSoonWindow {
			return nil
		}

		existing, err := s.repo.LatestForTarget(ctx, goal.UserID, models.NotificationGoalDueSoon, goal.ID)
		if err != nil {
			logger.Log.WithError(err).WithField("goal_id", goal.ID).Warn("Failed to check existing due-soon notification")
			return nil
		}
		if existing != nil {
			return nil
		}

		err = s.CreateNotification(ctx, models.Notification{
			UserID:   goal.UserID,
			Type:     models.NotificationGoalDueSoon,
			Title:    "⏰ Goal Due Soon",
			Message:  fmt.Sprintf("Goal %q is due soon! %d%% saved so far.", goal.Title, goal.Progress()),
			TargetID: goal.ID,
		})
		if err != nil {
			logger.Log.WithError(err).WithField("goal_id", goal.ID).Warn("Failed to send goal due soon notification")
			return nil
		}
		sent++
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to scan goals: %w", err)
	}

	logger.Log.WithField("count", sent).Info("Goal due-soon scan completed")
	return nil
}
