package services

import (
	"context"
	"time"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/sirupsen/logrus"
)

// ActivityStore persists activity records.
type ActivityStore interface {
	CreateActivity(ctx context.Context, activity *models.Activity) error
	GetUserActivities(ctx context.Context, userID string, limit int) ([]models.Activity, error)
}

type ActivityService struct {
	repo ActivityStore
}

func NewActivityService(repo ActivityStore) *ActivityService {
	return &ActivityService{repo: repo}
}

// LogActivity logs a user activity
func (s *ActivityService) LogActivity(ctx context.Context, userID, actionType, targetID, message string) error {
	activity := &models.Activity{
		UserID:    userID,
		Type:      actionType,
		TargetID:  targetID,
		Message:   message,
		Timestamp: time.Now(),
	}

	err := s.repo.CreateActivity(ctx, activity)
	if err != nil {
		logger.Log.WithError(err).Error("Failed to log activity in service")
		return err
	}

	logger.Log.WithFields(logrus.Fields{
		"user_id":     userID,
		"action_type": actionType,
	}).Debug("Activity logged successfully")

	return nil
}

// GetRecentActivities returns recent actions performed by a user
func (s *ActivityService) GetRecentActivities(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	return s.repo.GetUserActivities(ctx, userID, limit)
}
