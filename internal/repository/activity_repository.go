package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type activityDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Type      string             `bson:"type"`
	TargetID  string             `bson:"target_id"`
	Timestamp time.Time          `bson:"timestamp"`
	Message   string             `bson:"message"`
}

type ActivityRepository struct {
	collection *mongo.Collection
}

func NewActivityRepository(db *mongo.Database) *ActivityRepository {
	return &ActivityRepository{
		collection: db.Collection("activities"),
	}
}

// CreateActivity inserts a new activity log
func (r *ActivityRepository) CreateActivity(ctx context.Context, activity *models.Activity) error {
	_, err := r.collection.InsertOne(ctx, activityDocument{
		UserID:    activity.UserID,
		Type:      activity.Type,
		TargetID:  activity.TargetID,
		Timestamp: activity.Timestamp,
		Message:   activity.Message,
	})
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert activity")
		return fmt.Errorf("failed to insert activity: %w", err)
	}
	return nil
}

// GetUserActivities fetches recent activities of a specific user
func (r *ActivityRepository) GetUserActivities(ctx context.Context, userID string, limit int) ([]models.Activity, error) {
	filter := bson.M{"user_id": userID}
	sort := bson.D{{Key: "timestamp", Value: -1}}

	opts := options.Find().SetSort(sort).SetLimit(int64(limit))

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch activities: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []activityDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode activities: %w", err)
	}

	activities := make([]models.Activity, 0, len(docs))
	for _, d := range docs {
		activities = append(activities, models.Activity{
			ID:        d.ID.Hex(),
			UserID:    d.UserID,
			Type:      d.Type,
			TargetID:  d.TargetID,
			Timestamp: d.Timestamp,
			Message:   d.Message,
		})
	}
	return activities, nil
}
