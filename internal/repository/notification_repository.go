package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotificationNotFound = errors.New("notification not found")

type notificationDocument struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	UserID    string             `bson:"user_id"`
	Type      string             `bson:"type"`
	Title     string             `bson:"title"`
	Message   string             `bson:"message"`
	Read      bool               `bson:"read"`
	TargetID  string             `bson:"target_id,omitempty"`
	CreatedAt time.Time          `bson:"created_at"`
	ExpiresAt time.Time          `bson:"expires_at"`
}

func (d notificationDocument) toModel() models.Notification {
	return models.Notification{
		ID:        d.ID.Hex(),
		UserID:    d.UserID,
		Type:      d.Type,
		Title:     d.Title,
		Message:   d.Message,
		Read:      d.Read,
		TargetID:  d.TargetID,
		CreatedAt: d.CreatedAt,
		ExpiresAt: d.ExpiresAt,
	}
}

type NotificationRepository struct {
	collection *mongo.Collection
	ttl        time.Duration
}

func NewNotificationRepository(db *mongo.Database, ttl time.Duration) *NotificationRepository {
	return &NotificationRepository{
		collection: db.Collection("notifications"),
		ttl:        ttl,
	}
}

// CreateNotification inserts a new notification
func (r *NotificationRepository) CreateNotification(ctx context.Context, notif *models.Notification) error {
	notif.CreatedAt = time.Now()
	notif.ExpiresAt = notif.CreatedAt.Add(r.ttl)

	result, err := r.collection.InsertOne(ctx, notificationDocument{
		UserID:    notif.UserID,
		Type:      notif.Type,
		Title:     notif.Title,
		Message:   notif.Message,
		Read:      notif.Read,
		TargetID:  notif.TargetID,
		CreatedAt: notif.CreatedAt,
		ExpiresAt: notif.ExpiresAt,
	})
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert notification")
		return fmt.Errorf("failed to create notification: %w", err)
	}
	if id, ok := result.InsertedID.(primitive.ObjectID); ok {
		notif.ID = id.Hex()
	}
	return nil
}

// GetUserNotifications returns the unexpired notifications of a user, newest first
func (r *NotificationRepository) GetUserNotifications(ctx context.Context, userID string) ([]models.Notification, error) {
	filter := bson.M{
		"user_id":    userID,
		"expires_at": bson.M{"$gt": time.Now()},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})

	cursor, err := r.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch notifications: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []notificationDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode notifications: %w", err)
	}

	notifications := make([]models.Notification, 0, len(docs))
	for _, d := range docs {
		notifications = append(notifications, d.toModel())
	}
	return notifications, nil
}

// MarkAsRead sets notification's Read to true
func (r *NotificationRepository) MarkAsRead(ctx context.Context, userID, id string) error {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}
	result, err := r.collection.UpdateOne(ctx,
		bson.M{"_id": objID, "user_id": userID},
		bson.M{"$set": bson.M{"read": true}},
	)
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrNotificationNotFound, id)
	}
	return nil
}

// LatestForTarget returns the newest notification of notifType about targetID, or nil.
func (r *NotificationRepository) LatestForTarget(ctx context.Context, userID, notifType, targetID string) (*models.Notification, error) {
	filter := bson.M{
		"user_id":   userID,
		"type":      notifType,
		"target_id": targetID,
	}
	opts := options.FindOne().SetSort(bson.D{{Key: "created_at", Value: -1}})

	var doc notificationDocument
	err := r.collection.FindOne(ctx, filter, opts).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch latest notification: %w", err)
	}
	notif := doc.toModel()
	return &notif, nil
}

// DeleteExpiredNotifications removes notifications past their expiry
func (r *NotificationRepository) DeleteExpiredNotifications(ctx context.Context) (int64, error) {
	filter := bson.M{"expires_at": bson.M{"$lte": time.Now()}}
	result, err := r.collection.DeleteMany(ctx, filter)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired notifications: %w", err)
	}
	return result.DeletedCount, nil
}
