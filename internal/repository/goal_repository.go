package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Dias221467/savings-goals/internal/models"
	"github.com/Dias221467/savings-goals/pkg/logger"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// ErrGoalNotFound is returned when an id does not name a goal owned by the caller.
var ErrGoalNotFound = errors.New("goal not found")

// CancelFunc detaches a live subscription. It is safe to call more than once.
type CancelFunc func()

type goalDocument struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	UserID        string             `bson:"user_id"`
	Title         string             `bson:"title"`
	TargetAmount  amount             `bson:"target_amount"`
	CurrentAmount amount             `bson:"current_amount"`
	Deadline      string             `bson:"deadline,omitempty"`
	CreatedAt     time.Time          `bson:"created_at"`
	Status        models.GoalStatus  `bson:"status,omitempty"`
	Archived      bool               `bson:"archived"`
}

func newGoalDocument(g *models.Goal) goalDocument {
	return goalDocument{
		UserID:        g.UserID,
		Title:         g.Title,
		TargetAmount:  amount(g.TargetAmount),
		CurrentAmount: amount(g.CurrentAmount),
		Deadline:      g.Deadline,
		CreatedAt:     g.CreatedAt,
		Status:        g.Status,
		Archived:      g.Archived,
	}
}

func (d goalDocument) toModel() models.Goal {
	return models.Goal{
		ID:            d.ID.Hex(),
		UserID:        d.UserID,
		Title:         d.Title,
		TargetAmount:  decimal.Decimal(d.TargetAmount),
		CurrentAmount: decimal.Decimal(d.CurrentAmount),
		Deadline:      d.Deadline,
		CreatedAt:     d.CreatedAt,
		Status:        d.Status,
		Archived:      d.Archived,
	}
}

// GoalRepository struct handles database operations related to goals
type GoalRepository struct {
	collection *mongo.Collection
}

// NewGoalRepository creates a new instance of GoalRepository
func NewGoalRepository(db *mongo.Database) *GoalRepository {
	return &GoalRepository{
		collection: db.Collection("goals"),
	}
}

// EnsureIndexes creates the owner index every live query filters on.
func (r *GoalRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: 1}},
	})
	if err != nil {
		return fmt.Errorf("failed to create goal indexes: %w", err)
	}
	return nil
}

// CreateGoal inserts goal and assigns the store-generated id to it.
func (r *GoalRepository) CreateGoal(ctx context.Context, goal *models.Goal) (*models.Goal, error) {
	result, err := r.collection.InsertOne(ctx, newGoalDocument(goal))
	if err != nil {
		logger.Log.WithError(err).Error("Failed to insert goal")
		return nil, fmt.Errorf("failed to insert goal: %w", err)
	}

	insertedID, ok := result.InsertedID.(primitive.ObjectID)
	if !ok {
		return nil, fmt.Errorf("unexpected inserted id type %T", result.InsertedID)
	}
	goal.ID = insertedID.Hex()

	logger.Log.WithField("goal_id", goal.ID).Info("Goal created successfully")
	return goal, nil
}

// GetGoals fetches every goal owned by userID, oldest first.
func (r *GoalRepository) GetGoals(ctx context.Context, userID string) ([]models.Goal, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}, {Key: "_id", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch goals: %w", err)
	}
	defer cursor.Close(ctx)

	goals := []models.Goal{}
	for cursor.Next(ctx) {
		var doc goalDocument
		if err := cursor.Decode(&doc); err != nil {
			return nil, fmt.Errorf("failed to decode goal: %w", err)
		}
		goals = append(goals, doc.toModel())
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate goals: %w", err)
	}
	return goals, nil
}

// ScanGoals calls fn for every goal in the collection, stopping at the first error.
func (r *GoalRepository) ScanGoals(ctx context.Context, fn func(models.Goal) error) error {
	cursor, err := r.collection.Find(ctx, bson.M{})
	if err != nil {
		return fmt.Errorf("failed to scan goals: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var doc goalDocument
		if err := cursor.Decode(&doc); err != nil {
			logger.Log.WithError(err).Warn("Skipping undecodable goal during scan")
			continue
		}
		if err := fn(doc.toModel()); err != nil {
			return err
		}
	}
	return cursor.Err()
}

// UpdateGoal merges the named fields into the goal owned by userID.
func (r *GoalRepository) UpdateGoal(ctx context.Context, userID, id string, update models.GoalUpdate) error {
	filter, err := ownedGoalFilter(userID, id)
	if err != nil {
		return err
	}

	set, unset := updateDocument(update)
	change := bson.M{}
	if len(set) > 0 {
		change["$set"] = set
	}
	if len(unset) > 0 {
		change["$unset"] = unset
	}
	if len(change) == 0 {
		return nil
	}

	result, err := r.collection.UpdateOne(ctx, filter, change)
	if err != nil {
		logger.Log.WithError(err).WithField("goal_id", id).Error("Failed to update goal")
		return fmt.Errorf("failed to update goal: %w", err)
	}
	if result.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}

	logger.Log.WithField("goal_id", id).Info("Goal updated successfully")
	return nil
}

// CorrectGoalState writes to only if the goal still holds from. It reports false,
// without error, when the stored state moved on in the meantime.
func (r *GoalRepository) CorrectGoalState(ctx context.Context, userID, id string, from, to models.GoalState) (bool, error) {
	filter, err := ownedGoalFilter(userID, id)
	if err != nil {
		return false, err
	}
	if from.Status == "" {
		filter["status"] = bson.M{"$in": bson.A{"", nil}}
	} else {
		filter["status"] = from.Status
	}
	if from.Archived {
		filter["archived"] = true
	} else {
		filter["archived"] = bson.M{"$in": bson.A{false, nil}}
	}

	result, err := r.collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"status":   to.Status,
		"archived": to.Archived,
	}})
	if err != nil {
		return false, fmt.Errorf("failed to correct goal state: %w", err)
	}
	return result.MatchedCount > 0, nil
}

// DeleteGoal removes the goal owned by userID.
func (r *GoalRepository) DeleteGoal(ctx context.Context, userID, id string) error {
	filter, err := ownedGoalFilter(userID, id)
	if err != nil {
		return err
	}

	result, err := r.collection.DeleteOne(ctx, filter)
	if err != nil {
		logger.Log.WithError(err).WithField("goal_id", id).Error("Failed to delete goal")
		return fmt.Errorf("failed to delete goal: %w", err)
	}
	if result.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}

	logger.Log.WithField("goal_id", id).Info("Goal deleted successfully")
	return nil
}

// Subscribe delivers the owner's full goal list once on attach and again after every
// change to the collection that may affect it. Delivery happens on a single goroutine,
// so snapshots arrive in order and never overlap. A stream failure is reported through
// onError once and ends the subscription.
func (r *GoalRepository) Subscribe(ctx context.Context, userID string, onSnapshot func([]models.Goal), onError func(error)) (CancelFunc, error) {
	watchCtx, cancel := context.WithCancel(ctx)

	// Delete events carry no document, so every delete triggers a refetch.
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"$or": bson.A{
			bson.M{"fullDocument.user_id": userID},
			bson.M{"operationType": "delete"},
		}}}},
	}
	stream, err := r.collection.Watch(watchCtx, pipeline, options.ChangeStream().SetFullDocument(options.UpdateLookup))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to open goal change stream: %w", err)
	}

	// Read after the stream opens so no change can fall between the two.
	initial, err := r.GetGoals(watchCtx, userID)
	if err != nil {
		stream.Close(context.Background())
		cancel()
		return nil, err
	}

	log := logger.Log.WithField("user_id", userID)
	go func() {
		defer stream.Close(context.Background())

		onSnapshot(initial)
		for stream.Next(watchCtx) {
			// The refetch covers every queued event, so drain them first.
			for stream.TryNext(watchCtx) {
			}
			goals, err := r.GetGoals(watchCtx, userID)
			if err != nil {
				if watchCtx.Err() == nil {
					onError(err)
				}
				return
			}
			onSnapshot(goals)
		}
		if err := stream.Err(); err != nil && watchCtx.Err() == nil {
			onError(fmt.Errorf("goal change stream failed: %w", err))
			return
		}
		log.Debug("Goal subscription closed")
	}()

	var once sync.Once
	return func() { once.Do(cancel) }, nil
}

func ownedGoalFilter(userID, id string) (bson.M, error) {
	objID, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrGoalNotFound, id)
	}
	return bson.M{"_id": objID, "user_id": userID}, nil
}

func updateDocument(u models.GoalUpdate) (set, unset bson.M) {
	set, unset = bson.M{}, bson.M{}
	if u.Title != nil {
		set["title"] = *u.Title
	}
	if u.TargetAmount != nil {
		set["target_amount"] = amount(*u.TargetAmount)
	}
	if u.CurrentAmount != nil {
		set["current_amount"] = amount(*u.CurrentAmount)
	}
	if u.Deadline != nil {
		if *u.Deadline == "" {
			unset["deadline"] = ""
		} else {
			set["deadline"] = *u.Deadline
		}
	}
	if u.Status != nil {
		set["status"] = *u.Status
	}
	if u.Archived != nil {
		set["archived"] = *u.Archived
	}
	return set, unset
}
