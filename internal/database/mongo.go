package database

import (
	"context"
	"fmt"
	"time"

	"github.com/Dias221467/savings-goals/internal/config"
	"github.com/Dias221467/savings-goals/pkg/logger"
	backoff "github.com/cenkalti/backoff/v4"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const pingTimeout = 5 * time.Second

// ConnectDB connects to MongoDB and pings the primary, retrying with exponential
// backoff up to cfg.ConnectAttempts times.
func ConnectDB(ctx context.Context, cfg *config.Config) (*mongo.Database, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI))
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = 500 * time.Millisecond
	exp.MaxInterval = 10 * time.Second

	var policy backoff.BackOff = exp
	if cfg.ConnectAttempts > 0 {
		policy = backoff.WithMaxRetries(exp, cfg.ConnectAttempts-1)
	}

	attempt := 0
	ping := func() error {
		attempt++
		pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
		defer cancel()
		if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
			logger.Log.WithError(err).WithField("attempt", attempt).Warn("MongoDB ping failed")
			return err
		}
		return nil
	}

	if err := backoff.Retry(ping, backoff.WithContext(policy, ctx)); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to reach MongoDB: %w", err)
	}

	logger.Log.WithField("database", cfg.MongoDB).Info("Connected to MongoDB")
	return client.Database(cfg.MongoDB), nil
}

// Disconnect closes the client behind db.
func Disconnect(ctx context.Context, db *mongo.Database) {
	if err := db.Client().Disconnect(ctx); err != nil {
		logger.Log.WithError(err).Warn("MongoDB disconnect failed")
	}
}
