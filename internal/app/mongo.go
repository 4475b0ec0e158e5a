package app

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"

	"ridedispatch/internal/config"
	mongorepo "ridedispatch/internal/repository/mongo"
)

// NewMongoDatabase connects to the document store and makes sure the booking
// indexes exist.
func NewMongoDatabase(ctx context.Context, cfg config.MongoConfig) (*mongo.Client, *mongo.Database, error) {
	connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().
		ApplyURI(cfg.URI).
		SetMaxPoolSize(50).
		SetRetryWrites(true))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}

	if err := client.Ping(connectCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	db := client.Database(cfg.Database)
	err = mongorepo.NewBookingRepository(db).EnsureIndexes(connectCtx)
	if err == nil {
		err = mongorepo.NewChatRepository(db).EnsureIndexes(connectCtx)
	}
	if err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ensure mongo indexes: %w", err)
	}

	return client, db, nil
}
