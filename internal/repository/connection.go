package repository

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Pool sizing for a single storefront binary; carts are small documents and
// every write is a single-document update, so a modest pool is plenty.
const (
	mongoConnectTimeout  = 10 * time.Second
	mongoSelectTimeout   = 5 * time.Second
	mongoMaxPoolSize     = 50
	mongoMinPoolSize     = 5
	mongoMaxConnIdleTime = 5 * time.Minute
)

func ConnectMongoDB(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetAppName("storefront").
		SetConnectTimeout(mongoConnectTimeout).
		SetServerSelectionTimeout(mongoSelectTimeout).
		SetMaxPoolSize(mongoMaxPoolSize).
		SetMinPoolSize(mongoMinPoolSize).
		SetMaxConnIdleTime(mongoMaxConnIdleTime).
		SetRetryWrites(true)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, mongoSelectTimeout)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return client.Database(database), nil
}
