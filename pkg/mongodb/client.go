// Package mongodb connects to the document store used by the mongo driver.
package mongodb

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"
)

const connectTimeout = 10 * time.Second

// Client wraps a mongo client bound to one database.
type Client struct {
	*mongo.Client
	DB     *mongo.Database
	logger *zap.Logger
}

// NewClient connects to uri, verifies connectivity and selects database.
func NewClient(ctx context.Context, uri, database string, logger *zap.Logger) (*Client, error) {
	ctx, cancel := context.WithTimeout(ctx, connectTimeout)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	logger.Info("MongoDB client connected", zap.String("database", database))
	return &Client{Client: client, DB: client.Database(database), logger: logger}, nil
}

// Close disconnects the client.
func (c *Client) Close(ctx context.Context) error {
	return c.Disconnect(ctx)
}
