package mongo

import (
	"context"
	"fmt"

	"github.com/Rrens/flight-support/internal/config"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Client wraps the MongoDB client and the application database
type Client struct {
	client *mongo.Client
	db     *mongo.Database
}

// NewClient connects to MongoDB and verifies the connection
func NewClient(ctx context.Context, cfg config.MongoConfig) (*Client, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	if cfg.Timeout > 0 {
		clientOpts.SetConnectTimeout(cfg.Timeout)
		clientOpts.SetServerSelectionTimeout(cfg.Timeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to create mongo client: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	return &Client{client: client, db: client.Database(cfg.Database)}, nil
}

// Database returns the application database
func (c *Client) Database() *mongo.Database {
	return c.db
}

// Ping verifies connectivity to the primary
func (c *Client) Ping(ctx context.Context) error {
	return c.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client
func (c *Client) Close(ctx context.Context) error {
	return c.client.Disconnect(ctx)
}
