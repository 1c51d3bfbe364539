package mongo

import (
	"context"
	"fmt"
	"time"

	"github.com/appetiteclub/apt"
	"github.com/appetiteclub/reconciler/internal/config"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	defaultURL      = "mongodb://localhost:27017"
	defaultDatabase = "appetite_orders"
	connectTimeout  = 10 * time.Second
)

// Client owns the driver connection behind a DocumentStore.
type Client struct {
	client *mongo.Client
	db     *mongo.Database
	logger apt.Logger
}

// Connect dials the server, verifies it answers and prepares the indexes the
// order queries rely on.
func Connect(ctx context.Context, cfg config.StoreConfig, logger apt.Logger) (*Client, error) {
	if logger == nil {
		logger = apt.NewNoopLogger()
	}
	url := cfg.MongoURL
	if url == "" {
		url = defaultURL
	}
	name := cfg.MongoName
	if name == "" {
		name = defaultDatabase
	}

	opts := options.Client().ApplyURI(url).
		SetConnectTimeout(connectTimeout).
		SetServerSelectionTimeout(connectTimeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("cannot connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("cannot ping MongoDB: %w", err)
	}

	c := &Client{client: client, db: client.Database(name), logger: logger}
	if err := c.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	logger.Info("connected to MongoDB", "database", name)
	return c, nil
}

// ensureIndexes covers the open-order sweep and the per-user listing.
func (c *Client) ensureIndexes(ctx context.Context) error {
	models := []mongo.IndexModel{
		{Keys: bson.D{{Key: "done", Value: 1}}, Options: options.Index().SetName("orders_done")},
		{Keys: bson.D{{Key: "user", Value: 1}}, Options: options.Index().SetName("orders_user")},
	}
	if _, err := c.db.Collection(collectionName("orders")).Indexes().CreateMany(ctx, models); err != nil {
		return fmt.Errorf("cannot create order indexes: %w", err)
	}
	return nil
}

func (c *Client) Database() *mongo.Database {
	return c.db
}

func (c *Client) Close(ctx context.Context) error {
	if err := c.client.Disconnect(ctx); err != nil {
		return fmt.Errorf("cannot disconnect from MongoDB: %w", err)
	}
	c.logger.Info("disconnected from MongoDB")
	return nil
}
