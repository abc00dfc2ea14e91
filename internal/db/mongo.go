package db

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// Collection names.
const (
	NegotiationsCollection  = "negotiations"
	CartsCollection         = "carts"
	NotificationsCollection = "notifications"
	AccountsCollection      = "accounts"
	ProductsCollection      = "products"
)

// ConnectDB initializes and returns a MongoDB client and database instance.
func ConnectDB(uri, dbName string, logger zerolog.Logger) (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	ctxPing, cancelPing := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelPing()
	if err := client.Ping(ctxPing, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	logger.Info().Str("db", dbName).Msg("connected to MongoDB")
	return client, client.Database(dbName), nil
}

// EnsureIndexes creates the indexes the listing and lookup queries rely on.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	indexes := map[string][]mongo.IndexModel{
		NegotiationsCollection: {
			{Keys: bson.D{{Key: "soldBy", Value: 1}, {Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "updatedAt", Value: -1}, {Key: "_id", Value: -1}}},
			{Keys: bson.D{{Key: "createdBy", Value: 1}, {Key: "variantId", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		CartsCollection: {
			{Keys: bson.D{{Key: "accountId", Value: 1}}},
		},
		NotificationsCollection: {
			{Keys: bson.D{{Key: "to", Value: 1}, {Key: "createdAt", Value: -1}}},
		},
		AccountsCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
	}
	for name, models := range indexes {
		if _, err := db.Collection(name).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("failed to create indexes on %s: %w", name, err)
		}
	}
	return nil
}

// DisconnectDB closes the MongoDB client connection.
func DisconnectDB(client *mongo.Client) error {
	if client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.Disconnect(ctx); err != nil {
		return fmt.Errorf("failed to disconnect MongoDB: %w", err)
	}
	return nil
}
