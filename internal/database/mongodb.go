// internal/database/mongodb.go
package database

import (
	"context"
	"fmt"
	"time"

	"civic-reporter/internal/config"
	"civic-reporter/internal/logger"
	"civic-reporter/internal/store"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(cfg *config.Config) (*MongoDB, error) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.MongoTimeout)*time.Second)
	defer cancel()

	clientOptions := options.Client().
		ApplyURI(cfg.MongoURI).
		SetMaxPoolSize(100).
		SetMinPoolSize(5).
		SetMaxConnIdleTime(30 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("connect to MongoDB: %w", err)
	}

	if err := client.Ping(ctx, readpref.Primary()); err != nil {
		return nil, fmt.Errorf("ping MongoDB: %w", err)
	}

	database := client.Database(cfg.DatabaseName)

	logger.Info("Connected to MongoDB", map[string]interface{}{"database": cfg.DatabaseName})

	return &MongoDB{
		Client:   client,
		Database: database,
	}, nil
}

func (m *MongoDB) Ping(ctx context.Context) error {
	return m.Client.Ping(ctx, readpref.Primary())
}

func (m *MongoDB) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := m.Client.Disconnect(ctx); err != nil {
		return fmt.Errorf("disconnect from MongoDB: %w", err)
	}

	logger.Info("Disconnected from MongoDB", nil)
	return nil
}

// IssueIndexes are the indexes required by the issue store. Key order matters, hence bson.D.
func IssueIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			// Proximity filters and merge candidate lookups
			Keys: bson.D{{Key: "location", Value: "2dsphere"}},
		},
		{
			Keys: bson.D{
				{Key: "mergedInto", Value: 1},
				{Key: "status", Value: 1},
				{Key: "category", Value: 1},
			},
		},
		{
			Keys: bson.D{{Key: "createdAt", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "reporters", Value: 1}},
		},
		{
			Keys: bson.D{{Key: "priorityRank", Value: -1}},
		},
		{
			Keys: bson.D{{Key: "assignedTo.official", Value: 1}},
		},
	}
}

func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	issueCollection := m.Database.Collection(store.IssuesCollection)
	if _, err := issueCollection.Indexes().CreateMany(ctx, IssueIndexes()); err != nil {
		return fmt.Errorf("create issue indexes: %w", err)
	}

	messageCollection := m.Database.Collection(store.MessagesCollection)
	messageIndexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "issueId", Value: 1},
				{Key: "createdAt", Value: -1},
			},
		},
	}
	if _, err := messageCollection.Indexes().CreateMany(ctx, messageIndexes); err != nil {
		return fmt.Errorf("create message indexes: %w", err)
	}

	userCollection := m.Database.Collection(store.UsersCollection)
	userIndexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	}
	if _, err := userCollection.Indexes().CreateMany(ctx, userIndexes); err != nil {
		return fmt.Errorf("create user indexes: %w", err)
	}

	logger.Info("Indexes created", map[string]interface{}{
		"collections": []string{store.IssuesCollection, store.MessagesCollection, store.UsersCollection},
	})
	return nil
}
