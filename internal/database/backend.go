package database

import (
	"context"
	"time"

	"civic-reporter/internal/config"
	"civic-reporter/internal/logger"
	"civic-reporter/internal/store"
)

// Backend is the set of stores selected by STORE_DRIVER.
type Backend struct {
	Issues   store.IssueStore
	Messages store.ChatStore
	Users    store.UserStore
	// Mongo is nil for the in-memory driver.
	Mongo *MongoDB
}

// Open connects the configured driver. The mongo driver also ensures indexes.
func Open(cfg *config.Config) (*Backend, error) {
	if cfg.StoreDriver == "memory" {
		logger.Warn("Using in-memory storage, data is lost on restart", nil)
		mem := store.NewMemoryStore()
		return &Backend{Issues: mem, Messages: mem, Users: mem}, nil
	}

	db, err := NewMongoDB(cfg)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(cfg.MongoTimeout)*time.Second)
	defer cancel()
	if err := db.CreateIndexes(ctx); err != nil {
		logger.WithError(err, "database").Warn("Failed to create some indexes")
	}

	return &Backend{
		Issues:   store.NewMongoIssueStore(db.Database),
		Messages: store.NewMongoChatStore(db.Database),
		Users:    store.NewMongoUserStore(db.Database),
		Mongo:    db,
	}, nil
}

func (b *Backend) Close() error {
	if b.Mongo == nil {
		return nil
	}
	return b.Mongo.Close()
}
