package store

import (
	"context"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	IssuesCollection   = "issues"
	MessagesCollection = "messages"
	UsersCollection    = "users"
)

type MongoChatStore struct {
	collection *mongo.Collection
}

func NewMongoChatStore(db *mongo.Database) *MongoChatStore {
	return &MongoChatStore{collection: db.Collection(MessagesCollection)}
}

func (s *MongoChatStore) CreateMessage(ctx context.Context, message *models.ChatMessage) (*models.ChatMessage, error) {
	created := *message
	if created.ID.IsZero() {
		created.ID = primitive.NewObjectID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = time.Now()
	}

	if _, err := s.collection.InsertOne(ctx, created); err != nil {
		return nil, apperror.Persistence(err, "create chat message")
	}
	return &created, nil
}

func (s *MongoChatStore) ListMessages(ctx context.Context, issueID primitive.ObjectID, page, limit int) ([]*models.ChatMessage, int64, error) {
	filter := bson.M{"issueId": issueID}

	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, apperror.Persistence(err, "count chat messages")
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cursor, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, apperror.Persistence(err, "find chat messages")
	}
	defer cursor.Close(ctx)

	messages := []*models.ChatMessage{}
	if err := cursor.All(ctx, &messages); err != nil {
		return nil, 0, apperror.Persistence(err, "decode chat messages")
	}
	return messages, total, nil
}
