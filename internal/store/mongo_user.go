package store

import (
	"context"
	"strings"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type MongoUserStore struct {
	collection *mongo.Collection
}

func NewMongoUserStore(db *mongo.Database) *MongoUserStore {
	return &MongoUserStore{collection: db.Collection(UsersCollection)}
}

func (s *MongoUserStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	created := *user
	created.Email = strings.ToLower(strings.TrimSpace(created.Email))
	if created.ID.IsZero() {
		created.ID = primitive.NewObjectID()
	}

	if _, err := s.collection.InsertOne(ctx, created); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, ErrEmailTaken
		}
		return nil, apperror.Persistence(err, "create user")
	}
	return &created, nil
}

func (s *MongoUserStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.collection.FindOne(ctx, bson.M{"email": strings.ToLower(strings.TrimSpace(email))}).Decode(&user)
	if err != nil {
		return nil, translate(err, "user %s not found", email)
	}
	return &user, nil
}

func (s *MongoUserStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	var user models.User
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&user); err != nil {
		return nil, translate(err, "user %s not found", id.Hex())
	}
	return &user, nil
}

func (s *MongoUserStore) TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	_, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set": bson.M{"lastLoginAt": at, "updatedAt": at},
	})
	if err != nil {
		return apperror.Persistence(err, "update last login")
	}
	return nil
}

// NormalizeRoles assigns the citizen role to users whose role is missing or unknown.
func (s *MongoUserStore) NormalizeRoles(ctx context.Context, at time.Time) (int64, error) {
	known := make([]string, 0, len(models.AllRoles()))
	for _, role := range models.AllRoles() {
		known = append(known, role.String())
	}

	result, err := s.collection.UpdateMany(ctx,
		bson.M{"role": bson.M{"$nin": known}},
		bson.M{"$set": bson.M{"role": models.RoleCitizen, "updatedAt": at}},
	)
	if err != nil {
		return 0, apperror.Persistence(err, "normalize user roles")
	}
	return result.ModifiedCount, nil
}
