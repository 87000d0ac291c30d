// Package store persists issues, chat messages and users.
package store

import (
	"context"
	"errors"
	"time"

	"civic-reporter/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ErrEmailTaken is returned when a user registers with an email already in use.
var ErrEmailTaken = errors.New("email already registered")

// PriorityUpdate carries the priority fields written together. Nil pointers leave the field unchanged.
type PriorityUpdate struct {
	Priority models.Priority
	Reasons  []string
	Auto     *bool
	Floor    *models.Priority
}

// IssueStore is the persistent collection of issues. Set-membership and counter
// updates are applied atomically per field so concurrent merges and votes on the
// same canonical issue never lose updates.
type IssueStore interface {
	Find(ctx context.Context, query models.IssueQuery) ([]*models.Issue, int64, error)
	FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)
	Create(ctx context.Context, issue *models.Issue) (*models.Issue, error)
	// Save replaces the whole document. Last write wins.
	Save(ctx context.Context, issue *models.Issue) (*models.Issue, error)
	Delete(ctx context.Context, id primitive.ObjectID) error

	AddReporterAndDuplicate(ctx context.Context, canonicalID, reporter, duplicateID primitive.ObjectID) (*models.Issue, error)
	// ToggleVote adds the user's vote, or removes it when already present. voted reports the new state.
	ToggleVote(ctx context.Context, id, userID primitive.ObjectID) (issue *models.Issue, voted bool, err error)
	UpdatePriority(ctx context.Context, id primitive.ObjectID, update PriorityUpdate) (*models.Issue, error)
	ApplyStatusChange(ctx context.Context, id primitive.ObjectID, change models.StatusChange) (*models.Issue, error)
	MarkNotificationsRead(ctx context.Context, id primitive.ObjectID) (*models.Issue, error)

	// FindMergeCandidates returns open canonical issues of the category within radius, nearest first.
	FindMergeCandidates(ctx context.Context, category models.Category, point models.Location, radiusMeters float64, limit int) ([]*models.Issue, error)
	// FindAging returns open canonical issues with automatic priority created before the cutoff.
	FindAging(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Issue, error)
	Stats(ctx context.Context) (*models.IssueStats, error)
}

type ChatStore interface {
	CreateMessage(ctx context.Context, message *models.ChatMessage) (*models.ChatMessage, error)
	// ListMessages returns one page of an issue's messages, newest first.
	ListMessages(ctx context.Context, issueID primitive.ObjectID, page, limit int) ([]*models.ChatMessage, int64, error)
}

type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) (*models.User, error)
	FindUserByEmail(ctx context.Context, email string) (*models.User, error)
	FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error
}

// RoleMigrator repairs user documents written before roles were enforced.
type RoleMigrator interface {
	NormalizeRoles(ctx context.Context, at time.Time) (int64, error)
}

var (
	_ RoleMigrator = (*MongoUserStore)(nil)
	_ RoleMigrator = (*MemoryStore)(nil)
	_ IssueStore = (*MongoIssueStore)(nil)
	_ ChatStore  = (*MongoChatStore)(nil)
	_ UserStore  = (*MongoUserStore)(nil)
	_ IssueStore = (*MemoryStore)(nil)
	_ ChatStore  = (*MemoryStore)(nil)
	_ UserStore  = (*MemoryStore)(nil)
)
