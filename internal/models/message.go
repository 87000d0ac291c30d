package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ChatMessage belongs to a canonical issue and is never edited.
type ChatMessage struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	IssueID   primitive.ObjectID `bson:"issueId" json:"issueId"`
	Author    primitive.ObjectID `bson:"author" json:"author"`
	Body      string             `bson:"body" json:"body" validate:"required,max=2000"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
}
