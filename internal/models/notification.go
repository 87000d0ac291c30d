package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Notification is a reporter-facing entry appended to an issue.
type Notification struct {
	Message   string           `bson:"message" json:"message"`
	Type      NotificationType `bson:"type" json:"type"`
	Timestamp time.Time        `bson:"timestamp" json:"timestamp"`
	Read      bool             `bson:"read" json:"read"`
}

type EventType string

// Realtime event types pushed to connected clients.
const (
	EventNewIssue           EventType = "newIssue"
	EventIssueAssigned      EventType = "issueAssigned"
	EventIssueStatusUpdated EventType = "issueStatusUpdated"
	EventIssueChatMessage   EventType = "issueChatMessage"
)

// RealtimeEvent is delivered best-effort and at most once.
type RealtimeEvent struct {
	Type      EventType           `json:"type"`
	IssueID   primitive.ObjectID  `json:"issueId"`
	MessageID *primitive.ObjectID `json:"messageId,omitempty"`
	UserID    primitive.ObjectID  `json:"userId"`
	Summary   string              `json:"summary"`
	Timestamp time.Time           `json:"timestamp"`
}
