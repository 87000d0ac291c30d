// internal/models/issue.go
package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Issue struct {
	ID primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`

	Title       string   `bson:"title" json:"title"`
	Description string   `bson:"description" json:"description"`
	Category    Category `bson:"category" json:"category"`

	// Priority
	Priority Priority `bson:"priority" json:"priority"`
	// PriorityRank mirrors Priority.Rank() so stored documents sort by severity.
	PriorityRank    int      `bson:"priorityRank" json:"-"`
	PriorityAuto    bool     `bson:"priorityAuto" json:"priorityAuto"`
	PriorityReasons []string `bson:"priorityReasons" json:"priorityReasons"`
	// PriorityFloor is the last level an official pinned; automatic derivation never drops below it.
	PriorityFloor    Priority `bson:"priorityFloor,omitempty" json:"priorityFloor,omitempty"`
	ReportedPriority Priority `bson:"reportedPriority,omitempty" json:"reportedPriority,omitempty"`

	Location  Location `bson:"location" json:"location"`
	Images    []string `bson:"images" json:"images"`
	VoiceNote string   `bson:"voiceNote,omitempty" json:"voiceNote,omitempty"`

	ReportedBy primitive.ObjectID   `bson:"reportedBy" json:"reportedBy"`
	Reporters  []primitive.ObjectID `bson:"reporters" json:"reporters"`

	// Clustering
	MergedInto *primitive.ObjectID  `bson:"mergedInto,omitempty" json:"mergedInto,omitempty"`
	Duplicates []primitive.ObjectID `bson:"duplicates" json:"duplicates"`

	Votes  int                  `bson:"votes" json:"votes"`
	Voters []primitive.ObjectID `bson:"voters" json:"voters"`

	// Workflow
	Status                  Status             `bson:"status" json:"status"`
	AssignedTo              *Assignment        `bson:"assignedTo,omitempty" json:"assignedTo,omitempty"`
	StatusHistory           []StatusEntry      `bson:"statusHistory" json:"statusHistory"`
	Notifications           []Notification     `bson:"notifications" json:"notifications"`
	EstimatedResolutionTime int                `bson:"estimatedResolutionTime" json:"estimatedResolutionTime"`
	ActualResolutionTime    *int               `bson:"actualResolutionTime,omitempty" json:"actualResolutionTime,omitempty"`
	ResolutionDetails       *ResolutionDetails `bson:"resolutionDetails,omitempty" json:"resolutionDetails,omitempty"`

	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

type Assignment struct {
	Department string              `bson:"department" json:"department"`
	Official   *primitive.ObjectID `bson:"official,omitempty" json:"official,omitempty"`
}

type StatusEntry struct {
	Status    Status             `bson:"status" json:"status"`
	UpdatedBy primitive.ObjectID `bson:"updatedBy" json:"updatedBy"`
	Comment   string             `bson:"comment" json:"comment"`
	Timestamp time.Time          `bson:"timestamp" json:"timestamp"`
}

type ResolutionDetails struct {
	ResolvedBy            primitive.ObjectID `bson:"resolvedBy" json:"resolvedBy"`
	ResolutionDate        time.Time          `bson:"resolutionDate" json:"resolutionDate"`
	ResolutionDescription string             `bson:"resolutionDescription" json:"resolutionDescription"`
	ResolutionImages      []string           `bson:"resolutionImages" json:"resolutionImages"`
}

// StatusChange is one workflow step. The store applies the field updates and
// appends History and Notification in a single write, so the log entries are
// committed only together with the state they describe.
type StatusChange struct {
	Status               Status
	AssignedTo           *Assignment
	ActualResolutionTime *int
	ResolutionDetails    *ResolutionDetails
	History              StatusEntry
	Notification         Notification
	At                   time.Time
}

func (i *Issue) IsCanonical() bool {
	return i.MergedInto == nil
}

// CanonicalID is the id that accumulates votes, chat and status for this report.
func (i *Issue) CanonicalID() primitive.ObjectID {
	if i.MergedInto != nil {
		return *i.MergedInto
	}
	return i.ID
}

func (i *Issue) IsResolved() bool {
	return i.Status == StatusResolved
}

func (i *Issue) HasVoter(userID primitive.ObjectID) bool {
	return containsID(i.Voters, userID)
}

func (i *Issue) HasReporter(userID primitive.ObjectID) bool {
	return containsID(i.Reporters, userID)
}

// EngagementScore counts votes plus additional reporters.
func (i *Issue) EngagementScore() int {
	extra := len(i.Reporters) - 1
	if extra < 0 {
		extra = 0
	}
	return i.Votes + extra
}

func (i *Issue) DaysOpen(now time.Time) int {
	end := now
	if i.ResolutionDetails != nil && i.IsResolved() {
		end = i.ResolutionDetails.ResolutionDate
	}
	return int(end.Sub(i.CreatedAt).Hours() / 24)
}

func (i *Issue) UnreadNotifications() int {
	n := 0
	for _, notification := range i.Notifications {
		if !notification.Read {
			n++
		}
	}
	return n
}

// Apply mutates the issue in memory the same way the store applies a StatusChange.
func (i *Issue) Apply(change StatusChange) {
	i.Status = change.Status
	if change.AssignedTo != nil {
		assigned := *change.AssignedTo
		i.AssignedTo = &assigned
	}
	if change.ActualResolutionTime != nil {
		hours := *change.ActualResolutionTime
		i.ActualResolutionTime = &hours
	}
	if change.ResolutionDetails != nil {
		details := *change.ResolutionDetails
		details.ResolutionImages = append([]string{}, change.ResolutionDetails.ResolutionImages...)
		i.ResolutionDetails = &details
	}
	i.StatusHistory = append(i.StatusHistory, change.History)
	i.Notifications = append(i.Notifications, change.Notification)
	i.UpdatedAt = change.At
}

// Clone returns a deep copy.
func (i *Issue) Clone() *Issue {
	if i == nil {
		return nil
	}
	c := *i
	c.PriorityReasons = append([]string{}, i.PriorityReasons...)
	c.Location.Coordinates = append([]float64(nil), i.Location.Coordinates...)
	c.Images = append([]string{}, i.Images...)
	c.Reporters = append([]primitive.ObjectID{}, i.Reporters...)
	c.Duplicates = append([]primitive.ObjectID{}, i.Duplicates...)
	c.Voters = append([]primitive.ObjectID{}, i.Voters...)
	c.StatusHistory = append([]StatusEntry{}, i.StatusHistory...)
	c.Notifications = append([]Notification{}, i.Notifications...)
	if i.MergedInto != nil {
		merged := *i.MergedInto
		c.MergedInto = &merged
	}
	if i.AssignedTo != nil {
		assigned := *i.AssignedTo
		if i.AssignedTo.Official != nil {
			official := *i.AssignedTo.Official
			assigned.Official = &official
		}
		c.AssignedTo = &assigned
	}
	if i.ActualResolutionTime != nil {
		hours := *i.ActualResolutionTime
		c.ActualResolutionTime = &hours
	}
	if i.ResolutionDetails != nil {
		details := *i.ResolutionDetails
		details.ResolutionImages = append([]string{}, i.ResolutionDetails.ResolutionImages...)
		c.ResolutionDetails = &details
	}
	return &c
}

func containsID(ids []primitive.ObjectID, id primitive.ObjectID) bool {
	for _, candidate := range ids {
		if candidate == id {
			return true
		}
	}
	return false
}

// IssueStats is the aggregate view served to officials.
type IssueStats struct {
	Total                   int64            `json:"total"`
	Canonical               int64            `json:"canonical"`
	Merged                  int64            `json:"merged"`
	ByStatus                map[string]int64 `json:"byStatus"`
	ByCategory              map[string]int64 `json:"byCategory"`
	ByPriority              map[string]int64 `json:"byPriority"`
	TotalVotes              int64            `json:"totalVotes"`
	AverageResolutionHours  float64          `json:"averageResolutionHours"`
	ResolvedWithMeasurement int64            `json:"resolvedWithMeasurement"`
}
