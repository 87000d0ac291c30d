package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	DefaultPage         = 1
	DefaultLimit        = 10
	MaxLimit            = 100
	DefaultRadiusMeters = 5000
	DefaultSortField    = "createdAt"
)

// IssueFilter is the predicate of an issue listing. Zero values mean "no constraint".
type IssueFilter struct {
	Status     Status
	Category   Category
	Priority   Priority
	Official   *primitive.ObjectID
	Department string
	ReportedBy *primitive.ObjectID
	// Reporter matches issues whose reporters set contains the user.
	Reporter *primitive.ObjectID
	DateFrom *time.Time
	DateTo   *time.Time
	Search   string
	Near     *GeoPoint
	// IncludeMerged lifts the canonical-only restriction.
	IncludeMerged bool
}

type SortSpec struct {
	Field      string
	Descending bool
}

type IssueQuery struct {
	Filter IssueFilter
	Page   int
	Limit  int
	Sort   SortSpec
}

// Normalize applies pagination and sort defaults.
func (q IssueQuery) Normalize() IssueQuery {
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if q.Limit > MaxLimit {
		q.Limit = MaxLimit
	}
	if q.Sort.Field == "" {
		q.Sort = SortSpec{Field: DefaultSortField, Descending: true}
	}
	return q
}

func (q IssueQuery) Skip() int64 {
	return int64((q.Page - 1) * q.Limit)
}

// SortableFields maps accepted sort keys to document fields.
var SortableFields = map[string]string{
	"createdAt":               "createdAt",
	"updatedAt":               "updatedAt",
	"votes":                   "votes",
	"priority":                "priorityRank",
	"status":                  "status",
	"category":                "category",
	"title":                   "title",
	"estimatedResolutionTime": "estimatedResolutionTime",
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

func NewPagination(page, limit int, total int64) Pagination {
	totalPages := 0
	if limit > 0 {
		totalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	return Pagination{Page: page, Limit: limit, Total: total, TotalPages: totalPages}
}

type IssuePage struct {
	Issues     []*Issue   `json:"issues"`
	Pagination Pagination `json:"pagination"`
}

type MessagePage struct {
	Messages   []*ChatMessage `json:"messages"`
	Pagination Pagination     `json:"pagination"`
}
