package store

import (
	"regexp"

	"civic-reporter/internal/models"
	"civic-reporter/internal/utils"

	"go.mongodb.org/mongo-driver/bson"
)

// BuildIssueFilter translates an IssueFilter into a Mongo query document.
// Proximity uses $geoWithin/$centerSphere so the same document also works with CountDocuments.
func BuildIssueFilter(f models.IssueFilter) bson.M {
	query := bson.M{}

	if !f.IncludeMerged {
		query["mergedInto"] = nil
	}
	if f.Status != "" {
		query["status"] = f.Status
	}
	if f.Category != "" {
		query["category"] = f.Category
	}
	if f.Priority != "" {
		query["priority"] = f.Priority
	}
	if f.Official != nil {
		query["assignedTo.official"] = *f.Official
	}
	if f.Department != "" {
		query["assignedTo.department"] = f.Department
	}
	if f.ReportedBy != nil {
		query["reportedBy"] = *f.ReportedBy
	}
	if f.Reporter != nil {
		query["reporters"] = *f.Reporter
	}

	if f.DateFrom != nil || f.DateTo != nil {
		dateQuery := bson.M{}
		if f.DateFrom != nil {
			dateQuery["$gte"] = *f.DateFrom
		}
		if f.DateTo != nil {
			dateQuery["$lte"] = *f.DateTo
		}
		query["createdAt"] = dateQuery
	}

	if f.Search != "" {
		pattern := containsPattern(f.Search)
		query["$or"] = []bson.M{
			{"title": pattern},
			{"description": pattern},
			{"location.address": pattern},
			{"category": pattern},
		}
	}

	if f.Near != nil {
		query["location"] = bson.M{
			"$geoWithin": bson.M{
				"$centerSphere": []interface{}{
					[]float64{f.Near.Longitude, f.Near.Latitude},
					utils.RadiansFromMeters(f.Near.RadiusMeters),
				},
			},
		}
	}

	return query
}

func containsPattern(search string) bson.M {
	return bson.M{"$regex": regexp.QuoteMeta(search), "$options": "i"}
}

// BuildIssueSort orders by the requested field and breaks ties by _id.
func BuildIssueSort(sort models.SortSpec) bson.D {
	field, ok := models.SortableFields[sort.Field]
	if !ok {
		field = models.DefaultSortField
	}
	direction := 1
	if sort.Descending {
		direction = -1
	}
	return bson.D{
		{Key: field, Value: direction},
		{Key: "_id", Value: direction},
	}
}
