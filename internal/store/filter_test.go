package store

import (
	"testing"
	"time"

	"civic-reporter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestBuildIssueFilterCanonicalOnlyByDefault(t *testing.T) {
	filter := BuildIssueFilter(models.IssueFilter{})

	value, ok := filter["mergedInto"]
	require.True(t, ok)
	assert.Nil(t, value)

	withMerged := BuildIssueFilter(models.IssueFilter{IncludeMerged: true})
	_, ok = withMerged["mergedInto"]
	assert.False(t, ok)
}

func TestBuildIssueFilterEqualityAndRange(t *testing.T) {
	official := primitive.NewObjectID()
	reporter := primitive.NewObjectID()
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	filter := BuildIssueFilter(models.IssueFilter{
		Status:     models.StatusAssigned,
		Category:   models.CategoryWater,
		Priority:   models.PriorityHigh,
		Official:   &official,
		Department: "Water Board",
		ReportedBy: &reporter,
		DateFrom:   &from,
	})

	assert.Equal(t, models.StatusAssigned, filter["status"])
	assert.Equal(t, models.CategoryWater, filter["category"])
	assert.Equal(t, models.PriorityHigh, filter["priority"])
	assert.Equal(t, official, filter["assignedTo.official"])
	assert.Equal(t, "Water Board", filter["assignedTo.department"])
	assert.Equal(t, reporter, filter["reportedBy"])
	assert.Equal(t, bson.M{"$gte": from}, filter["createdAt"])
}

func TestBuildIssueFilterSearchEscapesRegex(t *testing.T) {
	filter := BuildIssueFilter(models.IssueFilter{Search: "pipe (burst)"})

	or, ok := filter["$or"].([]bson.M)
	require.True(t, ok)
	require.Len(t, or, 4)
	assert.Equal(t, bson.M{"$regex": `pipe \(burst\)`, "$options": "i"}, or[0]["title"])
	assert.Contains(t, or[2], "location.address")
	assert.Contains(t, or[3], "category")
}

func TestBuildIssueFilterProximity(t *testing.T) {
	filter := BuildIssueFilter(models.IssueFilter{
		Near: &models.GeoPoint{Longitude: 77.6, Latitude: 12.9, RadiusMeters: 5000},
	})

	location, ok := filter["location"].(bson.M)
	require.True(t, ok)
	within := location["$geoWithin"].(bson.M)
	sphere := within["$centerSphere"].([]interface{})
	assert.Equal(t, []float64{77.6, 12.9}, sphere[0])
	assert.InDelta(t, 5000/6378100.0, sphere[1], 1e-12)
}

func TestBuildIssueSort(t *testing.T) {
	assert.Equal(t,
		bson.D{{Key: "createdAt", Value: -1}, {Key: "_id", Value: -1}},
		BuildIssueSort(models.SortSpec{Field: "bogus", Descending: true}),
	)
	assert.Equal(t,
		bson.D{{Key: "votes", Value: 1}, {Key: "_id", Value: 1}},
		BuildIssueSort(models.SortSpec{Field: "votes"}),
	)
	assert.Equal(t,
		bson.D{{Key: "priorityRank", Value: -1}, {Key: "_id", Value: -1}},
		BuildIssueSort(models.SortSpec{Field: "priority", Descending: true}),
	)
}
