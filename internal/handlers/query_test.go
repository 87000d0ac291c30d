package handlers

import (
	"encoding/json"
	"net/url"
	"testing"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseIssueQueryPaging(t *testing.T) {
	tests := []struct {
		raw   string
		page  int
		limit int
	}{
		{raw: "", page: 1, limit: 10},
		{raw: "page=abc&limit=xyz", page: 1, limit: 10},
		{raw: "page=-3&limit=0", page: 1, limit: 10},
		{raw: "page=3&limit=500", page: 3, limit: 100},
		{raw: "page=2&limit=25", page: 2, limit: 25},
	}
	for _, tt := range tests {
		values, err := url.ParseQuery(tt.raw)
		require.NoError(t, err)

		q, err := ParseIssueQuery(values)
		require.NoError(t, err)
		assert.Equal(t, tt.page, q.Page, tt.raw)
		assert.Equal(t, tt.limit, q.Limit, tt.raw)
	}
}

func TestParseIssueQueryFilters(t *testing.T) {
	values := url.Values{
		"status":     {"in-progress"},
		"category":   {"Water Supply"},
		"priority":   {"high"},
		"department": {" Water Board "},
		"search":     {"leak"},
		"dateFrom":   {"2024-01-01"},
		"dateTo":     {"2024-02-01T10:00:00Z"},
		"reportedBy": {"65f000000000000000000001"},
		"sort":       {"-votes"},
	}

	q, err := ParseIssueQuery(values)
	require.NoError(t, err)
	assert.Equal(t, models.StatusInProgress, q.Filter.Status)
	assert.Equal(t, models.CategoryWater, q.Filter.Category)
	assert.Equal(t, models.PriorityHigh, q.Filter.Priority)
	assert.Equal(t, "Water Board", q.Filter.Department)
	assert.Equal(t, "leak", q.Filter.Search)
	require.NotNil(t, q.Filter.DateFrom)
	require.NotNil(t, q.Filter.DateTo)
	assert.Equal(t, 10, q.Filter.DateTo.Hour())
	require.NotNil(t, q.Filter.ReportedBy)
	assert.Equal(t, "65f000000000000000000001", q.Filter.ReportedBy.Hex())
	assert.Equal(t, models.SortSpec{Field: "votes", Descending: true}, q.Sort)
}

func TestParseIssueQueryDateOnlyBounds(t *testing.T) {
	q, err := ParseIssueQuery(url.Values{"dateFrom": {"2024-03-01"}, "dateTo": {"2024-03-01"}})
	require.NoError(t, err)
	require.NotNil(t, q.Filter.DateFrom)
	require.NotNil(t, q.Filter.DateTo)

	assert.Equal(t, time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC), *q.Filter.DateFrom)
	morning := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	assert.True(t, q.Filter.DateTo.After(morning))
	assert.True(t, q.Filter.DateTo.Before(time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)))
}

func TestParseIssueQuerySort(t *testing.T) {
	q, err := ParseIssueQuery(url.Values{"sortBy": {"title"}, "sortOrder": {"asc"}})
	require.NoError(t, err)
	assert.Equal(t, models.SortSpec{Field: "title"}, q.Sort)

	q, err = ParseIssueQuery(url.Values{"sort": {"createdAt"}})
	require.NoError(t, err)
	assert.Equal(t, models.SortSpec{Field: "createdAt"}, q.Sort)

	q, err = ParseIssueQuery(url.Values{})
	require.NoError(t, err)
	assert.Equal(t, models.SortSpec{Field: models.DefaultSortField, Descending: true}, q.Sort)
}

func TestParseIssueQueryLocation(t *testing.T) {
	tests := []struct {
		raw    string
		radius float64
	}{
		{raw: "77.59,12.97", radius: models.DefaultRadiusMeters},
		{raw: "77.59,12.97,abc", radius: models.DefaultRadiusMeters},
		{raw: "77.59, 12.97, 250", radius: 250},
	}
	for _, tt := range tests {
		q, err := ParseIssueQuery(url.Values{"location": {tt.raw}})
		require.NoError(t, err, tt.raw)
		require.NotNil(t, q.Filter.Near)
		assert.Equal(t, 77.59, q.Filter.Near.Longitude)
		assert.Equal(t, 12.97, q.Filter.Near.Latitude)
		assert.Equal(t, tt.radius, q.Filter.Near.RadiusMeters, tt.raw)
	}
}

func TestParseIssueQueryRejectsBadFilters(t *testing.T) {
	for _, values := range []url.Values{
		{"status": {"done"}},
		{"category": {"Dragons"}},
		{"priority": {"critical"}},
		{"official": {"nope"}},
		{"dateFrom": {"yesterday"}},
		{"location": {"77.59"}},
		{"location": {"east,north"}},
		{"location": {"200,10"}},
	} {
		_, err := ParseIssueQuery(values)
		assert.True(t, apperror.IsKind(err, apperror.KindValidation), values.Encode())
	}
}

func TestParseLocation(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		fallback LocationFields
		lng, lat float64
		address  string
	}{
		{
			name: "object",
			raw:  `{"type":"Point","coordinates":[77.5,12.9],"address":"MG Road","city":"Bengaluru"}`,
			lng:  77.5, lat: 12.9, address: "MG Road",
		},
		{
			name: "encoded object",
			raw:  `"{\"coordinates\":[77.5,12.9],\"address\":\"MG Road\"}"`,
			lng:  77.5, lat: 12.9, address: "MG Road",
		},
		{
			name: "object with lon lat",
			raw:  `{"lon":77.5,"lat":12.9}`,
			lng:  77.5, lat: 12.9,
		},
		{
			name:     "address with coordinates",
			raw:      `"12 Market Street"`,
			fallback: LocationFields{Coordinates: []float64{77.5, 12.9}},
			lng:      77.5, lat: 12.9, address: "12 Market Street",
		},
		{
			name:     "address with longitude latitude",
			raw:      `"12 Market Street"`,
			fallback: LocationFields{Longitude: ptr(77.5), Latitude: ptr(12.9)},
			lng:      77.5, lat: 12.9, address: "12 Market Street",
		},
		{
			name:     "missing location",
			raw:      ``,
			fallback: LocationFields{Lng: ptr(77.5), Lat: ptr(12.9), Address: "Corner"},
			lng:      77.5, lat: 12.9, address: "Corner",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			loc, err := ParseLocation(json.RawMessage(tt.raw), tt.fallback)
			require.NoError(t, err)
			assert.Equal(t, "Point", loc.Type)
			assert.Equal(t, []float64{tt.lng, tt.lat}, loc.Coordinates)
			assert.Equal(t, tt.address, loc.Address)
		})
	}
}

func TestParseLocationErrors(t *testing.T) {
	for _, raw := range []string{
		`"just an address"`,
		`{"coordinates":[1]}`,
		`{"coordinates":[10,95]}`,
		`{"coordinates":"x"}`,
		`null`,
	} {
		_, err := ParseLocation(json.RawMessage(raw), LocationFields{})
		assert.True(t, apperror.IsKind(err, apperror.KindValidation), raw)
	}
}

func ptr(v float64) *float64 { return &v }
