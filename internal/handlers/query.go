package handlers

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const dateOnly = "2006-01-02"

// ParseIssueQuery turns listing query parameters into an IssueQuery.
// Malformed paging falls back to defaults; malformed filters are rejected.
func ParseIssueQuery(values url.Values) (models.IssueQuery, error) {
	var q models.IssueQuery
	f := &q.Filter

	if v := values.Get("status"); v != "" {
		f.Status = models.Status(v)
		if !f.Status.IsValid() {
			return q, apperror.Validation("invalid status %q", v)
		}
	}
	if v := values.Get("category"); v != "" {
		f.Category = models.Category(v)
		if !f.Category.IsValid() {
			return q, apperror.Validation("invalid category %q", v)
		}
	}
	if v := values.Get("priority"); v != "" {
		f.Priority = models.Priority(v)
		if !f.Priority.IsValid() {
			return q, apperror.Validation("invalid priority %q", v)
		}
	}

	var err error
	if f.Official, err = optionalID(values, "official"); err != nil {
		return q, err
	}
	if f.ReportedBy, err = optionalID(values, "reportedBy"); err != nil {
		return q, err
	}
	f.Department = strings.TrimSpace(values.Get("department"))
	f.Search = strings.TrimSpace(values.Get("search"))

	if f.DateFrom, err = optionalDate(values, "dateFrom", false); err != nil {
		return q, err
	}
	if f.DateTo, err = optionalDate(values, "dateTo", true); err != nil {
		return q, err
	}

	if v := values.Get("location"); v != "" {
		near, err := parseNear(v)
		if err != nil {
			return q, err
		}
		f.Near = near
	}

	q.Page, _ = strconv.Atoi(values.Get("page"))
	q.Limit, _ = strconv.Atoi(values.Get("limit"))
	q.Sort = parseSort(values)

	return q.Normalize(), nil
}

// parseNear reads "lng,lat[,radius]". The radius defaults when missing or not a number.
func parseNear(raw string) (*models.GeoPoint, error) {
	parts := strings.Split(raw, ",")
	if len(parts) < 2 {
		return nil, apperror.Validation("location must be \"lng,lat[,radius]\"")
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return nil, apperror.Validation("invalid longitude %q", parts[0])
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return nil, apperror.Validation("invalid latitude %q", parts[1])
	}
	if err := models.NewPoint(lng, lat).Validate(); err != nil {
		return nil, apperror.Validation("invalid location: %v", err)
	}

	radius := float64(models.DefaultRadiusMeters)
	if len(parts) > 2 {
		if r, err := strconv.ParseFloat(strings.TrimSpace(parts[2]), 64); err == nil && r > 0 {
			radius = r
		}
	}
	return &models.GeoPoint{Longitude: lng, Latitude: lat, RadiusMeters: radius}, nil
}

// parseSort accepts sort=field, sort=-field, or sortBy with sortOrder.
func parseSort(values url.Values) models.SortSpec {
	if v := strings.TrimSpace(values.Get("sort")); v != "" {
		if strings.HasPrefix(v, "-") {
			return models.SortSpec{Field: strings.TrimPrefix(v, "-"), Descending: true}
		}
		return models.SortSpec{Field: v}
	}
	if v := strings.TrimSpace(values.Get("sortBy")); v != "" {
		return models.SortSpec{
			Field:      v,
			Descending: !strings.EqualFold(values.Get("sortOrder"), "asc"),
		}
	}
	return models.SortSpec{}
}

func optionalID(values url.Values, key string) (*primitive.ObjectID, error) {
	v := values.Get(key)
	if v == "" {
		return nil, nil
	}
	id, err := primitive.ObjectIDFromHex(v)
	if err != nil {
		return nil, apperror.Validation("invalid %s %q", key, v)
	}
	return &id, nil
}

// optionalDate accepts RFC3339 or a bare date. A bare date used as an upper
// bound covers the whole day.
func optionalDate(values url.Values, key string, endOfDay bool) (*time.Time, error) {
	v := values.Get(key)
	if v == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return &t, nil
	}
	t, err := time.Parse(dateOnly, v)
	if err != nil {
		return nil, apperror.Validation("invalid %s %q", key, v)
	}
	if endOfDay {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}

// pageParams reads page and limit for endpoints that paginate without filters.
func pageParams(values url.Values) (int, int) {
	page, _ := strconv.Atoi(values.Get("page"))
	limit, _ := strconv.Atoi(values.Get("limit"))
	return page, limit
}
