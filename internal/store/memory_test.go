package store

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func newIssue(category models.Category, lng, lat float64) *models.Issue {
	reporter := primitive.NewObjectID()
	return &models.Issue{
		Title:        "Report",
		Description:  "Something is broken",
		Category:     category,
		Priority:     models.PriorityMedium,
		PriorityAuto: true,
		Location:     models.NewPoint(lng, lat),
		ReportedBy:   reporter,
		Reporters:    []primitive.ObjectID{reporter},
		Status:       models.StatusPending,
		StatusHistory: []models.StatusEntry{
			{Status: models.StatusPending, UpdatedBy: reporter, Comment: "Issue reported"},
		},
	}
}

func TestCreateAndFindByID(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.Create(ctx, newIssue(models.CategoryWater, 77.6, 12.9))
	require.NoError(t, err)
	assert.False(t, created.ID.IsZero())
	assert.False(t, created.CreatedAt.IsZero())

	found, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.Title, found.Title)

	_, err = s.FindByID(ctx, primitive.NewObjectID())
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestSaveIsLastWriteWins(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created, err := s.Create(ctx, newIssue(models.CategoryWater, 77.6, 12.9))
	require.NoError(t, err)

	first := created.Clone()
	first.Title = "first"
	second := created.Clone()
	second.Title = "second"

	_, err = s.Save(ctx, first)
	require.NoError(t, err)
	_, err = s.Save(ctx, second)
	require.NoError(t, err)

	found, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "second", found.Title)

	missing := newIssue(models.CategoryWater, 0, 0)
	missing.ID = primitive.NewObjectID()
	_, err = s.Save(ctx, missing)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestToggleVoteRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created, err := s.Create(ctx, newIssue(models.CategoryRoads, 77.6, 12.9))
	require.NoError(t, err)
	user := primitive.NewObjectID()

	voted, isVoted, err := s.ToggleVote(ctx, created.ID, user)
	require.NoError(t, err)
	assert.True(t, isVoted)
	assert.Equal(t, 1, voted.Votes)
	assert.Equal(t, len(voted.Voters), voted.Votes)

	unvoted, isVoted, err := s.ToggleVote(ctx, created.ID, user)
	require.NoError(t, err)
	assert.False(t, isVoted)
	assert.Equal(t, created.Votes, unvoted.Votes)
	assert.Empty(t, unvoted.Voters)

	_, _, err = s.ToggleVote(ctx, primitive.NewObjectID(), user)
	assert.True(t, apperror.IsKind(err, apperror.KindNotFound))
}

func TestConcurrentVotesKeepCountConsistent(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created, err := s.Create(ctx, newIssue(models.CategoryRoads, 77.6, 12.9))
	require.NoError(t, err)

	users := make([]primitive.ObjectID, 20)
	for i := range users {
		users[i] = primitive.NewObjectID()
	}

	var wg sync.WaitGroup
	for _, u := range users {
		for k := 0; k < 3; k++ {
			wg.Add(1)
			go func(u primitive.ObjectID) {
				defer wg.Done()
				_, _, _ = s.ToggleVote(ctx, created.ID, u)
			}(u)
		}
	}
	wg.Wait()

	found, err := s.FindByID(ctx, created.ID)
	require.NoError(t, err)
	// Each user toggled an odd number of times.
	assert.Equal(t, len(users), found.Votes)
	assert.Equal(t, len(found.Voters), found.Votes)
}

func TestAddReporterAndDuplicateIsUnion(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created, err := s.Create(ctx, newIssue(models.CategoryRoads, 77.6, 12.9))
	require.NoError(t, err)

	newcomer := primitive.NewObjectID()
	dup1, dup2 := primitive.NewObjectID(), primitive.NewObjectID()

	_, err = s.AddReporterAndDuplicate(ctx, created.ID, newcomer, dup1)
	require.NoError(t, err)
	updated, err := s.AddReporterAndDuplicate(ctx, created.ID, newcomer, dup2)
	require.NoError(t, err)
	updated, err = s.AddReporterAndDuplicate(ctx, created.ID, created.ReportedBy, dup2)
	require.NoError(t, err)

	assert.ElementsMatch(t, []primitive.ObjectID{created.ReportedBy, newcomer}, updated.Reporters)
	assert.ElementsMatch(t, []primitive.ObjectID{dup1, dup2}, updated.Duplicates)
	assert.Equal(t, 0, updated.Votes)
}

func TestFindExcludesDuplicates(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	canonical, err := s.Create(ctx, newIssue(models.CategoryRoads, 77.6, 12.9))
	require.NoError(t, err)

	dup := newIssue(models.CategoryRoads, 77.6, 12.9)
	dup.MergedInto = &canonical.ID
	duplicate, err := s.Create(ctx, dup)
	require.NoError(t, err)

	issues, total, err := s.Find(ctx, models.IssueQuery{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, issues, 1)
	assert.Equal(t, canonical.ID, issues[0].ID)

	all, total, err := s.Find(ctx, models.IssueQuery{Filter: models.IssueFilter{IncludeMerged: true}})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	ids := []primitive.ObjectID{all[0].ID, all[1].ID}
	assert.Contains(t, ids, duplicate.ID)
}

func TestFindPagination(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	base := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 25; i++ {
		issue := newIssue(models.CategoryParks, 77.6, 12.9)
		issue.CreatedAt = base.Add(time.Duration(i) * time.Hour)
		issue.Title = fmt.Sprintf("issue %02d", i)
		_, err := s.Create(ctx, issue)
		require.NoError(t, err)
	}

	issues, total, err := s.Find(ctx, models.IssueQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)
	assert.Len(t, issues, 10)
	assert.Equal(t, 3, models.NewPagination(2, 10, total).TotalPages)
	// Newest first by default: page 2 starts at the 11th newest.
	assert.Equal(t, "issue 14", issues[0].Title)

	last, _, err := s.Find(ctx, models.IssueQuery{Page: 3, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, last, 5)

	beyond, _, err := s.Find(ctx, models.IssueQuery{Page: 9, Limit: 10})
	require.NoError(t, err)
	assert.Empty(t, beyond)
}

func TestFindSortsByPrioritySeverity(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	for _, p := range []models.Priority{models.PriorityMedium, models.PriorityUrgent, models.PriorityLow, models.PriorityHigh} {
		issue := newIssue(models.CategoryOther, 0, 0)
		issue.Priority = p
		_, err := s.Create(ctx, issue)
		require.NoError(t, err)
	}

	priorities := func(sort models.SortSpec) []models.Priority {
		issues, _, err := s.Find(ctx, models.IssueQuery{Sort: sort})
		require.NoError(t, err)
		out := make([]models.Priority, 0, len(issues))
		for _, issue := range issues {
			out = append(out, issue.Priority)
		}
		return out
	}

	assert.Equal(t,
		[]models.Priority{models.PriorityUrgent, models.PriorityHigh, models.PriorityMedium, models.PriorityLow},
		priorities(models.SortSpec{Field: "priority", Descending: true}))
	assert.Equal(t,
		[]models.Priority{models.PriorityLow, models.PriorityMedium, models.PriorityHigh, models.PriorityUrgent},
		priorities(models.SortSpec{Field: "priority"}))
}

func TestFindFilters(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	water := newIssue(models.CategoryWater, 77.6000, 12.9000)
	water.Title = "Burst pipe near market"
	water.Location.Address = "MG Road"
	_, err := s.Create(ctx, water)
	require.NoError(t, err)

	far := newIssue(models.CategoryWater, 78.6000, 13.9000)
	far.Title = "Low pressure"
	_, err = s.Create(ctx, far)
	require.NoError(t, err)

	light := newIssue(models.CategoryStreetLighting, 77.6001, 12.9001)
	light.Title = "Lamp out"
	light.Status = models.StatusAssigned
	_, err = s.Create(ctx, light)
	require.NoError(t, err)

	tests := []struct {
		name   string
		filter models.IssueFilter
		want   []string
	}{
		{name: "category", filter: models.IssueFilter{Category: models.CategoryWater}, want: []string{"Burst pipe near market", "Low pressure"}},
		{name: "status", filter: models.IssueFilter{Status: models.StatusAssigned}, want: []string{"Lamp out"}},
		{name: "search title case-insensitive", filter: models.IssueFilter{Search: "BURST"}, want: []string{"Burst pipe near market"}},
		{name: "search address", filter: models.IssueFilter{Search: "mg road"}, want: []string{"Burst pipe near market"}},
		{name: "search category", filter: models.IssueFilter{Search: "lighting"}, want: []string{"Lamp out"}},
		{
			name:   "proximity",
			filter: models.IssueFilter{Near: &models.GeoPoint{Longitude: 77.6, Latitude: 12.9, RadiusMeters: 5000}},
			want:   []string{"Burst pipe near market", "Lamp out"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			issues, _, err := s.Find(ctx, models.IssueQuery{Filter: tt.filter})
			require.NoError(t, err)
			var titles []string
			for _, issue := range issues {
				titles = append(titles, issue.Title)
			}
			assert.ElementsMatch(t, tt.want, titles)
		})
	}
}

func TestFindDateRangeIsInclusive(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	day := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)

	issue := newIssue(models.CategoryOther, 0, 0)
	issue.CreatedAt = day
	_, err := s.Create(ctx, issue)
	require.NoError(t, err)

	issues, _, err := s.Find(ctx, models.IssueQuery{Filter: models.IssueFilter{DateFrom: &day, DateTo: &day}})
	require.NoError(t, err)
	assert.Len(t, issues, 1)

	later := day.Add(time.Second)
	issues, _, err = s.Find(ctx, models.IssueQuery{Filter: models.IssueFilter{DateFrom: &later}})
	require.NoError(t, err)
	assert.Empty(t, issues)
}

func TestFindMergeCandidatesNearestOpenSameCategory(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	nearer := newIssue(models.CategoryRoads, 77.60005, 12.9)
	nearerIssue, err := s.Create(ctx, nearer)
	require.NoError(t, err)
	_, err = s.Create(ctx, newIssue(models.CategoryRoads, 77.6005, 12.9))
	require.NoError(t, err)

	resolved := newIssue(models.CategoryRoads, 77.6, 12.9)
	resolved.Status = models.StatusResolved
	_, err = s.Create(ctx, resolved)
	require.NoError(t, err)
	_, err = s.Create(ctx, newIssue(models.CategoryWater, 77.6, 12.9))
	require.NoError(t, err)

	candidates, err := s.FindMergeCandidates(ctx, models.CategoryRoads, models.NewPoint(77.6, 12.9), 100, 5)
	require.NoError(t, err)
	require.Len(t, candidates, 2)
	assert.Equal(t, nearerIssue.ID, candidates[0].ID)

	none, err := s.FindMergeCandidates(ctx, models.CategoryParks, models.NewPoint(77.6, 12.9), 100, 5)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestApplyStatusChangeAndNotifications(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	created, err := s.Create(ctx, newIssue(models.CategoryRoads, 77.6, 12.9))
	require.NoError(t, err)

	at := time.Now().Add(time.Hour)
	updated, err := s.ApplyStatusChange(ctx, created.ID, models.StatusChange{
		Status:       models.StatusAcknowledged,
		History:      models.StatusEntry{Status: models.StatusAcknowledged, Comment: "seen"},
		Notification: models.Notification{Message: "seen", Type: models.NotificationStatusUpdate},
		At:           at,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAcknowledged, updated.Status)
	assert.Len(t, updated.StatusHistory, 2)
	assert.Equal(t, 1, updated.UnreadNotifications())

	read, err := s.MarkNotificationsRead(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, read.UnreadNotifications())
}

func TestUpdatePriorityAndFindAging(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	old := newIssue(models.CategoryRoads, 1, 1)
	old.CreatedAt = time.Now().Add(-10 * 24 * time.Hour)
	oldIssue, err := s.Create(ctx, old)
	require.NoError(t, err)
	_, err = s.Create(ctx, newIssue(models.CategoryRoads, 1, 1))
	require.NoError(t, err)

	aging, err := s.FindAging(ctx, time.Now().Add(-7*24*time.Hour), 10)
	require.NoError(t, err)
	require.Len(t, aging, 1)
	assert.Equal(t, oldIssue.ID, aging[0].ID)

	manual := false
	floor := models.PriorityHigh
	updated, err := s.UpdatePriority(ctx, oldIssue.ID, PriorityUpdate{
		Priority: models.PriorityHigh,
		Auto:     &manual,
		Floor:    &floor,
	})
	require.NoError(t, err)
	assert.False(t, updated.PriorityAuto)
	assert.Equal(t, models.PriorityHigh, updated.PriorityFloor)
	assert.Empty(t, updated.PriorityReasons)

	aging, err = s.FindAging(ctx, time.Now().Add(-7*24*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, aging)
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	canonical, err := s.Create(ctx, newIssue(models.CategoryRoads, 1, 1))
	require.NoError(t, err)
	dup := newIssue(models.CategoryRoads, 1, 1)
	dup.MergedInto = &canonical.ID
	_, err = s.Create(ctx, dup)
	require.NoError(t, err)

	hours := 10
	resolved := newIssue(models.CategoryWater, 2, 2)
	resolved.Status = models.StatusResolved
	resolved.ActualResolutionTime = &hours
	_, err = s.Create(ctx, resolved)
	require.NoError(t, err)

	stats, err := s.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), stats.Total)
	assert.Equal(t, int64(2), stats.Canonical)
	assert.Equal(t, int64(1), stats.Merged)
	assert.Equal(t, int64(1), stats.ByStatus["resolved"])
	assert.Equal(t, int64(1), stats.ByCategory[string(models.CategoryRoads)])
	assert.Equal(t, 10.0, stats.AverageResolutionHours)
}

func TestChatMessagesNewestFirst(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()
	issueID := primitive.NewObjectID()
	base := time.Now()
	for i := 0; i < 5; i++ {
		_, err := s.CreateMessage(ctx, &models.ChatMessage{
			IssueID:   issueID,
			Author:    primitive.NewObjectID(),
			Body:      fmt.Sprintf("msg %d", i),
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		})
		require.NoError(t, err)
	}

	page1, total, err := s.ListMessages(ctx, issueID, 1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(5), total)
	require.Len(t, page1, 2)
	assert.Equal(t, "msg 4", page1[0].Body)
	assert.Equal(t, "msg 3", page1[1].Body)

	page3, _, err := s.ListMessages(ctx, issueID, 3, 2)
	require.NoError(t, err)
	require.Len(t, page3, 1)
	assert.Equal(t, "msg 0", page3[0].Body)
}

func TestUsers(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore()

	created, err := s.CreateUser(ctx, &models.User{Name: "Asha", Email: "Asha@Example.com", Role: models.RoleCitizen})
	require.NoError(t, err)
	assert.Equal(t, "asha@example.com", created.Email)

	_, err = s.CreateUser(ctx, &models.User{Name: "Other", Email: "asha@example.com"})
	assert.ErrorIs(t, err, ErrEmailTaken)

	found, err := s.FindUserByEmail(ctx, " ASHA@example.com ")
	require.NoError(t, err)
	assert.Equal(t, created.ID, found.ID)

	now := time.Now()
	require.NoError(t, s.TouchLogin(ctx, created.ID, now))
	byID, err := s.FindUserByID(ctx, created.ID)
	require.NoError(t, err)
	require.NotNil(t, byID.LastLoginAt)
	assert.True(t, now.Equal(*byID.LastLoginAt))
}
