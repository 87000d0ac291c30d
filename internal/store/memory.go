package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/models"
	"civic-reporter/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// MemoryStore keeps issues, messages and users in process memory. Every
// operation holds the lock for its full read-modify-write, which gives the
// same per-field atomicity as the Mongo updates. Values are cloned on the way
// in and out so callers never share state with the store.
type MemoryStore struct {
	mutex    sync.RWMutex
	issues   map[primitive.ObjectID]*models.Issue
	messages map[primitive.ObjectID][]*models.ChatMessage
	users    map[primitive.ObjectID]*models.User
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		issues:   make(map[primitive.ObjectID]*models.Issue),
		messages: make(map[primitive.ObjectID][]*models.ChatMessage),
		users:    make(map[primitive.ObjectID]*models.User),
		now:      time.Now,
	}
}

// WithClock replaces the clock used for updatedAt. Intended for tests.
func (s *MemoryStore) WithClock(now func() time.Time) *MemoryStore {
	s.now = now
	return s
}

func (s *MemoryStore) Find(ctx context.Context, query models.IssueQuery) ([]*models.Issue, int64, error) {
	query = query.Normalize()

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var matched []*models.Issue
	for _, issue := range s.issues {
		if matchesFilter(issue, query.Filter) {
			matched = append(matched, issue)
		}
	}

	sortIssues(matched, query.Sort)

	total := int64(len(matched))
	start := int(query.Skip())
	if start > len(matched) {
		start = len(matched)
	}
	end := start + query.Limit
	if end > len(matched) {
		end = len(matched)
	}

	page := make([]*models.Issue, 0, end-start)
	for _, issue := range matched[start:end] {
		page = append(page, issue.Clone())
	}
	return page, total, nil
}

func (s *MemoryStore) FindByID(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	issue, ok := s.issues[id]
	if !ok {
		return nil, apperror.NotFound("issue %s not found", id.Hex())
	}
	return issue.Clone(), nil
}

func (s *MemoryStore) Create(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	created := issue.Clone()
	if created.ID.IsZero() {
		created.ID = primitive.NewObjectID()
	}
	now := s.now()
	if created.CreatedAt.IsZero() {
		created.CreatedAt = now
	}
	created.UpdatedAt = now

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, exists := s.issues[created.ID]; exists {
		return nil, apperror.Persistence(nil, "issue "+created.ID.Hex()+" already exists")
	}
	s.issues[created.ID] = created
	return created.Clone(), nil
}

func (s *MemoryStore) Save(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.issues[issue.ID]; !ok {
		return nil, apperror.NotFound("issue %s not found", issue.ID.Hex())
	}
	saved := issue.Clone()
	saved.UpdatedAt = s.now()
	s.issues[saved.ID] = saved
	return saved.Clone(), nil
}

func (s *MemoryStore) Delete(ctx context.Context, id primitive.ObjectID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if _, ok := s.issues[id]; !ok {
		return apperror.NotFound("issue %s not found", id.Hex())
	}
	delete(s.issues, id)
	return nil
}

func (s *MemoryStore) AddReporterAndDuplicate(ctx context.Context, canonicalID, reporter, duplicateID primitive.ObjectID) (*models.Issue, error) {
	return s.mutate(canonicalID, func(issue *models.Issue) error {
		if !issue.IsCanonical() {
			return apperror.NotFound("canonical issue %s not found", canonicalID.Hex())
		}
		issue.Reporters = addToSet(issue.Reporters, reporter)
		issue.Duplicates = addToSet(issue.Duplicates, duplicateID)
		return nil
	})
}

func (s *MemoryStore) ToggleVote(ctx context.Context, id, userID primitive.ObjectID) (*models.Issue, bool, error) {
	voted := false
	issue, err := s.mutate(id, func(issue *models.Issue) error {
		if issue.HasVoter(userID) {
			issue.Voters = pull(issue.Voters, userID)
		} else {
			issue.Voters = addToSet(issue.Voters, userID)
			voted = true
		}
		issue.Votes = len(issue.Voters)
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return issue, voted, nil
}

func (s *MemoryStore) UpdatePriority(ctx context.Context, id primitive.ObjectID, update PriorityUpdate) (*models.Issue, error) {
	return s.mutate(id, func(issue *models.Issue) error {
		issue.Priority = update.Priority
		issue.PriorityReasons = append([]string{}, update.Reasons...)
		if update.Auto != nil {
			issue.PriorityAuto = *update.Auto
		}
		if update.Floor != nil {
			issue.PriorityFloor = *update.Floor
		}
		return nil
	})
}

func (s *MemoryStore) ApplyStatusChange(ctx context.Context, id primitive.ObjectID, change models.StatusChange) (*models.Issue, error) {
	return s.mutate(id, func(issue *models.Issue) error {
		issue.Apply(change)
		return nil
	})
}

func (s *MemoryStore) MarkNotificationsRead(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return s.mutate(id, func(issue *models.Issue) error {
		for i := range issue.Notifications {
			issue.Notifications[i].Read = true
		}
		return nil
	})
}

func (s *MemoryStore) FindMergeCandidates(ctx context.Context, category models.Category, point models.Location, radiusMeters float64, limit int) ([]*models.Issue, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	type candidate struct {
		issue    *models.Issue
		distance float64
	}
	var candidates []candidate
	for _, issue := range s.issues {
		if !issue.IsCanonical() || issue.Category != category || issue.Status.IsTerminal() {
			continue
		}
		d := utils.DistanceMeters(point, issue.Location)
		if d <= radiusMeters {
			candidates = append(candidates, candidate{issue: issue, distance: d})
		}
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].distance == candidates[j].distance {
			return candidates[i].issue.CreatedAt.Before(candidates[j].issue.CreatedAt)
		}
		return candidates[i].distance < candidates[j].distance
	})

	if limit < 1 {
		limit = 1
	}
	out := []*models.Issue{}
	for i := 0; i < len(candidates) && i < limit; i++ {
		out = append(out, candidates[i].issue.Clone())
	}
	return out, nil
}

func (s *MemoryStore) FindAging(ctx context.Context, createdBefore time.Time, limit int) ([]*models.Issue, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	var aging []*models.Issue
	for _, issue := range s.issues {
		if issue.IsCanonical() && issue.PriorityAuto && !issue.Status.IsTerminal() && !issue.CreatedAt.After(createdBefore) {
			aging = append(aging, issue)
		}
	}
	sort.Slice(aging, func(i, j int) bool {
		return aging[i].CreatedAt.Before(aging[j].CreatedAt)
	})

	out := []*models.Issue{}
	for i := 0; i < len(aging) && (limit <= 0 || i < limit); i++ {
		out = append(out, aging[i].Clone())
	}
	return out, nil
}

func (s *MemoryStore) Stats(ctx context.Context) (*models.IssueStats, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	stats := &models.IssueStats{
		ByStatus:   map[string]int64{},
		ByCategory: map[string]int64{},
		ByPriority: map[string]int64{},
	}
	var resolutionSum int64
	for _, issue := range s.issues {
		stats.Total++
		stats.TotalVotes += int64(issue.Votes)
		if issue.ActualResolutionTime != nil {
			stats.ResolvedWithMeasurement++
			resolutionSum += int64(*issue.ActualResolutionTime)
		}
		if !issue.IsCanonical() {
			stats.Merged++
			continue
		}
		stats.Canonical++
		stats.ByStatus[string(issue.Status)]++
		stats.ByCategory[string(issue.Category)]++
		stats.ByPriority[string(issue.Priority)]++
	}
	if stats.ResolvedWithMeasurement > 0 {
		stats.AverageResolutionHours = float64(resolutionSum) / float64(stats.ResolvedWithMeasurement)
	}
	return stats, nil
}

func (s *MemoryStore) CreateMessage(ctx context.Context, message *models.ChatMessage) (*models.ChatMessage, error) {
	created := *message
	if created.ID.IsZero() {
		created.ID = primitive.NewObjectID()
	}
	if created.CreatedAt.IsZero() {
		created.CreatedAt = s.now()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.messages[created.IssueID] = append(s.messages[created.IssueID], &created)
	out := created
	return &out, nil
}

func (s *MemoryStore) ListMessages(ctx context.Context, issueID primitive.ObjectID, page, limit int) ([]*models.ChatMessage, int64, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	all := s.messages[issueID]
	total := int64(len(all))

	// Stored oldest first; walk backwards for newest first.
	start := (page - 1) * limit
	out := []*models.ChatMessage{}
	for i := len(all) - 1 - start; i >= 0 && len(out) < limit; i-- {
		m := *all[i]
		out = append(out, &m)
	}
	return out, total, nil
}

func (s *MemoryStore) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	created := *user
	created.Email = strings.ToLower(strings.TrimSpace(created.Email))
	if created.ID.IsZero() {
		created.ID = primitive.NewObjectID()
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	for _, existing := range s.users {
		if existing.Email == created.Email {
			return nil, ErrEmailTaken
		}
	}
	s.users[created.ID] = &created
	out := created
	return &out, nil
}

func (s *MemoryStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	s.mutex.RLock()
	defer s.mutex.RUnlock()

	for _, user := range s.users {
		if user.Email == email {
			out := *user
			return &out, nil
		}
	}
	return nil, apperror.NotFound("user %s not found", email)
}

func (s *MemoryStore) FindUserByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()

	user, ok := s.users[id]
	if !ok {
		return nil, apperror.NotFound("user %s not found", id.Hex())
	}
	out := *user
	return &out, nil
}

func (s *MemoryStore) TouchLogin(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	user, ok := s.users[id]
	if !ok {
		return apperror.NotFound("user %s not found", id.Hex())
	}
	user.LastLoginAt = &at
	user.UpdatedAt = at
	return nil
}

func (s *MemoryStore) NormalizeRoles(ctx context.Context, at time.Time) (int64, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	var changed int64
	for _, user := range s.users {
		if !user.Role.IsValid() {
			user.Role = models.RoleCitizen
			user.UpdatedAt = at
			changed++
		}
	}
	return changed, nil
}

func (s *MemoryStore) mutate(id primitive.ObjectID, fn func(issue *models.Issue) error) (*models.Issue, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	current, ok := s.issues[id]
	if !ok {
		return nil, apperror.NotFound("issue %s not found", id.Hex())
	}
	working := current.Clone()
	if err := fn(working); err != nil {
		return nil, err
	}
	if working.UpdatedAt.Equal(current.UpdatedAt) {
		working.UpdatedAt = s.now()
	}
	s.issues[id] = working
	return working.Clone(), nil
}

func matchesFilter(issue *models.Issue, f models.IssueFilter) bool {
	if !f.IncludeMerged && !issue.IsCanonical() {
		return false
	}
	if f.Status != "" && issue.Status != f.Status {
		return false
	}
	if f.Category != "" && issue.Category != f.Category {
		return false
	}
	if f.Priority != "" && issue.Priority != f.Priority {
		return false
	}
	if f.Official != nil && (issue.AssignedTo == nil || issue.AssignedTo.Official == nil || *issue.AssignedTo.Official != *f.Official) {
		return false
	}
	if f.Department != "" && (issue.AssignedTo == nil || issue.AssignedTo.Department != f.Department) {
		return false
	}
	if f.ReportedBy != nil && issue.ReportedBy != *f.ReportedBy {
		return false
	}
	if f.Reporter != nil && !issue.HasReporter(*f.Reporter) {
		return false
	}
	if f.DateFrom != nil && issue.CreatedAt.Before(*f.DateFrom) {
		return false
	}
	if f.DateTo != nil && issue.CreatedAt.After(*f.DateTo) {
		return false
	}
	if f.Search != "" && !matchesSearch(issue, f.Search) {
		return false
	}
	if f.Near != nil && utils.DistanceMeters(f.Near.Location(), issue.Location) > f.Near.RadiusMeters {
		return false
	}
	return true
}

func matchesSearch(issue *models.Issue, search string) bool {
	needle := strings.ToLower(search)
	for _, field := range []string{issue.Title, issue.Description, issue.Location.Address, string(issue.Category)} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

func sortIssues(issues []*models.Issue, order models.SortSpec) {
	field, ok := models.SortableFields[order.Field]
	if !ok {
		field = models.DefaultSortField
	}

	less := func(a, b *models.Issue) int {
		switch field {
		case "updatedAt":
			return a.UpdatedAt.Compare(b.UpdatedAt)
		case "votes":
			return a.Votes - b.Votes
		case "priorityRank":
			return a.Priority.Rank() - b.Priority.Rank()
		case "status":
			return strings.Compare(string(a.Status), string(b.Status))
		case "category":
			return strings.Compare(string(a.Category), string(b.Category))
		case "title":
			return strings.Compare(a.Title, b.Title)
		case "estimatedResolutionTime":
			return a.EstimatedResolutionTime - b.EstimatedResolutionTime
		default:
			return a.CreatedAt.Compare(b.CreatedAt)
		}
	}

	sort.SliceStable(issues, func(i, j int) bool {
		c := less(issues[i], issues[j])
		if c == 0 {
			c = strings.Compare(issues[i].ID.Hex(), issues[j].ID.Hex())
		}
		if order.Descending {
			return c > 0
		}
		return c < 0
	})
}

func addToSet(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}

func pull(ids []primitive.ObjectID, id primitive.ObjectID) []primitive.ObjectID {
	out := ids[:0]
	for _, existing := range ids {
		if existing != id {
			out = append(out, existing)
		}
	}
	return out
}
