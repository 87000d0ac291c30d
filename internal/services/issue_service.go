package services

import (
	"context"
	"fmt"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/config"
	"civic-reporter/internal/logger"
	"civic-reporter/internal/models"
	"civic-reporter/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const manualPriorityReason = "manual override by official"

// IssueService is the application layer over the issue store. Every
// permission check happens before the first write.
type IssueService struct {
	issues   store.IssueStore
	engine   *ClusteringEngine
	deriver  *PriorityDeriver
	workflow *Workflow
	events   EventEmitter
	aging    int
	now      func() time.Time
}

func NewIssueService(issues store.IssueStore, cfg *config.Config, events EventEmitter) *IssueService {
	deriver := NewPriorityDeriver(cfg.Priority)
	return &IssueService{
		issues:   issues,
		engine:   NewClusteringEngine(issues, deriver, cfg.Clustering),
		deriver:  deriver,
		workflow: NewWorkflow(cfg.WorkflowStrict),
		events:   events,
		aging:    cfg.Priority.AgingDays,
		now:      time.Now,
	}
}

// WithClock replaces the time source of the service and its collaborators.
func (s *IssueService) WithClock(now func() time.Time) *IssueService {
	s.now = now
	s.engine.now = now
	s.workflow.now = now
	return s
}

// Report files a citizen report, merging it into a nearby duplicate when one exists.
func (s *IssueService) Report(ctx context.Context, draft Draft) (*Resolution, error) {
	resolution, err := s.engine.ResolveOrCreate(ctx, draft)
	if err != nil {
		return nil, err
	}

	if !resolution.Merged {
		s.emit(models.RealtimeEvent{
			Type:    models.EventNewIssue,
			IssueID: resolution.Issue.ID,
			UserID:  resolution.Issue.ReportedBy,
			Summary: fmt.Sprintf("New %s issue reported: %s", resolution.Issue.Category, resolution.Issue.Title),
		})
	}
	return resolution, nil
}

func (s *IssueService) Get(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	return s.issues.FindByID(ctx, id)
}

func (s *IssueService) List(ctx context.Context, query models.IssueQuery) (*models.IssuePage, error) {
	query = query.Normalize()
	issues, total, err := s.issues.Find(ctx, query)
	if err != nil {
		return nil, err
	}
	if issues == nil {
		issues = []*models.Issue{}
	}
	return &models.IssuePage{
		Issues:     issues,
		Pagination: models.NewPagination(query.Page, query.Limit, total),
	}, nil
}

// ListMine returns every issue the user reported or co-reported.
func (s *IssueService) ListMine(ctx context.Context, userID primitive.ObjectID, query models.IssueQuery) (*models.IssuePage, error) {
	query.Filter.Reporter = &userID
	return s.List(ctx, query)
}

// ToggleVote flips the user's vote. Votes on a merged report land on its canonical issue.
func (s *IssueService) ToggleVote(ctx context.Context, id, userID primitive.ObjectID) (*models.Issue, bool, error) {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}

	updated, voted, err := s.issues.ToggleVote(ctx, issue.CanonicalID(), userID)
	if err != nil {
		return nil, false, err
	}

	updated, err = s.rederive(ctx, updated)
	if err != nil {
		return nil, false, err
	}
	return updated, voted, nil
}

// Transition changes the status of an issue. Only officials may do this.
func (s *IssueService) Transition(ctx context.Context, actor models.Actor, id primitive.ObjectID, status models.Status, comment string, resolution ResolutionInput) (*models.Issue, error) {
	if !actor.IsOfficial() {
		return nil, apperror.PermissionDenied("only officials can change issue status")
	}
	if !status.IsValid() {
		return nil, apperror.Validation("invalid status %q", status)
	}

	issue, err := s.loadCanonical(ctx, id)
	if err != nil {
		return nil, err
	}

	previous := issue.Status
	change, err := s.workflow.Transition(issue, status, actor.UserID, comment, resolution)
	if err != nil {
		return nil, err
	}

	updated, err := s.issues.ApplyStatusChange(ctx, issue.ID, change)
	if err != nil {
		return nil, err
	}

	logger.Info("Issue status changed", map[string]interface{}{
		"issue_id": updated.ID.Hex(),
		"from":     previous,
		"to":       status,
		"actor":    actor.UserID.Hex(),
	})

	s.emit(models.RealtimeEvent{
		Type:    models.EventIssueStatusUpdated,
		IssueID: updated.ID,
		UserID:  updated.ReportedBy,
		Summary: fmt.Sprintf("Issue %q moved from %s to %s", updated.Title, previous, status),
	})
	return updated, nil
}

// Assign routes an issue to a department and optional official.
func (s *IssueService) Assign(ctx context.Context, actor models.Actor, id primitive.ObjectID, department string, official *primitive.ObjectID, comment string) (*models.Issue, error) {
	if !actor.IsOfficial() {
		return nil, apperror.PermissionDenied("only officials can assign issues")
	}

	issue, err := s.loadCanonical(ctx, id)
	if err != nil {
		return nil, err
	}

	change, err := s.workflow.Assign(issue, department, official, actor.UserID, comment)
	if err != nil {
		return nil, err
	}

	updated, err := s.issues.ApplyStatusChange(ctx, issue.ID, change)
	if err != nil {
		return nil, err
	}

	logger.Info("Issue assigned", map[string]interface{}{
		"issue_id":   updated.ID.Hex(),
		"department": change.AssignedTo.Department,
		"actor":      actor.UserID.Hex(),
	})

	s.emit(models.RealtimeEvent{
		Type:    models.EventIssueAssigned,
		IssueID: updated.ID,
		UserID:  updated.ReportedBy,
		Summary: fmt.Sprintf("Issue %q assigned to %s", updated.Title, change.AssignedTo.Department),
	})
	return updated, nil
}

// SetPriority lets an official pin a priority or hand it back to automatic
// derivation. A pinned level becomes the floor for later derivations.
func (s *IssueService) SetPriority(ctx context.Context, actor models.Actor, id primitive.ObjectID, priority models.Priority, auto bool) (*models.Issue, error) {
	if !actor.IsOfficial() {
		return nil, apperror.PermissionDenied("only officials can set issue priority")
	}
	if !auto && !priority.IsValid() {
		return nil, apperror.Validation("invalid priority %q", priority)
	}
	if auto && priority != "" && !priority.IsValid() {
		return nil, apperror.Validation("invalid priority %q", priority)
	}

	issue, err := s.loadCanonical(ctx, id)
	if err != nil {
		return nil, err
	}

	if !auto {
		manual := false
		return s.issues.UpdatePriority(ctx, issue.ID, store.PriorityUpdate{
			Priority: priority,
			Reasons:  []string{manualPriorityReason},
			Auto:     &manual,
			Floor:    &priority,
		})
	}

	issue.PriorityAuto = true
	if priority != "" {
		issue.PriorityFloor = priority
	}
	decision := s.deriver.Derive(issue, s.now())
	enabled := true
	update := store.PriorityUpdate{
		Priority: decision.Priority,
		Reasons:  decision.Reasons,
		Auto:     &enabled,
	}
	if priority != "" {
		update.Floor = &priority
	}
	return s.issues.UpdatePriority(ctx, issue.ID, update)
}

// Reprioritize re-runs derivation for one issue and persists any change.
func (s *IssueService) Reprioritize(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.rederive(ctx, issue)
}

// SweepAging re-derives priority for open issues old enough to escalate.
// It returns how many issues changed.
func (s *IssueService) SweepAging(ctx context.Context, limit int) (int, error) {
	if s.aging <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-time.Duration(s.aging) * 24 * time.Hour)

	issues, err := s.issues.FindAging(ctx, cutoff, limit)
	if err != nil {
		return 0, err
	}

	changed := 0
	for _, issue := range issues {
		decision := s.deriver.Derive(issue, s.now())
		if !decision.Changed {
			continue
		}
		if _, err := s.issues.UpdatePriority(ctx, issue.ID, store.PriorityUpdate{
			Priority: decision.Priority,
			Reasons:  decision.Reasons,
		}); err != nil {
			return changed, err
		}
		changed++
	}
	return changed, nil
}

// MarkNotificationsRead marks every notification on the issue read. Only the
// original reporter may do this.
func (s *IssueService) MarkNotificationsRead(ctx context.Context, actor models.Actor, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue.ReportedBy != actor.UserID {
		return nil, apperror.PermissionDenied("only the reporter can read these notifications")
	}
	return s.issues.MarkNotificationsRead(ctx, id)
}

func (s *IssueService) Stats(ctx context.Context, actor models.Actor) (*models.IssueStats, error) {
	if !actor.IsOfficial() {
		return nil, apperror.PermissionDenied("only officials can view statistics")
	}
	return s.issues.Stats(ctx)
}

// loadCanonical follows a merged report to the issue that carries its workflow.
func (s *IssueService) loadCanonical(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue.IsCanonical() {
		return issue, nil
	}
	return s.issues.FindByID(ctx, issue.CanonicalID())
}

func (s *IssueService) rederive(ctx context.Context, issue *models.Issue) (*models.Issue, error) {
	decision := s.deriver.Derive(issue, s.now())
	if !decision.Changed {
		return issue, nil
	}
	return s.issues.UpdatePriority(ctx, issue.ID, store.PriorityUpdate{
		Priority: decision.Priority,
		Reasons:  decision.Reasons,
	})
}

func (s *IssueService) emit(event models.RealtimeEvent) {
	if s.events == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	s.events.Emit(event)
}
