package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/config"
	"civic-reporter/internal/logger"
	"civic-reporter/internal/models"
	"civic-reporter/internal/store"
	"civic-reporter/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Draft is a citizen report before it becomes an issue.
type Draft struct {
	Title       string
	Description string
	Category    models.Category
	Location    models.Location
	Images      []string
	VoiceNote   string
	// Priority is the reporter's own estimate. It only ever raises the derived tier.
	Priority   models.Priority
	ReportedBy primitive.ObjectID
}

func (d Draft) Validate() error {
	if strings.TrimSpace(d.Title) == "" {
		return apperror.Validation("title is required")
	}
	if strings.TrimSpace(d.Description) == "" {
		return apperror.Validation("description is required")
	}
	if !d.Category.IsValid() {
		return apperror.Validation("invalid category %q", d.Category)
	}
	if d.Priority != "" && !d.Priority.IsValid() {
		return apperror.Validation("invalid priority %q", d.Priority)
	}
	if err := d.Location.Validate(); err != nil {
		return apperror.Validation("invalid location: %v", err)
	}
	if d.ReportedBy.IsZero() {
		return apperror.Validation("reporter is required")
	}
	return nil
}

// Resolution is the outcome of ResolveOrCreate.
type Resolution struct {
	// Issue is the canonical issue the report ended up on.
	Issue *models.Issue `json:"issue"`
	// Duplicate is the reporter's own record when the report was merged.
	Duplicate *models.Issue `json:"duplicate,omitempty"`
	Merged    bool          `json:"merged"`
}

// ClusteringEngine folds nearby reports of the same problem into one canonical issue.
type ClusteringEngine struct {
	issues  store.IssueStore
	deriver *PriorityDeriver
	cfg     config.ClusteringConfig
	now     func() time.Time
}

func NewClusteringEngine(issues store.IssueStore, deriver *PriorityDeriver, cfg config.ClusteringConfig) *ClusteringEngine {
	return &ClusteringEngine{
		issues:  issues,
		deriver: deriver,
		cfg:     cfg,
		now:     time.Now,
	}
}

// ResolveOrCreate merges the draft into the nearest open issue of the same
// category within the cluster radius, or creates a new canonical issue.
func (e *ClusteringEngine) ResolveOrCreate(ctx context.Context, draft Draft) (*Resolution, error) {
	if err := draft.Validate(); err != nil {
		return nil, err
	}

	canonical, err := e.findCanonical(ctx, draft)
	if err != nil {
		return nil, err
	}
	if canonical == nil {
		issue, err := e.create(ctx, draft)
		if err != nil {
			return nil, err
		}
		return &Resolution{Issue: issue}, nil
	}
	return e.merge(ctx, canonical, draft)
}

func (e *ClusteringEngine) findCanonical(ctx context.Context, draft Draft) (*models.Issue, error) {
	if !e.cfg.Enabled || e.cfg.RadiusMeters <= 0 {
		return nil, nil
	}

	candidates, err := e.issues.FindMergeCandidates(ctx, draft.Category, draft.Location, e.cfg.RadiusMeters, e.cfg.MaxCandidates)
	if err != nil {
		return nil, err
	}

	for _, candidate := range candidates {
		if e.cfg.MinTitleSimilarity > 0 && utils.TitleSimilarity(candidate.Title, draft.Title) < e.cfg.MinTitleSimilarity {
			continue
		}
		return candidate, nil
	}
	return nil, nil
}

func (e *ClusteringEngine) newIssue(draft Draft, now time.Time) *models.Issue {
	issue := &models.Issue{
		Title:            strings.TrimSpace(draft.Title),
		Description:      strings.TrimSpace(draft.Description),
		Category:         draft.Category,
		PriorityAuto:     true,
		ReportedPriority: draft.Priority,
		Location:         draft.Location,
		Images:           append([]string{}, draft.Images...),
		VoiceNote:        draft.VoiceNote,
		ReportedBy:       draft.ReportedBy,
		Reporters:        []primitive.ObjectID{draft.ReportedBy},
		Duplicates:       []primitive.ObjectID{},
		Voters:           []primitive.ObjectID{},
		Status:           models.StatusPending,
		StatusHistory: []models.StatusEntry{{
			Status:    models.StatusPending,
			UpdatedBy: draft.ReportedBy,
			Comment:   "Issue reported",
			Timestamp: now,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}

	decision := e.deriver.Derive(issue, now)
	issue.Priority = decision.Priority
	issue.PriorityReasons = decision.Reasons
	issue.EstimatedResolutionTime = EstimateResolutionHours(issue.Category, issue.Priority)
	return issue
}

func (e *ClusteringEngine) create(ctx context.Context, draft Draft) (*models.Issue, error) {
	now := e.now()
	issue := e.newIssue(draft, now)
	issue.Notifications = []models.Notification{{
		Message:   fmt.Sprintf("Your issue %q has been reported and is pending review", issue.Title),
		Type:      models.NotificationInfo,
		Timestamp: now,
	}}

	created, err := e.issues.Create(ctx, issue)
	if err != nil {
		return nil, err
	}

	logger.Info("Issue created", map[string]interface{}{
		"issue_id": created.ID.Hex(),
		"category": created.Category,
		"priority": created.Priority,
	})
	return created, nil
}

// discardDuplicate removes a duplicate whose canonical issue never recorded it.
// A failed removal is logged so the record can be cleaned up by hand.
func (e *ClusteringEngine) discardDuplicate(duplicateID, canonicalID primitive.ObjectID) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := e.issues.Delete(ctx, duplicateID); err != nil {
		logger.WithError(err, "clustering").WithFields(map[string]interface{}{
			"duplicate_id": duplicateID.Hex(),
			"issue_id":     canonicalID.Hex(),
		}).Error("Orphaned duplicate needs cleanup")
	}
}

func (e *ClusteringEngine) merge(ctx context.Context, canonical *models.Issue, draft Draft) (*Resolution, error) {
	now := e.now()
	duplicate := e.newIssue(draft, now)
	canonicalID := canonical.ID
	duplicate.MergedInto = &canonicalID
	duplicate.Notifications = []models.Notification{{
		Message:   fmt.Sprintf("Your report was merged into the existing issue %q", canonical.Title),
		Type:      models.NotificationMerge,
		Timestamp: now,
	}}

	createdDuplicate, err := e.issues.Create(ctx, duplicate)
	if err != nil {
		return nil, err
	}

	updated, err := e.issues.AddReporterAndDuplicate(ctx, canonical.ID, draft.ReportedBy, createdDuplicate.ID)
	if err != nil {
		e.discardDuplicate(createdDuplicate.ID, canonical.ID)
		return nil, err
	}

	if decision := e.deriver.Derive(updated, now); decision.Changed {
		updated, err = e.issues.UpdatePriority(ctx, updated.ID, store.PriorityUpdate{
			Priority: decision.Priority,
			Reasons:  decision.Reasons,
		})
		if err != nil {
			return nil, err
		}
	}

	logger.Info("Report merged into existing issue", map[string]interface{}{
		"issue_id":     updated.ID.Hex(),
		"duplicate_id": createdDuplicate.ID.Hex(),
		"reporters":    len(updated.Reporters),
	})

	return &Resolution{Issue: updated, Duplicate: createdDuplicate, Merged: true}, nil
}
