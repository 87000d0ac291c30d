package services

import (
	"fmt"
	"math"
	"strings"
	"time"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/models"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const defaultResolutionDescription = "Issue has been resolved"

// forwardTransitions is the graph enforced in strict mode.
var forwardTransitions = map[models.Status][]models.Status{
	models.StatusPending:      {models.StatusAcknowledged, models.StatusAssigned, models.StatusInProgress, models.StatusResolved, models.StatusRejected, models.StatusClosed},
	models.StatusAcknowledged: {models.StatusAssigned, models.StatusInProgress, models.StatusResolved, models.StatusRejected, models.StatusClosed},
	models.StatusAssigned:     {models.StatusAssigned, models.StatusInProgress, models.StatusResolved, models.StatusRejected, models.StatusClosed},
	models.StatusInProgress:   {models.StatusAssigned, models.StatusResolved, models.StatusRejected, models.StatusClosed},
	models.StatusResolved:     {models.StatusClosed, models.StatusInProgress},
	models.StatusRejected:     {models.StatusClosed},
	models.StatusClosed:       {},
}

// ResolutionInput is supplied by the official resolving an issue.
type ResolutionInput struct {
	Description string
	Images      []string
}

// Workflow builds status changes. It does not persist anything.
type Workflow struct {
	strict bool
	now    func() time.Time
}

func NewWorkflow(strict bool) *Workflow {
	return &Workflow{strict: strict, now: time.Now}
}

// CanTransition reports whether from -> to is allowed under the configured mode.
func (w *Workflow) CanTransition(from, to models.Status) bool {
	if !to.IsValid() {
		return false
	}
	if !w.strict {
		return true
	}
	for _, next := range forwardTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Transition moves an issue to status. Entering resolved from any other status
// records the elapsed hours and the resolution details.
func (w *Workflow) Transition(issue *models.Issue, status models.Status, actor primitive.ObjectID, comment string, resolution ResolutionInput) (models.StatusChange, error) {
	if !status.IsValid() {
		return models.StatusChange{}, apperror.Validation("invalid status %q", status)
	}
	if !w.CanTransition(issue.Status, status) {
		return models.StatusChange{}, apperror.Validation("cannot move issue from %s to %s", issue.Status, status)
	}

	now := w.now()
	if strings.TrimSpace(comment) == "" {
		comment = fmt.Sprintf("Status changed from %s to %s", issue.Status, status)
	}

	change := models.StatusChange{
		Status: status,
		History: models.StatusEntry{
			Status:    status,
			UpdatedBy: actor,
			Comment:   comment,
			Timestamp: now,
		},
		Notification: models.Notification{
			Message:   fmt.Sprintf("Your issue %q is now %s", issue.Title, status),
			Type:      models.NotificationStatusUpdate,
			Timestamp: now,
		},
		At: now,
	}

	if status == models.StatusResolved && issue.Status != models.StatusResolved {
		hours := int(math.Round(now.Sub(issue.CreatedAt).Hours()))
		if hours < 0 {
			hours = 0
		}
		description := strings.TrimSpace(resolution.Description)
		if description == "" {
			description = defaultResolutionDescription
		}
		change.ActualResolutionTime = &hours
		change.ResolutionDetails = &models.ResolutionDetails{
			ResolvedBy:            actor,
			ResolutionDate:        now,
			ResolutionDescription: description,
			ResolutionImages:      append([]string{}, resolution.Images...),
		}
	}
	return change, nil
}

// Assign routes an issue to a department and optionally an official. The
// status always becomes assigned.
func (w *Workflow) Assign(issue *models.Issue, department string, official *primitive.ObjectID, actor primitive.ObjectID, comment string) (models.StatusChange, error) {
	department = strings.TrimSpace(department)
	if department == "" {
		return models.StatusChange{}, apperror.Validation("department is required")
	}
	if w.strict && !w.CanTransition(issue.Status, models.StatusAssigned) {
		return models.StatusChange{}, apperror.Validation("cannot assign issue in status %s", issue.Status)
	}

	now := w.now()
	if strings.TrimSpace(comment) == "" {
		comment = fmt.Sprintf("Assigned to %s", department)
	}

	return models.StatusChange{
		Status:     models.StatusAssigned,
		AssignedTo: &models.Assignment{Department: department, Official: official},
		History: models.StatusEntry{
			Status:    models.StatusAssigned,
			UpdatedBy: actor,
			Comment:   comment,
			Timestamp: now,
		},
		Notification: models.Notification{
			Message:   fmt.Sprintf("Your issue %q has been assigned to %s", issue.Title, department),
			Type:      models.NotificationAssignment,
			Timestamp: now,
		},
		At: now,
	}, nil
}
