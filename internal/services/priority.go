package services

import (
	"fmt"
	"math"
	"time"

	"civic-reporter/internal/config"
	"civic-reporter/internal/models"
)

// PriorityDecision is the outcome of one derivation.
type PriorityDecision struct {
	Priority models.Priority
	Reasons  []string
	// Changed is false when nothing needs to be written back.
	Changed bool
}

// PriorityDeriver computes issue priority from category urgency, engagement and age.
type PriorityDeriver struct {
	cfg config.PriorityConfig
}

func NewPriorityDeriver(cfg config.PriorityConfig) *PriorityDeriver {
	return &PriorityDeriver{cfg: cfg}
}

// CategoryBaseline maps the category target time to a starting tier.
// Shorter targets mean more urgent problems.
func CategoryBaseline(category models.Category) models.Priority {
	hours := category.BaseHours()
	switch {
	case hours <= 12:
		return models.PriorityHigh
	case hours <= 24:
		return models.PriorityMedium
	default:
		return models.PriorityLow
	}
}

// EstimateResolutionHours scales the category target by the priority multiplier.
func EstimateResolutionHours(category models.Category, priority models.Priority) int {
	return int(math.Round(float64(category.BaseHours()) * priority.Multiplier()))
}

// Derive recomputes the priority of an issue. Issues with automatic priority
// disabled, and issues in a terminal status, keep the priority they have.
func (d *PriorityDeriver) Derive(issue *models.Issue, now time.Time) PriorityDecision {
	if !issue.PriorityAuto || issue.Status.IsTerminal() {
		return PriorityDecision{Priority: issue.Priority, Reasons: issue.PriorityReasons}
	}

	tier := CategoryBaseline(issue.Category)
	reasons := []string{
		fmt.Sprintf("category baseline: %s (%dh target)", issue.Category, issue.Category.BaseHours()),
	}

	if issue.ReportedPriority.Rank() > tier.Rank() {
		tier = issue.ReportedPriority
		reasons = append(reasons, fmt.Sprintf("reported as %s", issue.ReportedPriority))
	}

	score := issue.EngagementScore()
	if engaged := d.engagementTier(score); engaged.Rank() > tier.Rank() {
		tier = engaged
		if engaged.Rank() >= models.PriorityHigh.Rank() {
			reasons = append(reasons, fmt.Sprintf("high engagement: %d supporters", score))
		} else {
			reasons = append(reasons, fmt.Sprintf("engagement: %d supporters", score))
		}
	}

	if issue.PriorityFloor.Rank() > tier.Rank() {
		tier = issue.PriorityFloor
		reasons = append(reasons, fmt.Sprintf("manual floor: %s", issue.PriorityFloor))
	}

	if d.cfg.AgingDays > 0 && tier != models.PriorityUrgent {
		days := issue.DaysOpen(now)
		steps := days / d.cfg.AgingDays
		if steps > 2 {
			steps = 2
		}
		if steps > 0 {
			tier = tier.Escalate(steps)
			reasons = append(reasons, fmt.Sprintf("aging: %d days unresolved", days))
		}
	}

	return PriorityDecision{
		Priority: tier,
		Reasons:  reasons,
		Changed:  tier != issue.Priority || !equalStrings(reasons, issue.PriorityReasons),
	}
}

func (d *PriorityDeriver) engagementTier(score int) models.Priority {
	switch {
	case d.cfg.EngagementUrgent > 0 && score >= d.cfg.EngagementUrgent:
		return models.PriorityUrgent
	case d.cfg.EngagementHigh > 0 && score >= d.cfg.EngagementHigh:
		return models.PriorityHigh
	case d.cfg.EngagementMedium > 0 && score >= d.cfg.EngagementMedium:
		return models.PriorityMedium
	}
	return ""
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
