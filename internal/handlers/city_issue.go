// internal/handlers/city_issue.go
package handlers

import (
	"encoding/json"
	"net/http"

	"civic-reporter/internal/models"
	"civic-reporter/internal/services"

	"github.com/gin-gonic/gin"
)

type IssueHandler struct {
	issues *services.IssueService
}

type ReportIssueRequest struct {
	Title       string          `json:"title" binding:"required,max=200"`
	Description string          `json:"description" binding:"required,max=2000"`
	Category    string          `json:"category" binding:"required,category"`
	Priority    string          `json:"priority" binding:"omitempty,priority"`
	Location    json.RawMessage `json:"location"`
	Images      []string        `json:"images" binding:"max=10"`
	VoiceNote   string          `json:"voiceNote"`
	LocationFields
}

type VoteResponse struct {
	Issue *models.Issue `json:"issue"`
	Voted bool          `json:"voted"`
	Votes int           `json:"votes"`
}

func NewIssueHandler(issues *services.IssueService) *IssueHandler {
	return &IssueHandler{issues: issues}
}

func (h *IssueHandler) ReportIssue(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	var req ReportIssueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	location, err := ParseLocation(req.Location, req.LocationFields)
	if err != nil {
		respondError(c, err, "issue_handler")
		return
	}

	images := req.Images
	if images == nil {
		images = []string{}
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	resolution, err := h.issues.Report(ctx, services.Draft{
		Title:       req.Title,
		Description: req.Description,
		Category:    models.Category(req.Category),
		Location:    location,
		Images:      images,
		VoiceNote:   req.VoiceNote,
		Priority:    models.Priority(req.Priority),
		ReportedBy:  actor.UserID,
	})
	if err != nil {
		respondError(c, err, "issue_handler")
		return
	}

	status := http.StatusCreated
	if resolution.Merged {
		status = http.StatusOK
	}
	c.JSON(status, resolution)
}

func (h *IssueHandler) ListIssues(c *gin.Context) {
	query, err := ParseIssueQuery(c.Request.URL.Query())
	if err != nil {
		respondError(c, err, "issue_handler")
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := h.issues.List(ctx, query)
	if err != nil {
		respondError(c, err, "issue_handler")
		return
	}
	c.JSON(http.StatusOK, page)
}

func (h *IssueHandler) GetIssue(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := h.issues.Get(ctx, id)
	if err != nil {
		respondError(c, err, "issue_handler")
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *IssueHandler) ToggleVote(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issue, voted, err := h.issues.ToggleVote(ctx, id, actor.UserID)
	if err != nil {
		respondError(c, err, "issue_handler")
		return
	}
	c.JSON(http.StatusOK, VoteResponse{Issue: issue, Voted: voted, Votes: issue.Votes})
}
