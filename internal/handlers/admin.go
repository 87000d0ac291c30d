package handlers

import (
	"net/http"

	"civic-reporter/internal/models"
	"civic-reporter/internal/services"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AdminHandler exposes the official-only workflow operations.
type AdminHandler struct {
	issues *services.IssueService
}

type UpdateStatusRequest struct {
	Status                string   `json:"status" binding:"required,status"`
	Comment               string   `json:"comment" binding:"max=1000"`
	ResolutionDescription string   `json:"resolutionDescription" binding:"max=2000"`
	ResolutionImages      []string `json:"resolutionImages"`
}

type AssignRequest struct {
	Department string `json:"department" binding:"required,max=100"`
	Official   string `json:"official"`
	Comment    string `json:"comment" binding:"max=1000"`
}

type SetPriorityRequest struct {
	Priority string `json:"priority" binding:"omitempty,priority"`
	Auto     bool   `json:"auto"`
}

func NewAdminHandler(issues *services.IssueService) *AdminHandler {
	return &AdminHandler{issues: issues}
}

func (h *AdminHandler) UpdateStatus(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := h.issues.Transition(ctx, actor, id, models.Status(req.Status), req.Comment, services.ResolutionInput{
		Description: req.ResolutionDescription,
		Images:      req.ResolutionImages,
	})
	if err != nil {
		respondError(c, err, "admin_handler")
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *AdminHandler) Assign(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req AssignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	var official *primitive.ObjectID
	if req.Official != "" {
		officialID, err := primitive.ObjectIDFromHex(req.Official)
		if err != nil {
			badRequest(c, "Invalid official ID", nil)
			return
		}
		official = &officialID
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := h.issues.Assign(ctx, actor, id, req.Department, official, req.Comment)
	if err != nil {
		respondError(c, err, "admin_handler")
		return
	}
	c.JSON(http.StatusOK, issue)
}

// SetPriority pins a priority, or with auto=true returns the issue to derivation.
func (h *AdminHandler) SetPriority(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req SetPriorityRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}
	if !req.Auto && req.Priority == "" {
		badRequest(c, "priority is required unless auto is set", nil)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := h.issues.SetPriority(ctx, actor, id, models.Priority(req.Priority), req.Auto)
	if err != nil {
		respondError(c, err, "admin_handler")
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *AdminHandler) Reprioritize(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	issue, err := h.issues.Reprioritize(ctx, id)
	if err != nil {
		respondError(c, err, "admin_handler")
		return
	}
	c.JSON(http.StatusOK, issue)
}

func (h *AdminHandler) Stats(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	stats, err := h.issues.Stats(ctx, actor)
	if err != nil {
		respondError(c, err, "admin_handler")
		return
	}
	c.JSON(http.StatusOK, stats)
}
