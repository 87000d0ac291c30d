// internal/handlers/users.go

package handlers

import (
	"net/http"

	"civic-reporter/internal/models"
	"civic-reporter/internal/services"

	"github.com/gin-gonic/gin"
)

type UsersHandler struct {
	auth   *services.AuthService
	issues *services.IssueService
}

type CreateUserRequest struct {
	Name       string `json:"name" binding:"required,min=2,max=100"`
	Email      string `json:"email" binding:"required,email"`
	Password   string `json:"password" binding:"required,min=6,max=100"`
	Role       string `json:"role" binding:"required,role"`
	Department string `json:"department" binding:"max=100"`
}

func NewUsersHandler(auth *services.AuthService, issues *services.IssueService) *UsersHandler {
	return &UsersHandler{auth: auth, issues: issues}
}

// GetMyIssues lists the issues the caller reported or co-reported through a merge.
func (h *UsersHandler) GetMyIssues(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}

	query, err := ParseIssueQuery(c.Request.URL.Query())
	if err != nil {
		respondError(c, err, "users_handler")
		return
	}
	ctx, cancel := requestContext(c)
	defer cancel()

	page, err := h.issues.ListMine(ctx, actor.UserID, query)
	if err != nil {
		respondError(c, err, "users_handler")
		return
	}
	c.JSON(http.StatusOK, page)
}

// CreateUser lets an admin provision citizen, government or admin accounts.
func (h *UsersHandler) CreateUser(c *gin.Context) {
	var req CreateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	user, err := h.auth.CreateUser(ctx, services.NewUser{
		Name:       req.Name,
		Email:      req.Email,
		Password:   req.Password,
		Role:       models.UserRole(req.Role),
		Department: req.Department,
	})
	if err != nil {
		respondError(c, err, "users_handler")
		return
	}
	c.JSON(http.StatusCreated, user)
}
