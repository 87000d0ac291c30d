// internal/handlers/notification.go
package handlers

import (
	"net/http"

	"civic-reporter/internal/services"

	"github.com/gin-gonic/gin"
)

// NotificationHandler serves the reporter-facing notification log of an issue.
type NotificationHandler struct {
	issues *services.IssueService
}

func NewNotificationHandler(issues *services.IssueService) *NotificationHandler {
	return &NotificationHandler{issues: issues}
}

// MarkAllAsRead marks every notification on the caller's issue as read.
func (h *NotificationHandler) MarkAllAsRead(c *gin.Context) {
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

	issue, err := h.issues.MarkNotificationsRead(ctx, actor, id)
	if err != nil {
		respondError(c, err, "notification_handler")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"notifications": issue.Notifications,
		"unreadCount":   issue.UnreadNotifications(),
	})
}
