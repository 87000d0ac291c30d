package handlers

import (
	"net/http"

	"civic-reporter/internal/services"

	"github.com/gin-gonic/gin"
)

// ChatHandler serves the per-issue discussion thread.
type ChatHandler struct {
	chat *services.ChatService
}

type PostMessageRequest struct {
	Body string `json:"body" binding:"required,max=2000"`
}

func NewChatHandler(chat *services.ChatService) *ChatHandler {
	return &ChatHandler{chat: chat}
}

func (h *ChatHandler) ListMessages(c *gin.Context) {
	id, ok := pathID(c)
	if !ok {
		return
	}
	page, limit := pageParams(c.Request.URL.Query())

	ctx, cancel := requestContext(c)
	defer cancel()

	messages, err := h.chat.List(ctx, id, page, limit)
	if err != nil {
		respondError(c, err, "chat_handler")
		return
	}
	c.JSON(http.StatusOK, messages)
}

func (h *ChatHandler) PostMessage(c *gin.Context) {
	actor, ok := currentActor(c)
	if !ok {
		return
	}
	id, ok := pathID(c)
	if !ok {
		return
	}

	var req PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "Invalid request data", err)
		return
	}

	ctx, cancel := requestContext(c)
	defer cancel()

	message, err := h.chat.Post(ctx, id, actor.UserID, req.Body)
	if err != nil {
		respondError(c, err, "chat_handler")
		return
	}
	c.JSON(http.StatusCreated, message)
}
