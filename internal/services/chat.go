package services

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"civic-reporter/internal/apperror"
	"civic-reporter/internal/models"
	"civic-reporter/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const maxMessageLength = 2000

// ChatService keeps the per-issue discussion. Messages always attach to the
// canonical issue so every co-reporter sees the same thread.
type ChatService struct {
	issues   store.IssueStore
	messages store.ChatStore
	events   EventEmitter
	now      func() time.Time
}

func NewChatService(issues store.IssueStore, messages store.ChatStore, events EventEmitter) *ChatService {
	return &ChatService{
		issues:   issues,
		messages: messages,
		events:   events,
		now:      time.Now,
	}
}

func (s *ChatService) Post(ctx context.Context, issueID, author primitive.ObjectID, body string) (*models.ChatMessage, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperror.Validation("message body is required")
	}
	if utf8.RuneCountInString(body) > maxMessageLength {
		return nil, apperror.Validation("message body exceeds %d characters", maxMessageLength)
	}

	issue, err := s.canonical(ctx, issueID)
	if err != nil {
		return nil, err
	}

	message, err := s.messages.CreateMessage(ctx, &models.ChatMessage{
		IssueID:   issue.ID,
		Author:    author,
		Body:      body,
		CreatedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	if s.events != nil {
		messageID := message.ID
		s.events.Emit(models.RealtimeEvent{
			Type:      models.EventIssueChatMessage,
			IssueID:   issue.ID,
			MessageID: &messageID,
			UserID:    author,
			Summary:   fmt.Sprintf("New message on issue %q", issue.Title),
			Timestamp: message.CreatedAt,
		})
	}
	return message, nil
}

// List returns one page of the thread. Pages are counted from the newest
// message; messages inside a page are oldest first.
func (s *ChatService) List(ctx context.Context, issueID primitive.ObjectID, page, limit int) (*models.MessagePage, error) {
	query := models.IssueQuery{Page: page, Limit: limit}.Normalize()

	issue, err := s.canonical(ctx, issueID)
	if err != nil {
		return nil, err
	}

	messages, total, err := s.messages.ListMessages(ctx, issue.ID, query.Page, query.Limit)
	if err != nil {
		return nil, err
	}

	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	if messages == nil {
		messages = []*models.ChatMessage{}
	}

	return &models.MessagePage{
		Messages:   messages,
		Pagination: models.NewPagination(query.Page, query.Limit, total),
	}, nil
}

func (s *ChatService) canonical(ctx context.Context, id primitive.ObjectID) (*models.Issue, error) {
	issue, err := s.issues.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if issue.IsCanonical() {
		return issue, nil
	}
	return s.issues.FindByID(ctx, issue.CanonicalID())
}
