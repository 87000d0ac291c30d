package services

import (
	"context"
	"fmt"
	"time"

	"civic-reporter/internal/logger"
	"civic-reporter/internal/models"

	"github.com/go-resty/resty/v2"
)

// WebhookPublisher posts every event as JSON to a fixed URL. Each event is
// sent once; a failed post is not retried.
type WebhookPublisher struct {
	client *resty.Client
	url    string
}

func NewWebhookPublisher(url string) *WebhookPublisher {
	client := resty.New().
		SetTimeout(10*time.Second).
		SetLogger(logger.WithContext(map[string]interface{}{"component": "webhook"})).
		SetHeader("Content-Type", "application/json")

	return &WebhookPublisher{client: client, url: url}
}

func (p *WebhookPublisher) Name() string {
	return "webhook"
}

func (p *WebhookPublisher) Publish(ctx context.Context, event models.RealtimeEvent) error {
	resp, err := p.client.R().
		SetContext(ctx).
		SetHeader("X-Event-Type", string(event.Type)).
		SetBody(event).
		Post(p.url)
	if err != nil {
		return fmt.Errorf("post webhook: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("webhook responded with status %d", resp.StatusCode())
	}
	return nil
}
