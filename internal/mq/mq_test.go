package mq

import (
	"context"
	"testing"

	"civic-reporter/internal/models"

	"github.com/stretchr/testify/assert"
)

func TestTopic(t *testing.T) {
	assert.Equal(t, "civic/issues/newIssue", Topic("civic/issues", models.EventNewIssue))
	assert.Equal(t, "civic/issues/issueAssigned", Topic("civic/issues/", models.EventIssueAssigned))
}

func TestConnectRequiresBroker(t *testing.T) {
	_, err := Connect(Config{})
	assert.Error(t, err)
}

func TestPublishWithoutClient(t *testing.T) {
	p := NewPublisher(nil, "civic/issues")
	assert.Equal(t, "mqtt", p.Name())
	assert.ErrorIs(t, p.Publish(context.Background(), models.RealtimeEvent{Type: models.EventNewIssue}), ErrNotConnected)
}
