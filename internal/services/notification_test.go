package services

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"civic-reporter/internal/logger"
	"civic-reporter/internal/models"

	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type capturePublisher struct {
	name string
	err  error

	mu     sync.Mutex
	events []models.RealtimeEvent
}

func (p *capturePublisher) Name() string { return p.name }

func (p *capturePublisher) Publish(ctx context.Context, event models.RealtimeEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.events)
}

func TestNotificationServiceFansOut(t *testing.T) {
	ok := &capturePublisher{name: "ok"}
	failing := &capturePublisher{name: "failing", err: errors.New("broker down")}
	ns := NewNotificationService(16, 2, failing, ok)
	defer ns.Stop()

	for i := 0; i < 5; i++ {
		ns.Emit(models.RealtimeEvent{Type: models.EventNewIssue, IssueID: primitive.NewObjectID()})
	}

	assert.Eventually(t, func() bool {
		return ok.count() == 5 && failing.count() == 5
	}, 2*time.Second, 10*time.Millisecond)
}

func TestNotificationServiceStampsTimestamp(t *testing.T) {
	publisher := &capturePublisher{name: "capture"}
	ns := NewNotificationService(4, 1, publisher)
	defer ns.Stop()

	ns.Emit(models.RealtimeEvent{Type: models.EventIssueAssigned})

	require.Eventually(t, func() bool { return publisher.count() == 1 }, time.Second, 5*time.Millisecond)
	publisher.mu.Lock()
	defer publisher.mu.Unlock()
	assert.False(t, publisher.events[0].Timestamp.IsZero())
}

type blockingPublisher struct {
	release chan struct{}
}

func (p *blockingPublisher) Name() string { return "blocking" }

func (p *blockingPublisher) Publish(ctx context.Context, event models.RealtimeEvent) error {
	select {
	case <-p.release:
	case <-ctx.Done():
	}
	return nil
}

func TestNotificationServiceEmitNeverBlocks(t *testing.T) {
	publisher := &blockingPublisher{release: make(chan struct{})}
	ns := NewNotificationService(1, 1, publisher)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 50; i++ {
			ns.Emit(models.RealtimeEvent{Type: models.EventNewIssue})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Emit blocked on a full queue")
	}

	close(publisher.release)
	ns.Stop()
	ns.Stop()
}

func TestWebhookPublisherPostsEvent(t *testing.T) {
	var (
		mu        sync.Mutex
		eventType string
	)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		eventType = r.Header.Get("X-Event-Type")
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	publisher := NewWebhookPublisher(server.URL)
	err := publisher.Publish(context.Background(), models.RealtimeEvent{Type: models.EventIssueStatusUpdated})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "issueStatusUpdated", eventType)
}

func TestWebhookPublisherReportsErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewWebhookPublisher(server.URL).Publish(context.Background(), models.RealtimeEvent{Type: models.EventNewIssue})
	assert.Error(t, err)
}

func TestWebhookPublisherDoesNotResendAfterDroppedConnection(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		_, _ = io.ReadAll(r.Body)
		conn, _, err := w.(http.Hijacker).Hijack()
		if err == nil {
			conn.Close()
		}
	}))
	defer server.Close()

	err := NewWebhookPublisher(server.URL).Publish(context.Background(), models.RealtimeEvent{Type: models.EventNewIssue})
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestWebhookClientLogsThroughLogrus(t *testing.T) {
	hook := logtest.NewLocal(logger.GetLogger())
	defer hook.Reset()

	publisher := NewWebhookPublisher("http://127.0.0.1:1")
	publisher.client.SetProxy("://not-a-proxy")

	var found bool
	for _, entry := range hook.AllEntries() {
		if entry.Level == logrus.ErrorLevel && entry.Data["component"] == "webhook" && strings.Contains(entry.Message, "missing protocol scheme") {
			found = true
		}
	}
	assert.True(t, found, "resty errors should be written by the webhook logger")
}
