package services

import (
	"context"
	"sync"
	"time"

	"civic-reporter/internal/logger"
	"civic-reporter/internal/models"
)

// Publisher delivers realtime events to one channel (websocket clients, MQTT, a webhook).
type Publisher interface {
	Name() string
	Publish(ctx context.Context, event models.RealtimeEvent) error
}

// EventEmitter is what the issue and chat services depend on.
type EventEmitter interface {
	Emit(event models.RealtimeEvent)
}

const publishTimeout = 5 * time.Second

// NotificationService fans realtime events out to publishers from a small
// worker pool. Delivery is best-effort: a full queue drops the event and a
// failing publisher is only logged.
type NotificationService struct {
	publishers  []Publisher
	eventQueue  chan models.RealtimeEvent
	workerCount int
	stopChan    chan struct{}
	stopOnce    sync.Once
	wg          sync.WaitGroup
}

func NewNotificationService(bufferSize, workers int, publishers ...Publisher) *NotificationService {
	if bufferSize <= 0 {
		bufferSize = 256
	}
	if workers <= 0 {
		workers = 1
	}

	ns := &NotificationService{
		publishers:  publishers,
		eventQueue:  make(chan models.RealtimeEvent, bufferSize),
		workerCount: workers,
		stopChan:    make(chan struct{}),
	}

	for i := 0; i < ns.workerCount; i++ {
		ns.wg.Add(1)
		go ns.worker(i)
	}

	return ns
}

// Emit queues an event without blocking the caller.
func (ns *NotificationService) Emit(event models.RealtimeEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case ns.eventQueue <- event:
	default:
		logger.Warn("Event queue full, dropping event", map[string]interface{}{
			"type":     event.Type,
			"issue_id": event.IssueID.Hex(),
		})
	}
}

// Stop ends the workers. Events still queued are discarded.
func (ns *NotificationService) Stop() {
	ns.stopOnce.Do(func() {
		close(ns.stopChan)
	})
	ns.wg.Wait()
}

func (ns *NotificationService) worker(id int) {
	defer ns.wg.Done()

	for {
		select {
		case event := <-ns.eventQueue:
			ns.dispatch(event)
		case <-ns.stopChan:
			logger.Debug("Event worker stopping", map[string]interface{}{"worker_id": id})
			return
		}
	}
}

func (ns *NotificationService) dispatch(event models.RealtimeEvent) {
	for _, publisher := range ns.publishers {
		ctx, cancel := context.WithTimeout(context.Background(), publishTimeout)
		err := publisher.Publish(ctx, event)
		cancel()

		if err != nil {
			logger.Warn("Failed to publish event", map[string]interface{}{
				"publisher": publisher.Name(),
				"type":      event.Type,
				"issue_id":  event.IssueID.Hex(),
				"error":     err.Error(),
			})
		}
	}
}
