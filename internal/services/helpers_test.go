package services

import (
	"sync"
	"time"

	"civic-reporter/internal/config"
	"civic-reporter/internal/models"
	"civic-reporter/internal/store"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type recordingEmitter struct {
	mu     sync.Mutex
	events []models.RealtimeEvent
}

func (r *recordingEmitter) Emit(event models.RealtimeEvent) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
}

func (r *recordingEmitter) Events() []models.RealtimeEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.RealtimeEvent(nil), r.events...)
}

func (r *recordingEmitter) OfType(t models.EventType) []models.RealtimeEvent {
	var out []models.RealtimeEvent
	for _, event := range r.Events() {
		if event.Type == t {
			out = append(out, event)
		}
	}
	return out
}

type fixedClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFixedClock(t time.Time) *fixedClock {
	return &fixedClock{now: t}
}

func (c *fixedClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fixedClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func testConfig() *config.Config {
	return &config.Config{
		Clustering: config.DefaultClustering(),
		Priority:   config.DefaultPriority(),
	}
}

type fixture struct {
	store  *store.MemoryStore
	issues *IssueService
	chat   *ChatService
	events *recordingEmitter
	clock  *fixedClock
}

func newFixture(cfg *config.Config) *fixture {
	clock := newFixedClock(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC))
	memory := store.NewMemoryStore().WithClock(clock.Now)
	events := &recordingEmitter{}

	issues := NewIssueService(memory, cfg, events).WithClock(clock.Now)
	chat := NewChatService(memory, memory, events)
	chat.now = clock.Now

	return &fixture{store: memory, issues: issues, chat: chat, events: events, clock: clock}
}

func draftAt(category models.Category, lng, lat float64) Draft {
	return Draft{
		Title:       "Broken pipe on main street",
		Description: "Water everywhere near the bakery",
		Category:    category,
		Location:    models.NewPoint(lng, lat),
		ReportedBy:  primitive.NewObjectID(),
	}
}

var (
	official = models.Actor{UserID: primitive.NewObjectID(), Role: models.RoleGovernment}
	citizen  = models.Actor{UserID: primitive.NewObjectID(), Role: models.RoleCitizen}
)
