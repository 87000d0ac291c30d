package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// Pinger is a dependency checked by the readiness probe.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingFunc adapts a function to Pinger.
type PingFunc func(ctx context.Context) error

func (f PingFunc) Ping(ctx context.Context) error { return f(ctx) }

type HealthHandler struct {
	started     time.Time
	version     string
	connections func() int
	deps        map[string]Pinger
}

// NewHealthHandler reports connections from the realtime hub and pings deps on /ready.
func NewHealthHandler(version string, connections func() int, deps map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		started:     time.Now(),
		version:     version,
		connections: connections,
		deps:        deps,
	}
}

func (h *HealthHandler) Health(c *gin.Context) {
	connections := 0
	if h.connections != nil {
		connections = h.connections()
	}
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(h.started).String(),
		"version":   h.version,
		"stats": gin.H{
			"websocket_connections": connections,
		},
	})
}

func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	checks := gin.H{}
	ready := true
	for name, dep := range h.deps {
		if err := dep.Ping(ctx); err != nil {
			checks[name] = err.Error()
			ready = false
			continue
		}
		checks[name] = "ok"
	}

	status := http.StatusOK
	if !ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, gin.H{"ready": ready, "checks": checks})
}
