// Package websocket pushes realtime issue events to connected browsers.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"civic-reporter/internal/logger"
	"civic-reporter/internal/models"

	gorilla "github.com/gorilla/websocket"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 512
	sendBuffer     = 256
)

var ErrHubStopped = errors.New("websocket hub stopped")

// WSMessage is the envelope for everything written to or read from a socket.
type WSMessage struct {
	Type    string      `json:"type"`
	IssueID string      `json:"issueId,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan models.RealtimeEvent
	stop       chan struct{}
	stopOnce   sync.Once
	mutex      sync.RWMutex
}

// Client is one socket. With no subscriptions it receives every event;
// otherwise only events for subscribed issues or addressed to its user.
type Client struct {
	hub    *Hub
	conn   *gorilla.Conn
	send   chan []byte
	userID primitive.ObjectID

	subMutex      sync.RWMutex
	subscriptions map[primitive.ObjectID]bool
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan models.RealtimeEvent, sendBuffer),
		stop:       make(chan struct{}),
	}
}

// Run processes registrations and broadcasts until Stop is called.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mutex.Lock()
			h.clients[client] = true
			h.mutex.Unlock()
			logger.Debug("WebSocket client registered", map[string]interface{}{"user_id": client.userID.Hex()})

		case client := <-h.unregister:
			h.remove(client)
			logger.Debug("WebSocket client unregistered", map[string]interface{}{"user_id": client.userID.Hex()})

		case event := <-h.broadcast:
			h.deliver(event)

		case <-h.stop:
			h.mutex.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.mutex.Unlock()
			return
		}
	}
}

func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}

func (h *Hub) Name() string {
	return "websocket"
}

// Publish hands an event to the hub loop.
func (h *Hub) Publish(ctx context.Context, event models.RealtimeEvent) error {
	select {
	case h.broadcast <- event:
		return nil
	case <-h.stop:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ServeClient registers an upgraded connection and starts its pumps.
func (h *Hub) ServeClient(conn *gorilla.Conn, userID primitive.ObjectID) {
	client := &Client{
		hub:           h,
		conn:          conn,
		send:          make(chan []byte, sendBuffer),
		userID:        userID,
		subscriptions: make(map[primitive.ObjectID]bool),
	}

	select {
	case h.register <- client:
	case <-h.stop:
		conn.Close()
		return
	}

	go client.writePump()
	go client.readPump()
}

func (h *Hub) remove(client *Client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
	}
}

func (h *Hub) deliver(event models.RealtimeEvent) {
	payload, err := json.Marshal(WSMessage{
		Type:    string(event.Type),
		IssueID: event.IssueID.Hex(),
		Data:    event,
	})
	if err != nil {
		logger.WithError(err, "websocket").Error("Failed to marshal event")
		return
	}

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		if !client.wants(event) {
			continue
		}
		select {
		case client.send <- payload:
		default:
			// Slow consumer.
			delete(h.clients, client)
			close(client.send)
		}
	}
}

func (c *Client) wants(event models.RealtimeEvent) bool {
	c.subMutex.RLock()
	defer c.subMutex.RUnlock()
	if len(c.subscriptions) == 0 {
		return true
	}
	return c.subscriptions[event.IssueID] || event.UserID == c.userID
}

func (c *Client) handle(msg WSMessage) {
	switch msg.Type {
	case "subscribe", "unsubscribe":
		issueID, err := primitive.ObjectIDFromHex(msg.IssueID)
		if err != nil {
			c.reply(WSMessage{Type: "error", Data: "invalid issueId"})
			return
		}
		c.subMutex.Lock()
		if msg.Type == "subscribe" {
			c.subscriptions[issueID] = true
		} else {
			delete(c.subscriptions, issueID)
		}
		c.subMutex.Unlock()
		c.reply(WSMessage{Type: msg.Type + "d", IssueID: msg.IssueID})
	case "ping":
		c.reply(WSMessage{Type: "pong"})
	}
}

// reply queues a direct answer; it is dropped if the client is backed up.
func (c *Client) reply(msg WSMessage) {
	payload, err := json.Marshal(msg)
	if err != nil {
		return
	}

	c.hub.mutex.RLock()
	defer c.hub.mutex.RUnlock()
	if !c.hub.clients[c] {
		return
	}
	select {
	case c.send <- payload:
	default:
	}
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.stop:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		var msg WSMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			if gorilla.IsUnexpectedCloseError(err, gorilla.CloseGoingAway, gorilla.CloseAbnormalClosure) {
				logger.WithError(err, "websocket").Warn("Unexpected socket close")
			}
			return
		}
		c.handle(msg)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(gorilla.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(gorilla.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(gorilla.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
