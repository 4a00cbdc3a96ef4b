// Package streaming broadcasts evaluation and alert events to connected
// websocket clients, scoped per organization room (spec §11).
package streaming

import (
	"net/http"
	"sync"
	"time"

	"github.com/complif/rules-engine/internal/app/domain"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	writeTimeout = 10 * time.Second
	pingInterval = 30 * time.Second
	sendBuffer   = 32
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// EventType discriminates the two event kinds broadcast over a room.
type EventType string

const (
	EventEvaluation EventType = "evaluation"
	EventAlert      EventType = "alert"
)

// Event is the envelope written to every subscriber of an organization's
// room.
type Event struct {
	Type      EventType `json:"type"`
	Org       string    `json:"organizationId"`
	Payload   any       `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// client is one connected websocket subscriber.
type client struct {
	org  string
	conn *websocket.Conn
	send chan Event
}

// Hub fans evaluation and alert events out to per-organization rooms of
// connected websocket clients. It implements evaluation.EventPublisher.
type Hub struct {
	mu    sync.RWMutex
	rooms map[string]map[*client]bool
	log   *logrus.Entry
}

// NewHub builds an empty Hub.
func NewHub(log *logrus.Entry) *Hub {
	if log == nil {
		log = logrus.NewEntry(logrus.New())
	}
	return &Hub{rooms: map[string]map[*client]bool{}, log: log}
}

// ServeHTTP upgrades the request to a websocket connection and subscribes
// it to org's room until the connection closes.
func (h *Hub) ServeHTTP(org string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.WithError(err).Warn("streaming: websocket upgrade failed")
		return
	}
	c := &client{org: org, conn: conn, send: make(chan Event, sendBuffer)}
	h.join(c)
	go h.writePump(c)
	go h.readPump(c)
}

func (h *Hub) join(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	room, ok := h.rooms[c.org]
	if !ok {
		room = map[*client]bool{}
		h.rooms[c.org] = room
	}
	room[c] = true
}

func (h *Hub) leave(c *client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if room, ok := h.rooms[c.org]; ok {
		delete(room, c)
		if len(room) == 0 {
			delete(h.rooms, c.org)
		}
	}
	close(c.send)
}

// readPump drains and discards inbound frames; it exists only to detect
// disconnects and keep the connection's read deadline fresh.
func (h *Hub) readPump(c *client) {
	defer func() {
		h.leave(c)
		c.conn.Close()
	}()
	c.conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(2 * pingInterval))
		return nil
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			return
		}
	}
}

func (h *Hub) writePump(c *client) {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()
	for {
		select {
		case evt, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, nil)
				return
			}
			if err := c.conn.WriteJSON(evt); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (h *Hub) broadcast(org string, evt Event) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.rooms[org] {
		select {
		case c.send <- evt:
		default:
			h.log.WithField("org", org).Warn("streaming: dropping event for slow client")
		}
	}
}

// PublishEvaluation broadcasts an evaluation outcome to org's room.
func (h *Hub) PublishEvaluation(org string, result domain.EvaluationResult) {
	h.broadcast(org, Event{Type: EventEvaluation, Org: org, Payload: result, Timestamp: time.Now().UTC()})
}

// PublishAlert broadcasts an alert to org's room.
func (h *Hub) PublishAlert(org string, a domain.Alert) {
	h.broadcast(org, Event{Type: EventAlert, Org: org, Payload: a, Timestamp: time.Now().UTC()})
}

// RoomSize reports how many clients are currently subscribed to org's
// room; used by tests.
func (h *Hub) RoomSize(org string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[org])
}
