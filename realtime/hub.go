// Package realtime fans server events out to connected websocket clients. Every client is in
// its own user room and may join activity and ride rooms.
package realtime

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 64

	// Per-connection inbound message budget.
	inboundRate  = 10
	inboundBurst = 20
)

type Message struct {
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	Timestamp time.Time   `json:"timestamp"`
}

func UserRoom(userID string) string         { return "user:" + userID }
func ActivityRoom(activityID string) string { return "activity:" + activityID }
func RideRoom(rideID string) string         { return "ride:" + rideID }

type clientSet map[*Client]struct{}

type Hub struct {
	mu      sync.RWMutex
	clients clientSet
	users   map[string]clientSet
	rooms   map[string]clientSet

	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	closeOnce  sync.Once
	log        *slog.Logger
}

func NewHub(log *slog.Logger) *Hub {
	if log == nil {
		log = slog.Default()
	}
	return &Hub{
		clients:    make(clientSet),
		users:      make(map[string]clientSet),
		rooms:      make(map[string]clientSet),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

// NewUpgrader accepts browser origins from the allow list. Requests without an Origin header
// (native clients) are accepted.
func NewUpgrader(allowedOrigins []string) *websocket.Upgrader {
	allowed := make(map[string]bool, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = true
	}
	return &websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed["*"] || allowed[origin]
		},
	}
}

// Run processes registrations until ctx is cancelled, then shuts the hub down.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.add(c)
		case c := <-h.unregister:
			h.remove(c)
		case <-ctx.Done():
			h.Shutdown()
			return
		case <-h.done:
			return
		}
	}
}

// Attach registers an upgraded connection for userID and starts its pumps.
func (h *Hub) Attach(conn *websocket.Conn, userID string) *Client {
	c := &Client{
		hub:    h,
		conn:   conn,
		userID: userID,
		send:   make(chan []byte, sendBuffer),
		rooms:  make(map[string]struct{}),
		ready:  make(chan struct{}),

		throttle: rate.NewLimiter(inboundRate, inboundBurst),
	}
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return nil
	}
	<-c.ready
	go c.writePump()
	go c.readPump()
	return c
}

func (h *Hub) add(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = struct{}{}
	if h.users[c.userID] == nil {
		h.users[c.userID] = make(clientSet)
	}
	h.users[c.userID][c] = struct{}{}
	h.joinLocked(c, UserRoom(c.userID))
	close(c.ready)
	h.log.Debug("socket connected", "user_id", c.userID)
}

func (h *Hub) remove(c *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.removeLocked(c)
}

func (h *Hub) removeLocked(c *Client) {
	if _, ok := h.clients[c]; !ok {
		return
	}
	delete(h.clients, c)
	if set := h.users[c.userID]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.users, c.userID)
		}
	}
	for room := range c.rooms {
		h.leaveLocked(c, room)
	}
	close(c.send)
	h.log.Debug("socket disconnected", "user_id", c.userID)
}

func (h *Hub) joinLocked(c *Client, room string) {
	if h.rooms[room] == nil {
		h.rooms[room] = make(clientSet)
	}
	h.rooms[room][c] = struct{}{}
	c.rooms[room] = struct{}{}
}

func (h *Hub) leaveLocked(c *Client, room string) {
	if set := h.rooms[room]; set != nil {
		delete(set, c)
		if len(set) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(c.rooms, room)
}

func (h *Hub) join(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		h.joinLocked(c, room)
	}
}

func (h *Hub) leave(c *Client, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.leaveLocked(c, room)
}

// drop schedules removal of a client whose buffer is full.
func (h *Hub) drop(c *Client) {
	go func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()
}

func encode(event string, payload interface{}) ([]byte, error) {
	return json.Marshal(Message{Type: event, Payload: payload, Timestamp: time.Now().UTC()})
}

func (h *Hub) deliver(set clientSet, data []byte) {
	for c := range set {
		select {
		case c.send <- data:
		default:
			h.drop(c)
		}
	}
}

func (h *Hub) fanout(event string, payload interface{}, pick func() clientSet) {
	data, err := encode(event, payload)
	if err != nil {
		h.log.Warn("socket payload encode failed", "event", event, "error", err)
		return
	}
	h.mu.RLock()
	defer h.mu.RUnlock()
	h.deliver(pick(), data)
}

func (h *Hub) SendToUser(userID, event string, payload interface{}) {
	h.fanout(event, payload, func() clientSet { return h.users[userID] })
}

func (h *Hub) SendToRoom(room, event string, payload interface{}) {
	h.fanout(event, payload, func() clientSet { return h.rooms[room] })
}

func (h *Hub) Broadcast(event string, payload interface{}) {
	h.fanout(event, payload, func() clientSet { return h.clients })
}

// OnlineCount is the number of distinct connected users.
func (h *Hub) OnlineCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users)
}

func (h *Hub) IsUserOnline(userID string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.users[userID]) > 0
}

func (h *Hub) RoomSize(room string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[room])
}

// Shutdown closes every client and clears the maps. It is safe to call more than once.
func (h *Hub) Shutdown() {
	h.closeOnce.Do(func() {
		close(h.done)
		h.mu.Lock()
		defer h.mu.Unlock()
		for c := range h.clients {
			h.removeLocked(c)
		}
		h.clients = make(clientSet)
		h.users = make(map[string]clientSet)
		h.rooms = make(map[string]clientSet)
	})
}
