package realtime

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID string
	send   chan []byte
	rooms  map[string]struct{} // guarded by hub.mu
	ready  chan struct{}

	// throttle limits messages read from this connection
	throttle *rate.Limiter
}

func (c *Client) UserID() string {
	return c.userID
}

type inbound struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

type roomPayload struct {
	ActivityID string `json:"activityId"`
	RideID     string `json:"rideId"`
}

func (c *Client) readPump() {
	defer func() {
		select {
		case c.hub.unregister <- c:
		case <-c.hub.done:
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.log.Debug("socket read failed", "user_id", c.userID, "error", err)
			}
			return
		}
		if !c.throttle.Allow() {
			c.reply("error", map[string]string{"message": "Too many messages, slow down"})
			continue
		}
		var msg inbound
		if err := json.Unmarshal(data, &msg); err != nil {
			c.reply("error", map[string]string{"message": "Malformed message"})
			continue
		}
		c.handle(msg)
	}
}

func (c *Client) handle(msg inbound) {
	var p roomPayload
	if len(msg.Payload) > 0 {
		_ = json.Unmarshal(msg.Payload, &p)
	}

	switch msg.Type {
	case "ping":
		c.reply("pong", map[string]interface{}{"timestamp": time.Now().UTC()})
	case "join_activity", "leave_activity":
		c.switchRoom(msg.Type, p.ActivityID, ActivityRoom)
	case "join_ride", "leave_ride":
		c.switchRoom(msg.Type, p.RideID, RideRoom)
	default:
		c.reply("error", map[string]string{"message": "Unknown message type: " + msg.Type})
	}
}

func (c *Client) switchRoom(kind, id string, room func(string) string) {
	if id == "" {
		c.reply("error", map[string]string{"message": kind + " requires an id"})
		return
	}
	name := room(id)
	if strings.HasPrefix(kind, "join") {
		c.hub.join(c, name)
		c.reply("joined", map[string]string{"room": name})
		return
	}
	c.hub.leave(c, name)
	c.reply("left", map[string]string{"room": name})
}

// reply queues a message for this client only.
func (c *Client) reply(event string, payload interface{}) {
	data, err := encode(event, payload)
	if err != nil {
		return
	}
	c.hub.mu.RLock()
	defer c.hub.mu.RUnlock()
	if _, ok := c.hub.clients[c]; !ok {
		return
	}
	select {
	case c.send <- data:
	default:
		c.hub.drop(c)
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
		case data, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, ""))
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
