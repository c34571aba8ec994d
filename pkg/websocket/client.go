package websocket

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

type ClientConfig struct {
	WriteTimeout   time.Duration
	PongTimeout    time.Duration
	PingInterval   time.Duration
	MaxMessageSize int64
	SendBufferSize int
}

func (c ClientConfig) withDefaults() ClientConfig {
	if c.WriteTimeout <= 0 {
		c.WriteTimeout = 10 * time.Second
	}
	if c.PongTimeout <= 0 {
		c.PongTimeout = 60 * time.Second
	}
	if c.PingInterval <= 0 || c.PingInterval >= c.PongTimeout {
		c.PingInterval = (c.PongTimeout * 9) / 10
	}
	if c.MaxMessageSize <= 0 {
		c.MaxMessageSize = 4096
	}
	if c.SendBufferSize <= 0 {
		c.SendBufferSize = 256
	}
	return c
}

// Client is one realtime connection. UserID and Role are empty for
// anonymous connections, which still receive events sent to everyone.
type Client struct {
	ID     string
	UserID string
	Role   string

	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	rooms map[string]bool
	cfg   ClientConfig
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, role string, cfg ClientConfig) *Client {
	cfg = cfg.withDefaults()
	return &Client{
		ID:     uuid.NewString(),
		UserID: userID,
		Role:   role,
		hub:    hub,
		conn:   conn,
		send:   make(chan []byte, cfg.SendBufferSize),
		rooms:  make(map[string]bool),
		cfg:    cfg,
	}
}

type inboundMessage struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type joinVolunteerData struct {
	VolunteerID string `json:"volunteerId"`
}

func (c *Client) readPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.cfg.MaxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(c.cfg.PongTimeout))
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.WithError(err).Warn("Realtime connection closed unexpectedly")
			}
			return
		}

		c.handleMessage(message)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(c.cfg.PingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}

			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(c.cfg.WriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) handleMessage(message []byte) {
	var msg inboundMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		c.replyError("Malformed message")
		return
	}

	switch msg.Event {
	case EventJoinVolunteer:
		if c.Role != RoleVolunteer {
			c.replyError("Only volunteers can join the volunteer group")
			return
		}
		var data joinVolunteerData
		if len(msg.Data) > 0 {
			if err := json.Unmarshal(msg.Data, &data); err != nil {
				c.replyError("Malformed join request")
				return
			}
		}
		if data.VolunteerID != "" && data.VolunteerID != c.UserID {
			c.replyError("Volunteer id does not match the authenticated user")
			return
		}
		c.hub.Join(c, RoomVolunteers)
		c.hub.log.WithField("volunteer_id", c.UserID).Debug("Volunteer joined realtime group")

	case EventLeaveVolunteer:
		c.hub.Leave(c, RoomVolunteers)

	default:
		c.replyError("Unknown event " + msg.Event)
	}
}

func (c *Client) replyError(message string) {
	env, err := c.hub.newEnvelope("", EventError, map[string]string{"message": message})
	if err != nil {
		return
	}
	c.hub.mutex.Lock()
	defer c.hub.mutex.Unlock()
	if c.hub.clients[c] {
		c.hub.sendLocked(c, env.Payload)
	}
}
