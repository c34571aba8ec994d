// Package websocket is the realtime channel. Connections register with a Hub,
// may join named rooms, and receive JSON frames of the form
// {"event": "...", "data": {...}, "timestamp": <unix>}.
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"sosalert/pkg/logger"
)

// ErrHubStopped is returned by Publish once Run has returned.
var ErrHubStopped = errors.New("realtime hub stopped")

// Publisher delivers an event to every connection in room, or to every
// connection when room is empty.
type Publisher interface {
	Publish(ctx context.Context, room, event string, data interface{}) error
}

// Observer receives connection and delivery counts.
type Observer interface {
	ConnectionOpened()
	ConnectionClosed()
	EventPublished(event string)
}

type Message struct {
	Event     string      `json:"event"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// envelope is a message addressed to a room; it is also the relay wire format.
type envelope struct {
	Room    string          `json:"room,omitempty"`
	Event   string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// registration is acknowledged once the client is in the hub's client set.
type registration struct {
	client *Client
	ack    chan struct{}
}

type Hub struct {
	clients    map[*Client]bool
	rooms      map[string]map[*Client]bool
	register   chan registration
	unregister chan *Client
	broadcast  chan envelope
	done       chan struct{}
	mutex      sync.RWMutex

	log      *logger.Logger
	observer Observer
	now      func() time.Time
}

func NewHub(log *logger.Logger, observer Observer) *Hub {
	if log == nil {
		log = logger.NewNop()
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		rooms:      make(map[string]map[*Client]bool),
		register:   make(chan registration),
		unregister: make(chan *Client),
		broadcast:  make(chan envelope, 256),
		done:       make(chan struct{}),
		log:        log,
		observer:   observer,
		now:        time.Now,
	}
}

// Run serves the hub until ctx is cancelled, then closes every connection.
func (h *Hub) Run(ctx context.Context) {
	defer h.shutdown()

	for {
		select {
		case <-ctx.Done():
			return

		case req := <-h.register:
			h.registerClient(req.client)
			close(req.ack)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case env := <-h.broadcast:
			h.deliver(env)
		}
	}
}

// Register hands a client to the hub and returns once the client can join
// rooms. It returns false when the hub has stopped.
func (h *Hub) Register(client *Client) bool {
	req := registration{client: client, ack: make(chan struct{})}
	select {
	case h.register <- req:
	case <-h.done:
		return false
	}
	<-req.ack
	return true
}

func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// Publish queues an event for local delivery.
func (h *Hub) Publish(ctx context.Context, room, event string, data interface{}) error {
	env, err := h.newEnvelope(room, event, data)
	if err != nil {
		return err
	}
	return h.enqueue(ctx, env)
}

func (h *Hub) enqueue(ctx context.Context, env envelope) error {
	select {
	case <-h.done:
		return ErrHubStopped
	default:
	}

	select {
	case h.broadcast <- env:
		return nil
	case <-h.done:
		return ErrHubStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (h *Hub) newEnvelope(room, event string, data interface{}) (envelope, error) {
	payload, err := json.Marshal(Message{
		Event:     event,
		Data:      data,
		Timestamp: h.now().Unix(),
	})
	if err != nil {
		return envelope{}, err
	}
	return envelope{Room: room, Event: event, Payload: payload}, nil
}

// Join adds client to room. Only the hub mutates room membership.
func (h *Hub) Join(client *Client, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	if !h.clients[client] {
		return
	}
	if h.rooms[room] == nil {
		h.rooms[room] = make(map[*Client]bool)
	}
	h.rooms[room][client] = true
	client.rooms[room] = true
}

func (h *Hub) Leave(client *Client, room string) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.leaveRoom(client, room)
}

func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

func (h *Hub) RoomSize(room string) int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.rooms[room])
}

func (h *Hub) InRoom(client *Client, room string) bool {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return h.rooms[room][client]
}

func (h *Hub) registerClient(client *Client) {
	h.mutex.Lock()
	h.clients[client] = true
	h.mutex.Unlock()

	if h.observer != nil {
		h.observer.ConnectionOpened()
	}
	h.log.WithFields(map[string]interface{}{
		"client_user_id": client.UserID,
		"client_role":    client.Role,
	}).Debug("Realtime client connected")

	env, err := h.newEnvelope("", EventWelcome, map[string]interface{}{
		"message":  "Connected successfully",
		"clientId": client.ID,
	})
	if err == nil {
		h.mutex.Lock()
		h.sendLocked(client, env.Payload)
		h.mutex.Unlock()
	}
}

func (h *Hub) unregisterClient(client *Client) {
	h.mutex.Lock()
	removed := h.removeLocked(client)
	h.mutex.Unlock()

	if removed {
		h.log.WithField("client_user_id", client.UserID).Debug("Realtime client disconnected")
	}
}

func (h *Hub) deliver(env envelope) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	targets := h.clients
	if env.Room != "" {
		targets = h.rooms[env.Room]
	}
	for client := range targets {
		h.sendLocked(client, env.Payload)
	}

	if h.observer != nil {
		h.observer.EventPublished(env.Event)
	}
}

// sendLocked drops a client whose send buffer is full. Callers hold the write lock.
func (h *Hub) sendLocked(client *Client, payload []byte) {
	select {
	case client.send <- payload:
	default:
		h.log.WithField("client_user_id", client.UserID).Warn("Dropping slow realtime client")
		h.removeLocked(client)
	}
}

func (h *Hub) removeLocked(client *Client) bool {
	if !h.clients[client] {
		return false
	}
	delete(h.clients, client)
	for room := range client.rooms {
		h.leaveRoom(client, room)
	}
	close(client.send)

	if h.observer != nil {
		h.observer.ConnectionClosed()
	}
	return true
}

func (h *Hub) leaveRoom(client *Client, room string) {
	if members, ok := h.rooms[room]; ok {
		delete(members, client)
		if len(members) == 0 {
			delete(h.rooms, room)
		}
	}
	delete(client.rooms, room)
}

func (h *Hub) shutdown() {
	close(h.done)

	h.mutex.Lock()
	defer h.mutex.Unlock()
	for client := range h.clients {
		h.removeLocked(client)
	}
}
