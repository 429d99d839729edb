// Package events fans committed pipeline events out to websocket
// subscribers. Every event is journaled first, then broadcast; a slow
// or dead subscriber is skipped, never waited on.
package events

import (
	"fmt"
	"sync"
)

// Stream scopes a subscription. Every user has a private stream, every
// BOOM a public one; treasury updates go to the admin stream.
type Stream string

// StreamTreasury carries treasury balance updates. Admin only.
const StreamTreasury Stream = "treasury"

// UserStream is the private stream of one user.
func UserStream(userID int64) Stream {
	return Stream(fmt.Sprintf("user:%d", userID))
}

// BoomStream carries social value and social event updates for one BOOM.
func BoomStream(boomID int64) Stream {
	return Stream(fmt.Sprintf("boom:%d", boomID))
}

// Connection is one subscriber with its send channel and subscription
// set. The websocket layer owns the channels; the hub only writes to
// SendChannel and never blocks on it.
type Connection struct {
	ID           string
	SendChannel  chan []byte
	CloseChannel chan struct{}

	mu      sync.RWMutex
	streams map[Stream]struct{}
}

// NewConnection creates a connection with a buffered send channel.
func NewConnection(id string, sendBuffer int) *Connection {
	return &Connection{
		ID:           id,
		SendChannel:  make(chan []byte, sendBuffer),
		CloseChannel: make(chan struct{}),
		streams:      make(map[Stream]struct{}),
	}
}

// Subscribed reports whether the connection listens to the stream.
func (c *Connection) Subscribed(stream Stream) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.streams[stream]
	return ok
}

func (c *Connection) subscribe(streams ...Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range streams {
		c.streams[s] = struct{}{}
	}
}

func (c *Connection) unsubscribe(streams ...Stream) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range streams {
		delete(c.streams, s)
	}
}

// Hub tracks connections and routes broadcasts to subscribed ones.
type Hub struct {
	mu          sync.RWMutex
	connections map[string]*Connection
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{connections: make(map[string]*Connection)}
}

// AddConnection registers a connection.
func (h *Hub) AddConnection(conn *Connection) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.connections[conn.ID] = conn
}

// RemoveConnection drops a connection and signals its close channel.
func (h *Hub) RemoveConnection(id string) {
	h.mu.Lock()
	conn, ok := h.connections[id]
	delete(h.connections, id)
	h.mu.Unlock()

	if ok {
		select {
		case <-conn.CloseChannel:
		default:
			close(conn.CloseChannel)
		}
	}
}

// Subscribe adds streams to a connection's subscription set.
func (h *Hub) Subscribe(conn *Connection, streams ...Stream) {
	conn.subscribe(streams...)
}

// Unsubscribe removes streams from a connection's subscription set.
func (h *Hub) Unsubscribe(conn *Connection, streams ...Stream) {
	conn.unsubscribe(streams...)
}

// BroadcastToStream sends data to every connection subscribed to the
// stream. Connections with a full send channel are skipped.
func (h *Hub) BroadcastToStream(stream Stream, data []byte) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for _, conn := range h.connections {
		if !conn.Subscribed(stream) {
			continue
		}
		select {
		case conn.SendChannel <- data:
		case <-conn.CloseChannel:
		default:
			// Slow consumer; the journal lets it catch up later.
		}
	}
}

// SubscriberCount returns the number of connections on the stream.
func (h *Hub) SubscriberCount(stream Stream) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	n := 0
	for _, conn := range h.connections {
		if conn.Subscribed(stream) {
			n++
		}
	}
	return n
}
