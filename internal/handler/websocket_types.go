// internal/handler/websocket_types.go
package handler

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"escpos-service/internal/model"
)

// Client represents a WebSocket client
type Client struct {
	ID          string          `json:"id"`
	Connection  *websocket.Conn `json:"-"`
	Send        chan []byte     `json:"-"`
	UserAgent   string          `json:"user_agent"`
	RemoteAddr  string          `json:"remote_addr"`
	ConnectedAt time.Time       `json:"connected_at"`

	mutex         sync.RWMutex
	subscriptions map[model.EventType]bool
}

// Subscribe limits delivery to the given event type. A client with no
// subscriptions receives every event.
func (c *Client) Subscribe(eventType model.EventType) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	if c.subscriptions == nil {
		c.subscriptions = make(map[model.EventType]bool)
	}
	c.subscriptions[eventType] = true
}

// Unsubscribe removes an event type subscription
func (c *Client) Unsubscribe(eventType model.EventType) {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	delete(c.subscriptions, eventType)
}

// Wants reports whether the client should receive events of eventType
func (c *Client) Wants(eventType model.EventType) bool {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	return len(c.subscriptions) == 0 || c.subscriptions[eventType]
}

// Subscriptions returns the subscribed event types
func (c *Client) Subscriptions() []model.EventType {
	c.mutex.RLock()
	defer c.mutex.RUnlock()
	out := make([]model.EventType, 0, len(c.subscriptions))
	for eventType := range c.subscriptions {
		out = append(out, eventType)
	}
	return out
}

// WebSocketMessage represents a WebSocket message
type WebSocketMessage struct {
	Type      string      `json:"type"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ConnectionManager manages WebSocket connections. A client's Send queue
// is closed under the write lock, and every delivery holds the read lock.
type ConnectionManager struct {
	clients map[string]*Client
	stopped bool
	mutex   sync.RWMutex
}

// NewConnectionManager creates a new connection manager
func NewConnectionManager() *ConnectionManager {
	return &ConnectionManager{
		clients: make(map[string]*Client),
	}
}

// Register registers a new client. It reports false once the manager
// has been stopped, in which case the client's queue is closed.
func (cm *ConnectionManager) Register(client *Client) bool {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if cm.stopped {
		close(client.Send)
		return false
	}
	cm.clients[client.ID] = client
	return true
}

// Unregister unregisters a client and closes its queue
func (cm *ConnectionManager) Unregister(client *Client) {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	if _, ok := cm.clients[client.ID]; ok {
		delete(cm.clients, client.ID)
		close(client.Send)
	}
}

// Stop unregisters every client
func (cm *ConnectionManager) Stop() {
	cm.mutex.Lock()
	defer cm.mutex.Unlock()

	cm.stopped = true
	for id, client := range cm.clients {
		delete(cm.clients, id)
		close(client.Send)
	}
}

// Deliver queues message for one registered client without blocking.
func (cm *ConnectionManager) Deliver(client *Client, message []byte) bool {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	if _, ok := cm.clients[client.ID]; !ok {
		return false
	}
	select {
	case client.Send <- message:
		return true
	default:
		return false
	}
}

// Broadcast queues message for every client accepted by want and returns
// the ids of clients whose queue was full.
func (cm *ConnectionManager) Broadcast(message []byte, want func(*Client) bool) []string {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	var full []string
	for _, client := range cm.clients {
		if want != nil && !want(client) {
			continue
		}
		select {
		case client.Send <- message:
		default:
			full = append(full, client.ID)
		}
	}
	return full
}

// GetClients returns every connected client
func (cm *ConnectionManager) GetClients() []*Client {
	cm.mutex.RLock()
	defer cm.mutex.RUnlock()

	clients := make([]*Client, 0, len(cm.clients))
	for _, client := range cm.clients {
		clients = append(clients, client)
	}
	return clients
}

// GetStats returns connection statistics
func (cm *ConnectionManager) GetStats() *ConnectionStats {
	clients := cm.GetClients()
	stats := &ConnectionStats{
		TotalConnections: len(clients),
		Clients:          make([]ClientInfo, 0, len(clients)),
	}
	for _, client := range clients {
		stats.Clients = append(stats.Clients, ClientInfo{
			ID:            client.ID,
			RemoteAddr:    client.RemoteAddr,
			UserAgent:     client.UserAgent,
			ConnectedAt:   client.ConnectedAt,
			Subscriptions: client.Subscriptions(),
		})
	}
	return stats
}

// ClientInfo describes one connected client
type ClientInfo struct {
	ID            string            `json:"id"`
	RemoteAddr    string            `json:"remote_addr"`
	UserAgent     string            `json:"user_agent"`
	ConnectedAt   time.Time         `json:"connected_at"`
	Subscriptions []model.EventType `json:"subscriptions,omitempty"`
}

// ConnectionStats represents connection statistics
type ConnectionStats struct {
	TotalConnections int          `json:"total_connections"`
	Clients          []ClientInfo `json:"clients"`
}
