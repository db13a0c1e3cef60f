package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

// Client is one connected browser tab following the playback snapshot
type Client struct {
	ID           string    `json:"id"`
	UserAgent    string    `json:"userAgent"`
	IPAddress    string    `json:"ipAddress"`
	ConnectedAt  time.Time `json:"connectedAt"`
	LastActivity time.Time `json:"lastActivity"`
}

// Manager tracks connected clients and which one issued the latest command.
// The controller is informational: any client may drive the browser.
type Manager struct {
	clients         map[string]*Client
	controller      string
	mutex           sync.RWMutex
	activityTimeout time.Duration
}

// NewManager creates a manager; clients idle longer than activityTimeout are
// dropped from listings
func NewManager(activityTimeout time.Duration) *Manager {
	if activityTimeout <= 0 {
		activityTimeout = 2 * time.Minute
	}
	return &Manager{
		clients:         make(map[string]*Client),
		activityTimeout: activityTimeout,
	}
}

// Register adds a client with a fresh ID
func (m *Manager) Register(userAgent, ipAddress string) *Client {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	now := time.Now()
	client := &Client{
		ID:           uuid.NewString(),
		UserAgent:    userAgent,
		IPAddress:    ipAddress,
		ConnectedAt:  now,
		LastActivity: now,
	}
	m.clients[client.ID] = client
	return client
}

// Touch records activity; a command also makes the client the controller
func (m *Manager) Touch(clientID string, command bool) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	client, exists := m.clients[clientID]
	if !exists {
		return
	}
	client.LastActivity = time.Now()
	if command {
		m.controller = clientID
	}
}

// Remove forgets a client
func (m *Manager) Remove(clientID string) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	delete(m.clients, clientID)
	if m.controller == clientID {
		m.controller = ""
	}
}

// Controller returns the client that issued the latest command, or ""
func (m *Manager) Controller() string {
	m.mutex.RLock()
	defer m.mutex.RUnlock()
	return m.controller
}

// Clients returns copies of the clients seen within the activity timeout
func (m *Manager) Clients() []Client {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	m.cleanupExpired()

	out := make([]Client, 0, len(m.clients))
	for _, client := range m.clients {
		out = append(out, *client)
	}
	return out
}

// Count returns the number of live clients
func (m *Manager) Count() int {
	return len(m.Clients())
}

// cleanupExpired removes idle clients (must be called with lock held)
func (m *Manager) cleanupExpired() {
	now := time.Now()
	for id, client := range m.clients {
		if now.Sub(client.LastActivity) > m.activityTimeout {
			delete(m.clients, id)
			if m.controller == id {
				m.controller = ""
			}
		}
	}
}
