package server

import (
	"sync"
)

// ConnectionRegistry maps a user id to its live client. It is the single
// source of truth for "online"; other components never cache liveness.
type ConnectionRegistry struct {
	mu    sync.RWMutex
	conns map[string]*Client
}

func NewConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		conns: make(map[string]*Client),
	}
}

// Register records c as the active connection for userId and returns the
// client it displaced, if any. Closing the displaced client is the caller's
// responsibility.
func (cr *ConnectionRegistry) Register(userId string, c *Client) *Client {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	prev := cr.conns[userId]
	cr.conns[userId] = c
	return prev
}

// Unregister removes the entry for userId if it is c. A stale client from a
// replaced session cannot evict its successor.
func (cr *ConnectionRegistry) Unregister(userId string, c *Client) bool {
	cr.mu.Lock()
	defer cr.mu.Unlock()

	cur, ok := cr.conns[userId]
	if !ok || (c != nil && cur != c) {
		return false
	}

	delete(cr.conns, userId)
	return true
}

func (cr *ConnectionRegistry) IsOnline(userId string) bool {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	_, ok := cr.conns[userId]
	return ok
}

func (cr *ConnectionRegistry) Get(userId string) (*Client, bool) {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	c, ok := cr.conns[userId]
	return c, ok
}

// Send queues ev on the user's channel. It returns false without error when
// the user has no live entry or the channel is full; the caller decides
// whether to fall back to the offline queue.
func (cr *ConnectionRegistry) Send(userId string, ev *ServerEvent) bool {
	cr.mu.RLock()
	c, ok := cr.conns[userId]
	cr.mu.RUnlock()

	if !ok {
		return false
	}

	return c.queueEvent(ev)
}

func (cr *ConnectionRegistry) ListOnline() []string {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	users := make([]string, 0, len(cr.conns))
	for userId := range cr.conns {
		users = append(users, userId)
	}
	return users
}

// Clients snapshots the live client set for the health monitor sweep.
func (cr *ConnectionRegistry) Clients() []*Client {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	clients := make([]*Client, 0, len(cr.conns))
	for _, c := range cr.conns {
		clients = append(clients, c)
	}
	return clients
}

func (cr *ConnectionRegistry) Len() int {
	cr.mu.RLock()
	defer cr.mu.RUnlock()

	return len(cr.conns)
}
