// Package connmgr hands out a single lazily dialed connection and redials
// once it has died.
package connmgr

import (
	"context"
	"sync"

	"reqlkit/internal/conn"
)

// DialFunc opens a new connection.
type DialFunc func(ctx context.Context) (*conn.Conn, error)

// ConnManager is safe for concurrent use.
type ConnManager struct {
	dial DialFunc
	mu   sync.Mutex
	c    *conn.Conn
}

// New returns a manager that opens connections with dial.
func New(dial DialFunc) *ConnManager {
	return &ConnManager{dial: dial}
}

// NewFromConfig returns a manager that dials cfg.
func NewFromConfig(cfg conn.Config) *ConnManager {
	return New(func(ctx context.Context) (*conn.Conn, error) {
		return conn.Dial(ctx, cfg)
	})
}

// Get returns the live connection, dialing if there is none or the
// previous one was closed. A failed dial is not cached.
func (m *ConnManager) Get(ctx context.Context) (*conn.Conn, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c != nil && !m.c.IsClosed() {
		return m.c, nil
	}
	c, err := m.dial(ctx)
	if err != nil {
		return nil, err
	}
	m.c = c
	return c, nil
}

// Close closes the current connection, if any.
func (m *ConnManager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.c == nil {
		return nil
	}
	err := m.c.Close()
	m.c = nil
	return err
}
