package flow

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Manager tracks one Session per browser
type Manager struct {
	mu         sync.RWMutex
	sessions   map[string]*Session
	newSession func(id string) *Session
	maxIdle    time.Duration
	now        func() time.Time
}

// NewManager creates a Manager. newSession builds a session for a fresh id.
func NewManager(newSession func(id string) *Session, maxIdle time.Duration) *Manager {
	return &Manager{
		sessions:   make(map[string]*Session),
		newSession: newSession,
		maxIdle:    maxIdle,
		now:        time.Now,
	}
}

// Get returns an existing session
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	return s, ok
}

// GetOrCreate returns the session for id, creating a session with a new id
// when id is unknown. Client supplied ids are never adopted.
func (m *Manager) GetOrCreate(id string) *Session {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s
		}
	}

	s := m.newSession(uuid.New().String())

	m.mu.Lock()
	m.sessions[s.ID()] = s
	m.mu.Unlock()
	return s
}

// Len returns the number of live sessions
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// CleanUpInactiveSessions closes sessions idle for longer than maxIdle
func (m *Manager) CleanUpInactiveSessions() int {
	cutoff := m.now().Add(-m.maxIdle)

	m.mu.Lock()
	var stale []*Session
	for id, s := range m.sessions {
		if s.LastActivity().Before(cutoff) {
			stale = append(stale, s)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range stale {
		s.Close()
	}
	return len(stale)
}

// Run removes idle sessions every interval until ctx is done, then closes every session
func (m *Manager) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.Close()
			return nil
		case <-ticker.C:
			if n := m.CleanUpInactiveSessions(); n > 0 {
				slog.Info("Cleaned up inactive sessions", "count", n)
			}
		}
	}
}

// Close closes and forgets all sessions
func (m *Manager) Close() {
	m.mu.Lock()
	sessions := m.sessions
	m.sessions = make(map[string]*Session)
	m.mu.Unlock()

	for _, s := range sessions {
		s.Close()
	}
}
