package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kamilpajak/radiolens/internal/logger"
)

// Manager keeps one Session per browser. Sessions unused for longer than the
// TTL are reset and dropped by Sweep.
type Manager struct {
	analyzer Analyzer
	ttl      time.Duration
	now      func() time.Time

	mu       sync.Mutex
	sessions map[string]*entry
}

type entry struct {
	session  *Session
	lastSeen time.Time
}

// NewManager creates a Manager. A ttl of zero keeps sessions forever.
func NewManager(analyzer Analyzer, ttl time.Duration) *Manager {
	return &Manager{
		analyzer: analyzer,
		ttl:      ttl,
		now:      time.Now,
		sessions: make(map[string]*entry),
	}
}

// NewID returns a fresh session identifier.
func (m *Manager) NewID() string {
	return uuid.NewString()
}

// Get returns the session for id, creating it on first use.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[id]
	if !ok {
		e = &entry{session: New(m.analyzer)}
		m.sessions[id] = e
	}
	e.lastSeen = m.now()
	return e.session
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	if m.ttl <= 0 {
		return 0
	}

	m.mu.Lock()
	cutoff := m.now().Add(-m.ttl)
	var expired []*Session
	for id, e := range m.sessions {
		if e.lastSeen.Before(cutoff) {
			expired = append(expired, e.session)
			delete(m.sessions, id)
		}
	}
	m.mu.Unlock()

	for _, s := range expired {
		s.Reset()
	}
	if len(expired) > 0 {
		logger.WithField("count", len(expired)).Debug("Swept idle sessions")
	}
	return len(expired)
}

// Run sweeps periodically until ctx is done.
func (m *Manager) Run(ctx context.Context) {
	if m.ttl <= 0 {
		return
	}
	interval := m.ttl / 2
	if interval < time.Second {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.Sweep()
		case <-ctx.Done():
			return
		}
	}
}
