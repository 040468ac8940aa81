package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Manager owns every live session, keyed by id. Sessions that have been idle
// for longer than the TTL are dropped on the next lookup.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
	defaults func() Controls
	ttl      time.Duration
	now      func() time.Time
}

// NewManager returns an empty manager. defaults is called for every new
// session; a nil defaults uses DefaultControls. A ttl <= 0 keeps sessions
// forever.
func NewManager(defaults func() Controls, ttl time.Duration) *Manager {
	if defaults == nil {
		defaults = DefaultControls
	}
	return &Manager{
		sessions: make(map[string]*Session),
		defaults: defaults,
		ttl:      ttl,
		now:      time.Now,
	}
}

// SetTTL changes the idle timeout.
func (m *Manager) SetTTL(ttl time.Duration) {
	m.mu.Lock()
	m.ttl = ttl
	m.mu.Unlock()
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// Get returns the session with the given id, if it is still alive.
func (m *Manager) Get(id string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evictLocked(now)
	s, ok := m.sessions[id]
	if ok {
		s.touch(now)
	}
	return s, ok
}

// Create starts a new session with default controls.
func (m *Manager) Create() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.evictLocked(now)
	s := New(uuid.NewString(), m.defaults())
	s.touch(now)
	m.sessions[s.ID] = s
	logrus.WithFields(logrus.Fields{
		"session": s.ID,
		"live":    len(m.sessions),
	}).Debug("session created")
	return s
}

// GetOrCreate returns the session with the given id or a new one. created
// reports which.
func (m *Manager) GetOrCreate(id string) (s *Session, created bool) {
	if id != "" {
		if s, ok := m.Get(id); ok {
			return s, false
		}
	}
	return m.Create(), true
}

// Delete drops a session and closes its event subscriptions.
func (m *Manager) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.sessions[id]; ok {
		s.hub.Close()
		delete(m.sessions, id)
	}
}

func (m *Manager) evictLocked(now time.Time) {
	if m.ttl <= 0 {
		return
	}
	for id, s := range m.sessions {
		// Sessions with an open event stream are in use.
		if s.hub.Subscribers() > 0 {
			continue
		}
		if now.Sub(s.idleSince()) > m.ttl {
			s.hub.Close()
			delete(m.sessions, id)
			logrus.WithField("session", id).Debug("session expired")
		}
	}
}
