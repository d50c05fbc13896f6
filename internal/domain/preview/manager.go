package preview

import (
	"sync"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/infrastructure/monitoring"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// DefaultSessionTTL bounds how long an idle session is kept.
const DefaultSessionTTL = 24 * time.Hour

// Manager is the process-local session registry. Sessions, and with them
// the fallback flag, are never written to the cache store.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	ttl      time.Duration

	metrics *monitoring.Metrics
	logger  *zap.Logger

	stop     chan struct{}
	stopOnce sync.Once
}

// NewManager creates a registry and starts its janitor. interval <= 0
// disables the janitor; expired sessions are then dropped on lookup.
func NewManager(ttl, interval time.Duration, metrics *monitoring.Metrics, logger *zap.Logger) *Manager {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Manager{
		sessions: make(map[string]*Session),
		ttl:      ttl,
		metrics:  metrics,
		logger:   logger,
		stop:     make(chan struct{}),
	}
	if interval > 0 {
		go m.janitor(interval)
	}
	return m
}

// Create registers a new idle session.
func (m *Manager) Create(t Target, mode Mode) *Session {
	s := newSession(uuid.NewString(), t, mode, time.Now(), m.ttl)

	m.mu.Lock()
	m.sessions[s.ID] = s
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessionsActive(count)
	return s
}

// Get returns a live session.
func (m *Manager) Get(sessionID string) (*Session, bool) {
	m.mu.RLock()
	s, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if !ok {
		return nil, false
	}
	if s.expired(time.Now()) {
		m.Delete(sessionID)
		return nil, false
	}
	return s, true
}

// Delete removes a session. It reports whether the session existed.
func (m *Manager) Delete(sessionID string) bool {
	m.mu.Lock()
	_, ok := m.sessions[sessionID]
	delete(m.sessions, sessionID)
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessionsActive(count)
	return ok
}

// Len returns the number of registered sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep drops expired sessions and returns how many were removed.
func (m *Manager) Sweep() int {
	now := time.Now()

	m.mu.Lock()
	removed := 0
	for sid, s := range m.sessions {
		if s.expired(now) {
			delete(m.sessions, sid)
			removed++
		}
	}
	count := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetSessionsActive(count)
	return removed
}

// Close stops the janitor.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stop) })
}

func (m *Manager) janitor(interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			if n := m.Sweep(); n > 0 {
				m.logger.Debug("Expired preview sessions removed", zap.Int("count", n))
			}
		case <-m.stop:
			return
		}
	}
}
