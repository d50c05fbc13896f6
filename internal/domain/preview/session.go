package preview

import (
	"strings"
	"sync"
	"time"

	"github.com/GriffinCanCode/SitePreview/backend/internal/shared/id"
)

// State is a session's position in the delivery state machine.
type State string

const (
	StateIdle             State = "idle"
	StateTryingProxy      State = "trying_proxy"
	StateTryingScreenshot State = "trying_screenshot"
	StateReady            State = "ready"
	StateFailed           State = "failed"
)

// Terminal reports whether no further transition can happen without a
// caller-reported failure.
func (s State) Terminal() bool {
	return s == StateReady || s == StateFailed
}

// Method is the strategy that produced a preview.
type Method string

const (
	MethodProxy      Method = "proxy"
	MethodScreenshot Method = "screenshot"
)

// Mode is the caller's strategy preference.
type Mode string

const (
	// ModeAuto tries the proxy and falls back to a screenshot.
	ModeAuto Mode = "auto"
	// ModeProxy never falls back.
	ModeProxy Mode = "proxy"
	// ModeScreenshot skips the proxy.
	ModeScreenshot Mode = "screenshot"
)

// ParseMode maps a request value to a Mode. Empty means ModeAuto.
func ParseMode(s string) (Mode, bool) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeAuto:
		return ModeAuto, true
	case ModeProxy:
		return ModeProxy, true
	case ModeScreenshot:
		return ModeScreenshot, true
	default:
		return "", false
	}
}

// Attempt records one strategy run. Attempts are kept for status
// reporting only and are never persisted.
type Attempt struct {
	ID       id.AttemptID
	Strategy Method
	Started  time.Time
	Duration time.Duration
	CacheHit bool
	Err      *Error
}

// Session is one logical preview flow.
type Session struct {
	ID        string
	Target    Target
	Mode      Mode
	CreatedAt time.Time

	// run serializes strategy execution for the session
	run sync.Mutex

	mu                sync.Mutex
	state             State
	method            Method
	fallbackAttempted bool
	err               *Error
	attempts          []Attempt
	updatedAt         time.Time
	expiresAt         time.Time
}

func newSession(sessionID string, t Target, mode Mode, now time.Time, ttl time.Duration) *Session {
	return &Session{
		ID:        sessionID,
		Target:    t,
		Mode:      mode,
		CreatedAt: now,
		state:     StateIdle,
		updatedAt: now,
		expiresAt: now.Add(ttl),
	}
}

// Status is a point-in-time view of a session.
type Status struct {
	ID                string
	State             State
	Method            Method
	Mode              Mode
	URL               string
	ClientID          string
	Device            string
	FallbackAttempted bool
	Attempts          int
	Err               *Error
	CreatedAt         time.Time
	UpdatedAt         time.Time
	ExpiresAt         time.Time
}

// Status returns a snapshot of the session.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	return Status{
		ID:                s.ID,
		State:             s.state,
		Method:            s.method,
		Mode:              s.Mode,
		URL:               s.Target.URL,
		ClientID:          s.Target.ClientID,
		Device:            string(s.Target.Device),
		FallbackAttempted: s.fallbackAttempted,
		Attempts:          len(s.attempts),
		Err:               s.err,
		CreatedAt:         s.CreatedAt,
		UpdatedAt:         s.updatedAt,
		ExpiresAt:         s.expiresAt,
	}
}

// State returns the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempts returns a copy of the recorded attempts.
func (s *Session) Attempts() []Attempt {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Attempt(nil), s.attempts...)
}

func (s *Session) transition(to State) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = to
	s.updatedAt = time.Now()
}

func (s *Session) ready(m Method) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateReady
	s.method = m
	s.err = nil
	s.updatedAt = time.Now()
}

func (s *Session) fail(err *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = StateFailed
	s.err = err
	s.updatedAt = time.Now()
}

func (s *Session) record(a Attempt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts = append(s.attempts, a)
}

// claimFallback marks the fallback as used. It returns false when the
// session already had its fallback.
func (s *Session) claimFallback() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fallbackAttempted {
		return false
	}
	s.fallbackAttempted = true
	return true
}

func (s *Session) expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.After(s.expiresAt)
}

func (s *Session) snapshot() (State, Method, *Error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.method, s.err
}
