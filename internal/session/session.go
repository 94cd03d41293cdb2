// Package session tracks per-user voice-selection state for the front-end.
// A session exists only between "user started choosing a voice" and "user
// finished (or cancelled) the exchange"; normal messages outside that window
// carry no session.
package session

import (
	"sync"
	"time"

	"github.com/voxbot/voxbot/internal/metrics"
)

// State is the voice-selection session state.
type State int

const (
	// StateChoosingVoice means the voice keyboard is on screen.
	StateChoosingVoice State = iota
	// StateAwaitingInput means a voice is chosen and the next text or voice
	// message consumes it.
	StateAwaitingInput
)

// Session is one user's in-flight voice selection.
type Session struct {
	UserID    string
	State     State
	VoiceID   string
	StartedAt time.Time
}

// Manager owns all live sessions, keyed by user id.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*Session
}

// NewManager creates an empty session manager.
func NewManager() *Manager {
	return &Manager{sessions: make(map[string]*Session)}
}

// Begin starts (or restarts) a selection session for userID.
func (m *Manager) Begin(userID string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.sessions[userID]; !exists {
		metrics.ActiveVoiceSessions.Inc()
	}
	s := &Session{
		UserID:    userID,
		State:     StateChoosingVoice,
		StartedAt: time.Now(),
	}
	m.sessions[userID] = s
	return s
}

// SelectVoice records the chosen voice and advances to StateAwaitingInput.
// It returns false when no session is in progress.
func (m *Manager) SelectVoice(userID, voiceID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	s, ok := m.sessions[userID]
	if !ok {
		return false
	}
	s.VoiceID = voiceID
	s.State = StateAwaitingInput
	return true
}

// Get returns the live session for userID, if any.
func (m *Manager) Get(userID string) (*Session, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[userID]
	return s, ok
}

// End clears userID's session. Called on completion and on explicit cancel.
func (m *Manager) End(userID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[userID]; ok {
		delete(m.sessions, userID)
		metrics.ActiveVoiceSessions.Dec()
	}
}
