// Package sessions keeps per-contact AI conversation history. History only
// exists for contacts whose messages escalated past the canned-response
// tier; it is created lazily and bounded by a sliding turn window.
package sessions

import (
	"sync"
	"time"

	"github.com/vendahub/zapbot/internal/providers"
)

// MaxTurns is the history window per contact. Older turns slide out; the
// system instruction is not stored here and does not count.
const MaxTurns = 6

// Session stores AI history for one contact identity.
type Session struct {
	Key      string
	Messages []providers.Message
	Created  time.Time
	Updated  time.Time
}

// Manager handles session lifecycle and lookup. Safe for concurrent use.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session
	maxTurns int
}

// NewManager creates a manager with the default turn window.
func NewManager() *Manager {
	return &Manager{
		sessions: make(map[string]*Session),
		maxTurns: MaxTurns,
	}
}

// History returns a copy of the contact's recent turns, at most maxTurns.
func (m *Manager) History(key string) []providers.Message {
	m.mu.RLock()
	defer m.mu.RUnlock()

	s, ok := m.sessions[key]
	if !ok {
		return nil
	}
	msgs := make([]providers.Message, len(s.Messages))
	copy(msgs, s.Messages)
	return msgs
}

// AddTurn appends a message to the contact's history, dropping the oldest
// turns beyond the window. The caller decides what gets recorded: failed
// AI turns are never added, so they cannot poison later context.
func (m *Manager) AddTurn(key string, msg providers.Message) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	s, ok := m.sessions[key]
	if !ok {
		s = &Session{Key: key, Created: now}
		m.sessions[key] = s
	}

	s.Messages = append(s.Messages, msg)
	if len(s.Messages) > m.maxTurns {
		s.Messages = s.Messages[len(s.Messages)-m.maxTurns:]
	}
	s.Updated = now
}

// Len returns the number of tracked contacts.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}
