package web

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/user/gatekeep/internal/agent"
)

// Entry is one rendered transcript line.
type Entry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the UI-facing state of one conversation: the rendered
// transcript plus any approval the human still owes a decision for. The
// conversation itself lives in the agent's checkpoint store; this registry
// only exists so the page can re-render across requests.
type Session struct {
	ID        string                 `json:"session_id"`
	Entries   []Entry                `json:"entries"`
	Pending   *agent.ApprovalRequest `json:"pending,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
	UpdatedAt time.Time              `json:"updated_at"`
}

// Sessions is a session-keyed store with create-on-demand and explicit
// delete. It is injected into the server; there are no package-level
// globals.
type Sessions struct {
	mu   sync.RWMutex
	byID map[string]*Session
}

// NewSessions creates an empty registry.
func NewSessions() *Sessions {
	return &Sessions{byID: make(map[string]*Session)}
}

// Create mints a session with a fresh thread ID.
func (s *Sessions) Create() *Session {
	now := time.Now().UTC()
	sess := &Session{
		ID:        uuid.New().String(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.mu.Lock()
	s.byID[sess.ID] = sess
	s.mu.Unlock()
	return sess
}

// Get returns a snapshot of the session.
func (s *Sessions) Get(id string) (*Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok {
		return nil, false
	}
	return snapshot(sess), true
}

// Append adds a transcript line.
func (s *Sessions) Append(id, role, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok {
		sess.Entries = append(sess.Entries, Entry{Role: role, Content: content})
		sess.UpdatedAt = time.Now().UTC()
	}
}

// SetPending records (or clears, with nil) the approval awaiting a decision.
func (s *Sessions) SetPending(id string, req *agent.ApprovalRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.byID[id]; ok {
		sess.Pending = req
		sess.UpdatedAt = time.Now().UTC()
	}
}

// Pending returns the session's pending approval, if any.
func (s *Sessions) Pending(id string) (*agent.ApprovalRequest, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sess, ok := s.byID[id]
	if !ok || sess.Pending == nil {
		return nil, false
	}
	return sess.Pending, true
}

// Delete removes the session from the registry.
func (s *Sessions) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.byID, id)
}

func snapshot(sess *Session) *Session {
	out := *sess
	out.Entries = append([]Entry(nil), sess.Entries...)
	return &out
}
