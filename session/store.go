package session

import (
	"sync"
	"time"
)

// Store keeps sessions by ID between messages.
type Store interface {
	Get(id string) (*Session, bool)
	Put(s *Session)
	Delete(id string)

	// Update runs fn on the session stored for id, or on nil when there is
	// none, with no other Update for id running concurrently. The session
	// fn returns is stored; nil removes the entry.
	Update(id string, fn func(s *Session) *Session)
}

// MemoryStore is an in-process Store. Sessions are copied in and out so
// callers never share a *Session with another goroutine.
type MemoryStore struct {
	mu       sync.RWMutex
	sessions map[string]Session
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{sessions: make(map[string]Session)}
}

func (m *MemoryStore) Get(id string) (*Session, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, false
	}
	return &s, true
}

func (m *MemoryStore) Put(s *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = *s
}

func (m *MemoryStore) Delete(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
}

func (m *MemoryStore) Update(id string, fn func(s *Session) *Session) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var cur *Session
	if s, ok := m.sessions[id]; ok {
		cur = &s
	}
	next := fn(cur)
	if next == nil {
		delete(m.sessions, id)
		return
	}
	m.sessions[id] = *next
}

func (m *MemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Expire drops sessions not updated since before cutoff and returns how
// many were removed.
func (m *MemoryStore) Expire(cutoff time.Time) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.sessions {
		if s.Updated.Before(cutoff) {
			delete(m.sessions, id)
			n++
		}
	}
	return n
}

// Dispatch routes one input to the session for id. Inputs from unknown
// ids only start a session when they are a trigger word; otherwise the
// help text is returned. A session that reaches Ready is removed from the
// store and returned to the caller. Messages for the same id are applied
// one at a time.
func Dispatch(store Store, id, input string) (reply Reply, sess *Session, err error) {
	store.Update(id, func(s *Session) *Session {
		if s == nil {
			if !IsTrigger(input) {
				reply = Reply{Text: Help}
				return nil
			}
			s = New(id)
		}

		reply, err = s.Handle(input)
		sess = s
		if s.State == Ready {
			return nil
		}
		return s
	})
	return reply, sess, err
}
