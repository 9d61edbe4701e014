package assistant

import (
	"container/list"
	"sync"
	"time"
)

// Session pairs a conversation id with its agent. Turns for the same
// session take the mutex so tool calls never interleave.
type Session struct {
	ID    string
	Agent *Agent

	mu       sync.Mutex
	lastUsed time.Time
	elem     *list.Element
}

// Lock serializes a turn on this session.
func (s *Session) Lock() { s.mu.Lock() }

// Unlock releases the session after a turn.
func (s *Session) Unlock() { s.mu.Unlock() }

// Store maps conversation ids to agents with a bounded capacity. The
// least recently used session is evicted when the store is full, and
// sessions idle past the TTL expire on access.
type Store struct {
	mu       sync.Mutex
	capacity int
	ttl      time.Duration
	factory  func() *Agent
	sessions map[string]*Session
	order    *list.List // front = most recently used
	now      func() time.Time
}

// NewStore creates a session store. factory builds a fresh agent for a
// new conversation and runs exactly once per session id.
func NewStore(capacity int, ttl time.Duration, factory func() *Agent) *Store {
	if capacity <= 0 {
		capacity = 256
	}
	return &Store{
		capacity: capacity,
		ttl:      ttl,
		factory:  factory,
		sessions: make(map[string]*Session),
		order:    list.New(),
		now:      time.Now,
	}
}

// Acquire returns the session for id, creating it on first use. The same
// id always yields the same session until it is evicted or expires.
func (s *Store) Acquire(id string) *Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.expireLocked()

	if sess, ok := s.sessions[id]; ok {
		sess.lastUsed = s.now()
		s.order.MoveToFront(sess.elem)
		return sess
	}

	for len(s.sessions) >= s.capacity {
		s.evictOldestLocked()
	}

	sess := &Session{
		ID:       id,
		Agent:    s.factory(),
		lastUsed: s.now(),
	}
	sess.elem = s.order.PushFront(sess)
	s.sessions[id] = sess
	return sess
}

// Remove tears down a session explicitly.
func (s *Store) Remove(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok {
		s.order.Remove(sess.elem)
		delete(s.sessions, id)
	}
}

// Len returns the number of live sessions.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

// expireLocked drops sessions idle past the TTL. Must hold mu.
func (s *Store) expireLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for e := s.order.Back(); e != nil; {
		sess := e.Value.(*Session)
		if sess.lastUsed.After(cutoff) {
			break
		}
		prev := e.Prev()
		s.order.Remove(e)
		delete(s.sessions, sess.ID)
		e = prev
	}
}

// evictOldestLocked removes the least recently used session. Must hold mu.
func (s *Store) evictOldestLocked() {
	e := s.order.Back()
	if e == nil {
		return
	}
	sess := e.Value.(*Session)
	s.order.Remove(e)
	delete(s.sessions, sess.ID)
}
