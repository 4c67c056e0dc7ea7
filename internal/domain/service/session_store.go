package service

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/CherryPod/sentinel-sub000/internal/domain/entity"
)

// SessionStore is a TTL- and capacity-bounded registry of per-source_key
// conversation sessions, following the mutex-guarded-map shape the
// codebase uses throughout (see DefaultSessionManager).
type SessionStore struct {
	mu       sync.Mutex
	ttl      time.Duration
	maxCount int
	sessions map[string]*entity.Session
}

func NewSessionStore(ttl time.Duration, maxCount int) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		maxCount: maxCount,
		sessions: make(map[string]*entity.Session),
	}
}

// GetOrCreate returns the existing, non-expired session for sourceKey, or
// creates one. An empty sourceKey always creates a fresh ephemeral session
// (never reused across calls) keyed by its own generated id.
func (s *SessionStore) GetOrCreate(sourceKey string) *entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sourceKey == "" {
		id := "ephemeral-" + uuid.NewString()
		session := entity.NewSession(id, sourceKey)
		s.insertLocked(id, session)
		return session
	}

	if existing, ok := s.sessions[sourceKey]; ok {
		if s.expiredLocked(existing) {
			delete(s.sessions, sourceKey)
		} else {
			existing.Touch()
			return existing
		}
	}

	session := entity.NewSession(sourceKey, sourceKey)
	s.insertLocked(sourceKey, session)
	return session
}

// Get returns the session for sourceKey, or nil if it doesn't exist or has
// expired (an expired entry is evicted as a side effect).
func (s *SessionStore) Get(sourceKey string) *entity.Session {
	s.mu.Lock()
	defer s.mu.Unlock()

	session, ok := s.sessions[sourceKey]
	if !ok {
		return nil
	}
	if s.expiredLocked(session) {
		delete(s.sessions, sourceKey)
		return nil
	}
	return session
}

func (s *SessionStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sessions)
}

func (s *SessionStore) expiredLocked(session *entity.Session) bool {
	return time.Since(session.LastActive()) > s.ttl
}

// insertLocked adds session under key, evicting the least-recently-active
// existing entry first if the store is already at capacity. Callers must
// hold s.mu.
func (s *SessionStore) insertLocked(key string, session *entity.Session) {
	if len(s.sessions) >= s.maxCount {
		s.evictOldestLocked()
	}
	s.sessions[key] = session
}

func (s *SessionStore) evictOldestLocked() {
	var oldestKey string
	var oldestTime time.Time
	first := true
	for k, sess := range s.sessions {
		t := sess.LastActive()
		if first || t.Before(oldestTime) {
			oldestKey = k
			oldestTime = t
			first = false
		}
	}
	if !first {
		delete(s.sessions, oldestKey)
	}
}
