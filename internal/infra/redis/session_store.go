package redis

import (
	"context"
	"sync"
	"time"

	"bridgebites-service/internal/app"
	"github.com/redis/go-redis/v9"
)

// SessionStore is a Redis-aware implementation of app.SessionRepository.
// Sessions stay in process to reuse the in-memory broadcast logic; Redis
// marks session liveness so operators can see who is active across
// instances.
type SessionStore struct {
	client   *redis.Client
	ttl      time.Duration
	mu       sync.RWMutex
	sessions map[string]*app.Session
}

var _ app.SessionRepository = (*SessionStore)(nil)

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{
		client:   client,
		ttl:      ttl,
		sessions: make(map[string]*app.Session),
	}
}

func (s *SessionStore) GetOrCreate(userID string, create func() *app.Session) *app.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session, ok := s.sessions[userID]; ok {
		return session
	}
	session := create()
	s.sessions[userID] = session
	// best-effort liveness marker
	_ = s.client.Set(context.Background(), s.key(userID), "1", s.ttl).Err()
	return session
}

func (s *SessionStore) Get(userID string) (*app.Session, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[userID]
	return session, ok
}

func (s *SessionStore) DeleteIfEmpty(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[userID]
	if !ok {
		return
	}
	if session.IsEmpty() {
		delete(s.sessions, userID)
		_ = s.client.Del(context.Background(), s.key(userID)).Err()
	}
}

func (s *SessionStore) key(userID string) string {
	return "bridge:session:" + userID
}
