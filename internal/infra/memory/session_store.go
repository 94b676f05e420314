package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"setlist-quiz-service/internal/domain"
)

// SessionStore is an in-memory implementation of app.SessionRepository.
type SessionStore struct {
	ttl   time.Duration
	clock func() time.Time

	mu       sync.RWMutex
	sessions map[string]storedSession
}

type storedSession struct {
	session   domain.Session
	expiresAt time.Time
}

func NewSessionStore(ttl time.Duration) *SessionStore {
	return &SessionStore{
		ttl:      ttl,
		clock:    time.Now,
		sessions: make(map[string]storedSession),
	}
}

func (s *SessionStore) Create(_ context.Context, userID int64, username string) (domain.Session, error) {
	session := domain.Session{
		Token:    uuid.NewString(),
		UserID:   userID,
		Username: username,
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.sessions[session.Token] = storedSession{
		session:   session,
		expiresAt: s.clock().Add(s.ttl),
	}
	return session, nil
}

func (s *SessionStore) Get(_ context.Context, token string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored, ok := s.sessions[token]
	if !ok || !stored.expiresAt.After(s.clock()) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return stored.session, nil
}

func (s *SessionStore) Delete(_ context.Context, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, token)
	return nil
}

// sweepLocked drops expired sessions; called on writes so the map stays bounded.
func (s *SessionStore) sweepLocked() {
	now := s.clock()
	for token, stored := range s.sessions {
		if !stored.expiresAt.After(now) {
			delete(s.sessions, token)
		}
	}
}
