package redis

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"setlist-quiz-service/internal/domain"
)

// SessionStore is a Redis implementation of app.SessionRepository.
// Each login is one key, session:{token}, holding the identity as JSON and
// expiring with the session TTL, so any instance can resolve the cookie.
type SessionStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewSessionStore(client *redis.Client, ttl time.Duration) *SessionStore {
	return &SessionStore{client: client, ttl: ttl}
}

func (s *SessionStore) Create(ctx context.Context, userID int64, username string) (domain.Session, error) {
	session := domain.Session{
		Token:    uuid.NewString(),
		UserID:   userID,
		Username: username,
	}
	raw, err := json.Marshal(session)
	if err != nil {
		return domain.Session{}, err
	}
	if err := s.client.Set(ctx, s.key(session.Token), raw, s.ttl).Err(); err != nil {
		return domain.Session{}, domain.StoreError("create session", err)
	}
	return session, nil
}

func (s *SessionStore) Get(ctx context.Context, token string) (domain.Session, error) {
	raw, err := s.client.Get(ctx, s.key(token)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	if err != nil {
		return domain.Session{}, domain.StoreError("get session", err)
	}
	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.Session{}, err
	}
	session.Token = token
	return session, nil
}

func (s *SessionStore) Delete(ctx context.Context, token string) error {
	if err := s.client.Del(ctx, s.key(token)).Err(); err != nil {
		return domain.StoreError("delete session", err)
	}
	return nil
}

func (s *SessionStore) key(token string) string {
	return "session:" + token
}
