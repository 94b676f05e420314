package app

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"setlist-quiz-service/internal/domain"
)

// UserRepository persists accounts. CreateUser reports a duplicate username as
// domain.ErrUsernameTaken; GetUserByUsername reports a miss as domain.ErrUserNotFound.
type UserRepository interface {
	CreateUser(ctx context.Context, username, passwordHash string) (int64, error)
	GetUserByUsername(ctx context.Context, username string) (domain.User, error)
}

// SessionRepository abstracts where login sessions are stored (in-memory, Redis).
type SessionRepository interface {
	Create(ctx context.Context, userID int64, username string) (domain.Session, error)
	Get(ctx context.Context, token string) (domain.Session, error)
	Delete(ctx context.Context, token string) error
}

// AuthService handles registration and session-based login.
type AuthService struct {
	users    UserRepository
	sessions SessionRepository
	cost     int
	log      *slog.Logger
}

func NewAuthService(users UserRepository, sessions SessionRepository) *AuthService {
	return &AuthService{
		users:    users,
		sessions: sessions,
		cost:     bcrypt.DefaultCost,
		log:      slog.Default().With("component", "auth"),
	}
}

// WithHashCost overrides the bcrypt cost; tests use bcrypt.MinCost.
func (s *AuthService) WithHashCost(cost int) *AuthService {
	s.cost = cost
	return s
}

func (s *AuthService) Register(ctx context.Context, username, password string) error {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.ErrInvalidCredentials
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return domain.ErrPasswordTooLong
	}
	if err != nil {
		return err
	}
	id, err := s.users.CreateUser(ctx, username, string(hash))
	if err != nil {
		return err
	}
	s.log.Info("user registered", "user", id)
	return nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (domain.Session, error) {
	user, err := s.users.GetUserByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		return domain.Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.Session{}, domain.ErrInvalidPassword
	}
	return s.sessions.Create(ctx, user.ID, user.Username)
}

func (s *AuthService) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

// Authenticate resolves a session token to the caller's identity.
func (s *AuthService) Authenticate(ctx context.Context, token string) (domain.Session, error) {
	if token == "" {
		return domain.Session{}, domain.ErrNotAuthenticated
	}
	session, err := s.sessions.Get(ctx, token)
	if errors.Is(err, domain.ErrSessionNotFound) {
		return domain.Session{}, domain.ErrNotAuthenticated
	}
	return session, err
}
