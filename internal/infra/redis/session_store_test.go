package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"setlist-quiz-service/internal/domain"
)

func TestSessionStoreSetsAndClearsKeys(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	store := NewSessionStore(client, time.Minute)
	ctx := context.Background()

	session, err := store.Create(ctx, 42, "alice")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("session:" + session.Token) {
		t.Fatalf("expected redis key to be set")
	}

	got, err := store.Get(ctx, session.Token)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.UserID != 42 || got.Username != "alice" || got.Token != session.Token {
		t.Fatalf("unexpected session %+v", got)
	}

	if err := store.Delete(ctx, session.Token); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("session:" + session.Token) {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestSessionStoreExpiresWithTTL(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	store := NewSessionStore(redis.NewClient(&redis.Options{Addr: mr.Addr()}), time.Minute)
	session, err := store.Create(context.Background(), 1, "bob")
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	mr.FastForward(2 * time.Minute)

	if _, err := store.Get(context.Background(), session.Token); !errors.Is(err, domain.ErrSessionNotFound) {
		t.Fatalf("expected ErrSessionNotFound after ttl, got %v", err)
	}
}
