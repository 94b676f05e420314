package cli

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/redis/go-redis/v9"

	"setlist-quiz-service/internal/app"
	"setlist-quiz-service/internal/config"
	"setlist-quiz-service/internal/infra/memory"
	"setlist-quiz-service/internal/infra/postgres"
	infraredis "setlist-quiz-service/internal/infra/redis"
	"setlist-quiz-service/internal/infra/sqlite"
)

const defaultShowsFile = "config/shows.yaml"

// quizStore is satisfied by every submission backend.
type quizStore interface {
	app.SubmissionRepository
	app.UserRepository
	app.StatsRepository
}

type services struct {
	registry *app.Registry
	quizzes  *app.QuizService
	auth     *app.AuthService
	stats    *app.StatsService
	closers  []func()
}

func (s *services) Close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
}

// buildServices wires the backends selected by cfg: Postgres, then SQLite, then
// memory for submissions; Redis when configured for the answer-key cache and sessions.
func buildServices(ctx context.Context, cfg config.Config) (*services, error) {
	showsPath := cfg.ShowsFile
	if showsPath == "" {
		showsPath = defaultShowsFile
	}
	shows, err := config.LoadShows(showsPath)
	if err != nil {
		return nil, fmt.Errorf("load shows: %w", err)
	}
	quizConfigs, err := shows.QuizConfigs()
	if err != nil {
		return nil, err
	}
	registry, err := app.NewRegistry(quizConfigs)
	if err != nil {
		return nil, err
	}

	svc := &services{registry: registry}
	ok := false
	defer func() {
		if !ok {
			svc.Close()
		}
	}()

	var redisClient *redis.Client
	if cfg.Redis.Addr != "" {
		redisClient = newRedisClient(cfg.Redis)
		svc.closers = append(svc.closers, func() { _ = redisClient.Close() })
	}

	var pool *pgxpool.Pool
	if cfg.Postgres.URL != "" {
		pool, err = pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		svc.closers = append(svc.closers, pool.Close)
	}

	var store quizStore
	switch {
	case pool != nil:
		store = postgres.NewStore(pool)
		slog.Info("submission store ready", "backend", "postgres")
	case cfg.SQLite.Path != "":
		sqliteStore, err := sqlite.NewStore(cfg.SQLite.Path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite: %w", err)
		}
		svc.closers = append(svc.closers, func() { _ = sqliteStore.Close() })
		store = sqliteStore
		slog.Info("submission store ready", "backend", "sqlite", "path", cfg.SQLite.Path)
	default:
		store = memory.NewStore()
		slog.Warn("submission store is in-memory; data is lost on restart")
	}

	var loader memory.AnswerKeyLoader
	switch cfg.AnswerKeys.Source {
	case "", "file":
		loader = memory.NewStaticAnswerKeyLoader(shows.AnswerKeyMap())
	case "postgres":
		if pool == nil {
			return nil, fmt.Errorf("answer_keys.source is postgres but postgres.url is empty")
		}
		loader = postgres.NewAnswerKeyLoader(pool)
	default:
		return nil, fmt.Errorf("unknown answer_keys.source %q", cfg.AnswerKeys.Source)
	}

	keyTTL := config.TTLDuration(cfg.AnswerKeys.TTL, 10*time.Minute)
	var answerKeys app.AnswerKeyRepository
	if redisClient != nil {
		answerKeys = infraredis.NewAnswerKeyRepository(redisClient, loader, keyTTL)
	} else {
		answerKeys = memory.NewAnswerKeyRepository(loader, keyTTL)
	}

	sessionTTL := config.TTLDuration(cfg.Session.TTL, 24*time.Hour)
	var sessions app.SessionRepository
	if redisClient != nil {
		sessions = infraredis.NewSessionStore(redisClient, sessionTTL)
	} else {
		sessions = memory.NewSessionStore(sessionTTL)
	}

	svc.quizzes = app.NewQuizService(registry, store, answerKeys)
	svc.auth = app.NewAuthService(store, sessions)
	svc.stats = app.NewStatsService(registry, answerKeys, store, shows.Songs())
	ok = true
	return svc, nil
}

func newRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}
