package integration

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	goredis "github.com/redis/go-redis/v9"
	tc "github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"setlist-quiz-service/internal/app"
	"setlist-quiz-service/internal/domain"
	"setlist-quiz-service/internal/infra/postgres"
	pgmigrations "setlist-quiz-service/internal/infra/postgres/migrations"
	infraredis "setlist-quiz-service/internal/infra/redis"
)

func TestSubmitAndScoreEndToEnd(t *testing.T) {
	ctx := context.Background()
	requireDocker(t)

	pgURL, pgCleanup := startPostgres(t, ctx)
	defer pgCleanup()
	redisURL, redisCleanup := startRedis(t, ctx)
	defer redisCleanup()

	migrateSchema(t, ctx, pgURL)

	pool, err := pgxpool.Connect(ctx, pgURL)
	if err != nil {
		t.Fatalf("connect pg: %v", err)
	}
	defer pool.Close()

	loader := postgres.NewAnswerKeyLoader(pool)
	if err := loader.SaveAnswerKey(ctx, "detroit", sampleKey()); err != nil {
		t.Fatalf("seed answer key: %v", err)
	}

	redisClient, err := redisClientFromURL(redisURL)
	if err != nil {
		t.Fatalf("redis client: %v", err)
	}
	defer redisClient.Close()

	store := postgres.NewStore(pool)
	answerKeys := infraredis.NewAnswerKeyRepository(redisClient, loader, 5*time.Minute)
	sessions := infraredis.NewSessionStore(redisClient, 5*time.Minute)

	registry, start := sampleRegistry(t)
	now := start.Add(-time.Hour)
	quizzes := app.NewQuizServiceWithClock(registry, store, answerKeys, func() time.Time { return now })
	auth := app.NewAuthService(store, sessions).WithHashCost(4)

	if err := auth.Register(ctx, "alice", "pw"); err != nil {
		t.Fatalf("register alice: %v", err)
	}
	if err := auth.Register(ctx, "bob", "pw"); err != nil {
		t.Fatalf("register bob: %v", err)
	}
	alice, err := auth.Login(ctx, "alice", "pw")
	if err != nil {
		t.Fatalf("login alice: %v", err)
	}
	bob, err := auth.Login(ctx, "bob", "pw")
	if err != nil {
		t.Fatalf("login bob: %v", err)
	}

	if _, err := quizzes.Submit(ctx, "detroit", alice.UserID, domain.Answers{Q1: "peach", Q6: "21 questions", Q3: "Dizzy"}); err != nil {
		t.Fatalf("submit alice: %v", err)
	}
	if _, err := quizzes.Submit(ctx, "detroit", bob.UserID, domain.Answers{Q1: "Telephone"}); err != nil {
		t.Fatalf("submit bob: %v", err)
	}
	if _, err := quizzes.Submit(ctx, "detroit", bob.UserID, domain.Answers{Q1: "Peach"}); !errors.Is(err, domain.ErrAlreadySubmitted) {
		t.Fatalf("expected second submit to be rejected, got %v", err)
	}

	now = start.Add(2 * time.Hour)
	report, err := quizzes.ComputeScores(ctx, "detroit", false)
	if err != nil {
		t.Fatalf("compute scores: %v", err)
	}
	if report.Scored != 2 {
		t.Fatalf("expected 2 scored rows, got %d", report.Scored)
	}

	again, err := quizzes.ComputeScores(ctx, "detroit", false)
	if err != nil || again.Scored != 0 {
		t.Fatalf("expected idempotent rerun, got %d err=%v", again.Scored, err)
	}

	_, board, err := quizzes.Leaderboard(ctx, "detroit")
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 2 || board[0].Username != "alice" || board[0].Score != 2 {
		t.Fatalf("expected alice leading with 2 points, got %+v", board)
	}
}

func sampleRegistry(t *testing.T) (*app.Registry, time.Time) {
	t.Helper()
	loc, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Fatalf("load location: %v", err)
	}
	start := time.Date(2025, 11, 26, 21, 0, 0, 0, loc)
	registry, err := app.NewRegistry([]domain.QuizConfig{{
		Slug:           "detroit",
		QuizID:         10,
		Start:          start,
		Timezone:       "America/New_York",
		Location:       loc,
		ScoringDelay:   time.Hour,
		ScoringEnabled: true,
	}})
	if err != nil {
		t.Fatalf("registry: %v", err)
	}
	return registry, start
}

func sampleKey() domain.AnswerKey {
	return domain.AnswerKey{
		SingleChoice: map[string]domain.Choice{
			domain.Q1: {Values: []string{"Peach"}},
			domain.Q2: {Values: []string{"Gloom Boys"}},
			domain.Q6: {Values: []string{"Lucky People", "21 Questions"}},
			domain.Q7: {Values: []string{"Reboot"}},
		},
		Surprise: []string{},
	}
}

func startPostgres(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "postgres:15-alpine",
		Env:          map[string]string{"POSTGRES_USER": "quiz", "POSTGRES_PASSWORD": "quizpass", "POSTGRES_DB": "quizdb"},
		ExposedPorts: []string{"5432/tcp"},
		WaitingFor:   wait.ForListeningPort("5432/tcp").WithStartupTimeout(60 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start postgres: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432/tcp")
	if err != nil {
		t.Fatalf("port: %v", err)
	}
	dsn := fmt.Sprintf("postgres://quiz:quizpass@%s:%s/quizdb?sslmode=disable", host, port.Port())
	return dsn, func() {
		_ = container.Terminate(ctx)
	}
}

func startRedis(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()
	req := tc.ContainerRequest{
		Image:        "redis:7-alpine",
		ExposedPorts: []string{"6379/tcp"},
		WaitingFor:   wait.ForListeningPort("6379/tcp").WithStartupTimeout(30 * time.Second),
	}
	container, err := tc.GenericContainer(ctx, tc.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		if strings.Contains(err.Error(), "Cannot connect to the Docker daemon") {
			t.Skipf("docker not available: %v", err)
		}
		t.Fatalf("start redis: %v", err)
	}
	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("redis host: %v", err)
	}
	port, err := container.MappedPort(ctx, "6379/tcp")
	if err != nil {
		t.Fatalf("redis port: %v", err)
	}
	url := fmt.Sprintf("redis://%s:%s", host, port.Port())
	return url, func() {
		_ = container.Terminate(ctx)
	}
}

func migrateSchema(t *testing.T, ctx context.Context, dsn string) {
	t.Helper()
	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(dsn)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		t.Fatalf("migrator init: %v", err)
	}
	if _, err := migrator.Migrate(ctx); err != nil {
		t.Fatalf("migrate: %v", err)
	}
}

func redisClientFromURL(url string) (*goredis.Client, error) {
	opts, err := goredis.ParseURL(url)
	if err != nil {
		return nil, err
	}
	return goredis.NewClient(opts), nil
}

func requireDocker(t *testing.T) {
	t.Helper()
	if _, err := tc.NewDockerProvider(); err != nil {
		t.Skipf("docker not available: %v", err)
	}
}
