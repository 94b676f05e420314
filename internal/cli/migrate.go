package cli

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"
	"github.com/uptrace/bun/migrate"

	"setlist-quiz-service/internal/config"
	"setlist-quiz-service/internal/infra/postgres"
	pgmigrations "setlist-quiz-service/internal/infra/postgres/migrations"
	infraredis "setlist-quiz-service/internal/infra/redis"
)

// NewMigrateCmd applies database migrations and optionally copies the answer keys
// from the shows file into Postgres.
func NewMigrateCmd(configPath *string) *cobra.Command {
	var seed bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configPath)
			if err != nil {
				return err
			}
			return runMigrationsWithConfig(cmd.Context(), cfg, seed)
		},
	}
	cmd.Flags().BoolVar(&seed, "seed-answer-keys", false, "upsert answer keys from the shows file into the answer_keys table")
	return cmd
}

func runMigrationsWithConfig(ctx context.Context, cfg config.Config, seed bool) error {
	if cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	sqldb := sql.OpenDB(pgdriver.NewConnector(pgdriver.WithDSN(cfg.Postgres.URL)))
	db := bun.NewDB(sqldb, pgdialect.New())
	defer db.Close()

	migrator := migrate.NewMigrator(db, pgmigrations.Migrations)
	if err := migrator.Init(ctx); err != nil {
		return err
	}
	group, err := migrator.Migrate(ctx)
	if err != nil {
		return err
	}
	if group.IsZero() {
		slog.Info("database schema up to date")
	} else {
		slog.Info("migrations applied", "group", group.String())
	}

	if seed {
		return seedAnswerKeys(ctx, cfg)
	}
	return nil
}

func seedAnswerKeys(ctx context.Context, cfg config.Config) error {
	showsPath := cfg.ShowsFile
	if showsPath == "" {
		showsPath = defaultShowsFile
	}
	shows, err := config.LoadShows(showsPath)
	if err != nil {
		return fmt.Errorf("load shows: %w", err)
	}

	pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	loader := postgres.NewAnswerKeyLoader(pool)
	for slug, key := range shows.AnswerKeyMap() {
		if err := loader.SaveAnswerKey(ctx, slug, key); err != nil {
			return err
		}
	}
	slog.Info("answer keys seeded", "count", len(shows.AnswerKeys))

	// Cached copies would otherwise be served until their TTL runs out.
	if cfg.Redis.Addr != "" {
		client := newRedisClient(cfg.Redis)
		defer client.Close()
		cache := infraredis.NewAnswerKeyRepository(client, loader, 0)
		for slug := range shows.AnswerKeyMap() {
			if err := cache.Invalidate(ctx, slug); err != nil {
				slog.Warn("invalidate cached answer key failed", "slug", slug, "error", err)
			}
		}
	}
	return nil
}
