package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"setlist-quiz-service/internal/domain"
)

// AnswerKeyLoader loads answer key JSONB from Postgres.
type AnswerKeyLoader struct {
	pool *pgxpool.Pool
}

func NewAnswerKeyLoader(pool *pgxpool.Pool) *AnswerKeyLoader {
	return &AnswerKeyLoader{pool: pool}
}

func (l *AnswerKeyLoader) LoadAnswerKey(ctx context.Context, slug string) (domain.AnswerKey, error) {
	var raw []byte
	err := l.pool.QueryRow(ctx, `SELECT data FROM answer_keys WHERE slug=$1`, slug).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.AnswerKey{}, domain.ErrNoAnswerKey
	}
	if err != nil {
		return domain.AnswerKey{}, domain.StoreError("load answer key", err)
	}
	var key domain.AnswerKey
	if err := json.Unmarshal(raw, &key); err != nil {
		return domain.AnswerKey{}, fmt.Errorf("unmarshal answer key %s: %w", slug, err)
	}
	return key, nil
}

// SaveAnswerKey upserts the key for a show.
func (l *AnswerKeyLoader) SaveAnswerKey(ctx context.Context, slug string, key domain.AnswerKey) error {
	data, err := json.Marshal(key)
	if err != nil {
		return fmt.Errorf("marshal answer key %s: %w", slug, err)
	}
	_, err = l.pool.Exec(ctx,
		`INSERT INTO answer_keys (slug, data, updated_at) VALUES ($1, $2::jsonb, NOW())
		 ON CONFLICT (slug) DO UPDATE SET data=EXCLUDED.data, updated_at=NOW()`,
		slug, string(data))
	if err != nil {
		return domain.StoreError("save answer key", err)
	}
	return nil
}
