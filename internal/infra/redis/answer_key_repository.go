package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"

	"setlist-quiz-service/internal/domain"
)

const surpriseField = "surprise"

// AnswerKeyLoader fetches answer keys from a backing store (shows file, Postgres).
type AnswerKeyLoader interface {
	LoadAnswerKey(ctx context.Context, slug string) (domain.AnswerKey, error)
}

// AnswerKeyRepository caches answer keys in Redis (hash per show) and falls back to a loader on cache miss.
// Layout: HSET answerkey:{slug} {question} {json accepted list} ... surprise {json list}
// The surprise field is always written so a cached key is never an empty hash.
type AnswerKeyRepository struct {
	client *redis.Client
	loader AnswerKeyLoader
	ttl    time.Duration
	sf     singleflight.Group

	rndMu sync.Mutex
	rnd   *rand.Rand
}

func NewAnswerKeyRepository(client *redis.Client, loader AnswerKeyLoader, ttl time.Duration) *AnswerKeyRepository {
	return &AnswerKeyRepository{
		client: client,
		loader: loader,
		ttl:    ttl,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (r *AnswerKeyRepository) GetAnswerKey(ctx context.Context, slug string) (domain.AnswerKey, error) {
	if key, ok := r.cached(ctx, slug); ok {
		return key, nil
	}

	result, err, _ := r.sf.Do(slug, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if key, ok := r.cached(ctx, slug); ok {
			return key, nil
		}

		key, err := r.loader.LoadAnswerKey(ctx, slug)
		if err != nil {
			return domain.AnswerKey{}, err
		}

		fields, err := encodeAnswerKey(key)
		if err != nil {
			return domain.AnswerKey{}, err
		}
		cacheKey := r.key(slug)
		pipe := r.client.TxPipeline()
		pipe.Del(ctx, cacheKey)
		pipe.HSet(ctx, cacheKey, fields)
		if ttl := r.ttlWithJitter(); ttl > 0 {
			pipe.Expire(ctx, cacheKey, ttl)
		}
		// the loaded key is still good if the cache write fails
		_, _ = pipe.Exec(ctx)

		return key, nil
	})
	if err != nil {
		return domain.AnswerKey{}, err
	}
	return result.(domain.AnswerKey), nil
}

// Invalidate drops a cached key, e.g. after answers are corrected post-show.
func (r *AnswerKeyRepository) Invalidate(ctx context.Context, slug string) error {
	return r.client.Del(ctx, r.key(slug)).Err()
}

func (r *AnswerKeyRepository) cached(ctx context.Context, slug string) (domain.AnswerKey, bool) {
	fields, err := r.client.HGetAll(ctx, r.key(slug)).Result()
	if err != nil || len(fields) == 0 {
		return domain.AnswerKey{}, false
	}
	key, err := decodeAnswerKey(fields)
	if err != nil {
		return domain.AnswerKey{}, false
	}
	return key, true
}

func (r *AnswerKeyRepository) key(slug string) string {
	return "answerkey:" + slug
}

func encodeAnswerKey(key domain.AnswerKey) (map[string]interface{}, error) {
	fields := make(map[string]interface{}, len(key.SingleChoice)+1)
	for question, choice := range key.SingleChoice {
		raw, err := json.Marshal(choice.Values)
		if err != nil {
			return nil, err
		}
		fields[question] = string(raw)
	}
	surprise := key.Surprise
	if surprise == nil {
		surprise = []string{}
	}
	raw, err := json.Marshal(surprise)
	if err != nil {
		return nil, err
	}
	fields[surpriseField] = string(raw)
	return fields, nil
}

func decodeAnswerKey(fields map[string]string) (domain.AnswerKey, error) {
	key := domain.AnswerKey{SingleChoice: make(map[string]domain.Choice, len(fields))}
	for field, raw := range fields {
		var values []string
		if err := json.Unmarshal([]byte(raw), &values); err != nil {
			return domain.AnswerKey{}, err
		}
		if field == surpriseField {
			key.Surprise = values
			continue
		}
		key.SingleChoice[field] = domain.Choice{Values: values}
	}
	return key, nil
}

func (r *AnswerKeyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}
