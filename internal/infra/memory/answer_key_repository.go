package memory

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"setlist-quiz-service/internal/domain"
)

// AnswerKeyLoader fetches answer keys from a backing store (shows file, Postgres).
type AnswerKeyLoader interface {
	LoadAnswerKey(ctx context.Context, slug string) (domain.AnswerKey, error)
}

// AnswerKeyRepository caches answer keys with TTL to avoid repeated loads.
// Misses (domain.ErrNoAnswerKey) are not cached so a key added after a show is picked up.
type AnswerKeyRepository struct {
	loader AnswerKeyLoader
	ttl    time.Duration
	clock  func() time.Time
	sf     singleflight.Group
	rnd    *rand.Rand
	rndMu  sync.Mutex

	mu    sync.RWMutex
	cache map[string]cachedKey
}

type cachedKey struct {
	key       domain.AnswerKey
	expiresAt time.Time
}

func NewAnswerKeyRepository(loader AnswerKeyLoader, ttl time.Duration) *AnswerKeyRepository {
	return &AnswerKeyRepository{
		loader: loader,
		ttl:    ttl,
		clock:  time.Now,
		rnd:    rand.New(rand.NewSource(time.Now().UnixNano())),
		cache:  make(map[string]cachedKey),
	}
}

func (r *AnswerKeyRepository) GetAnswerKey(ctx context.Context, slug string) (domain.AnswerKey, error) {
	now := r.clock()

	r.mu.RLock()
	if entry, ok := r.cache[slug]; ok && entry.expiresAt.After(now) {
		r.mu.RUnlock()
		return entry.key, nil
	}
	r.mu.RUnlock()

	result, err, _ := r.sf.Do(slug, func() (interface{}, error) {
		now := r.clock()
		r.mu.RLock()
		if entry, ok := r.cache[slug]; ok && entry.expiresAt.After(now) {
			r.mu.RUnlock()
			return entry.key, nil
		}
		r.mu.RUnlock()

		key, err := r.loader.LoadAnswerKey(ctx, slug)
		if err != nil {
			return domain.AnswerKey{}, err
		}

		expiresAt := now.Add(r.ttlWithJitter())
		r.mu.Lock()
		r.cache[slug] = cachedKey{key: key, expiresAt: expiresAt}
		r.mu.Unlock()
		return key, nil
	})
	if err != nil {
		return domain.AnswerKey{}, err
	}
	return result.(domain.AnswerKey), nil
}

func (r *AnswerKeyRepository) ttlWithJitter() time.Duration {
	if r.ttl <= 0 {
		return 0
	}
	// add up to 10% jitter to spread expirations
	jitterMax := int64(r.ttl) / 10
	r.rndMu.Lock()
	defer r.rndMu.Unlock()
	return r.ttl + time.Duration(r.rnd.Int63n(jitterMax+1))
}

// StaticAnswerKeyLoader serves answer keys from an in-memory map (the shows file, tests).
type StaticAnswerKeyLoader struct {
	keys map[string]domain.AnswerKey
}

func NewStaticAnswerKeyLoader(keys map[string]domain.AnswerKey) *StaticAnswerKeyLoader {
	return &StaticAnswerKeyLoader{keys: keys}
}

func (l *StaticAnswerKeyLoader) LoadAnswerKey(_ context.Context, slug string) (domain.AnswerKey, error) {
	if key, ok := l.keys[slug]; ok {
		return key, nil
	}
	return domain.AnswerKey{}, domain.ErrNoAnswerKey
}
