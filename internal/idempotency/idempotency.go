// Package idempotency absorbs duplicate chat submissions. A client-supplied
// key maps to the previously produced reply for a short TTL, so a retried
// request returns the identical reply without a second model call.
// Supports both in-memory (single instance) and Redis (distributed) backends.
package idempotency

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the reference window for duplicate absorption.
const DefaultTTL = 10 * time.Second

// Store defines the interface for idempotency backends. Absence of a key is
// not an error. A hit short-circuits the entire remaining pipeline.
type Store interface {
	Get(ctx context.Context, key string) (string, bool)
	Set(ctx context.Context, key, reply string) error
}

type InMemoryStore struct {
	mu    sync.RWMutex
	items map[string]entry
	ttl   time.Duration
	now   func() time.Time
}

type entry struct {
	reply     string
	expiresAt time.Time
}

func NewInMemoryStore(ttl time.Duration) *InMemoryStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	s := &InMemoryStore{
		items: make(map[string]entry),
		ttl:   ttl,
		now:   time.Now,
	}
	go s.cleanup()
	return s
}

func (s *InMemoryStore) Get(ctx context.Context, key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.items[key]
	if !ok {
		return "", false
	}

	// Lazy eviction: the read that discovers expiry drops the entry.
	if s.now().After(e.expiresAt) {
		delete(s.items, key)
		return "", false
	}

	return e.reply, true
}

func (s *InMemoryStore) Set(ctx context.Context, key, reply string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items[key] = entry{
		reply:     reply,
		expiresAt: s.now().Add(s.ttl),
	}

	return nil
}

// cleanup bounds memory; it is not needed for correctness because Get
// evicts lazily.
func (s *InMemoryStore) cleanup() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		s.mu.Lock()
		now := s.now()
		for key, e := range s.items {
			if now.After(e.expiresAt) {
				delete(s.items, key)
			}
		}
		s.mu.Unlock()
	}
}

// RedisStore shares the idempotency window across gateway instances. Redis
// handles expiry itself.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	if ttl <= 0 {
		ttl = DefaultTTL
	}

	return &RedisStore{client: client, ttl: ttl}, nil
}

// NewRedisStoreWithClient wraps an existing client; used by tests and by
// callers that share one connection pool.
func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Get(ctx context.Context, key string) (string, bool) {
	reply, err := s.client.Get(ctx, "idem:"+key).Result()
	if err != nil {
		return "", false
	}
	return reply, true
}

func (s *RedisStore) Set(ctx context.Context, key, reply string) error {
	return s.client.Set(ctx, "idem:"+key, reply, s.ttl).Err()
}

// Ping reports connection health; readiness checks use it.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
