// Package pagecache caches rendered public pages and drops them when the
// underlying community, event or blocks change.
package pagecache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/redis/go-redis/v9"

	"github.com/AndreiUshakov/afisha-genspark-sub000/internal/tracing"
)

// Store holds cached responses. Entries for one path are grouped so a
// single Delete drops every query-string variant of the page.
type Store interface {
	Get(ctx context.Context, pathKey, variant string) ([]byte, bool, error)
	Set(ctx context.Context, pathKey, variant string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, pathKeys ...string) error
}

// PathKey hashes a route path into a fixed-length key.
func PathKey(path string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(path))
}

// RedisStore keeps each path as a Redis hash of variant -> response.
type RedisStore struct {
	client redis.UniversalClient
	prefix string
}

// NewRedisStore creates a store using client.
func NewRedisStore(client redis.UniversalClient) *RedisStore {
	return &RedisStore{client: client, prefix: "page:"}
}

func (s *RedisStore) Get(ctx context.Context, pathKey, variant string) ([]byte, bool, error) {
	val, err := s.client.HGet(ctx, s.prefix+pathKey, variant).Bytes()
	if err == redis.Nil {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return val, true, nil
}

func (s *RedisStore) Set(ctx context.Context, pathKey, variant string, value []byte, ttl time.Duration) (err error) {
	ctx, end := tracing.StartStoreSpan(ctx, "redis", "page", tracing.OpPut)
	defer func() { end(err) }()

	key := s.prefix + pathKey
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, variant, value)
		pipe.Expire(ctx, key, ttl)
		return nil
	})
	return err
}

func (s *RedisStore) Delete(ctx context.Context, pathKeys ...string) (err error) {
	if len(pathKeys) == 0 {
		return nil
	}
	ctx, end := tracing.StartStoreSpan(ctx, "redis", "page", tracing.OpRemove)
	defer func() { end(err) }()

	keys := make([]string, len(pathKeys))
	for i, k := range pathKeys {
		keys[i] = s.prefix + k
	}
	return s.client.Del(ctx, keys...).Err()
}

type memoryEntry struct {
	variants  map[string][]byte
	expiresAt time.Time
}

// MemoryStore is a process-local Store for development and tests.
type MemoryStore struct {
	mu      sync.Mutex
	entries map[string]*memoryEntry
	now     func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{entries: make(map[string]*memoryEntry), now: time.Now}
}

func (s *MemoryStore) Get(_ context.Context, pathKey, variant string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[pathKey]
	if !ok {
		return nil, false, nil
	}
	if !s.now().Before(e.expiresAt) {
		delete(s.entries, pathKey)
		return nil, false, nil
	}
	val, ok := e.variants[variant]
	return val, ok, nil
}

func (s *MemoryStore) Set(_ context.Context, pathKey, variant string, value []byte, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[pathKey]
	if !ok || !s.now().Before(e.expiresAt) {
		e = &memoryEntry{variants: make(map[string][]byte)}
		s.entries[pathKey] = e
	}
	e.variants[variant] = append([]byte(nil), value...)
	e.expiresAt = s.now().Add(ttl)
	return nil
}

func (s *MemoryStore) Delete(_ context.Context, pathKeys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range pathKeys {
		delete(s.entries, k)
	}
	return nil
}
