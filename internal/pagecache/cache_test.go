package pagecache

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
)

func countingHandler(calls *atomic.Int32, status int) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = io.WriteString(w, `{"call":`+strconv.Itoa(int(n))+`}`)
	})
}

func get(t *testing.T, h http.Handler, target string, header ...string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestMiddleware_HitMissInvalidate(t *testing.T) {
	cache := New(NewMemoryStore(), time.Minute, nil)
	var calls atomic.Int32
	h := cache.Middleware(countingHandler(&calls, http.StatusOK))

	first := get(t, h, "/communities/jazz")
	if first.Header().Get(HeaderCache) != "MISS" || first.Body.String() != `{"call":1}` {
		t.Fatalf("first = %s %q", first.Header().Get(HeaderCache), first.Body.String())
	}

	second := get(t, h, "/communities/jazz")
	if second.Header().Get(HeaderCache) != "HIT" || second.Body.String() != `{"call":1}` {
		t.Errorf("second = %s %q", second.Header().Get(HeaderCache), second.Body.String())
	}
	if second.Header().Get("Content-Type") != "application/json" {
		t.Errorf("cached Content-Type = %q", second.Header().Get("Content-Type"))
	}

	cache.Invalidate(context.Background(), CommunityPaths("jazz")...)
	third := get(t, h, "/communities/jazz")
	if third.Header().Get(HeaderCache) != "MISS" || third.Body.String() != `{"call":2}` {
		t.Errorf("after invalidate = %s %q", third.Header().Get(HeaderCache), third.Body.String())
	}
}

func TestMiddleware_QueryVariants(t *testing.T) {
	cache := New(NewMemoryStore(), time.Minute, nil)
	var calls atomic.Int32
	h := cache.Middleware(countingHandler(&calls, http.StatusOK))

	get(t, h, "/communities?offset=0")
	get(t, h, "/communities?offset=20")
	if calls.Load() != 2 {
		t.Fatalf("variants must be cached separately, calls = %d", calls.Load())
	}
	get(t, h, "/communities?offset=20")
	if calls.Load() != 2 {
		t.Errorf("variant not served from cache")
	}

	cache.Invalidate(context.Background(), "/communities")
	get(t, h, "/communities?offset=0")
	get(t, h, "/communities?offset=20")
	if calls.Load() != 4 {
		t.Errorf("invalidating a path must drop all variants, calls = %d", calls.Load())
	}
}

func TestMiddleware_Bypass(t *testing.T) {
	cache := New(NewMemoryStore(), time.Minute, nil)
	var calls atomic.Int32
	h := cache.Middleware(countingHandler(&calls, http.StatusOK))

	for i := 0; i < 2; i++ {
		rec := get(t, h, "/communities/jazz", "Authorization", "Bearer x")
		if rec.Header().Get(HeaderCache) != "BYPASS" {
			t.Errorf("authorized request X-Cache = %q", rec.Header().Get(HeaderCache))
		}
	}
	if calls.Load() != 2 {
		t.Errorf("authorized requests must not be cached")
	}
}

func TestMiddleware_DoesNotCacheErrors(t *testing.T) {
	cache := New(NewMemoryStore(), time.Minute, nil)
	var calls atomic.Int32
	h := cache.Middleware(countingHandler(&calls, http.StatusNotFound))

	get(t, h, "/communities/missing")
	rec := get(t, h, "/communities/missing")
	if rec.Code != http.StatusNotFound || calls.Load() != 2 {
		t.Errorf("404 responses must not be cached: code=%d calls=%d", rec.Code, calls.Load())
	}
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string, string) ([]byte, bool, error) {
	return nil, false, errors.New("connection refused")
}
func (brokenStore) Set(context.Context, string, string, []byte, time.Duration) error {
	return errors.New("connection refused")
}
func (brokenStore) Delete(context.Context, ...string) error { return errors.New("connection refused") }

func TestMiddleware_StoreFailureServesFresh(t *testing.T) {
	cache := New(brokenStore{}, time.Minute, nil)
	var calls atomic.Int32
	h := cache.Middleware(countingHandler(&calls, http.StatusOK))

	rec := get(t, h, "/categories")
	if rec.Code != http.StatusOK || rec.Body.String() != `{"call":1}` {
		t.Errorf("response = %d %q", rec.Code, rec.Body.String())
	}
	cache.Invalidate(context.Background(), "/categories")
}

func TestMemoryStore_Expiry(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	if err := store.Set(ctx, "k", "", []byte("v"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if _, ok, _ := store.Get(ctx, "k", ""); !ok {
		t.Fatal("entry missing before expiry")
	}
	now = now.Add(time.Minute)
	if _, ok, _ := store.Get(ctx, "k", ""); ok {
		t.Error("entry served after expiry")
	}
}

func TestPathKey(t *testing.T) {
	if PathKey("/events/1") == PathKey("/events/2") {
		t.Error("distinct paths share a key")
	}
	if len(PathKey("/communities")) != 16 {
		t.Errorf("key length = %d", len(PathKey("/communities")))
	}
}

func TestRedisStore(t *testing.T) {
	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skip("Redis not available, skipping integration test")
	}
	t.Cleanup(func() { _ = client.Close() })

	store := NewRedisStore(client)
	ctx = context.Background()
	pathKey := PathKey("/test/" + strconv.FormatInt(time.Now().UnixNano(), 10))
	t.Cleanup(func() { _ = store.Delete(ctx, pathKey) })

	if _, ok, err := store.Get(ctx, pathKey, ""); err != nil || ok {
		t.Fatalf("Get() on empty = %v, %v", ok, err)
	}
	if err := store.Set(ctx, pathKey, "a=1", []byte("one"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := store.Set(ctx, pathKey, "", []byte("root"), time.Minute); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	val, ok, err := store.Get(ctx, pathKey, "a=1")
	if err != nil || !ok || string(val) != "one" {
		t.Fatalf("Get() = %q, %v, %v", val, ok, err)
	}

	if err := store.Delete(ctx, pathKey); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	for _, variant := range []string{"", "a=1"} {
		if _, ok, _ := store.Get(ctx, pathKey, variant); ok {
			t.Errorf("variant %q survived Delete", variant)
		}
	}
}
