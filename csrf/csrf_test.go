package csrf

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"zimship/prefs"
)

func TestLocalStoreTokenSingleUse(t *testing.T) {
	store := prefs.NewMemoryStore()
	l := NewLocalStore(store)

	token, err := l.Generate()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(token) < 40 {
		t.Fatalf("token looks too short: %q", token)
	}
	if raw, ok, _ := store.Get(StorageKey); !ok || raw != token {
		t.Fatalf("expected token under %s", StorageKey)
	}

	if err := l.Validate(token); err != nil {
		t.Fatalf("first validation: %v", err)
	}
	if err := l.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("second validation should fail, got %v", err)
	}
}

func TestLocalStoreMismatchClearsToken(t *testing.T) {
	l := NewLocalStore(prefs.NewMemoryStore())
	token, _ := l.Generate()

	if err := l.Validate("forged"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected mismatch error, got %v", err)
	}
	if err := l.Validate(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("token should be cleared after any validation, got %v", err)
	}
}

type fakeRedis struct {
	mu   sync.Mutex
	data map[string]string
	ttls map[string]time.Duration
}

func newFakeRedis() *fakeRedis {
	return &fakeRedis{data: map[string]string{}, ttls: map[string]time.Duration{}}
}

func (f *fakeRedis) Set(_ context.Context, key string, value interface{}, exp time.Duration) *redis.StatusCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = value.(string)
	f.ttls[key] = exp
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) GetDel(_ context.Context, key string) *redis.StringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	delete(f.data, key)
	return redis.NewStringResult(v, nil)
}

func TestRedisStoreTokenSingleUse(t *testing.T) {
	fake := newFakeRedis()
	r := NewRedisStore(fake, 10*time.Minute)
	ctx := context.Background()

	token, err := r.Generate(ctx)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if fake.ttls[redisKey(token)] != 10*time.Minute {
		t.Fatalf("expected ttl to be applied, got %v", fake.ttls[redisKey(token)])
	}

	if err := r.Validate(ctx, token); err != nil {
		t.Fatalf("first validation: %v", err)
	}
	if err := r.Validate(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("second validation should fail, got %v", err)
	}
	if err := r.Validate(ctx, ""); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("empty token should fail, got %v", err)
	}
}

func TestRedisStoreConcurrentValidationOnlyOneWins(t *testing.T) {
	r := NewRedisStore(newFakeRedis(), 0)
	ctx := context.Background()
	token, _ := r.Generate(ctx)

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if r.Validate(ctx, token) == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("expected exactly one successful validation, got %d", wins)
	}
}
