package csrf

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"zimship/prefs"
)

// StorageKey is the local storage key holding the outstanding token.
const StorageKey = "csrf_token"

// ErrInvalidToken is returned when a token is missing, unknown or reused.
var ErrInvalidToken = errors.New("csrf: invalid or already used token")

func newToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("csrf: generate token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// LocalStore keeps a single outstanding token in local storage. Validation
// clears it whether or not the presented token matches.
type LocalStore struct {
	store prefs.Store
}

func NewLocalStore(store prefs.Store) *LocalStore {
	return &LocalStore{store: store}
}

// Generate replaces any outstanding token with a fresh one.
func (l *LocalStore) Generate() (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := l.store.Set(StorageKey, token); err != nil {
		return "", fmt.Errorf("csrf: store token: %w", err)
	}
	return token, nil
}

func (l *LocalStore) Validate(token string) error {
	stored, ok, err := l.store.Get(StorageKey)
	if err != nil {
		return fmt.Errorf("csrf: read token: %w", err)
	}
	if !ok {
		return ErrInvalidToken
	}
	if err := l.store.Delete(StorageKey); err != nil {
		return fmt.Errorf("csrf: clear token: %w", err)
	}
	if token == "" || subtle.ConstantTimeCompare([]byte(stored), []byte(token)) != 1 {
		return ErrInvalidToken
	}
	return nil
}

type redisClient interface {
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	GetDel(ctx context.Context, key string) *redis.StringCmd
}

// RedisStore issues tokens for server-side form endpoints. Each token is
// consumed atomically with GETDEL.
type RedisStore struct {
	client redisClient
	ttl    time.Duration
}

func NewRedisStore(client redisClient, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisStore{client: client, ttl: ttl}
}

func redisKey(token string) string {
	return "csrf:" + token
}

func (r *RedisStore) Generate(ctx context.Context) (string, error) {
	token, err := newToken()
	if err != nil {
		return "", err
	}
	if err := r.client.Set(ctx, redisKey(token), "1", r.ttl).Err(); err != nil {
		return "", fmt.Errorf("csrf: store token: %w", err)
	}
	return token, nil
}

func (r *RedisStore) Validate(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidToken
	}
	_, err := r.client.GetDel(ctx, redisKey(token)).Result()
	if err == redis.Nil {
		return ErrInvalidToken
	}
	if err != nil {
		return fmt.Errorf("csrf: consume token: %w", err)
	}
	return nil
}
