package credstore

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"bookmart/pkg/domain"
)

const redisOpTimeout = 3 * time.Second

// RedisStore keeps the blobs in Redis, shared across processes on the
// same device profile.
type RedisStore struct {
	client *redis.Client
	prefix string
}

// NewRedisStore builds a Redis-backed store. Keys are namespaced under
// prefix (defaults to "bookmart:").
func NewRedisStore(addr, password, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "bookmart:"
	}
	return &RedisStore{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
		}),
		prefix: prefix,
	}
}

func (r *RedisStore) Session() (domain.StoredSession, bool) {
	var s domain.StoredSession
	if !r.read(r.prefix+"session", &s) || s.Token == "" {
		return domain.StoredSession{}, false
	}
	return s, true
}

func (r *RedisStore) SetSession(s domain.StoredSession) error {
	return r.write(r.prefix+"session", s)
}

func (r *RedisStore) ClearSession() error {
	return r.remove(r.prefix + "session")
}

func (r *RedisStore) Cart() ([]domain.CartItem, bool) {
	var items []domain.CartItem
	if !r.read(r.prefix+"cart", &items) || items == nil {
		return nil, false
	}
	return items, true
}

func (r *RedisStore) SetCart(items []domain.CartItem) error {
	if items == nil {
		items = []domain.CartItem{}
	}
	return r.write(r.prefix+"cart", items)
}

func (r *RedisStore) ClearCart() error {
	return r.remove(r.prefix + "cart")
}

func (r *RedisStore) read(key string, out any) bool {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		return false
	}
	if err := json.Unmarshal(data, out); err != nil {
		// Corrupt entry: drop it rather than fail every read.
		_ = r.client.Del(ctx, key).Err()
		return false
	}
	return true
}

func (r *RedisStore) write(key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	return r.client.Set(ctx, key, data, 0).Err()
}

func (r *RedisStore) remove(key string) error {
	ctx, cancel := context.WithTimeout(context.Background(), redisOpTimeout)
	defer cancel()
	if err := r.client.Del(ctx, key).Err(); err != nil && err != redis.Nil {
		return err
	}
	return nil
}
