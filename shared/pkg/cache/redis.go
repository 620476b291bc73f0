package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrMiss is returned when a key is absent.
var ErrMiss = errors.New("cache miss")

// MenuKey is the cache key for a vendor's full menu. Both the API and the
// sync worker write menu items, so they share the key here.
func MenuKey(vendorID string) string {
	return "vendor:" + vendorID + ":menu"
}

type Redis struct {
	C *redis.Client
}

func New(addr string) *Redis {
	return &Redis{C: redis.NewClient(&redis.Options{Addr: addr})}
}

func (r *Redis) Ping(ctx context.Context) error {
	return r.C.Ping(ctx).Err()
}

func (r *Redis) Close() error {
	return r.C.Close()
}

func (r *Redis) GetString(ctx context.Context, key string) (string, error) {
	s, err := r.C.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrMiss
	}
	return s, err
}

func (r *Redis) SetString(ctx context.Context, key, value string, ttl time.Duration) error {
	return r.C.Set(ctx, key, value, ttl).Err()
}

func (r *Redis) Delete(ctx context.Context, keys ...string) error {
	return r.C.Del(ctx, keys...).Err()
}

func (r *Redis) GetJSON(ctx context.Context, key string, dst any) error {
	s, err := r.GetString(ctx, key)
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(s), dst)
}

func (r *Redis) SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return r.SetString(ctx, key, string(b), ttl)
}
