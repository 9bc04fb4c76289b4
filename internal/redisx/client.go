package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

func New(addr string) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:         addr,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
	})
}

func Exists(ctx context.Context, rdb *redis.Client, key string) (bool, error) {
	n, err := rdb.Exists(ctx, key).Result()
	return n > 0, err
}

// Idempotency maps a caller supplied key to the id of the result it produced.
type Idempotency struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotency(rdb *redis.Client) *Idempotency {
	return &Idempotency{rdb: rdb, ttl: TTLIdempotency}
}

// Lookup returns the remembered id for (scope, key), if any.
func (i *Idempotency) Lookup(ctx context.Context, scope, key string) (string, bool, error) {
	v, err := i.rdb.Get(ctx, fmt.Sprintf(KeyIdemCheckout, scope, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return v, true, nil
}

func (i *Idempotency) Remember(ctx context.Context, scope, key, id string) error {
	return i.rdb.Set(ctx, fmt.Sprintf(KeyIdemCheckout, scope, key), id, i.ttl).Err()
}

// Dedup marks event ids as processed for one consuming service.
type Dedup struct {
	rdb     *redis.Client
	service string
	ttl     time.Duration
}

func NewDedup(rdb *redis.Client, service string) *Dedup {
	return &Dedup{rdb: rdb, service: service, ttl: TTLDedup}
}

// Claim reports whether the caller is the first to process id.
func (d *Dedup) Claim(ctx context.Context, id string) (bool, error) {
	return d.rdb.SetNX(ctx, fmt.Sprintf(KeyDedup, d.service, id), "1", d.ttl).Result()
}

// Release forgets id so a failed attempt can be processed again.
func (d *Dedup) Release(ctx context.Context, id string) error {
	return d.rdb.Del(ctx, fmt.Sprintf(KeyDedup, d.service, id)).Err()
}

// JSONCache stores JSON encoded values with a fixed TTL.
type JSONCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewJSONCache(rdb *redis.Client, ttl time.Duration) *JSONCache {
	if ttl <= 0 {
		ttl = TTLCatalog
	}
	return &JSONCache{rdb: rdb, ttl: ttl}
}

// Load decodes the cached value into dst and reports whether it was present.
func (c *JSONCache) Load(ctx context.Context, key string, dst any) (bool, error) {
	b, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dst); err != nil {
		return false, fmt.Errorf("decode cached %s: %w", key, err)
	}
	return true, nil
}

func (c *JSONCache) Store(ctx context.Context, key string, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, key, b, c.ttl).Err()
}

func (c *JSONCache) Invalidate(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}
