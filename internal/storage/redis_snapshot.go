package storage

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/example/train-booking/internal/catalog"
)

const DefaultSnapshotKey = "catalog:snapshot"

// RedisSnapshot stores the last applied catalog snapshot so a restarting
// server can serve requests before its first backend load completes.
type RedisSnapshot struct {
	client *redis.Client
	key    string
	ttl    time.Duration
}

func NewRedisSnapshot(addr, password, key string, ttl time.Duration) *RedisSnapshot {
	c := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return NewRedisSnapshotFromClient(c, key, ttl)
}

func NewRedisSnapshotFromClient(c *redis.Client, key string, ttl time.Duration) *RedisSnapshot {
	if key == "" {
		key = DefaultSnapshotKey
	}
	return &RedisSnapshot{client: c, key: key, ttl: ttl}
}

func (r *RedisSnapshot) Save(ctx context.Context, s catalog.Snapshot) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, r.key, b, r.ttl).Err()
}

// Get returns the stored snapshot. A missing key is not an error; the
// snapshot is simply not loaded.
func (r *RedisSnapshot) Get(ctx context.Context) (catalog.Snapshot, error) {
	b, err := r.client.Get(ctx, r.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return catalog.Snapshot{}, nil
	}
	if err != nil {
		return catalog.Snapshot{}, err
	}
	var s catalog.Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		return catalog.Snapshot{}, err
	}
	return s, nil
}

// Drop removes the stored snapshot.
func (r *RedisSnapshot) Drop(ctx context.Context) error {
	return r.client.Del(ctx, r.key).Err()
}

func (r *RedisSnapshot) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func (r *RedisSnapshot) Close() error { return r.client.Close() }
