package persistence

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/briefkit/briefkit/internal/tlsutil"
	"github.com/briefkit/briefkit/session"
)

// RedisSessionStore is a Redis-based implementation of session.Store.
// Suitable for multi-replica deployments.
// Snapshots are stored as JSON strings, indexed by a sorted set scored by
// last activity.
type RedisSessionStore struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	now       func() time.Time
}

// NewRedisSessionStore dials Redis and verifies the connection.
func NewRedisSessionStore(config StoreConfig) (*RedisSessionStore, error) {
	opts := &redis.Options{
		Addr:         config.Redis.Addr,
		Password:     config.Redis.Password,
		DB:           config.Redis.DB,
		PoolSize:     config.Redis.PoolSize,
		MinIdleConns: config.Redis.MinIdleConns,
	}
	if config.Redis.TLS {
		opts.TLSConfig = tlsutil.ClientTLSConfig(config.Redis.Addr)
	}
	client := redis.NewClient(opts)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisSessionStoreWithClient(client, config.Redis.KeyPrefix, config.TTL), nil
}

// NewRedisSessionStoreWithClient wraps an existing client.
func NewRedisSessionStoreWithClient(client redis.UniversalClient, keyPrefix string, ttl time.Duration) *RedisSessionStore {
	if keyPrefix == "" {
		keyPrefix = "briefkit:"
	}
	return &RedisSessionStore{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		now:       time.Now,
	}
}

// Close closes the store
func (s *RedisSessionStore) Close() error {
	return s.client.Close()
}

// Ping checks if the store is healthy
func (s *RedisSessionStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// sessionKey returns the Redis key for a snapshot
func (s *RedisSessionStore) sessionKey(id string) string {
	return s.keyPrefix + "session:" + id
}

// indexKey returns the Redis key for the activity index
func (s *RedisSessionStore) indexKey() string {
	return s.keyPrefix + "sessions"
}

// Save writes the snapshot and refreshes its index score in one pipeline.
func (s *RedisSessionStore) Save(ctx context.Context, snap session.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.sessionKey(snap.ID), data, s.ttl)
	pipe.ZAdd(ctx, s.indexKey(), redis.Z{
		Score:  float64(snap.LastActiveAt.UnixMilli()),
		Member: snap.ID,
	})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save session %s: %w", snap.ID, err)
	}
	return nil
}

// Load retrieves a snapshot by id
func (s *RedisSessionStore) Load(ctx context.Context, id string) (session.Snapshot, error) {
	data, err := s.client.Get(ctx, s.sessionKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		// expired by TTL; drop the stale index entry
		s.client.ZRem(ctx, s.indexKey(), id)
		return session.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return decodeSnapshot(data)
}

// Delete removes a snapshot and its index entry
func (s *RedisSessionStore) Delete(ctx context.Context, id string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.sessionKey(id))
	pipe.ZRem(ctx, s.indexKey(), id)
	_, err := pipe.Exec(ctx)
	return err
}

// List returns the indexed ids in sorted order
func (s *RedisSessionStore) List(ctx context.Context) ([]string, error) {
	ids, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	sort.Strings(ids)
	return ids, nil
}

// Cleanup removes every snapshot scored before now-maxIdle.
func (s *RedisSessionStore) Cleanup(ctx context.Context, maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-maxIdle).UnixMilli()
	ids, err := s.client.ZRangeByScore(ctx, s.indexKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(cutoff, 10),
	}).Result()
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = s.sessionKey(id)
		members[i] = id
	}

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, keys...)
	pipe.ZRem(ctx, s.indexKey(), members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, err
	}
	return len(ids), nil
}
