package persistence

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/briefkit/briefkit/session"
)

// Common errors
var (
	// ErrNotFound is session.ErrSnapshotNotFound so callers can match either.
	ErrNotFound     = session.ErrSnapshotNotFound
	ErrStoreClosed  = errors.New("store is closed")
	ErrInvalidInput = errors.New("invalid input")
)

// StoreType represents the type of storage backend
type StoreType string

const (
	StoreTypeMemory   StoreType = "memory"
	StoreTypeFile     StoreType = "file"
	StoreTypeRedis    StoreType = "redis"
	StoreTypeDatabase StoreType = "database"
	StoreTypeMongo    StoreType = "mongo"
)

// StoreConfig selects and configures the session store backend
type StoreConfig struct {
	// Type is the storage backend type
	Type StoreType `json:"type" yaml:"type"`

	// BaseDir is the directory for file-based storage
	BaseDir string `json:"base_dir" yaml:"base_dir"`

	// TTL lets backends with native expiry (Redis) drop idle sessions on
	// their own. 0 keeps snapshots until Cleanup or Delete.
	TTL time.Duration `json:"ttl" yaml:"ttl"`

	Redis    RedisStoreConfig    `json:"redis" yaml:"redis"`
	Database DatabaseStoreConfig `json:"database" yaml:"database"`
	Mongo    MongoStoreConfig    `json:"mongo" yaml:"mongo"`
}

// RedisStoreConfig contains Redis-specific configuration
type RedisStoreConfig struct {
	Addr         string `json:"addr" yaml:"addr"`
	Password     string `json:"password" yaml:"password"`
	DB           int    `json:"db" yaml:"db"`
	PoolSize     int    `json:"pool_size" yaml:"pool_size"`
	MinIdleConns int    `json:"min_idle_conns" yaml:"min_idle_conns"`
	TLS          bool   `json:"tls" yaml:"tls"`

	// KeyPrefix is the prefix for all Redis keys
	KeyPrefix string `json:"key_prefix" yaml:"key_prefix"`
}

// DatabaseStoreConfig configures the relational backend
type DatabaseStoreConfig struct {
	Driver              string        `json:"driver" yaml:"driver"`
	DSN                 string        `json:"dsn" yaml:"dsn"`
	MaxOpenConns        int           `json:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns        int           `json:"max_idle_conns" yaml:"max_idle_conns"`
	ConnMaxLifetime     time.Duration `json:"conn_max_lifetime" yaml:"conn_max_lifetime"`
	HealthCheckInterval time.Duration `json:"health_check_interval" yaml:"health_check_interval"`
}

// MongoStoreConfig configures the MongoDB backend
type MongoStoreConfig struct {
	URI            string        `json:"uri" yaml:"uri"`
	Database       string        `json:"database" yaml:"database"`
	Collection     string        `json:"collection" yaml:"collection"`
	ConnectTimeout time.Duration `json:"connect_timeout" yaml:"connect_timeout"`
}

// DefaultStoreConfig returns the default store configuration
func DefaultStoreConfig() StoreConfig {
	return StoreConfig{
		Type:    StoreTypeMemory,
		BaseDir: "./data/sessions",
		Redis: RedisStoreConfig{
			Addr:      "localhost:6379",
			PoolSize:  10,
			KeyPrefix: "briefkit:",
		},
		Database: DatabaseStoreConfig{
			Driver:       "sqlite",
			DSN:          "./data/briefkit.db",
			MaxOpenConns: 10,
			MaxIdleConns: 2,
		},
		Mongo: MongoStoreConfig{
			URI:            "mongodb://localhost:27017",
			Database:       "briefkit",
			Collection:     "sessions",
			ConnectTimeout: 10 * time.Second,
		},
	}
}

// Compile-time interface checks.
var (
	_ session.Store = (*MemorySessionStore)(nil)
	_ session.Store = (*FileSessionStore)(nil)
	_ session.Store = (*RedisSessionStore)(nil)
	_ session.Store = (*GormSessionStore)(nil)
	_ session.Store = (*MongoSessionStore)(nil)
	_ session.Store = (*InstrumentedStore)(nil)
)

// validateID rejects ids that cannot be used as keys or file names.
func validateID(id string) error {
	if id == "" || len(id) > 128 || strings.ContainsAny(id, `/\:*?"<>| `) || strings.Contains(id, "..") {
		return fmt.Errorf("%w: session id %q", ErrInvalidInput, id)
	}
	return nil
}

func encodeSnapshot(snap session.Snapshot) ([]byte, error) {
	if err := validateID(snap.ID); err != nil {
		return nil, err
	}
	if snap.Ledger == nil {
		snap.Ledger = []string{}
	}
	data, err := json.Marshal(snap)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session snapshot: %w", err)
	}
	return data, nil
}

func decodeSnapshot(data []byte) (session.Snapshot, error) {
	var snap session.Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to unmarshal session snapshot: %w", err)
	}
	return snap, nil
}
