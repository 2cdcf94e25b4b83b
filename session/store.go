package session

import (
	"context"
	"errors"
	"time"
)

// ErrSnapshotNotFound is returned by a Store when no snapshot has the id.
var ErrSnapshotNotFound = errors.New("session: snapshot not found")

// Snapshot is the persisted form of a Session: state plus dedup ledger.
type Snapshot struct {
	ID           string    `json:"id"`
	State        State     `json:"state"`
	Ledger       []string  `json:"ledger"`
	LastActiveAt time.Time `json:"last_active_at"`
}

// Expired reports whether the snapshot has been idle longer than ttl at now.
// A non-positive ttl never expires.
func (s Snapshot) Expired(now time.Time, ttl time.Duration) bool {
	return ttl > 0 && now.Sub(s.LastActiveAt) > ttl
}

// Store persists session snapshots. Implementations live in the persistence
// package.
type Store interface {
	// Save creates or replaces the snapshot with the same id.
	Save(ctx context.Context, snap Snapshot) error
	// Load returns ErrSnapshotNotFound when the id is unknown.
	Load(ctx context.Context, id string) (Snapshot, error)
	Delete(ctx context.Context, id string) error
	// List returns every stored session id.
	List(ctx context.Context) ([]string, error)
	// Cleanup removes snapshots idle for longer than maxIdle.
	Cleanup(ctx context.Context, maxIdle time.Duration) (int, error)
	Ping(ctx context.Context) error
	Close() error
}
