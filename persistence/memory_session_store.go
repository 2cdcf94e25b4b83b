package persistence

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/briefkit/briefkit/session"
)

// MemorySessionStore keeps encoded snapshots in a map.
// Suitable for development, tests and single-process deployments where
// sessions need not survive a restart.
type MemorySessionStore struct {
	mu     sync.RWMutex
	data   map[string][]byte
	active map[string]time.Time
	closed bool
	now    func() time.Time
}

// NewMemorySessionStore creates a new in-memory session store
func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{
		data:   make(map[string][]byte),
		active: make(map[string]time.Time),
		now:    time.Now,
	}
}

// Close closes the store
func (s *MemorySessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.data = make(map[string][]byte)
	s.active = make(map[string]time.Time)
	return nil
}

// Ping checks if the store is healthy
func (s *MemorySessionStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	return nil
}

// Save stores an encoded copy so later mutation of snap cannot leak in.
func (s *MemorySessionStore) Save(ctx context.Context, snap session.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	s.data[snap.ID] = data
	s.active[snap.ID] = snap.LastActiveAt
	return nil
}

// Load returns a fresh copy of the stored snapshot.
func (s *MemorySessionStore) Load(ctx context.Context, id string) (session.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return session.Snapshot{}, ErrStoreClosed
	}
	data, ok := s.data[id]
	if !ok {
		return session.Snapshot{}, ErrNotFound
	}
	return decodeSnapshot(data)
}

// Delete removes a snapshot. Unknown ids are not an error.
func (s *MemorySessionStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	delete(s.data, id)
	delete(s.active, id)
	return nil
}

// List returns the stored ids in sorted order.
func (s *MemorySessionStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	ids := make([]string, 0, len(s.data))
	for id := range s.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// Cleanup removes snapshots whose last activity is older than maxIdle.
func (s *MemorySessionStore) Cleanup(ctx context.Context, maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		return 0, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}
	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for id, at := range s.active {
		if at.Before(cutoff) {
			delete(s.data, id)
			delete(s.active, id)
			removed++
		}
	}
	return removed, nil
}
