package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/briefkit/briefkit/types"
)

// ManagerConfig configures session lifetime.
type ManagerConfig struct {
	// TTL is the idle time after which a session is discarded. 0 disables expiry.
	TTL time.Duration `yaml:"ttl" json:"ttl"`
	// CleanupInterval is how often expired sessions are swept. 0 disables the sweeper.
	CleanupInterval time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

// DefaultManagerConfig returns a 30 minute TTL swept every minute.
func DefaultManagerConfig() ManagerConfig {
	return ManagerConfig{
		TTL:             30 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// ManagerObserver receives session population changes, typically for metrics.
type ManagerObserver interface {
	SetActiveSessions(n int)
	RecordExpiredSessions(n int)
}

type nopManagerObserver struct{}

func (nopManagerObserver) SetActiveSessions(int)     {}
func (nopManagerObserver) RecordExpiredSessions(int) {}

// Manager keeps live sessions keyed by id, persists them through a Store and
// discards sessions idle longer than the TTL.
type Manager struct {
	cfg      ManagerConfig
	store    Store
	opts     []Option
	clock    func() time.Time
	observer ManagerObserver
	logger   *zap.Logger

	mu       sync.RWMutex
	sessions map[string]*Session
	closed   bool

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithSessionOptions sets the options applied to every created or restored session.
func WithSessionOptions(opts ...Option) ManagerOption {
	return func(m *Manager) { m.opts = append(m.opts, opts...) }
}

// WithManagerClock overrides time.Now for expiry decisions.
func WithManagerClock(clock func() time.Time) ManagerOption {
	return func(m *Manager) { m.clock = clock }
}

// WithManagerObserver reports the cached session count and expiries.
func WithManagerObserver(o ManagerObserver) ManagerOption {
	return func(m *Manager) {
		if o != nil {
			m.observer = o
		}
	}
}

// NewManager creates a Manager. store may be nil, in which case sessions
// live only in memory.
func NewManager(cfg ManagerConfig, store Store, logger *zap.Logger, opts ...ManagerOption) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		cfg:      cfg,
		store:    store,
		clock:    time.Now,
		observer: nopManagerObserver{},
		logger:   logger.With(zap.String("component", "session_manager")),
		sessions: make(map[string]*Session),
		stopCh:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.opts = append([]Option{WithClock(m.clock), WithLogger(logger)}, m.opts...)

	if cfg.TTL > 0 && cfg.CleanupInterval > 0 {
		m.wg.Add(1)
		go m.cleanupLoop(cfg.CleanupInterval)
	}
	return m
}

// Create starts a new session and persists it.
func (m *Manager) Create(ctx context.Context) (*Session, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}
	s := New(uuid.New().String(), m.opts...)
	if err := m.persist(ctx, s); err != nil {
		return nil, err
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()
	m.observer.SetActiveSessions(n)

	m.logger.Info("session created", zap.String("session_id", s.ID()))
	return s, nil
}

// Get returns the live session with id, restoring it from the store when it
// is not cached. Expired sessions are discarded and reported as
// SESSION_EXPIRED.
func (m *Manager) Get(ctx context.Context, id string) (*Session, error) {
	if err := m.checkOpen(); err != nil {
		return nil, err
	}

	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()

	if !ok {
		restored, err := m.restore(ctx, id)
		if err != nil {
			return nil, err
		}
		s = restored
	}

	if m.expired(s.LastActive()) {
		_ = m.Delete(ctx, id)
		return nil, types.NewError(types.ErrSessionExpired, "session expired, start a new one").WithHTTPStatus(410)
	}
	s.Touch()
	return s, nil
}

// Save persists the current snapshot of s.
func (m *Manager) Save(ctx context.Context, s *Session) error {
	if err := m.checkOpen(); err != nil {
		return err
	}
	return m.persist(ctx, s)
}

// Delete discards the session from memory and the store.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	m.observer.SetActiveSessions(n)

	if m.store == nil {
		return nil
	}
	if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrSnapshotNotFound) {
		return types.WrapError(err, types.ErrStoreUnavailable, "delete session")
	}
	return nil
}

// List returns the ids of known sessions, sorted.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	seen := make(map[string]struct{})

	m.mu.RLock()
	for id := range m.sessions {
		seen[id] = struct{}{}
	}
	m.mu.RUnlock()

	if m.store != nil {
		ids, err := m.store.List(ctx)
		if err != nil {
			return nil, types.WrapError(err, types.ErrStoreUnavailable, "list sessions")
		}
		for _, id := range ids {
			seen[id] = struct{}{}
		}
	}

	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

// Sweep discards every cached session idle longer than the TTL and asks the
// store to do the same. It returns the number of cached sessions removed.
func (m *Manager) Sweep(ctx context.Context) int {
	if m.cfg.TTL <= 0 {
		return 0
	}

	var expired []string
	m.mu.Lock()
	for id, s := range m.sessions {
		if m.expired(s.LastActive()) {
			expired = append(expired, id)
			delete(m.sessions, id)
		}
	}
	live := len(m.sessions)
	m.mu.Unlock()
	m.observer.SetActiveSessions(live)

	if m.store != nil {
		for _, id := range expired {
			if err := m.store.Delete(ctx, id); err != nil && !errors.Is(err, ErrSnapshotNotFound) {
				m.logger.Warn("delete expired session failed", zap.String("session_id", id), zap.Error(err))
			}
		}
		if n, err := m.store.Cleanup(ctx, m.cfg.TTL); err != nil {
			m.logger.Warn("store cleanup failed", zap.Error(err))
		} else if n > 0 {
			m.logger.Debug("store cleanup", zap.Int("removed", n))
		}
	}

	if len(expired) > 0 {
		m.observer.RecordExpiredSessions(len(expired))
		m.logger.Info("expired sessions discarded", zap.Int("count", len(expired)))
	}
	return len(expired)
}

// Len returns the number of cached sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Close stops the sweeper and closes the store.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	close(m.stopCh)
	m.mu.Unlock()

	m.wg.Wait()
	if m.store != nil {
		return m.store.Close()
	}
	return nil
}

func (m *Manager) restore(ctx context.Context, id string) (*Session, error) {
	if m.store == nil {
		return nil, types.NewError(types.ErrSessionNotFound, "session not found: "+id).WithHTTPStatus(404)
	}
	snap, err := m.store.Load(ctx, id)
	if errors.Is(err, ErrSnapshotNotFound) {
		return nil, types.NewError(types.ErrSessionNotFound, "session not found: "+id).WithHTTPStatus(404)
	}
	if err != nil {
		return nil, types.WrapError(err, types.ErrStoreUnavailable, "load session")
	}

	s := Restore(snap, m.opts...)

	m.mu.Lock()
	defer m.mu.Unlock()
	if cached, ok := m.sessions[id]; ok {
		return cached, nil
	}
	m.sessions[id] = s
	m.observer.SetActiveSessions(len(m.sessions))
	return s, nil
}

func (m *Manager) persist(ctx context.Context, s *Session) error {
	if m.store == nil {
		return nil
	}
	if err := m.store.Save(ctx, s.Snapshot()); err != nil {
		return types.WrapError(err, types.ErrStoreUnavailable, "save session").WithRetryable(true)
	}
	return nil
}

func (m *Manager) expired(lastActive time.Time) bool {
	return m.cfg.TTL > 0 && m.clock().Sub(lastActive) > m.cfg.TTL
}

func (m *Manager) checkOpen() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return types.NewError(types.ErrServiceUnavailable, "session manager closed").WithHTTPStatus(503)
	}
	return nil
}

// cleanupLoop sweeps expired sessions until Close.
func (m *Manager) cleanupLoop(interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-m.stopCh:
			return
		case <-ticker.C:
			m.Sweep(context.Background())
		}
	}
}
