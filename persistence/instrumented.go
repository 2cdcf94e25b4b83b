package persistence

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/briefkit/briefkit/session"
)

// StoreObserver receives the outcome of every store call.
type StoreObserver interface {
	ObserveStoreOperation(backend, operation string, duration time.Duration, err error)
}

// InstrumentedStore times and logs the calls of the wrapped store.
// ErrNotFound is a normal answer and is reported as success.
type InstrumentedStore struct {
	inner    session.Store
	backend  string
	observer StoreObserver
	logger   *zap.Logger
}

// Instrument wraps store. A nil observer only logs.
func Instrument(store session.Store, backend string, observer StoreObserver, logger *zap.Logger) *InstrumentedStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedStore{
		inner:    store,
		backend:  backend,
		observer: observer,
		logger:   logger.With(zap.String("component", "session_store"), zap.String("backend", backend)),
	}
}

// Unwrap returns the wrapped store.
func (s *InstrumentedStore) Unwrap() session.Store { return s.inner }

func (s *InstrumentedStore) observe(op string, start time.Time, err error) {
	if errors.Is(err, ErrNotFound) {
		err = nil
	}
	d := time.Since(start)
	if s.observer != nil {
		s.observer.ObserveStoreOperation(s.backend, op, d, err)
	}
	if err != nil {
		s.logger.Warn("store operation failed", zap.String("operation", op), zap.Duration("duration", d), zap.Error(err))
	}
}

func (s *InstrumentedStore) Save(ctx context.Context, snap session.Snapshot) (err error) {
	start := time.Now()
	defer func() { s.observe("save", start, err) }()
	return s.inner.Save(ctx, snap)
}

func (s *InstrumentedStore) Load(ctx context.Context, id string) (snap session.Snapshot, err error) {
	start := time.Now()
	defer func() { s.observe("load", start, err) }()
	return s.inner.Load(ctx, id)
}

func (s *InstrumentedStore) Delete(ctx context.Context, id string) (err error) {
	start := time.Now()
	defer func() { s.observe("delete", start, err) }()
	return s.inner.Delete(ctx, id)
}

func (s *InstrumentedStore) List(ctx context.Context) (ids []string, err error) {
	start := time.Now()
	defer func() { s.observe("list", start, err) }()
	return s.inner.List(ctx)
}

func (s *InstrumentedStore) Cleanup(ctx context.Context, maxIdle time.Duration) (n int, err error) {
	start := time.Now()
	defer func() { s.observe("cleanup", start, err) }()
	return s.inner.Cleanup(ctx, maxIdle)
}

func (s *InstrumentedStore) Ping(ctx context.Context) (err error) {
	start := time.Now()
	defer func() { s.observe("ping", start, err) }()
	return s.inner.Ping(ctx)
}

func (s *InstrumentedStore) Close() error {
	return s.inner.Close()
}
