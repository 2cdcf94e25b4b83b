package persistence

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/briefkit/briefkit/session"
)

// NewSessionStore creates the session.Store named by config.Type.
func NewSessionStore(ctx context.Context, config StoreConfig, logger *zap.Logger) (session.Store, error) {
	switch config.Type {
	case "", StoreTypeMemory:
		return NewMemorySessionStore(), nil
	case StoreTypeFile:
		return NewFileSessionStore(config)
	case StoreTypeRedis:
		return NewRedisSessionStore(config)
	case StoreTypeDatabase:
		return OpenGormSessionStore(config.Database, logger)
	case StoreTypeMongo:
		return NewMongoSessionStore(ctx, config.Mongo)
	default:
		return nil, fmt.Errorf("unsupported session store type: %s", config.Type)
	}
}

// MustNewSessionStore creates a store or panics on error.
//
// WARNING: only for program initialization. Use NewSessionStore anywhere a
// failure can be handled.
func MustNewSessionStore(ctx context.Context, config StoreConfig, logger *zap.Logger) session.Store {
	store, err := NewSessionStore(ctx, config, logger)
	if err != nil {
		panic(fmt.Sprintf("failed to create session store: %v", err))
	}
	return store
}
