package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/briefkit/briefkit/internal/database"
	"github.com/briefkit/briefkit/session"
	"github.com/briefkit/briefkit/types"
)

// saveRetries bounds WithTransactionRetry for upserts that hit lock contention.
const saveRetries = 3

// sessionRow maps briefkit_sessions. The schema itself is owned by
// internal/migration; Migrate exists for tests and embedded sqlite.
type sessionRow struct {
	ID           string    `gorm:"primaryKey;size:64"`
	CurrentStage int       `gorm:"not null;index:idx_briefkit_sessions_current_stage"`
	State        string    `gorm:"type:text;not null"`
	Ledger       string    `gorm:"type:text;not null"`
	LastActiveAt time.Time `gorm:"not null;index:idx_briefkit_sessions_last_active_at"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName 实现 gorm.Tabler
func (sessionRow) TableName() string { return "briefkit_sessions" }

// GormSessionStore 基于 GORM 的会话存储, 支持 postgres / mysql / sqlite
type GormSessionStore struct {
	pool   *database.PoolManager
	now    func() time.Time
	logger *zap.Logger
}

// NewGormSessionStore 使用已有连接池创建存储
func NewGormSessionStore(pool *database.PoolManager, logger *zap.Logger) *GormSessionStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GormSessionStore{
		pool:   pool,
		now:    time.Now,
		logger: logger.With(zap.String("component", "gorm_session_store")),
	}
}

// OpenGormSessionStore 打开数据库并创建存储
func OpenGormSessionStore(config DatabaseStoreConfig, logger *zap.Logger) (*GormSessionStore, error) {
	poolCfg := database.DefaultPoolConfig()
	if config.MaxOpenConns > 0 {
		poolCfg.MaxOpenConns = config.MaxOpenConns
	}
	if config.MaxIdleConns > 0 {
		poolCfg.MaxIdleConns = config.MaxIdleConns
	}
	if config.ConnMaxLifetime > 0 {
		poolCfg.ConnMaxLifetime = config.ConnMaxLifetime
	}
	poolCfg.HealthCheckInterval = config.HealthCheckInterval

	pool, err := database.Open(config.Driver, config.DSN, poolCfg, logger)
	if err != nil {
		return nil, err
	}
	return NewGormSessionStore(pool, logger), nil
}

// Migrate 自动建表, 生产环境使用 migrate 子命令
func (s *GormSessionStore) Migrate(ctx context.Context) error {
	return s.pool.DB().WithContext(ctx).AutoMigrate(&sessionRow{})
}

// Close 关闭连接池
func (s *GormSessionStore) Close() error {
	return s.pool.Close()
}

// PoolStats 返回连接池统计
func (s *GormSessionStore) PoolStats() database.PoolStats {
	return s.pool.GetStats()
}

// Ping 检查数据库连接
func (s *GormSessionStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Save upserts the row keyed by id. created_at survives replacement.
func (s *GormSessionStore) Save(ctx context.Context, snap session.Snapshot) error {
	if err := validateID(snap.ID); err != nil {
		return err
	}
	row, err := toRow(snap)
	if err != nil {
		return err
	}
	row.UpdatedAt = s.now().UTC()
	row.CreatedAt = row.UpdatedAt

	err = s.pool.WithTransactionRetry(ctx, saveRetries, func(tx *gorm.DB) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"current_stage", "state", "ledger", "last_active_at", "updated_at"}),
		}).Create(&row).Error
	})
	if err != nil {
		return fmt.Errorf("failed to save session %s: %w", snap.ID, err)
	}
	return nil
}

// Load 读取快照
func (s *GormSessionStore) Load(ctx context.Context, id string) (session.Snapshot, error) {
	var row sessionRow
	err := s.pool.DB().WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return session.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to load session %s: %w", id, err)
	}
	return fromRow(row)
}

// Delete 删除快照
func (s *GormSessionStore) Delete(ctx context.Context, id string) error {
	return s.pool.DB().WithContext(ctx).Where("id = ?", id).Delete(&sessionRow{}).Error
}

// List 返回全部会话 ID
func (s *GormSessionStore) List(ctx context.Context) ([]string, error) {
	var ids []string
	if err := s.pool.DB().WithContext(ctx).Model(&sessionRow{}).Order("id").Pluck("id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}

// Cleanup 删除空闲超过 maxIdle 的行
func (s *GormSessionStore) Cleanup(ctx context.Context, maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		return 0, nil
	}
	cutoff := s.now().Add(-maxIdle).UTC()
	res := s.pool.DB().WithContext(ctx).Where("last_active_at < ?", cutoff).Delete(&sessionRow{})
	if res.Error != nil {
		return 0, res.Error
	}
	if res.RowsAffected > 0 {
		s.logger.Debug("expired sessions deleted", zap.Int64("count", res.RowsAffected))
	}
	return int(res.RowsAffected), nil
}

func toRow(snap session.Snapshot) (sessionRow, error) {
	state, err := json.Marshal(snap.State)
	if err != nil {
		return sessionRow{}, fmt.Errorf("failed to marshal session state: %w", err)
	}
	ledger := snap.Ledger
	if ledger == nil {
		ledger = []string{}
	}
	ledgerJSON, err := json.Marshal(ledger)
	if err != nil {
		return sessionRow{}, fmt.Errorf("failed to marshal session ledger: %w", err)
	}
	return sessionRow{
		ID:           snap.ID,
		CurrentStage: int(snap.State.CurrentStage),
		State:        string(state),
		Ledger:       string(ledgerJSON),
		LastActiveAt: snap.LastActiveAt.UTC(),
	}, nil
}

func fromRow(row sessionRow) (session.Snapshot, error) {
	snap := session.Snapshot{ID: row.ID, LastActiveAt: row.LastActiveAt}
	if err := json.Unmarshal([]byte(row.State), &snap.State); err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to unmarshal session state: %w", err)
	}
	if err := json.Unmarshal([]byte(row.Ledger), &snap.Ledger); err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to unmarshal session ledger: %w", err)
	}
	if snap.State.CurrentStage == 0 {
		snap.State.CurrentStage = types.Stage(row.CurrentStage)
	}
	return snap, nil
}
