package persistence

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/briefkit/briefkit/session"
)

// FileSessionStore 将每个会话快照写入 {BaseDir}/sessions/{id}.json.
// 适合单节点部署, 重启后会话可恢复.
type FileSessionStore struct {
	baseDir string
	mu      sync.RWMutex
	closed  bool
	now     func() time.Time
}

// NewFileSessionStore 创建文件会话存储器
func NewFileSessionStore(config StoreConfig) (*FileSessionStore, error) {
	if config.BaseDir == "" {
		return nil, fmt.Errorf("%w: file store requires base_dir", ErrInvalidInput)
	}
	baseDir := filepath.Join(config.BaseDir, "sessions")
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create session store directory: %w", err)
	}
	return &FileSessionStore{
		baseDir: baseDir,
		now:     time.Now,
	}, nil
}

func (s *FileSessionStore) path(id string) string {
	return filepath.Join(s.baseDir, id+".json")
}

// Close 关闭存储
func (s *FileSessionStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

// Ping 检查目录是否仍可访问
func (s *FileSessionStore) Ping(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrStoreClosed
	}
	if _, err := os.Stat(s.baseDir); err != nil {
		return fmt.Errorf("session store directory: %w", err)
	}
	return nil
}

// Save 原子写: 写入临时文件后重命名
func (s *FileSessionStore) Save(ctx context.Context, snap session.Snapshot) error {
	data, err := encodeSnapshot(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}

	target := s.path(snap.ID)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write session snapshot: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("failed to commit session snapshot: %w", err)
	}
	return nil
}

// Load 读取快照
func (s *FileSessionStore) Load(ctx context.Context, id string) (session.Snapshot, error) {
	if err := validateID(id); err != nil {
		return session.Snapshot{}, ErrNotFound
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return session.Snapshot{}, ErrStoreClosed
	}

	data, err := os.ReadFile(s.path(id))
	if errors.Is(err, os.ErrNotExist) {
		return session.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return session.Snapshot{}, fmt.Errorf("failed to read session snapshot: %w", err)
	}
	return decodeSnapshot(data)
}

// Delete 删除快照, 不存在时不报错
func (s *FileSessionStore) Delete(ctx context.Context, id string) error {
	if err := validateID(id); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrStoreClosed
	}
	if err := os.Remove(s.path(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to delete session snapshot: %w", err)
	}
	return nil
}

// List 返回排序后的会话 ID
func (s *FileSessionStore) List(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrStoreClosed
	}
	return s.listLocked()
}

func (s *FileSessionStore) listLocked() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		return nil, fmt.Errorf("failed to list session snapshots: %w", err)
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}
	sort.Strings(ids)
	return ids, nil
}

// Cleanup 删除空闲超过 maxIdle 的快照. 损坏的文件跳过.
func (s *FileSessionStore) Cleanup(ctx context.Context, maxIdle time.Duration) (int, error) {
	if maxIdle <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return 0, ErrStoreClosed
	}

	ids, err := s.listLocked()
	if err != nil {
		return 0, err
	}
	cutoff := s.now().Add(-maxIdle)
	removed := 0
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return removed, err
		}
		data, err := os.ReadFile(s.path(id))
		if err != nil {
			continue
		}
		snap, err := decodeSnapshot(data)
		if err != nil {
			continue
		}
		if snap.LastActiveAt.Before(cutoff) {
			if err := os.Remove(s.path(id)); err == nil {
				removed++
			}
		}
	}
	return removed, nil
}
