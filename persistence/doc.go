// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package persistence 提供 session.Store 的多后端实现。

# 概述

会话快照（阶段状态、产物与去重账本）按 ID 保存，可在进程重启或多副本
之间恢复。各后端语义一致：Save 覆盖同 ID 快照，Load 未命中返回
ErrNotFound（即 session.ErrSnapshotNotFound），Cleanup 删除空闲超过
阈值的快照并返回删除数量。

# 后端实现

  - Memory: 内存实现，保存编码后的副本，适合开发与测试。
  - File: 每个会话一个 JSON 文件，临时文件 + 重命名原子写入。
  - Redis: 字符串保存快照，Sorted Set 按最后活跃时间建立索引，
    Pipeline 批量写入，可选原生 TTL。
  - Database: 基于 GORM（postgres / mysql / sqlite），表结构由
    internal/migration 管理，写入使用带重试的事务 upsert。
  - Mongo: 每个会话一个文档，ReplaceOne upsert。

# 使用方式

	store, err := persistence.NewSessionStore(ctx, cfg, logger)
	store = persistence.Instrument(store, string(cfg.Type), collector, logger)

InstrumentedStore 为每次调用计时并上报给 StoreObserver（internal/metrics
的 Collector 实现了该接口）。
*/
package persistence
