// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package database 提供基于 GORM 的数据库连接池管理，供关系型会话存储使用。

# 概述

Open 按驱动名（postgres / mysql / sqlite）选择 GORM 方言并打开数据库，
PoolManager 负责连接池参数、后台健康检查与事务重试。

# 核心类型

  - PoolManager：持有 GORM DB 与底层 sql.DB，提供 DB/Ping/Stats/Close。
  - PoolConfig：最大空闲/打开连接数、生命周期、健康检查间隔。
  - TransactionFunc：事务回调。

# 主要能力

  - WithTransactionRetry 对死锁、序列化失败、SQLite 锁等瞬时错误指数退避重试。
  - Close 会等待健康检查 goroutine 退出。
*/
package database
