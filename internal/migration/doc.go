// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package migration 管理关系型会话存储的数据库 Schema，支持 PostgreSQL、
MySQL 与 SQLite，基于 golang-migrate 实现。

# 概述

各方言的 SQL 迁移文件通过 embed.FS 内嵌，当前包含 briefkit_sessions
表（会话快照，以 last_active_at 建索引供过期清理使用）及阶段索引。

# 核心类型

  - Migrator / DefaultMigrator：Up/Down/DownAll/Steps/Goto/Force/Reset/
    Version/Status/Info/Close。
  - Config：数据库类型、连接 URL、迁移表名、锁超时与日志。
  - CLI：面向终端的格式化输出与子命令分发（Run）。

# 主要能力

  - 工厂函数：NewMigratorFromConfig / NewMigratorFromDatabaseConfig /
    NewMigratorFromURL。
  - ParseDatabaseType 解析驱动别名，BuildDatabaseURL 按方言拼接 URL。
*/
package migration
