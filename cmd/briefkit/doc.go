// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package main 提供 BriefKit 服务端程序入口。

# 概述

cmd/briefkit 是 BriefKit 的可执行入口，提供 HTTP / WebSocket API 服务、
数据库迁移、健康检查和版本查询等子命令。程序支持 YAML 配置文件与
BRIEFKIT_* 环境变量覆盖、结构化日志（zap）、Prometheus 指标与 OpenTelemetry 追踪。

# 核心类型

  - Server     — 装配存储、会话管理器、解析器与 Handlers，管理 API 与 Metrics 双端口
  - Middleware — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve、migrate、version、health
  - 会话存储按 store.type 选择 memory / file / redis / database / mongo，
    统一经 persistence.Instrument 记录延迟指标
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、
    MetricsMiddleware、OTelTracing、CORS、MaxBody
  - database.auto_migrate 为 true 时启动前执行 SQL 迁移
  - 优雅关闭：SIGINT / SIGTERM → 关闭 HTTP → 关闭会话管理器与存储 → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
