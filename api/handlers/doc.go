// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 BriefKit HTTP API 的请求处理器实现。

# 概述

handlers 包实现会话、解析、压缩与健康检查端点，以及统一的响应/错误处理。
所有 Handler 均遵循标准 net/http 接口，路由使用 Go 1.22 ServeMux 的
"METHOD /path/{param}" 模式注册。

# 核心类型

  - SessionHandler   — 会话 CRUD、消息刷新、阶段设置与推进、上下文与产物修改、重置
  - StreamHandler    — WebSocket 流式刷新（coder/websocket），与 HTTP 刷新共用 Flush
  - ParseHandler     — 无状态解析，不触碰会话
  - CompressHandler  — 历史压缩，并把统计交给 CompressionRecorder
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready, /version）
  - Response         — 统一 JSON 响应结构（success + data + error + timestamp + request_id）
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码与响应大小

# 主要能力

  - 统一响应格式：WriteSuccess / WriteError / WriteJSON 辅助函数
  - 请求验证：DecodeJSONBody（1 MB 限制 + 严格模式）、ValidateContentType
  - ErrorCode → HTTP 状态码映射：SESSION_NOT_FOUND 404、SESSION_EXPIRED 410、
    STAGE_LOCKED 409、STORE_UNAVAILABLE 503 等
  - 产物 data 的路径级修改：SetDataPaths（sjson）
  - 刷新埋点：telemetry.Instruments 记录 span 与 OTel 指标
*/
package handlers
