// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package api 定义 BriefKit HTTP API 的请求与响应类型。

# 概述

BriefKit 以 RESTful API 暴露产物提取与会话推进能力：

  - 会话生命周期：创建、查询、删除、重置
  - 消息刷新：POST /api/v1/sessions/{id}/messages/{msgID}/flush，
    或通过 GET /api/v1/sessions/{id}/stream 的 WebSocket 连续发送累计文本
  - 阶段控制：PUT .../stage、POST .../advance
  - 无状态工具：POST /api/v1/parse、POST /api/v1/compress
  - 健康检查：/health、/healthz、/ready、/version

所有 JSON 响应使用统一信封：

	{"success": true, "data": {...}, "timestamp": "...", "request_id": "..."}

# 核心类型

  - SessionResponse / SessionListResponse — 会话视图
  - FlushRequest / FlushResponse          — 刷新请求与结果（parse、report、state）
  - ArtifactPatchRequest                  — 产物修改，Set 支持 JSON path
  - CompressRequest / CompressResponse    — 历史压缩
  - StreamFrame / StreamEvent             — WebSocket 帧
*/
package api
