// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package types 提供 BriefKit 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 artifact、session、
conversation、persistence、api 等上层模块提供统一的类型契约。

# 核心类型

  - Stage / StageDefinition — 六个工作流阶段及其关键产物
  - ArtifactType            — 20 种固定产物类型，含默认标题与下载格式
  - ParsedArtifact          — 解析后尚未持久化的 envelope
  - Artifact                — 会话内持久化的产物记录（按 type 唯一）
  - ProjectContext          — 对话中收集的项目信息
  - Message / Role          — 发送给模型的对话消息
  - Error / ErrorCode       — 结构化错误体系，含 HTTP 状态码与 Retryable 标记

# 主要能力

  - Context 传播：WithTraceID / WithRequestID / WithSessionID / WithMessageID
  - 错误工具链：WrapError / AsError / IsErrorCode / IsRetryable
  - Token 估算：EstimateTokenizer（中英文字符分别计算）
*/
package types
