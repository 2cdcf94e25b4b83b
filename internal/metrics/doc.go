// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package metrics 提供基于 Prometheus 的指标采集。

# 概述

Collector 使用 promauto 注册到默认 Registry，所有指标按 namespace 隔离。
它同时实现 session.Observer 与 persistence.StoreObserver，可直接注入
会话与存储层。

# 核心类型

  - Collector：按业务域分组持有 Counter、Histogram、Gauge 向量。
  - ParserFunc：函数到 artifact.TextParser 的适配器，WrapParser 用它为解析计时。

# 主要能力

  - HTTP 指标：请求总数、耗时、请求/响应体大小，状态码归类为 2xx/3xx/4xx/5xx。
  - 解析指标：解析次数与耗时、按 fenced/unfenced 统计的产物数、阶段标记、
    被拒绝的 envelope 与截断次数；ObserveMemo 暴露解析缓存命中率。
  - 会话指标：产物事件、按原因与目标阶段统计的阶段切换、活跃与过期会话数。
  - 压缩指标：压缩次数、节省的 token 数与压缩比。
  - 存储指标：按后端与操作统计调用次数、错误与耗时；数据库连接池 Gauge。
*/
package metrics
