// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package config 提供 BriefKit 服务的配置管理。

# 概述

配置按 默认值 → YAML 文件 → 环境变量 的顺序叠加。环境变量键名由
前缀与各级 env tag 拼接而成，例如 BRIEFKIT_SESSION_TTL、
BRIEFKIT_STORE_TYPE。Validate 一次性汇总所有错误。

# 核心类型

  - Config / Loader — 完整配置与 Builder 风格加载器
  - SessionConfig / ParserConfig / CompressionConfig — 领域参数
  - StoreConfig / RedisConfig / DatabaseConfig / MongoConfig — 存储后端
  - LogConfig / TelemetryConfig — 日志与遥测
*/
package config
