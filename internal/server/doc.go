// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package server 管理 HTTP 服务器的生命周期。

# 概述

Manager 封装 net/http.Server，统一管理监听、服务、关闭与错误传播。
briefkit 同时运行 API 服务器与独立端口的 metrics 服务器，RunAll 用
errgroup 把它们绑在一起：任一退出，其余随之优雅关闭。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道。
  - Config：名称、监听地址、读写超时、空闲超时、最大请求头与关闭超时。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 阻塞运行：Run 在 ctx 结束或服务异常时触发 Shutdown。
  - 优雅关闭：Shutdown 在配置的超时内排空请求。
  - 状态查询：IsRunning / Addr / ListenAddr。
*/
package server
