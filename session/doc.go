// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package session 维护引导式工作流的会话状态，并把解析结果幂等地应用到状态上。

# 概述

State 是会话的全部可见状态：当前阶段、产物列表、项目上下文。所有修改都
通过纯函数 Reduce 完成，Upsert 保证每种产物类型至多一个。

Session 在 State 之外持有去重账本 Ledger。流式回复每到一个片段就会被
重新解析一次，账本以 "{type}-{messageId}"、"stage-N-{messageId}" 为键，
保证同一条消息产生的效果只生效一次。

Manager 按 id 管理活跃会话，通过 Store 持久化快照，并定期清理闲置超过
TTL 的会话。

# 核心类型

  - State / Action / Reduce   — 状态与纯函数 reducer
  - Ledger                    — 去重账本
  - Session / ApplyReport     — 单个会话与一次 Apply 的效果
  - Manager / Store / Snapshot — 会话生命周期与持久化接口

# 主要能力

  - 阶段推进：显式 [STAGE:N] 标记、按产物阶段自动推进、手动 Advance
  - 推进门槛：当前阶段关键产物齐全后才允许 Advance
  - Observer：把产物与阶段事件暴露给指标采集
*/
package session
