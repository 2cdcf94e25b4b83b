// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package artifact 从模型输出的自然语言文本中提取结构化产物（artifact envelope）
与阶段切换标记。

# 概述

模型以流式方式输出文本，调用方在每次 flush 时都会对累积文本重新解析。
Parser 是纯函数：同样的输入总是得到同样的 ParseResult，副作用由 session
包的去重账本（Ledger）负责拦截。

解析顺序固定：

 1. FencedScanner：提取 ``` 代码块中的 envelope，失败的代码块原样写回
 2. UnfencedScanner：在剩余文本中查找裸 JSON 对象（"type" 前瞻过滤）
 3. ExtractStageMarkers：剥离所有 [STAGE:N] 标记，最后一个有效标记生效

# 核心类型

  - Scanner / Extraction / Candidate — text → candidates 的可替换扫描接口
  - Parser / ParseResult            — 组合上述三步，输出 clean text、产物列表、阶段目标
  - MemoParser                      — 以 xxhash 为键的 LRU 解析缓存，singleflight 合并并发解析
  - DecodeEnvelope                  — envelope 校验：type 字符串、stage 1-6 整数、data 对象

# 错误策略

展示层 fail-open：任何无法解析的内容都原样保留在 CleanText 中；
状态层 fail-closed：只有完整通过校验的 envelope 才会出现在 Artifacts 中。
*/
package artifact
