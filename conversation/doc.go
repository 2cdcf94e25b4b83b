// Copyright (c) BriefKit Authors.
// Licensed under the MIT License.

/*
Package conversation 在会话变长时压缩发送给模型的历史消息。

# 概述

Compressor 找到当前阶段开始的位置（"move on to Stage N" 或 [STAGE:N]），
之前的消息被替换为一对合成消息：携带摘要的 user 消息与确认的 assistant
消息；之后的消息原样保留。找不到边界时保留最后 20 条。

摘要通过 artifact.Parser 重新解析历史 assistant 消息得到，按阶段分组，
以要点文本而非 JSON 呈现，并在末尾提醒模型新产物必须使用 fenced envelope。

# 核心类型

  - Compressor / Config / Stats — 压缩策略与统计
  - BuildDigest / SummarizeData — 摘要生成（gjson 保留原始键顺序）
  - TiktokenTokenizer          — 基于 tiktoken 的 token 统计，加载失败回退到估算
*/
package conversation
