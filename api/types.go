package api

import (
	"encoding/json"
	"time"

	"github.com/briefkit/briefkit/artifact"
	"github.com/briefkit/briefkit/conversation"
	"github.com/briefkit/briefkit/session"
	"github.com/briefkit/briefkit/types"
)

// =============================================================================
// 会话类型
// =============================================================================

// CreateSessionRequest 创建会话请求。
// @Description 创建会话请求结构
type CreateSessionRequest struct {
	// 初始项目上下文（可选）
	ProjectContext *types.ProjectContext `json:"project_context,omitempty"`
}

// SessionResponse 会话视图。
// @Description 会话状态及推进信息
type SessionResponse struct {
	// 会话 ID
	ID string `json:"id" example:"5f1c2d7e-1b0a-4c55-9a43-0f6f1b2c3d4e"`
	// 当前状态
	State session.State `json:"state"`
	// 当前阶段定义
	Stage types.StageDefinition `json:"stage"`
	// 是否可以推进到下一阶段
	CanAdvance bool `json:"can_advance"`
	// 当前阶段缺失的关键产物
	MissingArtifacts []types.ArtifactType `json:"missing_artifacts"`
	// 最近活跃时间
	LastActiveAt time.Time `json:"last_active_at"`
}

// SessionListResponse 会话 ID 列表。
type SessionListResponse struct {
	Sessions []string `json:"sessions"`
	Total    int      `json:"total"`
}

// FlushRequest 流式刷新请求，Text 为该消息目前为止的完整文本。
// @Description 消息刷新请求结构
type FlushRequest struct {
	Text string `json:"text"`
}

// FlushResponse 刷新结果。
// @Description 解析结果、应用报告与最新状态
type FlushResponse struct {
	Parse  artifact.ParseResult `json:"parse"`
	Report session.ApplyReport  `json:"report"`
	State  session.State        `json:"state"`
}

// SetStageRequest 手动设置阶段。
type SetStageRequest struct {
	Stage types.Stage `json:"stage" example:"3"`
}

// AdvanceResponse 推进结果。
type AdvanceResponse struct {
	// 新阶段
	Stage types.Stage `json:"stage" example:"2"`
	// 发给模型的推进提示语
	Prompt string `json:"prompt"`
	// 最新状态
	State session.State `json:"state"`
}

// ArtifactPatchRequest 产物修改请求。
// Set 以 JSON path（如 "items.0.name"）逐项修改 data，在 Data 之后应用。
// @Description 产物修改请求结构
type ArtifactPatchRequest struct {
	Title  *string                    `json:"title,omitempty"`
	Status *types.ArtifactStatus      `json:"status,omitempty"`
	Stage  *types.Stage               `json:"stage,omitempty"`
	Format *types.ArtifactFormat      `json:"format,omitempty"`
	Data   map[string]any             `json:"data,omitempty"`
	Set    map[string]json.RawMessage `json:"set,omitempty"`
}

// =============================================================================
// 无状态类型
// =============================================================================

// ParseRequest 无状态解析请求。
// @Description 解析请求结构
type ParseRequest struct {
	Text string `json:"text"`
}

// CompressRequest 历史压缩请求。
// @Description 压缩请求结构
type CompressRequest struct {
	Messages     []types.Message `json:"messages"`
	CurrentStage types.Stage     `json:"current_stage" example:"3"`
}

// CompressResponse 压缩结果。
type CompressResponse struct {
	Messages []types.Message    `json:"messages"`
	Stats    conversation.Stats `json:"stats"`
}

// =============================================================================
// WebSocket 帧
// =============================================================================

// StreamFrame 客户端帧：某条消息目前为止的完整文本。
type StreamFrame struct {
	MessageID string `json:"message_id"`
	Text      string `json:"text"`
}

// StreamEvent 服务端帧。出错时仅填充 Error。
type StreamEvent struct {
	MessageID string                `json:"message_id,omitempty"`
	Parse     *artifact.ParseResult `json:"parse,omitempty"`
	Report    *session.ApplyReport  `json:"report,omitempty"`
	Stage     types.Stage           `json:"stage,omitempty"`
	Error     *StreamError          `json:"error,omitempty"`
}

// StreamError 流式错误信息。
type StreamError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
