package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/briefkit/briefkit/api"
	"github.com/briefkit/briefkit/conversation"
	"github.com/briefkit/briefkit/types"
)

// CompressionRecorder 接收压缩统计（通常是 metrics.Collector）
type CompressionRecorder interface {
	RecordCompression(stats conversation.Stats)
}

// =============================================================================
// 🗜️ 历史压缩 Handler
// =============================================================================

// CompressHandler 历史压缩处理器
type CompressHandler struct {
	compressor *conversation.Compressor
	recorder   CompressionRecorder
	logger     *zap.Logger
}

// NewCompressHandler 创建压缩处理器。recorder 可为 nil。
func NewCompressHandler(compressor *conversation.Compressor, recorder CompressionRecorder, logger *zap.Logger) *CompressHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if compressor == nil {
		compressor = conversation.NewCompressor(conversation.DefaultConfig(), nil, nil, logger)
	}
	return &CompressHandler{
		compressor: compressor,
		recorder:   recorder,
		logger:     logger.With(zap.String("component", "compress_handler")),
	}
}

// HandleCompress 压缩发送给模型的历史
// @Summary 压缩历史
// @Description 当前阶段之前的消息替换为摘要与确认两条合成消息
// @Tags 压缩
// @Accept json
// @Produce json
// @Param request body api.CompressRequest true "历史与当前阶段"
// @Success 200 {object} Response{data=api.CompressResponse}
// @Failure 400 {object} Response "无效请求"
// @Router /api/v1/compress [post]
func (h *CompressHandler) HandleCompress(w http.ResponseWriter, r *http.Request) {
	var req api.CompressRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if !req.CurrentStage.Valid() {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidStage, "current_stage must be between 1 and 6", h.logger)
		return
	}
	for i, msg := range req.Messages {
		if msg.Role != types.RoleUser && msg.Role != types.RoleAssistant {
			WriteError(w, types.NewError(types.ErrInvalidRequest, "messages must have role user or assistant").
				WithHTTPStatus(http.StatusBadRequest), h.logger.With(zap.Int("index", i)))
			return
		}
	}

	out, stats := h.compressor.CompressWithStats(req.Messages, req.CurrentStage)
	if h.recorder != nil {
		h.recorder.RecordCompression(stats)
	}
	if out == nil {
		out = []types.Message{}
	}
	WriteSuccess(w, api.CompressResponse{Messages: out, Stats: stats})
}
