package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/briefkit/briefkit/api"
	"github.com/briefkit/briefkit/artifact"
)

// =============================================================================
// 🔍 无状态解析 Handler
// =============================================================================

// ParseHandler 无状态解析处理器，不触碰任何会话
type ParseHandler struct {
	parser artifact.TextParser
	logger *zap.Logger
}

// NewParseHandler 创建解析处理器。parser 为 nil 时使用默认解析器。
func NewParseHandler(parser artifact.TextParser, logger *zap.Logger) *ParseHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parser == nil {
		parser = artifact.NewParser(artifact.DefaultParserConfig(), logger)
	}
	return &ParseHandler{
		parser: parser,
		logger: logger.With(zap.String("component", "parse_handler")),
	}
}

// HandleParse 解析一段助手消息文本
// @Summary 解析消息
// @Description 提取产物信封与阶段标记，返回清理后的文本；不合法的候选原样保留
// @Tags 解析
// @Accept json
// @Produce json
// @Param request body api.ParseRequest true "消息文本"
// @Success 200 {object} Response{data=artifact.ParseResult}
// @Failure 400 {object} Response "无效请求"
// @Router /api/v1/parse [post]
func (h *ParseHandler) HandleParse(w http.ResponseWriter, r *http.Request) {
	var req api.ParseRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	WriteSuccess(w, h.parser.Parse(req.Text))
}
