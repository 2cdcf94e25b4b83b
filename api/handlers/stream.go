package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"go.uber.org/zap"

	"github.com/briefkit/briefkit/api"
	"github.com/briefkit/briefkit/types"
)

// StreamConfig 配置 WebSocket 流
type StreamConfig struct {
	// ReadLimit 单帧最大字节数（累计文本可能较长）
	ReadLimit int64
	// WriteTimeout 单帧写超时
	WriteTimeout time.Duration
	// OriginPatterns 允许的跨域 Origin（为空时只允许同源）
	OriginPatterns []string
}

// DefaultStreamConfig 返回默认流配置
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		ReadLimit:    1 << 20,
		WriteTimeout: 10 * time.Second,
	}
}

// =============================================================================
// 📡 WebSocket 流式刷新 Handler
// =============================================================================

// StreamHandler 通过 WebSocket 接收同一会话的流式刷新。
// 客户端帧 {message_id, text}，text 为该消息目前为止的完整文本；
// 每帧回复一个 {parse, report, stage}。
type StreamHandler struct {
	sessions *SessionHandler
	cfg      StreamConfig
	logger   *zap.Logger
}

// NewStreamHandler 创建流处理器
func NewStreamHandler(sessions *SessionHandler, cfg StreamConfig, logger *zap.Logger) *StreamHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	defaults := DefaultStreamConfig()
	if cfg.ReadLimit <= 0 {
		cfg.ReadLimit = defaults.ReadLimit
	}
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = defaults.WriteTimeout
	}
	return &StreamHandler{
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "stream_handler")),
	}
}

// HandleStream 升级为 WebSocket 并循环处理刷新帧
// @Summary 流式刷新
// @Tags 会话
// @Param id path string true "会话 ID"
// @Success 101
// @Failure 404 {object} Response "会话不存在"
// @Router /api/v1/sessions/{id}/stream [get]
func (h *StreamHandler) HandleStream(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("id")

	// 升级前校验会话，失败时仍可返回普通 JSON 错误
	if _, err := h.sessions.manager.Get(r.Context(), sessionID); err != nil {
		writeAnyError(w, err, h.logger)
		return
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.cfg.OriginPatterns,
	})
	if err != nil {
		h.logger.Debug("websocket accept failed", zap.String("session_id", sessionID), zap.Error(err))
		return
	}
	defer conn.CloseNow()
	conn.SetReadLimit(h.cfg.ReadLimit)

	logger := h.logger.With(zap.String("session_id", sessionID))
	logger.Debug("stream opened")

	ctx := r.Context()
	for {
		frame, err := h.readFrame(ctx, conn)
		if err != nil {
			var syntaxErr *json.SyntaxError
			var typeErr *json.UnmarshalTypeError
			if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, errEmptyMessageID) {
				if werr := h.writeError(ctx, conn, "", types.NewError(types.ErrInvalidRequest, err.Error())); werr != nil {
					return
				}
				continue
			}
			switch websocket.CloseStatus(err) {
			case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				logger.Debug("stream closed by client")
			default:
				logger.Debug("stream read failed", zap.Error(err))
			}
			return
		}

		resp, err := h.sessions.Flush(ctx, TransportWebSocket, sessionID, frame.MessageID, frame.Text)
		if err != nil {
			apiErr := toAPIError(err)
			if werr := h.writeError(ctx, conn, frame.MessageID, apiErr); werr != nil {
				return
			}
			if apiErr.Code == types.ErrSessionExpired || apiErr.Code == types.ErrSessionNotFound {
				_ = conn.Close(websocket.StatusPolicyViolation, string(apiErr.Code))
				return
			}
			continue
		}

		event := api.StreamEvent{
			MessageID: frame.MessageID,
			Parse:     &resp.Parse,
			Report:    &resp.Report,
			Stage:     resp.State.CurrentStage,
		}
		if err := h.write(ctx, conn, event); err != nil {
			logger.Debug("stream write failed", zap.Error(err))
			return
		}
	}
}

var errEmptyMessageID = errors.New("message_id is required")

func (h *StreamHandler) readFrame(ctx context.Context, conn *websocket.Conn) (api.StreamFrame, error) {
	var frame api.StreamFrame
	_, data, err := conn.Read(ctx)
	if err != nil {
		return frame, err
	}
	if err := json.Unmarshal(data, &frame); err != nil {
		return frame, err
	}
	if frame.MessageID == "" {
		return frame, errEmptyMessageID
	}
	return frame, nil
}

func (h *StreamHandler) write(ctx context.Context, conn *websocket.Conn, event api.StreamEvent) error {
	ctx, cancel := context.WithTimeout(ctx, h.cfg.WriteTimeout)
	defer cancel()
	return wsjson.Write(ctx, conn, event)
}

func (h *StreamHandler) writeError(ctx context.Context, conn *websocket.Conn, messageID string, err *types.Error) error {
	return h.write(ctx, conn, api.StreamEvent{
		MessageID: messageID,
		Error:     &api.StreamError{Code: string(err.Code), Message: err.Message},
	})
}
