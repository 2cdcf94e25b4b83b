package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/tidwall/sjson"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/briefkit/briefkit/api"
	"github.com/briefkit/briefkit/internal/telemetry"
	"github.com/briefkit/briefkit/session"
	"github.com/briefkit/briefkit/types"
)

// Transport labels for flush instruments.
const (
	TransportHTTP      = "http"
	TransportWebSocket = "websocket"
)

// =============================================================================
// 🗂️ 会话接口 Handler
// =============================================================================

// SessionHandler 会话接口处理器
type SessionHandler struct {
	manager     *session.Manager
	instruments *telemetry.Instruments
	logger      *zap.Logger
}

// NewSessionHandler 创建会话处理器。instruments 可为 nil。
func NewSessionHandler(manager *session.Manager, instruments *telemetry.Instruments, logger *zap.Logger) *SessionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SessionHandler{
		manager:     manager,
		instruments: instruments,
		logger:      logger.With(zap.String("component", "session_handler")),
	}
}

// Register 在 mux 上注册会话路由
func (h *SessionHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/v1/sessions", h.HandleCreate)
	mux.HandleFunc("GET /api/v1/sessions", h.HandleList)
	mux.HandleFunc("GET /api/v1/sessions/{id}", h.HandleGet)
	mux.HandleFunc("DELETE /api/v1/sessions/{id}", h.HandleDelete)
	mux.HandleFunc("POST /api/v1/sessions/{id}/messages/{msgID}/flush", h.HandleFlush)
	mux.HandleFunc("PUT /api/v1/sessions/{id}/stage", h.HandleSetStage)
	mux.HandleFunc("POST /api/v1/sessions/{id}/advance", h.HandleAdvance)
	mux.HandleFunc("PATCH /api/v1/sessions/{id}/context", h.HandleUpdateContext)
	mux.HandleFunc("PATCH /api/v1/sessions/{id}/artifacts/{artifactID}", h.HandleUpdateArtifact)
	mux.HandleFunc("POST /api/v1/sessions/{id}/reset", h.HandleReset)
}

// HandleCreate 创建会话
// @Summary 创建会话
// @Tags 会话
// @Accept json
// @Produce json
// @Param request body api.CreateSessionRequest false "初始上下文"
// @Success 201 {object} Response{data=api.SessionResponse}
// @Failure 503 {object} Response "存储不可用"
// @Router /api/v1/sessions [post]
func (h *SessionHandler) HandleCreate(w http.ResponseWriter, r *http.Request) {
	var req api.CreateSessionRequest
	if r.ContentLength != 0 && r.Body != nil && r.Body != http.NoBody {
		if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
			return
		}
	}

	s, err := h.manager.Create(r.Context())
	if err != nil {
		writeAnyError(w, err, h.logger)
		return
	}
	if req.ProjectContext != nil && !req.ProjectContext.IsZero() {
		s.UpdateContext(*req.ProjectContext)
		if err := h.manager.Save(r.Context(), s); err != nil {
			writeAnyError(w, err, h.logger)
			return
		}
	}
	WriteSuccessStatus(w, http.StatusCreated, sessionView(s))
}

// HandleList 列出会话 ID
// @Summary 会话列表
// @Tags 会话
// @Produce json
// @Success 200 {object} Response{data=api.SessionListResponse}
// @Router /api/v1/sessions [get]
func (h *SessionHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	ids, err := h.manager.List(r.Context())
	if err != nil {
		writeAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, api.SessionListResponse{Sessions: ids, Total: len(ids)})
}

// HandleGet 查询会话
// @Summary 查询会话
// @Tags 会话
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} Response{data=api.SessionResponse}
// @Failure 404 {object} Response "会话不存在"
// @Failure 410 {object} Response "会话已过期"
// @Router /api/v1/sessions/{id} [get]
func (h *SessionHandler) HandleGet(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	WriteSuccess(w, sessionView(s))
}

// HandleDelete 删除会话
// @Summary 删除会话
// @Tags 会话
// @Param id path string true "会话 ID"
// @Success 204
// @Router /api/v1/sessions/{id} [delete]
func (h *SessionHandler) HandleDelete(w http.ResponseWriter, r *http.Request) {
	if err := h.manager.Delete(r.Context(), r.PathValue("id")); err != nil {
		writeAnyError(w, err, h.logger)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleFlush 以消息的累计文本刷新会话
// @Summary 刷新消息
// @Description 重新解析该消息的完整文本并经去重账本应用，可在流式输出的每个节拍调用
// @Tags 会话
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param msgID path string true "消息 ID"
// @Param request body api.FlushRequest true "累计文本"
// @Success 200 {object} Response{data=api.FlushResponse}
// @Router /api/v1/sessions/{id}/messages/{msgID}/flush [post]
func (h *SessionHandler) HandleFlush(w http.ResponseWriter, r *http.Request) {
	var req api.FlushRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	msgID := r.PathValue("msgID")
	if msgID == "" {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "message id is required", h.logger)
		return
	}

	resp, err := h.Flush(r.Context(), TransportHTTP, r.PathValue("id"), msgID, req.Text)
	if err != nil {
		writeAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, resp)
}

// Flush 解析并应用一次刷新，状态有变化时持久化。HTTP 与 WebSocket 共用。
func (h *SessionHandler) Flush(ctx context.Context, transport, sessionID, messageID, text string) (resp api.FlushResponse, err error) {
	start := time.Now()
	var outcome telemetry.FlushOutcome
	if h.instruments != nil {
		var span trace.Span
		ctx, span = h.instruments.StartFlush(ctx, transport, sessionID, messageID)
		defer func() {
			outcome.Err = err
			h.instruments.EndFlush(ctx, span, transport, start, outcome)
		}()
	}

	s, err := h.manager.Get(ctx, sessionID)
	if err != nil {
		return api.FlushResponse{}, err
	}

	result, report := s.Flush(messageID, text)
	outcome = telemetry.FlushOutcome{
		Artifacts:   len(result.Artifacts),
		StageBefore: int(report.StageBefore),
		StageAfter:  int(report.StageAfter),
		Changed:     report.Changed(),
	}
	if report.Changed() {
		if err = h.manager.Save(ctx, s); err != nil {
			return api.FlushResponse{}, err
		}
	}

	return api.FlushResponse{Parse: result, Report: report, State: s.State()}, nil
}

// HandleSetStage 手动设置阶段
// @Summary 设置阶段
// @Tags 会话
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body api.SetStageRequest true "目标阶段"
// @Success 200 {object} Response{data=api.SessionResponse}
// @Failure 400 {object} Response "阶段无效"
// @Router /api/v1/sessions/{id}/stage [put]
func (h *SessionHandler) HandleSetStage(w http.ResponseWriter, r *http.Request) {
	var req api.SetStageRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	if err := s.SetStage(req.Stage); err != nil {
		writeAnyError(w, err, h.logger)
		return
	}
	h.saveAndRespond(w, r, s, sessionView(s))
}

// HandleAdvance 推进到下一阶段
// @Summary 推进阶段
// @Description 当前阶段的关键产物齐全时推进，返回发给模型的提示语
// @Tags 会话
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} Response{data=api.AdvanceResponse}
// @Failure 409 {object} Response "关键产物缺失"
// @Router /api/v1/sessions/{id}/advance [post]
func (h *SessionHandler) HandleAdvance(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	next, prompt, err := s.Advance()
	if err != nil {
		writeAnyError(w, err, h.logger)
		return
	}
	h.saveAndRespond(w, r, s, api.AdvanceResponse{Stage: next, Prompt: prompt, State: s.State()})
}

// HandleUpdateContext 合并项目上下文
// @Summary 更新项目上下文
// @Tags 会话
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param request body types.ProjectContext true "非空字段覆盖"
// @Success 200 {object} Response{data=types.ProjectContext}
// @Router /api/v1/sessions/{id}/context [patch]
func (h *SessionHandler) HandleUpdateContext(w http.ResponseWriter, r *http.Request) {
	var req types.ProjectContext
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	merged := s.UpdateContext(req)
	h.saveAndRespond(w, r, s, merged)
}

// HandleUpdateArtifact 修改产物
// @Summary 修改产物
// @Tags 会话
// @Accept json
// @Produce json
// @Param id path string true "会话 ID"
// @Param artifactID path string true "产物 ID"
// @Param request body api.ArtifactPatchRequest true "修改内容"
// @Success 200 {object} Response{data=types.Artifact}
// @Failure 404 {object} Response "产物不存在"
// @Router /api/v1/sessions/{id}/artifacts/{artifactID} [patch]
func (h *SessionHandler) HandleUpdateArtifact(w http.ResponseWriter, r *http.Request) {
	var req api.ArtifactPatchRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}
	if req.Status != nil && !req.Status.Valid() {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "unknown artifact status", h.logger)
		return
	}
	if req.Format != nil && !req.Format.Valid() {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidRequest, "unknown artifact format", h.logger)
		return
	}
	if req.Stage != nil && !req.Stage.Valid() {
		WriteErrorMessage(w, http.StatusBadRequest, types.ErrInvalidStage, "stage must be between 1 and 6", h.logger)
		return
	}

	s, ok := h.session(w, r)
	if !ok {
		return
	}
	artifactID := r.PathValue("artifactID")

	patch := session.ArtifactPatch{
		Title:  req.Title,
		Status: req.Status,
		Stage:  req.Stage,
		Format: req.Format,
		Data:   req.Data,
	}
	if len(req.Set) > 0 {
		current, found := s.State().ArtifactByID(artifactID)
		if !found {
			WriteError(w, types.NewError(types.ErrArtifactNotFound, "artifact not found: "+artifactID), h.logger)
			return
		}
		base := current.Data
		if patch.Data != nil {
			base = patch.Data
		}
		data, err := SetDataPaths(base, req.Set)
		if err != nil {
			WriteError(w, types.NewError(types.ErrInvalidRequest, "invalid data path").WithCause(err), h.logger)
			return
		}
		patch.Data = data
	}

	updated, err := s.UpdateArtifact(artifactID, patch)
	if err != nil {
		writeAnyError(w, err, h.logger)
		return
	}
	h.saveAndRespond(w, r, s, updated)
}

// HandleReset 重置会话
// @Summary 重置会话
// @Description 回到阶段 1，清空产物、上下文与去重账本
// @Tags 会话
// @Produce json
// @Param id path string true "会话 ID"
// @Success 200 {object} Response{data=api.SessionResponse}
// @Router /api/v1/sessions/{id}/reset [post]
func (h *SessionHandler) HandleReset(w http.ResponseWriter, r *http.Request) {
	s, ok := h.session(w, r)
	if !ok {
		return
	}
	s.Reset()
	h.saveAndRespond(w, r, s, sessionView(s))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

func (h *SessionHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	s, err := h.manager.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		writeAnyError(w, err, h.logger)
		return nil, false
	}
	return s, true
}

func (h *SessionHandler) saveAndRespond(w http.ResponseWriter, r *http.Request, s *session.Session, data any) {
	if err := h.manager.Save(r.Context(), s); err != nil {
		writeAnyError(w, err, h.logger)
		return
	}
	WriteSuccess(w, data)
}

func sessionView(s *session.Session) api.SessionResponse {
	state := s.State()
	stage, _ := types.StageInfo(state.CurrentStage)
	missing := session.MissingArtifacts(state)
	if missing == nil {
		missing = []types.ArtifactType{}
	}
	return api.SessionResponse{
		ID:               s.ID(),
		State:            state,
		Stage:            stage,
		CanAdvance:       session.CanAdvance(state),
		MissingArtifacts: missing,
		LastActiveAt:     s.LastActive(),
	}
}

// SetDataPaths 以 sjson 路径逐项写入 data 的副本，按路径字典序应用。
func SetDataPaths(data map[string]any, set map[string]json.RawMessage) (map[string]any, error) {
	if data == nil {
		data = map[string]any{}
	}
	doc, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	paths := make([]string, 0, len(set))
	for p := range set {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, p := range paths {
		if len(set[p]) == 0 || string(set[p]) == "null" {
			doc, err = sjson.DeleteBytes(doc, p)
		} else {
			doc, err = sjson.SetRawBytes(doc, p, set[p])
		}
		if err != nil {
			return nil, err
		}
	}

	out := make(map[string]any)
	if err := json.Unmarshal(doc, &out); err != nil {
		return nil, err
	}
	return out, nil
}
