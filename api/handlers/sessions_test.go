package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap/zaptest"

	"github.com/briefkit/briefkit/api"
	"github.com/briefkit/briefkit/internal/telemetry"
	"github.com/briefkit/briefkit/persistence"
	"github.com/briefkit/briefkit/session"
	"github.com/briefkit/briefkit/types"
)

// =============================================================================
// 🧪 测试辅助类型
// =============================================================================

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// envelope 是 Response 的类型化版本
type envelope[T any] struct {
	Success   bool       `json:"success"`
	Data      T          `json:"data"`
	Error     *ErrorInfo `json:"error"`
	RequestID string     `json:"request_id"`
}

type testAPI struct {
	server  *httptest.Server
	manager *session.Manager
	clock   *testClock
}

func newTestAPI(t *testing.T, store session.Store, instruments *telemetry.Instruments) *testAPI {
	t.Helper()
	logger := zaptest.NewLogger(t)
	clock := newTestClock()
	if store == nil {
		store = persistence.NewMemorySessionStore()
	}

	manager := session.NewManager(session.ManagerConfig{TTL: time.Hour}, store, logger,
		session.WithManagerClock(clock.Now))
	sessions := NewSessionHandler(manager, instruments, logger)

	mux := http.NewServeMux()
	sessions.Register(mux)
	mux.HandleFunc("GET /api/v1/sessions/{id}/stream", NewStreamHandler(sessions, StreamConfig{}, logger).HandleStream)

	srv := httptest.NewServer(mux)
	t.Cleanup(func() {
		srv.Close()
		_ = manager.Close()
	})
	return &testAPI{server: srv, manager: manager, clock: clock}
}

func doJSON[T any](t *testing.T, a *testAPI, method, path string, body any) (int, envelope[T]) {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, a.server.URL+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope[T]
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func fenced(body string) string {
	return "Here is the draft.\n```artifact\n" + body + "\n```\nLet me know what to change."
}

const briefEnvelope = `{"type":"project-brief","title":"Project Brief","stage":1,"data":{"name":"Apollo","objective":"Ship v1"}}`

// failingStore 模拟不可用的会话存储
type failingStore struct{}

func (failingStore) Save(context.Context, session.Snapshot) error { return errors.New("connection refused") }
func (failingStore) Load(context.Context, string) (session.Snapshot, error) {
	return session.Snapshot{}, errors.New("connection refused")
}
func (failingStore) Delete(context.Context, string) error { return errors.New("connection refused") }
func (failingStore) List(context.Context) ([]string, error) {
	return nil, errors.New("connection refused")
}
func (failingStore) Cleanup(context.Context, time.Duration) (int, error) { return 0, nil }
func (failingStore) Ping(context.Context) error                         { return errors.New("connection refused") }
func (failingStore) Close() error                                       { return nil }

// =============================================================================
// 🧪 SessionHandler 测试
// =============================================================================

func TestSessionHandler_Lifecycle(t *testing.T) {
	a := newTestAPI(t, nil, nil)

	status, created := doJSON[api.SessionResponse](t, a, http.MethodPost, "/api/v1/sessions",
		api.CreateSessionRequest{ProjectContext: &types.ProjectContext{Name: "Apollo", Industry: "Aerospace"}})
	require.Equal(t, http.StatusCreated, status)
	require.True(t, created.Success)
	id := created.Data.ID
	require.NotEmpty(t, id)
	assert.Equal(t, types.StageDiscover, created.Data.State.CurrentStage)
	assert.Equal(t, "Apollo", created.Data.State.ProjectContext.Name)
	assert.Equal(t, []types.ArtifactType{types.ArtifactProjectBrief}, created.Data.MissingArtifacts)
	assert.False(t, created.Data.CanAdvance)
	assert.Equal(t, "Discover & Intake", created.Data.Stage.Description)

	status, list := doJSON[api.SessionListResponse](t, a, http.MethodGet, "/api/v1/sessions", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, []string{id}, list.Data.Sessions)
	assert.Equal(t, 1, list.Data.Total)

	status, flushed := doJSON[api.FlushResponse](t, a, http.MethodPost,
		"/api/v1/sessions/"+id+"/messages/m1/flush", api.FlushRequest{Text: fenced(briefEnvelope)})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, flushed.Data.Parse.Artifacts, 1)
	require.Len(t, flushed.Data.Report.Events, 1)
	assert.Equal(t, session.EventArtifactCreated, flushed.Data.Report.Events[0].Kind)
	assert.NotContains(t, flushed.Data.Parse.CleanText, "```artifact")
	require.Len(t, flushed.Data.State.Artifacts, 1)

	// 同一消息重复刷新被账本拦截
	status, replay := doJSON[api.FlushResponse](t, a, http.MethodPost,
		"/api/v1/sessions/"+id+"/messages/m1/flush", api.FlushRequest{Text: fenced(briefEnvelope)})
	require.Equal(t, http.StatusOK, status)
	require.Len(t, replay.Data.Report.Events, 1)
	assert.Equal(t, session.EventDuplicateSkipped, replay.Data.Report.Events[0].Kind)

	status, advanced := doJSON[api.AdvanceResponse](t, a, http.MethodPost, "/api/v1/sessions/"+id+"/advance", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, types.StageDefine, advanced.Data.Stage)
	assert.Equal(t, "Let's move on to Stage 2: Define & Scope.", advanced.Data.Prompt)

	status, locked := doJSON[any](t, a, http.MethodPost, "/api/v1/sessions/"+id+"/advance", nil)
	assert.Equal(t, http.StatusConflict, status)
	require.NotNil(t, locked.Error)
	assert.Equal(t, string(types.ErrStageLocked), locked.Error.Code)

	status, invalid := doJSON[any](t, a, http.MethodPut, "/api/v1/sessions/"+id+"/stage", api.SetStageRequest{Stage: 7})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, string(types.ErrInvalidStage), invalid.Error.Code)

	status, staged := doJSON[api.SessionResponse](t, a, http.MethodPut, "/api/v1/sessions/"+id+"/stage", api.SetStageRequest{Stage: types.StagePlan})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, types.StagePlan, staged.Data.State.CurrentStage)
	assert.Equal(t, []types.ArtifactType{types.ArtifactWBS}, staged.Data.MissingArtifacts)

	status, merged := doJSON[types.ProjectContext](t, a, http.MethodPatch, "/api/v1/sessions/"+id+"/context",
		types.ProjectContext{Budget: "$2M"})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Apollo", merged.Data.Name)
	assert.Equal(t, "$2M", merged.Data.Budget)

	status, reset := doJSON[api.SessionResponse](t, a, http.MethodPost, "/api/v1/sessions/"+id+"/reset", nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, types.StageDiscover, reset.Data.State.CurrentStage)
	assert.Empty(t, reset.Data.State.Artifacts)
	assert.True(t, reset.Data.State.ProjectContext.IsZero())

	// 重置后账本清空，同一消息可再次生效
	status, again := doJSON[api.FlushResponse](t, a, http.MethodPost,
		"/api/v1/sessions/"+id+"/messages/m1/flush", api.FlushRequest{Text: fenced(briefEnvelope)})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, session.EventArtifactCreated, again.Data.Report.Events[0].Kind)

	status, _ = doJSON[any](t, a, http.MethodDelete, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, missing := doJSON[any](t, a, http.MethodGet, "/api/v1/sessions/"+id, nil)
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(types.ErrSessionNotFound), missing.Error.Code)
}

func TestSessionHandler_FlushStageMarker(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	_, created := doJSON[api.SessionResponse](t, a, http.MethodPost, "/api/v1/sessions", nil)
	id := created.Data.ID

	text := "Great, the scope is settled. [STAGE:3] Let's build the WBS."
	status, flushed := doJSON[api.FlushResponse](t, a, http.MethodPost,
		"/api/v1/sessions/"+id+"/messages/m9/flush", api.FlushRequest{Text: text})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, types.StageDiscover, flushed.Data.Report.StageBefore)
	assert.Equal(t, types.StagePlan, flushed.Data.Report.StageAfter)
	assert.NotContains(t, flushed.Data.Parse.CleanText, "[STAGE:3]")
	require.NotNil(t, flushed.Data.Parse.StageTransition)

	// 状态已持久化
	s, err := a.manager.Get(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, types.StagePlan, s.State().CurrentStage)
}

func TestSessionHandler_FlushRejectsBadBody(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	_, created := doJSON[api.SessionResponse](t, a, http.MethodPost, "/api/v1/sessions", nil)

	resp, err := a.server.Client().Post(a.server.URL+"/api/v1/sessions/"+created.Data.ID+"/messages/m1/flush",
		"application/json", strings.NewReader(`{"text": 42}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestSessionHandler_UpdateArtifact(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	_, created := doJSON[api.SessionResponse](t, a, http.MethodPost, "/api/v1/sessions", nil)
	id := created.Data.ID

	_, flushed := doJSON[api.FlushResponse](t, a, http.MethodPost,
		"/api/v1/sessions/"+id+"/messages/m1/flush", api.FlushRequest{Text: fenced(briefEnvelope)})
	require.Len(t, flushed.Data.State.Artifacts, 1)
	artifactID := flushed.Data.State.Artifacts[0].ID

	final := types.StatusFinal
	status, patched := doJSON[types.Artifact](t, a, http.MethodPatch,
		"/api/v1/sessions/"+id+"/artifacts/"+artifactID,
		api.ArtifactPatchRequest{
			Status: &final,
			Set: map[string]json.RawMessage{
				"name":      json.RawMessage(`"Apollo II"`),
				"tags":      json.RawMessage(`["space","launch"]`),
				"objective": json.RawMessage(`null`),
			},
		})
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, types.StatusFinal, patched.Data.Status)
	assert.Equal(t, map[string]any{
		"name": "Apollo II",
		"tags": []any{"space", "launch"},
	}, patched.Data.Data)

	status, notFound := doJSON[any](t, a, http.MethodPatch,
		"/api/v1/sessions/"+id+"/artifacts/nope", api.ArtifactPatchRequest{Status: &final})
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, string(types.ErrArtifactNotFound), notFound.Error.Code)

	bogus := types.ArtifactStatus("shipped")
	status, _ = doJSON[any](t, a, http.MethodPatch,
		"/api/v1/sessions/"+id+"/artifacts/"+artifactID, api.ArtifactPatchRequest{Status: &bogus})
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSessionHandler_Expired(t *testing.T) {
	a := newTestAPI(t, nil, nil)
	_, created := doJSON[api.SessionResponse](t, a, http.MethodPost, "/api/v1/sessions", nil)

	a.clock.Advance(2 * time.Hour)

	status, expired := doJSON[any](t, a, http.MethodGet, "/api/v1/sessions/"+created.Data.ID, nil)
	assert.Equal(t, http.StatusGone, status)
	assert.Equal(t, string(types.ErrSessionExpired), expired.Error.Code)

	status, _ = doJSON[any](t, a, http.MethodGet, "/api/v1/sessions/"+created.Data.ID, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestSessionHandler_StoreUnavailable(t *testing.T) {
	a := newTestAPI(t, failingStore{}, nil)

	status, resp := doJSON[any](t, a, http.MethodPost, "/api/v1/sessions", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, string(types.ErrStoreUnavailable), resp.Error.Code)
}

func TestSessionHandler_FlushSpans(t *testing.T) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})

	instruments, err := telemetry.NewInstruments()
	require.NoError(t, err)
	a := newTestAPI(t, nil, instruments)
	_, created := doJSON[api.SessionResponse](t, a, http.MethodPost, "/api/v1/sessions", nil)

	status, _ := doJSON[api.FlushResponse](t, a, http.MethodPost,
		"/api/v1/sessions/"+created.Data.ID+"/messages/m1/flush", api.FlushRequest{Text: fenced(briefEnvelope)})
	require.Equal(t, http.StatusOK, status)
	status, _ = doJSON[any](t, a, http.MethodPost,
		"/api/v1/sessions/missing/messages/m1/flush", api.FlushRequest{Text: "hi"})
	require.Equal(t, http.StatusNotFound, status)

	spans := recorder.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, "briefkit.flush", spans[0].Name())
	assert.Len(t, spans[1].Events(), 1, "failed flush records the error")
}

func TestSetDataPaths(t *testing.T) {
	data := map[string]any{
		"items": []any{map[string]any{"name": "Design"}, map[string]any{"name": "Build"}},
		"owner": "PMO",
	}

	out, err := SetDataPaths(data, map[string]json.RawMessage{
		"items.1.name": json.RawMessage(`"Build & Test"`),
		"items.-1":     json.RawMessage(`{"name":"Launch"}`),
		"owner":        nil,
	})
	require.NoError(t, err)

	assert.Equal(t, map[string]any{
		"items": []any{
			map[string]any{"name": "Design"},
			map[string]any{"name": "Build & Test"},
			map[string]any{"name": "Launch"},
		},
	}, out)
	assert.Equal(t, "Build", data["items"].([]any)[1].(map[string]any)["name"], "input is not mutated")
}
