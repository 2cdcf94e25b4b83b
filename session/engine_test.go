package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/briefkit/briefkit/artifact"
	"github.com/briefkit/briefkit/types"
)

func fence(body string) string {
	return "```artifact\n" + body + "\n```"
}

func newTestSession(t *testing.T, opts ...Option) *Session {
	t.Helper()
	base := []Option{
		WithClock(newStepClock(time.Second).Now),
		WithIDGenerator(sequentialIDs()),
		WithLogger(zaptest.NewLogger(t)),
	}
	return New("sess-1", append(base, opts...)...)
}

type recordingObserver struct {
	artifacts []EventKind
	stages    []EventKind
}

func (r *recordingObserver) ArtifactApplied(kind EventKind) { r.artifacts = append(r.artifacts, kind) }
func (r *recordingObserver) StageChanged(kind EventKind, _ types.Stage) {
	r.stages = append(r.stages, kind)
}

func TestSession_UpsertSemantics(t *testing.T) {
	s := newTestSession(t)

	s.Flush("m1", fence(`{"type":"project-brief","stage":1,"data":{"name":"Acme"}}`))
	first := s.State().Artifacts[0]

	_, report := s.Flush("m2", fence(`{"type":"project-brief","stage":1,"data":{"name":"Acme Corp"}}`))

	state := s.State()
	require.Len(t, state.Artifacts, 1)
	got := state.Artifacts[0]
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, first.CreatedAt, got.CreatedAt)
	assert.True(t, got.UpdatedAt.After(first.UpdatedAt))
	assert.Equal(t, types.StatusRevised, got.Status)
	assert.Equal(t, map[string]any{"name": "Acme Corp"}, got.Data)

	require.Len(t, report.Events, 1)
	assert.Equal(t, EventArtifactRevised, report.Events[0].Kind)
}

func TestSession_DedupGating(t *testing.T) {
	obs := &recordingObserver{}
	s := newTestSession(t, WithObserver(obs))
	text := "Done " + fence(`{"type":"project-brief","stage":1,"data":{}}`) + " [STAGE:2]"

	_, first := s.Flush("m1", text)
	assert.Equal(t, types.StageDefine, first.StageAfter)
	assert.True(t, first.Changed())

	require.NoError(t, s.SetStage(types.StageDiscover))

	_, second := s.Flush("m1", text)

	state := s.State()
	require.Len(t, state.Artifacts, 1)
	assert.Equal(t, types.StatusDraft, state.Artifacts[0].Status)
	assert.Equal(t, types.StageDiscover, state.CurrentStage)
	assert.False(t, second.Changed())
	require.Len(t, second.Events, 1)
	assert.Equal(t, EventDuplicateSkipped, second.Events[0].Kind)

	assert.Equal(t, []string{"project-brief-m1", "stage-2-m1"}, s.LedgerKeys())
	assert.Equal(t, []EventKind{EventArtifactCreated, EventDuplicateSkipped}, obs.artifacts)
	assert.Equal(t, []EventKind{EventStageExplicit, EventStageManual}, obs.stages)
}

func TestSession_StreamingFlushes(t *testing.T) {
	s := newTestSession(t)
	full := "Here " + fence(`{"type":"wbs","stage":3,"data":{"phases":["a","b"]}}`) + " ok"

	created := 0
	for i := 1; i <= len(full); i++ {
		_, report := s.Flush("m1", full[:i])
		for _, e := range report.Events {
			if e.Kind == EventArtifactCreated {
				created++
			}
		}
	}

	assert.Equal(t, 1, created)
	assert.Len(t, s.State().Artifacts, 1)
}

func TestSession_AutoAdvance(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		auto   bool
		want   types.Stage
		events []EventKind
	}{
		{
			name:   "artifact pulls stage forward",
			text:   fence(`{"type":"wbs","stage":3,"data":{}}`),
			auto:   true,
			want:   types.StagePlan,
			events: []EventKind{EventArtifactCreated, EventStageAuto},
		},
		{
			name:   "auto beats lower marker",
			text:   fence(`{"type":"raci-matrix","stage":4,"data":{}}`) + "[STAGE:2]",
			auto:   true,
			want:   types.StageGovern,
			events: []EventKind{EventArtifactCreated, EventStageExplicit, EventStageAuto},
		},
		{
			name:   "marker beats lower artifact",
			text:   fence(`{"type":"wbs","stage":3,"data":{}}`) + "[STAGE:5]",
			auto:   true,
			want:   types.StageRisk,
			events: []EventKind{EventArtifactCreated, EventStageExplicit},
		},
		{
			name:   "disabled",
			text:   fence(`{"type":"wbs","stage":3,"data":{}}`),
			auto:   false,
			want:   types.StageDiscover,
			events: []EventKind{EventArtifactCreated},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestSession(t, WithAutoAdvance(tt.auto))
			_, report := s.Flush("m1", tt.text)

			assert.Equal(t, tt.want, s.State().CurrentStage)
			kinds := make([]EventKind, 0, len(report.Events))
			for _, e := range report.Events {
				kinds = append(kinds, e.Kind)
			}
			assert.Equal(t, tt.events, kinds)
		})
	}
}

func TestSession_AutoAdvanceKey(t *testing.T) {
	s := newTestSession(t)
	s.Flush("m7", fence(`{"type":"wbs","stage":3,"data":{}}`))
	assert.Contains(t, s.LedgerKeys(), "auto-stage-3-m7")
}

func TestSession_Advance(t *testing.T) {
	s := newTestSession(t)

	_, _, err := s.Advance()
	assert.True(t, types.IsErrorCode(err, types.ErrStageLocked))
	assert.Equal(t, []types.ArtifactType{types.ArtifactProjectBrief}, s.MissingArtifacts())

	s.Flush("m1", fence(`{"type":"project-brief","stage":1,"data":{}}`))
	require.True(t, s.CanAdvance())

	next, prompt, err := s.Advance()
	require.NoError(t, err)
	assert.Equal(t, types.StageDefine, next)
	assert.Equal(t, "Let's move on to Stage 2: Define & Scope.", prompt)
	assert.False(t, s.CanAdvance())
}

func TestSession_SetStageValidation(t *testing.T) {
	s := newTestSession(t)
	err := s.SetStage(types.Stage(0))
	assert.True(t, types.IsErrorCode(err, types.ErrInvalidStage))
}

func TestSession_UpdateArtifact(t *testing.T) {
	s := newTestSession(t)
	_, report := s.Flush("m1", fence(`{"type":"budget","stage":3,"data":{"total":100}}`))
	id := report.Events[0].ArtifactID

	final := types.StatusFinal
	got, err := s.UpdateArtifact(id, ArtifactPatch{Status: &final})
	require.NoError(t, err)
	assert.Equal(t, types.StatusFinal, got.Status)
	assert.Equal(t, types.FormatXLSX, got.Format)

	_, err = s.UpdateArtifact("nope", ArtifactPatch{Status: &final})
	assert.True(t, types.IsErrorCode(err, types.ErrArtifactNotFound))
}

func TestSession_UpdateContext(t *testing.T) {
	s := newTestSession(t)
	s.UpdateContext(types.ProjectContext{Name: "Acme"})
	got := s.UpdateContext(types.ProjectContext{Methodology: "agile"})
	assert.Equal(t, types.ProjectContext{Name: "Acme", Methodology: "agile"}, got)
}

func TestSession_ResetClearsLedger(t *testing.T) {
	s := newTestSession(t)
	text := fence(`{"type":"project-brief","stage":1,"data":{}}`)

	s.Flush("m1", text)
	s.UpdateContext(types.ProjectContext{Name: "Acme"})
	s.Reset()

	state := s.State()
	assert.Empty(t, state.Artifacts)
	assert.True(t, state.ProjectContext.IsZero())
	assert.Zero(t, len(s.LedgerKeys()))

	_, report := s.Flush("m1", text)
	require.Len(t, report.Events, 1)
	assert.Equal(t, EventArtifactCreated, report.Events[0].Kind)
}

func TestSession_SnapshotRestore(t *testing.T) {
	s := newTestSession(t)
	text := fence(`{"type":"charter","stage":2,"data":{}}`)
	s.Flush("m1", text)

	snap := s.Snapshot()
	restored := Restore(snap, WithIDGenerator(sequentialIDs()))

	assert.Equal(t, s.State(), restored.State())
	assert.Equal(t, s.LedgerKeys(), restored.LedgerKeys())
	assert.Equal(t, snap.LastActiveAt, restored.LastActive())

	_, report := restored.Flush("m1", text)
	assert.False(t, report.Changed())
}

func TestSession_WithMemoParser(t *testing.T) {
	memo := artifact.NewMemoParser(artifact.NewParser(artifact.DefaultParserConfig(), nil), 4)
	s := newTestSession(t, WithParser(memo))
	text := fence(`{"type":"wbs","stage":3,"data":{}}`)

	s.Flush("m1", text)
	s.Flush("m1", text)

	assert.Equal(t, uint64(1), memo.Stats().Hits)
	assert.Len(t, s.State().Artifacts, 1)
}
