package session

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/briefkit/briefkit/artifact"
	"github.com/briefkit/briefkit/types"
)

// EventKind classifies one effect of Apply.
type EventKind string

const (
	EventArtifactCreated  EventKind = "artifact_created"
	EventArtifactRevised  EventKind = "artifact_revised"
	EventDuplicateSkipped EventKind = "duplicate_skipped"
	EventStageExplicit    EventKind = "stage_explicit"
	EventStageAuto        EventKind = "stage_auto"
	EventStageManual      EventKind = "stage_manual"
)

// Event is one effect (or skipped effect) of applying a parse result.
type Event struct {
	Kind         EventKind          `json:"kind"`
	Key          string             `json:"key"`
	ArtifactID   string             `json:"artifact_id,omitempty"`
	ArtifactType types.ArtifactType `json:"artifact_type,omitempty"`
	Stage        types.Stage        `json:"stage,omitempty"`
}

// ApplyReport describes what one Apply call changed.
type ApplyReport struct {
	MessageID   string      `json:"message_id"`
	Events      []Event     `json:"events"`
	StageBefore types.Stage `json:"stage_before"`
	StageAfter  types.Stage `json:"stage_after"`
}

// Changed reports whether any state mutation happened.
func (r ApplyReport) Changed() bool {
	for _, e := range r.Events {
		if e.Kind != EventDuplicateSkipped {
			return true
		}
	}
	return false
}

// Observer receives session events, typically for metrics.
type Observer interface {
	ArtifactApplied(kind EventKind)
	StageChanged(kind EventKind, stage types.Stage)
}

type nopObserver struct{}

func (nopObserver) ArtifactApplied(EventKind)           {}
func (nopObserver) StageChanged(EventKind, types.Stage) {}

// Session owns one State and its dedup Ledger. All mutations are serialized.
type Session struct {
	id string

	mu         sync.Mutex
	state      State
	ledger     *Ledger
	lastActive time.Time

	parser      artifact.TextParser
	autoAdvance bool
	clock       func() time.Time
	newID       func() string
	observer    Observer
	logger      *zap.Logger
}

// Option configures a Session.
type Option func(*Session)

// WithClock overrides time.Now.
func WithClock(clock func() time.Time) Option {
	return func(s *Session) { s.clock = clock }
}

// WithIDGenerator overrides artifact id generation.
func WithIDGenerator(newID func() string) Option {
	return func(s *Session) { s.newID = newID }
}

// WithParser sets the parser used by Flush.
func WithParser(p artifact.TextParser) Option {
	return func(s *Session) { s.parser = p }
}

// WithAutoAdvance toggles stage advance driven by artifact stages.
func WithAutoAdvance(enabled bool) Option {
	return func(s *Session) { s.autoAdvance = enabled }
}

// WithObserver sets the event observer.
func WithObserver(o Observer) Option {
	return func(s *Session) {
		if o != nil {
			s.observer = o
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Session) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// New creates a session in its initial state.
func New(id string, opts ...Option) *Session {
	s := &Session{
		id:          id,
		ledger:      NewLedger(),
		autoAdvance: true,
		clock:       time.Now,
		newID:       func() string { return uuid.New().String() },
		observer:    nopObserver{},
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.parser == nil {
		s.parser = artifact.NewParser(artifact.DefaultParserConfig(), s.logger)
	}
	s.logger = s.logger.With(zap.String("component", "session"), zap.String("session_id", id))

	now := s.clock()
	s.state = NewState(now)
	s.lastActive = now
	return s
}

// Restore rebuilds a session from a snapshot.
func Restore(snap Snapshot, opts ...Option) *Session {
	s := New(snap.ID, opts...)
	s.state = snap.State.Clone()
	if !s.state.CurrentStage.Valid() {
		s.state.CurrentStage = types.StageDiscover
	}
	s.ledger = NewLedger(snap.Ledger...)
	if !snap.LastActiveAt.IsZero() {
		s.lastActive = snap.LastActiveAt
	}
	return s
}

// =============================================================================
// 🎯 核心方法
// =============================================================================

// Flush parses the cumulative text of messageID and applies the result.
// It is safe to call on every stream tick.
func (s *Session) Flush(messageID, text string) (artifact.ParseResult, ApplyReport) {
	result := s.parser.Parse(text)
	return result, s.Apply(messageID, result)
}

// Apply applies a parse result of messageID through the ledger.
//
// Artifacts are upserted in order, once per type per message. Then an
// explicit stage marker is applied, then (if enabled) the highest artifact
// stage when it is ahead of the current stage. Later steps overwrite earlier
// ones, so the higher of the two targets is what remains.
func (s *Session) Apply(messageID string, result artifact.ParseResult) ApplyReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.clock()
	s.lastActive = now
	report := ApplyReport{
		MessageID:   messageID,
		Events:      []Event{},
		StageBefore: s.state.CurrentStage,
	}

	for _, parsed := range result.Artifacts {
		key := ArtifactKey(parsed.Type, messageID)
		if !s.ledger.Mark(key) {
			report.Events = append(report.Events, Event{Kind: EventDuplicateSkipped, Key: key, ArtifactType: parsed.Type})
			s.observer.ArtifactApplied(EventDuplicateSkipped)
			continue
		}

		next, applied, created := Upsert(s.state, parsed, s.newID, now)
		s.state = next

		kind := EventArtifactRevised
		if created {
			kind = EventArtifactCreated
		}
		report.Events = append(report.Events, Event{
			Kind:         kind,
			Key:          key,
			ArtifactID:   applied.ID,
			ArtifactType: applied.Type,
			Stage:        applied.Stage,
		})
		s.observer.ArtifactApplied(kind)
		s.logger.Debug("artifact applied",
			zap.String("message_id", messageID),
			zap.String("type", string(applied.Type)),
			zap.String("event", string(kind)))
	}

	if result.StageTransition != nil {
		target := *result.StageTransition
		key := StageKey(target, messageID)
		if s.ledger.Mark(key) {
			s.state = Reduce(s.state, SetStage(target), now)
			report.Events = append(report.Events, Event{Kind: EventStageExplicit, Key: key, Stage: target})
			s.observer.StageChanged(EventStageExplicit, target)
		}
	}

	if s.autoAdvance {
		target := result.MaxArtifactStage()
		if target.Valid() && target > s.state.CurrentStage {
			key := AutoStageKey(target, messageID)
			if s.ledger.Mark(key) {
				s.state = Reduce(s.state, SetStage(target), now)
				report.Events = append(report.Events, Event{Kind: EventStageAuto, Key: key, Stage: target})
				s.observer.StageChanged(EventStageAuto, target)
			}
		}
	}

	report.StageAfter = s.state.CurrentStage
	if report.StageAfter != report.StageBefore {
		s.logger.Info("stage changed",
			zap.String("message_id", messageID),
			zap.Int("from", int(report.StageBefore)),
			zap.Int("to", int(report.StageAfter)))
	}
	return report
}

// SetStage moves the session to stage directly.
func (s *Session) SetStage(stage types.Stage) error {
	if !stage.Valid() {
		return types.NewError(types.ErrInvalidStage, "stage must be between 1 and 6").WithHTTPStatus(400)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.state = Reduce(s.state, SetStage(stage), s.lastActive)
	s.observer.StageChanged(EventStageManual, stage)
	return nil
}

// Advance moves to the next stage when CanAdvance holds and returns the
// user prompt announcing it.
func (s *Session) Advance() (types.Stage, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !CanAdvance(s.state) {
		return s.state.CurrentStage, "", types.NewError(types.ErrStageLocked, "key artifacts of the current stage are missing").
			WithHTTPStatus(409)
	}
	next, _ := s.state.CurrentStage.Next()
	s.touchLocked()
	s.state = Reduce(s.state, SetStage(next), s.lastActive)
	s.observer.StageChanged(EventStageManual, next)
	return next, AdvancePrompt(next), nil
}

// UpdateArtifact patches the artifact with id.
func (s *Session) UpdateArtifact(id string, patch ArtifactPatch) (types.Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.state.ArtifactByID(id); !ok {
		return types.Artifact{}, types.NewError(types.ErrArtifactNotFound, "artifact not found: "+id).WithHTTPStatus(404)
	}
	s.touchLocked()
	s.state = Reduce(s.state, UpdateArtifact(id, patch), s.lastActive)
	updated, _ := s.state.ArtifactByID(id)
	return updated, nil
}

// UpdateContext merges ctx into the project context.
func (s *Session) UpdateContext(ctx types.ProjectContext) types.ProjectContext {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.state = Reduce(s.state, UpdateContext(ctx), s.lastActive)
	return s.state.ProjectContext
}

// Reset returns the session to its initial state and clears the ledger.
func (s *Session) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
	s.state = Reduce(s.state, Reset(), s.lastActive)
	s.ledger.Reset()
	s.logger.Info("session reset")
}

// =============================================================================
// 📊 查询方法
// =============================================================================

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// State returns a copy of the current state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.Clone()
}

// CanAdvance reports whether the current stage's key artifacts all exist.
func (s *Session) CanAdvance() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return CanAdvance(s.state)
}

// MissingArtifacts lists absent key artifacts of the current stage.
func (s *Session) MissingArtifacts() []types.ArtifactType {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MissingArtifacts(s.state)
}

// LedgerKeys returns the applied dedup keys.
func (s *Session) LedgerKeys() []string {
	return s.ledger.Keys()
}

// LastActive returns the time of the last mutation or Touch.
func (s *Session) LastActive() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastActive
}

// Touch records activity without changing state.
func (s *Session) Touch() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touchLocked()
}

// Snapshot captures state, ledger and activity time.
func (s *Session) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		ID:           s.id,
		State:        s.state.Clone(),
		Ledger:       s.ledger.Keys(),
		LastActiveAt: s.lastActive,
	}
}

func (s *Session) touchLocked() {
	s.lastActive = s.clock()
}
