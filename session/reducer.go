package session

import (
	"time"

	"github.com/briefkit/briefkit/types"
)

// ActionType names a state transition.
type ActionType string

const (
	ActionSetStage       ActionType = "SET_STAGE"
	ActionAddArtifact    ActionType = "ADD_ARTIFACT"
	ActionUpdateArtifact ActionType = "UPDATE_ARTIFACT"
	ActionUpdateContext  ActionType = "UPDATE_CONTEXT"
	ActionReset          ActionType = "RESET"
)

// ArtifactPatch holds the fields to change on an existing artifact. Nil
// fields are left alone; Data replaces the whole map when set.
type ArtifactPatch struct {
	Title  *string               `json:"title,omitempty"`
	Status *types.ArtifactStatus `json:"status,omitempty"`
	Stage  *types.Stage          `json:"stage,omitempty"`
	Format *types.ArtifactFormat `json:"format,omitempty"`
	Data   map[string]any        `json:"data,omitempty"`
}

// IsEmpty reports whether the patch changes nothing.
func (p ArtifactPatch) IsEmpty() bool {
	return p.Title == nil && p.Status == nil && p.Stage == nil && p.Format == nil && p.Data == nil
}

// Action is one reducer input.
type Action struct {
	Type       ActionType
	Stage      types.Stage
	Artifact   types.Artifact
	ArtifactID string
	Patch      ArtifactPatch
	Context    types.ProjectContext
}

func SetStage(stage types.Stage) Action {
	return Action{Type: ActionSetStage, Stage: stage}
}

func AddArtifact(a types.Artifact) Action {
	return Action{Type: ActionAddArtifact, Artifact: a}
}

func UpdateArtifact(id string, patch ArtifactPatch) Action {
	return Action{Type: ActionUpdateArtifact, ArtifactID: id, Patch: patch}
}

func UpdateContext(ctx types.ProjectContext) Action {
	return Action{Type: ActionUpdateContext, Context: ctx}
}

func Reset() Action {
	return Action{Type: ActionReset}
}

// Reduce applies action to state and returns the new state. state is not
// modified. Invalid stages and unknown artifact ids leave state unchanged.
func Reduce(state State, action Action, now time.Time) State {
	switch action.Type {
	case ActionSetStage:
		if !action.Stage.Valid() {
			return state
		}
		state.CurrentStage = action.Stage
		return state

	case ActionAddArtifact:
		next := state.Clone()
		next.Artifacts = append(next.Artifacts, action.Artifact)
		return next

	case ActionUpdateArtifact:
		i := state.indexOfID(action.ArtifactID)
		if i < 0 {
			return state
		}
		next := state.Clone()
		next.Artifacts[i] = applyPatch(next.Artifacts[i], action.Patch, now)
		return next

	case ActionUpdateContext:
		state.ProjectContext = state.ProjectContext.Merge(action.Context)
		return state

	case ActionReset:
		return NewState(now)

	default:
		return state
	}
}

func applyPatch(a types.Artifact, p ArtifactPatch, now time.Time) types.Artifact {
	if p.Title != nil {
		a.Title = *p.Title
	}
	if p.Status != nil && p.Status.Valid() {
		a.Status = *p.Status
	}
	if p.Stage != nil && p.Stage.Valid() {
		a.Stage = *p.Stage
	}
	if p.Format != nil && p.Format.Valid() {
		a.Format = *p.Format
	}
	if p.Data != nil {
		a.Data = p.Data
	}
	a.UpdatedAt = now
	return a
}

// Upsert inserts parsed as a new draft artifact, or revises the existing
// artifact of the same type in place keeping its id and creation time.
func Upsert(state State, parsed types.ParsedArtifact, newID func() string, now time.Time) (State, types.Artifact, bool) {
	if existing, ok := state.ArtifactByType(parsed.Type); ok {
		status := types.StatusRevised
		title := parsed.Title
		// Stage stays where the artifact was first generated.
		next := Reduce(state, UpdateArtifact(existing.ID, ArtifactPatch{
			Title:  &title,
			Status: &status,
			Data:   parsed.Data,
		}), now)
		updated, _ := next.ArtifactByID(existing.ID)
		return next, updated, false
	}

	created := types.NewArtifact(newID(), parsed, now)
	return Reduce(state, AddArtifact(created), now), created, true
}
