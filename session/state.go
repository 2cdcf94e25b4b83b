package session

import (
	"time"

	"github.com/briefkit/briefkit/types"
)

// State is the mutable part of a session: current stage, artifacts keyed by
// type, and the collected project context.
type State struct {
	CurrentStage   types.Stage          `json:"current_stage"`
	Artifacts      []types.Artifact     `json:"artifacts"`
	ProjectContext types.ProjectContext `json:"project_context"`
	StartedAt      time.Time            `json:"started_at"`
}

// NewState returns the initial state: stage 1, no artifacts.
func NewState(now time.Time) State {
	return State{
		CurrentStage: types.StageDiscover,
		Artifacts:    []types.Artifact{},
		StartedAt:    now,
	}
}

// Clone returns a copy whose artifact slice can be mutated independently.
// Artifact data maps are shared.
func (s State) Clone() State {
	out := s
	out.Artifacts = append(make([]types.Artifact, 0, len(s.Artifacts)), s.Artifacts...)
	return out
}

// ArtifactByType returns the artifact of type t.
func (s State) ArtifactByType(t types.ArtifactType) (types.Artifact, bool) {
	if i := s.indexOfType(t); i >= 0 {
		return s.Artifacts[i], true
	}
	return types.Artifact{}, false
}

// ArtifactByID returns the artifact with the given id.
func (s State) ArtifactByID(id string) (types.Artifact, bool) {
	if i := s.indexOfID(id); i >= 0 {
		return s.Artifacts[i], true
	}
	return types.Artifact{}, false
}

// HasArtifact reports whether an artifact of type t exists.
func (s State) HasArtifact(t types.ArtifactType) bool {
	return s.indexOfType(t) >= 0
}

// ArtifactsAtStage returns artifacts whose stage is stage, in insertion order.
func (s State) ArtifactsAtStage(stage types.Stage) []types.Artifact {
	var out []types.Artifact
	for _, a := range s.Artifacts {
		if a.Stage == stage {
			out = append(out, a)
		}
	}
	return out
}

func (s State) indexOfType(t types.ArtifactType) int {
	for i, a := range s.Artifacts {
		if a.Type == t {
			return i
		}
	}
	return -1
}

func (s State) indexOfID(id string) int {
	for i, a := range s.Artifacts {
		if a.ID == id {
			return i
		}
	}
	return -1
}
