package session

import (
	"fmt"

	"github.com/briefkit/briefkit/types"
)

// MissingArtifacts lists the key artifacts of the current stage that do not
// exist yet.
func MissingArtifacts(state State) []types.ArtifactType {
	var missing []types.ArtifactType
	for _, t := range types.KeyArtifacts(state.CurrentStage) {
		if !state.HasArtifact(t) {
			missing = append(missing, t)
		}
	}
	return missing
}

// CanAdvance reports whether the user may move to the next stage: there is
// one, and every key artifact of the current stage exists.
func CanAdvance(state State) bool {
	if state.CurrentStage >= types.MaxStage {
		return false
	}
	return len(MissingArtifacts(state)) == 0
}

// AdvancePrompt is the user turn sent when moving to next. The compressor
// recognises it as a stage boundary.
func AdvancePrompt(next types.Stage) string {
	info, ok := types.StageInfo(next)
	if !ok {
		return fmt.Sprintf("Let's move on to Stage %d.", int(next))
	}
	return fmt.Sprintf("Let's move on to Stage %d: %s.", int(next), info.Description)
}
