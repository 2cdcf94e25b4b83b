package artifact

import (
	"regexp"

	"github.com/briefkit/briefkit/types"
)

// stageMarkerPattern matches [STAGE:N] with optional spaces around the colon.
var stageMarkerPattern = regexp.MustCompile(`(?i)\[STAGE\s*:\s*(\d)\]`)

// ExtractStageMarkers strips every stage marker from text.
//
// The returned stage is the last in-range marker (1-6) in the text, or nil
// when none is in range. Out-of-range markers are still stripped. count is
// the number of markers removed.
func ExtractStageMarkers(text string) (clean string, transition *types.Stage, count int) {
	matches := stageMarkerPattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text, nil, 0
	}

	for _, m := range matches {
		stage := types.Stage(text[m[2]] - '0')
		if stage.Valid() {
			s := stage
			transition = &s
		}
	}
	return stageMarkerPattern.ReplaceAllLiteralString(text, ""), transition, len(matches)
}
