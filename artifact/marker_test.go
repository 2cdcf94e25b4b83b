package artifact

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefkit/briefkit/types"
)

func TestExtractStageMarkers(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantClean string
		wantStage types.Stage
		wantCount int
	}{
		{"none", "no markers here", "no markers here", 0, 0},
		{"single", "Next up [STAGE:2]", "Next up ", types.StageDefine, 1},
		{"case and whitespace", "go [stage : 5] now", "go  now", types.StageRisk, 1},
		{"last wins", "a [STAGE:2] b [STAGE:4] c", "a  b  c", types.StageGovern, 2},
		{"out of range stripped", "x [STAGE:9] y", "x  y", 0, 1},
		{"out of range does not override", "[STAGE:4][STAGE:0]", "", types.StageGovern, 2},
		{"two digits not a marker", "[STAGE:12]", "[STAGE:12]", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clean, stage, count := ExtractStageMarkers(tt.input)
			assert.Equal(t, tt.wantClean, clean)
			assert.Equal(t, tt.wantCount, count)
			if tt.wantStage == 0 {
				assert.Nil(t, stage)
				return
			}
			require.NotNil(t, stage)
			assert.Equal(t, tt.wantStage, *stage)
		})
	}
}
