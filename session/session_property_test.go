package session

import (
	"fmt"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"

	"github.com/briefkit/briefkit/artifact"
	"github.com/briefkit/briefkit/types"
)

// Property: at most one artifact per type, however many messages carry it.
func TestProperty_OneArtifactPerType(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)
	catalog := types.KnownArtifactTypes()

	properties.Property("upserts keep one artifact per type", prop.ForAll(
		func(typeIdx []int, msgIdx []int) bool {
			s := New("p", WithClock(newStepClock(time.Second).Now), WithIDGenerator(sequentialIDs()))
			distinct := make(map[types.ArtifactType]struct{})

			for i, ti := range typeIdx {
				typ := catalog[ti%len(catalog)]
				msg := fmt.Sprintf("m%d", msgIdx[i%len(msgIdx)])
				distinct[typ] = struct{}{}
				s.Apply(msg, artifact.ParseResult{Artifacts: []types.ParsedArtifact{
					{Type: typ, Title: typ.DefaultTitle(), Stage: types.StageDiscover, Data: map[string]any{"i": i}},
				}})
			}

			seen := make(map[types.ArtifactType]bool)
			for _, a := range s.State().Artifacts {
				if seen[a.Type] {
					return false
				}
				seen[a.Type] = true
			}
			return len(seen) == len(distinct)
		},
		gen.SliceOf(gen.IntRange(0, 40)),
		gen.SliceOfN(3, gen.IntRange(0, 5)),
	))

	properties.TestingRun(t)
}

// Property: the ledger only grows, and re-applying a message changes nothing.
func TestProperty_LedgerMonotonic(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 100
	properties := gopter.NewProperties(parameters)

	properties.Property("ledger never shrinks and replays are no-ops", prop.ForAll(
		func(stages []int) bool {
			s := New("p", WithClock(newStepClock(time.Second).Now), WithIDGenerator(sequentialIDs()))
			prev := 0

			for i, st := range stages {
				stage := types.Stage(st)
				result := artifact.ParseResult{
					Artifacts:       []types.ParsedArtifact{{Type: types.ArtifactWBS, Stage: stage, Data: map[string]any{}}},
					StageTransition: &stage,
				}
				msg := fmt.Sprintf("m%d", i%3)
				s.Apply(msg, result)
				n := len(s.LedgerKeys())
				if n < prev {
					return false
				}
				prev = n

				before := s.State()
				if s.Apply(msg, result).Changed() {
					return false
				}
				if len(s.State().Artifacts) != len(before.Artifacts) || s.State().CurrentStage != before.CurrentStage {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.IntRange(1, 6)),
	))

	properties.TestingRun(t)
}
