package types

import "fmt"

// Stage is one of the six ordered phases of the guided workflow.
type Stage int

const (
	StageDiscover Stage = 1
	StageDefine   Stage = 2
	StagePlan     Stage = 3
	StageGovern   Stage = 4
	StageRisk     Stage = 5
	StagePackage  Stage = 6
)

const (
	MinStage = StageDiscover
	MaxStage = StagePackage
)

// Valid reports whether s lies within 1..6.
func (s Stage) Valid() bool {
	return s >= MinStage && s <= MaxStage
}

// Next returns the following stage and false when s is already the last one.
func (s Stage) Next() (Stage, bool) {
	if s >= MaxStage {
		return s, false
	}
	return s + 1, true
}

func (s Stage) String() string {
	return fmt.Sprintf("stage-%d", int(s))
}

// StageDefinition describes a workflow stage.
type StageDefinition struct {
	Number       Stage          `json:"number"`
	Label        string         `json:"label"`
	Description  string         `json:"description"`
	KeyArtifacts []ArtifactType `json:"key_artifacts,omitempty"`
}

var stageCatalog = []StageDefinition{
	{Number: StageDiscover, Label: "Discover", Description: "Discover & Intake",
		KeyArtifacts: []ArtifactType{ArtifactProjectBrief}},
	{Number: StageDefine, Label: "Define", Description: "Define & Scope",
		KeyArtifacts: []ArtifactType{ArtifactCharter, ArtifactScopeStatement}},
	{Number: StagePlan, Label: "Plan", Description: "Structure & Plan",
		KeyArtifacts: []ArtifactType{ArtifactWBS}},
	{Number: StageGovern, Label: "Govern", Description: "Stakeholders & Governance",
		KeyArtifacts: []ArtifactType{ArtifactStakeholderRegister, ArtifactRACIMatrix}},
	{Number: StageRisk, Label: "Risk", Description: "Risk & Quality",
		KeyArtifacts: []ArtifactType{ArtifactRiskRegister}},
	{Number: StagePackage, Label: "Package", Description: "Package & Kickoff"},
}

// Stages returns the full stage catalog in order.
func Stages() []StageDefinition {
	out := make([]StageDefinition, len(stageCatalog))
	copy(out, stageCatalog)
	return out
}

// StageInfo looks up a stage definition.
func StageInfo(s Stage) (StageDefinition, bool) {
	if !s.Valid() {
		return StageDefinition{}, false
	}
	return stageCatalog[s-1], true
}

// KeyArtifacts returns the artifact types that must exist before leaving stage s.
// The last stage has none, so it can never be advanced past.
func KeyArtifacts(s Stage) []ArtifactType {
	def, ok := StageInfo(s)
	if !ok {
		return nil
	}
	return append([]ArtifactType(nil), def.KeyArtifacts...)
}
