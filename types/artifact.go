package types

import (
	"encoding/json"
	"slices"
	"strings"
	"time"
)

// ArtifactType is the natural key of an artifact within a session.
type ArtifactType string

// Stage 1: Discover & Intake
const (
	ArtifactProjectBrief          ArtifactType = "project-brief"
	ArtifactProjectClassification ArtifactType = "project-classification"
)

// Stage 2: Define & Scope
const (
	ArtifactCharter         ArtifactType = "charter"
	ArtifactScopeStatement  ArtifactType = "scope-statement"
	ArtifactBusinessCase    ArtifactType = "business-case"
	ArtifactSuccessCriteria ArtifactType = "success-criteria"
)

// Stage 3: Structure & Plan
const (
	ArtifactWBS          ArtifactType = "wbs"
	ArtifactSchedule     ArtifactType = "schedule"
	ArtifactBudget       ArtifactType = "budget"
	ArtifactResourcePlan ArtifactType = "resource-plan"
)

// Stage 4: Stakeholders & Governance
const (
	ArtifactStakeholderRegister ArtifactType = "stakeholder-register"
	ArtifactRACIMatrix          ArtifactType = "raci-matrix"
	ArtifactCommunicationPlan   ArtifactType = "communication-plan"
	ArtifactGovernance          ArtifactType = "governance-structure"
)

// Stage 5: Risk & Quality
const (
	ArtifactRiskRegister         ArtifactType = "risk-register"
	ArtifactQualityPlan          ArtifactType = "quality-plan"
	ArtifactChangeManagementPlan ArtifactType = "change-management-plan"
)

// Stage 6: Package & Kickoff
const (
	ArtifactSOWPID             ArtifactType = "sow-pid"
	ArtifactKickoffAgenda      ArtifactType = "kickoff-agenda"
	ArtifactCompletenessReport ArtifactType = "completeness-report"
)

var defaultTitles = map[ArtifactType]string{
	ArtifactProjectBrief:          "Project Brief",
	ArtifactProjectClassification: "Project Classification",
	ArtifactCharter:               "Project Charter",
	ArtifactScopeStatement:        "Scope Statement",
	ArtifactBusinessCase:          "Business Case",
	ArtifactSuccessCriteria:       "Success Criteria & KPIs",
	ArtifactWBS:                   "Work Breakdown Structure",
	ArtifactSchedule:              "Project Schedule",
	ArtifactBudget:                "Budget Estimate",
	ArtifactResourcePlan:          "Resource Plan",
	ArtifactStakeholderRegister:   "Stakeholder Register",
	ArtifactRACIMatrix:            "RACI Matrix",
	ArtifactCommunicationPlan:     "Communication Plan",
	ArtifactGovernance:            "Governance Structure",
	ArtifactRiskRegister:          "Risk Register",
	ArtifactQualityPlan:           "Quality Plan",
	ArtifactChangeManagementPlan:  "Change Management Plan",
	ArtifactSOWPID:                "Statement of Work / PID",
	ArtifactKickoffAgenda:         "Kickoff Meeting Agenda",
	ArtifactCompletenessReport:    "Completeness Report",
}

// KnownArtifactTypes returns every catalogued artifact type, sorted.
func KnownArtifactTypes() []ArtifactType {
	out := make([]ArtifactType, 0, len(defaultTitles))
	for t := range defaultTitles {
		out = append(out, t)
	}
	slices.Sort(out)
	return out
}

// Known reports whether t is part of the fixed catalog.
func (t ArtifactType) Known() bool {
	_, ok := defaultTitles[t]
	return ok
}

// DefaultTitle returns the catalog display name, or the hyphenated type
// title-cased ("risk-log" -> "Risk Log") when t is not catalogued.
func (t ArtifactType) DefaultTitle() string {
	if title, ok := defaultTitles[t]; ok {
		return title
	}
	return titleCase(string(t))
}

// Format returns the download format for t.
func (t ArtifactType) Format() ArtifactFormat {
	switch t {
	case ArtifactBudget, ArtifactRiskRegister:
		return FormatXLSX
	default:
		return FormatDOCX
	}
}

// titleCase upper-cases the first letter of every word, treating hyphens as spaces.
func titleCase(s string) string {
	b := []byte(strings.ReplaceAll(s, "-", " "))
	for i := range b {
		if (i == 0 || !isWordByte(b[i-1])) && b[i] >= 'a' && b[i] <= 'z' {
			b[i] -= 'a' - 'A'
		}
	}
	return string(b)
}

func isWordByte(c byte) bool {
	return c == '_' || (c >= '0' && c <= '9') || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

// ArtifactFormat is the output file kind.
type ArtifactFormat string

const (
	FormatDOCX ArtifactFormat = "docx"
	FormatXLSX ArtifactFormat = "xlsx"
	FormatPDF  ArtifactFormat = "pdf"
	FormatZIP  ArtifactFormat = "zip"
)

// Valid reports whether f is a supported format.
func (f ArtifactFormat) Valid() bool {
	switch f {
	case FormatDOCX, FormatXLSX, FormatPDF, FormatZIP:
		return true
	}
	return false
}

// ArtifactStatus is the lifecycle status of an artifact.
type ArtifactStatus string

const (
	StatusGenerating ArtifactStatus = "generating"
	StatusDraft      ArtifactStatus = "draft"
	StatusRevised    ArtifactStatus = "revised"
	StatusFinal      ArtifactStatus = "final"
)

// Valid reports whether s is a known status.
func (s ArtifactStatus) Valid() bool {
	switch s {
	case StatusGenerating, StatusDraft, StatusRevised, StatusFinal:
		return true
	}
	return false
}

// ParsedArtifact is a decoded envelope before it is persisted.
type ParsedArtifact struct {
	Type  ArtifactType   `json:"type"`
	Title string         `json:"title"`
	Stage Stage          `json:"stage"`
	Data  map[string]any `json:"data"`

	// RawData keeps the source bytes of data so key order survives for digests.
	RawData json.RawMessage `json:"-"`
}

// Artifact is a persisted structured document record.
type Artifact struct {
	ID        string         `json:"id"`
	Type      ArtifactType   `json:"type"`
	Title     string         `json:"title"`
	Stage     Stage          `json:"stage"`
	Status    ArtifactStatus `json:"status"`
	Format    ArtifactFormat `json:"format"`
	Data      map[string]any `json:"data"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// NewArtifact converts a parsed envelope into a fresh draft artifact.
func NewArtifact(id string, parsed ParsedArtifact, now time.Time) Artifact {
	return Artifact{
		ID:        id,
		Type:      parsed.Type,
		Title:     parsed.Title,
		Stage:     parsed.Stage,
		Status:    StatusDraft,
		Format:    parsed.Type.Format(),
		Data:      parsed.Data,
		CreatedAt: now,
		UpdatedAt: now,
	}
}
