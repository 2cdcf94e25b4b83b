package conversation

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/briefkit/briefkit/artifact"
	"github.com/briefkit/briefkit/types"
)

// DigestLimits caps how much of each artifact and user turn reaches the digest.
type DigestLimits struct {
	MaxFields       int `yaml:"max_fields" json:"max_fields"`
	MaxString       int `yaml:"max_string" json:"max_string"`
	MaxPreview      int `yaml:"max_preview" json:"max_preview"`
	MaxLabel        int `yaml:"max_label" json:"max_label"`
	MaxSubfields    int `yaml:"max_subfields" json:"max_subfields"`
	MaxSubString    int `yaml:"max_sub_string" json:"max_sub_string"`
	MaxUserText     int `yaml:"max_user_text" json:"max_user_text"`
	UserSampleEvery int `yaml:"user_sample_every" json:"user_sample_every"`
}

// withDefaults fills zero limits from DefaultDigestLimits.
func (l DigestLimits) withDefaults() DigestLimits {
	d := DefaultDigestLimits()
	if l.MaxFields <= 0 {
		l.MaxFields = d.MaxFields
	}
	if l.MaxString <= 0 {
		l.MaxString = d.MaxString
	}
	if l.MaxPreview <= 0 {
		l.MaxPreview = d.MaxPreview
	}
	if l.MaxLabel <= 0 {
		l.MaxLabel = d.MaxLabel
	}
	if l.MaxSubfields <= 0 {
		l.MaxSubfields = d.MaxSubfields
	}
	if l.MaxSubString <= 0 {
		l.MaxSubString = d.MaxSubString
	}
	if l.MaxUserText <= 0 {
		l.MaxUserText = d.MaxUserText
	}
	if l.UserSampleEvery <= 0 {
		l.UserSampleEvery = d.UserSampleEvery
	}
	return l
}

// DefaultDigestLimits returns the production limits.
func DefaultDigestLimits() DigestLimits {
	return DigestLimits{
		MaxFields:       10,
		MaxString:       300,
		MaxPreview:      5,
		MaxLabel:        80,
		MaxSubfields:    4,
		MaxSubString:    100,
		MaxUserText:     300,
		UserSampleEvery: 3,
	}
}

// labelKeys are tried in order to name an element of an array of objects.
var labelKeys = []string{
	"name", "item", "deliverable", "description", "role", "risk", "check",
	"audience", "topic", "objective", "benefit", "milestone", "id",
}

const formatReminder = "## Reminder: Artifact Output Format\n" +
	"When generating new artifacts, you MUST use a fenced code block:\n" +
	"```artifact\n" +
	`{ "type": "...", "title": "...", "stage": N, "data": { ... } }` + "\n" +
	"```\n" +
	"Do NOT output artifact JSON without the fenced code block wrapper."

// BuildDigest summarizes history: the artifacts found in assistant turns,
// grouped by stage, a sample of user turns, and a reminder to keep using
// fenced envelopes. Artifact data is rendered as bullet text, never as JSON.
func BuildDigest(history []types.Message, parser artifact.TextParser, limits DigestLimits) string {
	limits = limits.withDefaults()
	var sections []string

	byStage := make(map[types.Stage][]types.ParsedArtifact)
	for _, msg := range history {
		if msg.Role != types.RoleAssistant {
			continue
		}
		for _, a := range parser.Parse(msg.Content).Artifacts {
			byStage[a.Stage] = append(byStage[a.Stage], a)
		}
	}

	stages := make([]types.Stage, 0, len(byStage))
	for s := range byStage {
		stages = append(stages, s)
	}
	sort.Slice(stages, func(i, j int) bool { return stages[i] < stages[j] })

	for _, stage := range stages {
		sections = append(sections, fmt.Sprintf("## Stage %d Artifacts", int(stage)))
		for _, a := range byStage[stage] {
			sections = append(sections, fmt.Sprintf("**%s** (type: %s)\n%s", a.Title, a.Type, SummarizeData(rawData(a), limits)))
		}
	}

	var users []types.Message
	for _, msg := range history {
		if msg.Role == types.RoleUser {
			users = append(users, msg)
		}
	}
	if len(users) > 0 {
		sections = append(sections, "## Key User Inputs")
		for i, msg := range users {
			if i > 0 && (i-1)%limits.UserSampleEvery != 0 {
				continue
			}
			sections = append(sections, "- "+truncate(msg.Content, limits.MaxUserText, "..."))
		}
	}

	sections = append(sections, formatReminder)
	return strings.Join(sections, "\n\n")
}

// SummarizeData renders a JSON object as "  - key: value" lines, keeping
// the source key order.
func SummarizeData(raw []byte, limits DigestLimits) string {
	limits = limits.withDefaults()
	var lines []string

	gjson.ParseBytes(raw).ForEach(func(key, val gjson.Result) bool {
		if len(lines) >= limits.MaxFields {
			return false
		}
		k := key.String()

		switch {
		case val.Type == gjson.Null:
		case val.Type == gjson.String:
			lines = append(lines, k+": "+truncate(val.Str, limits.MaxString, "…"))
		case val.Type == gjson.Number, val.Type == gjson.True, val.Type == gjson.False:
			lines = append(lines, k+": "+val.Raw)
		case val.IsArray():
			if line, ok := summarizeArray(k, val.Array(), limits); ok {
				lines = append(lines, line)
			}
		case val.IsObject():
			if line, ok := summarizeObject(k, val, limits); ok {
				lines = append(lines, line)
			}
		}
		return true
	})

	for i, l := range lines {
		lines[i] = "  - " + l
	}
	return strings.Join(lines, "\n")
}

func summarizeArray(key string, items []gjson.Result, limits DigestLimits) (string, bool) {
	if len(items) == 0 {
		return "", false
	}

	switch first := items[0]; {
	case first.Type == gjson.String:
		parts := make([]string, len(items))
		for i, item := range items {
			parts[i] = scalarText(item)
		}
		return key + ": " + truncate(strings.Join(parts, "; "), limits.MaxString, "…"), true

	case first.IsObject():
		n := min(len(items), limits.MaxPreview)
		previews := make([]string, n)
		for i := 0; i < n; i++ {
			previews[i] = truncate(itemLabel(items[i]), limits.MaxLabel, "")
		}
		more := ""
		if len(items) > limits.MaxPreview {
			more = fmt.Sprintf(" (+%d more)", len(items)-limits.MaxPreview)
		}
		return fmt.Sprintf("%s (%d): %s%s", key, len(items), strings.Join(previews, "; "), more), true
	}
	return "", false
}

func summarizeObject(key string, obj gjson.Result, limits DigestLimits) (string, bool) {
	var parts []string
	obj.ForEach(func(sub, val gjson.Result) bool {
		switch {
		case val.Type == gjson.String && val.Str != "":
			parts = append(parts, sub.String()+": "+truncate(val.Str, limits.MaxSubString, "…"))
		case val.IsArray():
			parts = append(parts, fmt.Sprintf("%s: %d items", sub.String(), len(val.Array())))
		}
		return len(parts) < limits.MaxSubfields
	})
	if len(parts) == 0 {
		return "", false
	}
	return key + ": { " + strings.Join(parts, ", ") + " }", true
}

func itemLabel(item gjson.Result) string {
	for _, k := range labelKeys {
		if v := item.Get(k); v.Exists() && v.Type != gjson.Null {
			return scalarText(v)
		}
	}
	return ""
}

func scalarText(v gjson.Result) string {
	switch v.Type {
	case gjson.String:
		return v.Str
	case gjson.Null:
		return ""
	default:
		return v.Raw
	}
}

// rawData returns the source bytes of a's data, re-encoding when absent.
func rawData(a types.ParsedArtifact) []byte {
	if len(a.RawData) > 0 {
		return a.RawData
	}
	b, err := json.Marshal(a.Data)
	if err != nil {
		return nil
	}
	return b
}

// truncate cuts s to limit runes and appends suffix when it was longer.
func truncate(s string, limit int, suffix string) string {
	if limit <= 0 {
		return s
	}
	count := 0
	for i := range s {
		if count == limit {
			return s[:i] + suffix
		}
		count++
	}
	return s
}
