package artifact

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/briefkit/briefkit/types"
)

// Envelope decode errors. Every failure leaves the candidate text in place.
var (
	ErrNoObject     = errors.New("artifact: candidate is not a JSON object")
	ErrMissingType  = errors.New("artifact: envelope type must be a non-empty string")
	ErrMissingStage = errors.New("artifact: envelope stage must be an integer between 1 and 6")
	ErrMissingData  = errors.New("artifact: envelope data must be an object")
)

// DecodeEnvelope decodes one JSON candidate into a ParsedArtifact.
//
// Required: type (string), stage (integer 1-6), data (object). A missing or
// non-string title is replaced by the catalog title for type. The content of
// data is not inspected.
func DecodeEnvelope(candidate string) (types.ParsedArtifact, error) {
	trimmed := strings.TrimSpace(candidate)
	if !strings.HasPrefix(trimmed, "{") {
		return types.ParsedArtifact{}, ErrNoObject
	}

	var env map[string]json.RawMessage
	if err := json.Unmarshal([]byte(trimmed), &env); err != nil {
		return types.ParsedArtifact{}, fmt.Errorf("%w: %v", ErrNoObject, err)
	}

	var typ string
	if raw, ok := env["type"]; !ok || !isKind(raw, '"') {
		return types.ParsedArtifact{}, ErrMissingType
	} else if err := json.Unmarshal(raw, &typ); err != nil || typ == "" {
		return types.ParsedArtifact{}, ErrMissingType
	}

	stage, err := decodeStage(env["stage"])
	if err != nil {
		return types.ParsedArtifact{}, err
	}

	rawData, ok := env["data"]
	if !ok || !isKind(rawData, '{') {
		return types.ParsedArtifact{}, ErrMissingData
	}
	var data map[string]any
	if err := json.Unmarshal(rawData, &data); err != nil {
		return types.ParsedArtifact{}, fmt.Errorf("%w: %v", ErrMissingData, err)
	}

	artifactType := types.ArtifactType(typ)
	title := artifactType.DefaultTitle()
	if raw, ok := env["title"]; ok && isKind(raw, '"') {
		var t string
		if err := json.Unmarshal(raw, &t); err == nil {
			title = t
		}
	}

	return types.ParsedArtifact{
		Type:    artifactType,
		Title:   title,
		Stage:   stage,
		Data:    data,
		RawData: append(json.RawMessage(nil), bytes.TrimSpace(rawData)...),
	}, nil
}

func decodeStage(raw json.RawMessage) (types.Stage, error) {
	if len(raw) == 0 || isKind(raw, 'n') {
		return 0, ErrMissingStage
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err != nil {
		return 0, ErrMissingStage
	}
	if f != math.Trunc(f) {
		return 0, ErrMissingStage
	}
	stage := types.Stage(f)
	if !stage.Valid() {
		return 0, ErrMissingStage
	}
	return stage, nil
}

// isKind reports whether the first non-space byte of raw is lead.
func isKind(raw json.RawMessage, lead byte) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == lead
}
