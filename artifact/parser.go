package artifact

import (
	"strings"

	"go.uber.org/zap"

	"github.com/briefkit/briefkit/types"
)

// ParseResult is the outcome of parsing one message's full text.
type ParseResult struct {
	CleanText       string                 `json:"clean_text"`
	Artifacts       []types.ParsedArtifact `json:"artifacts"`
	StageTransition *types.Stage           `json:"stage_transition"`
	Stats           ParseStats             `json:"stats"`
}

// ParseStats describes what the scanners saw.
type ParseStats struct {
	Fenced    int  `json:"fenced"`
	Unfenced  int  `json:"unfenced"`
	Skipped   int  `json:"skipped"`
	Markers   int  `json:"markers"`
	Truncated bool `json:"truncated"`
}

// HasStageTransition reports whether a stage marker was found.
func (r ParseResult) HasStageTransition() bool {
	return r.StageTransition != nil
}

// MaxArtifactStage returns the highest stage carried by any artifact, or 0.
func (r ParseResult) MaxArtifactStage() types.Stage {
	var highest types.Stage
	for _, a := range r.Artifacts {
		if a.Stage > highest {
			highest = a.Stage
		}
	}
	return highest
}

// TextParser turns message text into a ParseResult.
type TextParser interface {
	Parse(text string) ParseResult
}

// ParserConfig configures a Parser.
type ParserConfig struct {
	// UnfencedLookahead is the rune window checked for "type" after '{'.
	UnfencedLookahead int `yaml:"unfenced_lookahead" json:"unfenced_lookahead"`
	// StrictSignature additionally requires "stage" or "data" in the window.
	StrictSignature bool `yaml:"strict_signature" json:"strict_signature"`
	// DisableUnfenced turns the bare-JSON fallback off.
	DisableUnfenced bool `yaml:"disable_unfenced" json:"disable_unfenced"`
}

// DefaultParserConfig returns the production defaults.
func DefaultParserConfig() ParserConfig {
	return ParserConfig{UnfencedLookahead: DefaultLookahead}
}

// Parser runs the fenced scanner, then the unfenced fallback on what is left,
// then stage marker extraction. It holds no state between calls.
type Parser struct {
	fenced   Scanner
	unfenced Scanner
	logger   *zap.Logger
}

var _ TextParser = (*Parser)(nil)

// ParserOption customizes a Parser.
type ParserOption func(*Parser)

// WithFencedScanner replaces the fenced scanner.
func WithFencedScanner(s Scanner) ParserOption {
	return func(p *Parser) { p.fenced = s }
}

// WithUnfencedScanner replaces the fallback scanner. nil disables it.
func WithUnfencedScanner(s Scanner) ParserOption {
	return func(p *Parser) { p.unfenced = s }
}

// NewParser creates a Parser.
func NewParser(cfg ParserConfig, logger *zap.Logger, opts ...ParserOption) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	p := &Parser{
		fenced: FencedScanner{},
		logger: logger.With(zap.String("component", "artifact_parser")),
	}
	if !cfg.DisableUnfenced {
		p.unfenced = UnfencedScanner{Lookahead: cfg.UnfencedLookahead, Strict: cfg.StrictSignature}
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Parse implements TextParser.
func (p *Parser) Parse(text string) ParseResult {
	result := ParseResult{Artifacts: []types.ParsedArtifact{}}

	fenced := p.fenced.Scan(text)
	for _, c := range fenced.Candidates {
		result.Artifacts = append(result.Artifacts, c.Artifact)
	}
	result.Stats.Fenced = len(fenced.Candidates)
	result.Stats.Skipped = fenced.Skipped
	result.Stats.Truncated = fenced.Truncated
	remainder := fenced.Remainder

	// An unterminated block is never scanned: it may still be growing.
	if p.unfenced != nil {
		bare := p.unfenced.Scan(fenced.Settled())
		for _, c := range bare.Candidates {
			result.Artifacts = append(result.Artifacts, c.Artifact)
		}
		result.Stats.Unfenced = len(bare.Candidates)
		result.Stats.Skipped += bare.Skipped
		remainder = bare.Remainder + remainder[len(fenced.Settled()):]
	}

	clean, transition, markers := ExtractStageMarkers(remainder)
	result.CleanText = strings.TrimSpace(clean)
	result.StageTransition = transition
	result.Stats.Markers = markers

	if result.Stats.Skipped > 0 || result.Stats.Truncated {
		p.logger.Debug("message left partially unparsed",
			zap.Int("skipped", result.Stats.Skipped),
			zap.Bool("truncated", result.Stats.Truncated),
			zap.Int("artifacts", len(result.Artifacts)))
	}
	return result
}

var defaultParser = NewParser(DefaultParserConfig(), nil)

// Parse parses text with the default configuration.
func Parse(text string) ParseResult {
	return defaultParser.Parse(text)
}
