package artifact

import (
	"strings"

	"github.com/briefkit/briefkit/types"
)

// CandidateKind tells where a candidate was found.
type CandidateKind string

const (
	KindFenced   CandidateKind = "fenced"
	KindUnfenced CandidateKind = "unfenced"
)

// Candidate is a decoded envelope plus the byte range it occupied in the
// text handed to the scanner.
type Candidate struct {
	Artifact types.ParsedArtifact
	Kind     CandidateKind
	Start    int
	End      int
}

// Extraction is the result of one scanner pass.
type Extraction struct {
	// Remainder is the input with every decoded candidate removed.
	Remainder  string
	Candidates []Candidate
	// Skipped counts blocks or objects that looked like candidates but did not decode.
	Skipped int
	// Truncated is set when an opening fence had no closing fence.
	Truncated bool
	// Tail is the unterminated block, kept verbatim at the end of Remainder.
	Tail string
}

// Settled returns the part of Remainder that precedes an unterminated block.
func (e Extraction) Settled() string {
	if e.Tail == "" || !strings.HasSuffix(e.Remainder, e.Tail) {
		return e.Remainder
	}
	return e.Remainder[:len(e.Remainder)-len(e.Tail)]
}

// Scanner finds artifact envelopes in text. Implementations must be pure:
// the same text always yields the same Extraction.
type Scanner interface {
	Scan(text string) Extraction
}

// ScannerFunc adapts a function to Scanner.
type ScannerFunc func(text string) Extraction

// Scan implements Scanner.
func (f ScannerFunc) Scan(text string) Extraction {
	return f(text)
}
