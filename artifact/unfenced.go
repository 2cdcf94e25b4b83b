package artifact

import "strings"

// DefaultLookahead is the rune window after '{' that must mention "type"
// before a full match is attempted.
const DefaultLookahead = 60

const (
	typeKey  = `"type"`
	stageKey = `"stage"`
	dataKey  = `"data"`
)

// UnfencedScanner finds bare JSON envelopes that were not wrapped in a fence.
//
// A brace is only considered when "type" appears within Lookahead runes of it.
// With Strict set, "stage" or "data" must appear in the same window as well.
// Matching is string-aware: braces inside quoted strings do not count.
type UnfencedScanner struct {
	Lookahead int
	Strict    bool
}

var _ Scanner = UnfencedScanner{}

// Scan implements Scanner.
func (s UnfencedScanner) Scan(text string) Extraction {
	var ex Extraction
	pos := 0
	for pos < len(text) {
		rel := strings.IndexByte(text[pos:], '{')
		if rel < 0 {
			break
		}
		brace := pos + rel

		if !s.signature(window(text[brace:], s.lookahead())) {
			pos = brace + 1
			continue
		}

		end := matchBrace(text, brace)
		if end < 0 {
			pos = brace + 1
			continue
		}

		parsed, err := DecodeEnvelope(text[brace : end+1])
		if err != nil {
			ex.Skipped++
			pos = brace + 1
			continue
		}

		ex.Candidates = append(ex.Candidates, Candidate{
			Artifact: parsed,
			Kind:     KindUnfenced,
			Start:    brace,
			End:      end + 1,
		})
		pos = end + 1
	}

	ex.Remainder = excise(text, ex.Candidates)
	return ex
}

func (s UnfencedScanner) lookahead() int {
	if s.Lookahead <= 0 {
		return DefaultLookahead
	}
	return s.Lookahead
}

func (s UnfencedScanner) signature(w string) bool {
	if !strings.Contains(w, typeKey) {
		return false
	}
	if !s.Strict {
		return true
	}
	return strings.Contains(w, stageKey) || strings.Contains(w, dataKey)
}

// window returns the first n runes of s.
func window(s string, n int) string {
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}

// matchBrace returns the index of the '}' closing the '{' at start, or -1.
// A backslash escapes the next byte inside and outside strings. Only ASCII
// delimiters are inspected, so multi-byte UTF-8 sequences pass through.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		switch {
		case escaped:
			escaped = false
		case c == '\\':
			escaped = true
		case c == '"':
			inString = !inString
		case inString:
		case c == '{':
			depth++
		case c == '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// excise removes the candidate ranges from text. Candidates must be sorted
// and non-overlapping, which Scan guarantees.
func excise(text string, candidates []Candidate) string {
	if len(candidates) == 0 {
		return text
	}
	var b strings.Builder
	b.Grow(len(text))
	prev := 0
	for _, c := range candidates {
		b.WriteString(text[prev:c.Start])
		prev = c.End
	}
	b.WriteString(text[prev:])
	return b.String()
}
