package artifact

import "strings"

const fence = "```"

// FencedScanner extracts envelopes wrapped in triple-backtick blocks.
//
// The JSON candidate of a block is the span from its first '{' to its last
// '}', so a language tag or commentary inside the fence is tolerated. Blocks
// that do not decode are written back verbatim. An unterminated block stops
// the scan and the rest of the text is kept as-is.
type FencedScanner struct{}

var _ Scanner = FencedScanner{}

// Scan implements Scanner.
func (FencedScanner) Scan(text string) Extraction {
	var (
		out strings.Builder
		ex  Extraction
		pos int
	)
	out.Grow(len(text))

	for pos < len(text) {
		rel := strings.Index(text[pos:], fence)
		if rel < 0 {
			out.WriteString(text[pos:])
			break
		}
		open := pos + rel
		out.WriteString(text[pos:open])

		body := open + len(fence)
		rel = strings.Index(text[body:], fence)
		if rel < 0 {
			out.WriteString(text[open:])
			ex.Truncated = true
			ex.Tail = text[open:]
			break
		}
		closeAt := body + rel
		end := closeAt + len(fence)

		parsed, err := DecodeEnvelope(blockCandidate(text[body:closeAt]))
		if err != nil {
			out.WriteString(text[open:end])
			ex.Skipped++
		} else {
			ex.Candidates = append(ex.Candidates, Candidate{
				Artifact: parsed,
				Kind:     KindFenced,
				Start:    open,
				End:      end,
			})
		}
		pos = end
	}

	ex.Remainder = out.String()
	return ex
}

// blockCandidate returns raw[first '{' : last '}'+1], or "" when the block
// holds no brace pair.
func blockCandidate(raw string) string {
	first := strings.IndexByte(raw, '{')
	last := strings.LastIndexByte(raw, '}')
	if first < 0 || last <= first {
		return ""
	}
	return raw[first : last+1]
}
