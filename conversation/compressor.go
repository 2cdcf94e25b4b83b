package conversation

import (
	"fmt"
	"regexp"

	"go.uber.org/zap"

	"github.com/briefkit/briefkit/artifact"
	"github.com/briefkit/briefkit/types"
)

const (
	digestPreamble = "[CONTEXT FROM EARLIER STAGES — This is a compressed summary of our prior conversation. " +
		"Reference this for project details, decisions made, and artifact data.]\n\n"
	digestAck = "Understood. I have the full context from our earlier stages and will reference it as we continue."
)

// Config controls when and how history is compressed.
type Config struct {
	// MinMessages: histories of this length or shorter are left alone.
	MinMessages int `yaml:"min_messages" json:"min_messages"`
	// FallbackKeep is how many trailing messages survive when no stage boundary is found.
	FallbackKeep int `yaml:"fallback_keep" json:"fallback_keep"`
	// MinSplit: a split index at or below this skips compression.
	MinSplit int          `yaml:"min_split" json:"min_split"`
	Digest   DigestLimits `yaml:"digest" json:"digest"`
}

// DefaultConfig returns the production thresholds.
func DefaultConfig() Config {
	return Config{
		MinMessages:  10,
		FallbackKeep: 20,
		MinSplit:     2,
		Digest:       DefaultDigestLimits(),
	}
}

// Stats describes one compression run.
type Stats struct {
	Original     int  `json:"original"`
	Compressed   int  `json:"compressed"`
	Split        int  `json:"split"`
	Applied      bool `json:"applied"`
	TokensBefore int  `json:"tokens_before"`
	TokensAfter  int  `json:"tokens_after"`
}

// Compressor replaces the part of a history that precedes the current stage
// with a digest turn pair.
type Compressor struct {
	cfg       Config
	parser    artifact.TextParser
	tokenizer types.Tokenizer
	logger    *zap.Logger
}

// NewCompressor creates a Compressor. nil parser and tokenizer fall back to
// the default parser and the character estimate.
func NewCompressor(cfg Config, parser artifact.TextParser, tokenizer types.Tokenizer, logger *zap.Logger) *Compressor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if parser == nil {
		parser = artifact.NewParser(artifact.DefaultParserConfig(), logger)
	}
	if tokenizer == nil {
		tokenizer = types.NewEstimateTokenizer()
	}
	defaults := DefaultConfig()
	if cfg.MinMessages <= 0 {
		cfg.MinMessages = defaults.MinMessages
	}
	if cfg.FallbackKeep <= 0 {
		cfg.FallbackKeep = defaults.FallbackKeep
	}
	if cfg.MinSplit < 0 {
		cfg.MinSplit = defaults.MinSplit
	}
	cfg.Digest = cfg.Digest.withDefaults()

	return &Compressor{
		cfg:       cfg,
		parser:    parser,
		tokenizer: tokenizer,
		logger:    logger.With(zap.String("component", "compressor")),
	}
}

// Compress returns the history to send to the model at stage.
func (c *Compressor) Compress(messages []types.Message, stage types.Stage) []types.Message {
	out, _ := c.CompressWithStats(messages, stage)
	return out
}

// CompressWithStats is Compress plus a description of what happened.
//
// Nothing changes at stage 1 or for short histories. Otherwise everything
// before the most recent entry into stage (or before the last FallbackKeep
// messages) is replaced by a user digest turn and an assistant
// acknowledgement. A split too close to the start is not worth it.
func (c *Compressor) CompressWithStats(messages []types.Message, stage types.Stage) ([]types.Message, Stats) {
	stats := Stats{
		Original:     len(messages),
		Compressed:   len(messages),
		TokensBefore: c.tokenizer.CountMessagesTokens(messages),
	}
	stats.TokensAfter = stats.TokensBefore

	if stage <= types.StageDiscover || len(messages) <= c.cfg.MinMessages {
		return messages, stats
	}

	split := FindBoundary(messages, stage)
	if split < 0 {
		split = max(0, len(messages)-c.cfg.FallbackKeep)
	}
	stats.Split = split
	if split <= c.cfg.MinSplit {
		return messages, stats
	}

	digest := BuildDigest(messages[:split], c.parser, c.cfg.Digest)
	out := make([]types.Message, 0, len(messages)-split+2)
	out = append(out,
		types.NewUserMessage(digestPreamble+digest),
		types.NewAssistantMessage(digestAck),
	)
	out = append(out, messages[split:]...)

	stats.Applied = true
	stats.Compressed = len(out)
	stats.TokensAfter = c.tokenizer.CountMessagesTokens(out)

	c.logger.Debug("history compressed",
		zap.Int("stage", int(stage)),
		zap.Int("split", split),
		zap.Int("messages_before", stats.Original),
		zap.Int("messages_after", stats.Compressed),
		zap.Int("tokens_before", stats.TokensBefore),
		zap.Int("tokens_after", stats.TokensAfter))
	return out, stats
}

var boundaryPatterns = func() map[types.Stage]*regexp.Regexp {
	m := make(map[types.Stage]*regexp.Regexp, int(types.MaxStage))
	for s := types.MinStage; s <= types.MaxStage; s++ {
		m[s] = boundaryPattern(s)
	}
	return m
}()

func boundaryPattern(stage types.Stage) *regexp.Regexp {
	return regexp.MustCompile(fmt.Sprintf(`(?i)(move on to Stage %d|\[STAGE\s*:\s*%d\])`, int(stage), int(stage)))
}

// FindBoundary returns the index of the most recent message that enters
// stage, either through the advance prompt or a stage marker, or -1.
func FindBoundary(messages []types.Message, stage types.Stage) int {
	re, ok := boundaryPatterns[stage]
	if !ok {
		re = boundaryPattern(stage)
	}
	for i := len(messages) - 1; i >= 0; i-- {
		if re.MatchString(messages[i].Content) {
			return i
		}
	}
	return -1
}
