package conversation

import (
	"fmt"
	"sync"

	"github.com/pkoukk/tiktoken-go"
	"go.uber.org/zap"

	"github.com/briefkit/briefkit/types"
)

// TokenizerKind selects the token counter used for compression stats.
type TokenizerKind string

const (
	TokenizerEstimate TokenizerKind = "estimate"
	TokenizerTiktoken TokenizerKind = "tiktoken"
)

// DefaultEncoding is the tiktoken encoding used when none is configured.
const DefaultEncoding = "cl100k_base"

// TiktokenTokenizer counts tokens with a tiktoken BPE encoding. The encoding
// is loaded on first use; if it cannot be loaded the character estimate is
// used instead.
type TiktokenTokenizer struct {
	encoding string
	fallback *types.EstimateTokenizer
	logger   *zap.Logger

	once    sync.Once
	enc     *tiktoken.Tiktoken
	initErr error
}

var _ types.Tokenizer = (*TiktokenTokenizer)(nil)

// NewTiktokenTokenizer creates a tokenizer for encoding (e.g. "cl100k_base").
func NewTiktokenTokenizer(encoding string, logger *zap.Logger) *TiktokenTokenizer {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TiktokenTokenizer{
		encoding: encoding,
		fallback: types.NewEstimateTokenizer(),
		logger:   logger.With(zap.String("component", "tokenizer")),
	}
}

// NewTokenizer builds the tokenizer named by kind.
func NewTokenizer(kind TokenizerKind, encoding string, logger *zap.Logger) (types.Tokenizer, error) {
	switch kind {
	case "", TokenizerEstimate:
		return types.NewEstimateTokenizer(), nil
	case TokenizerTiktoken:
		return NewTiktokenTokenizer(encoding, logger), nil
	default:
		return nil, fmt.Errorf("unknown tokenizer %q", kind)
	}
}

func (t *TiktokenTokenizer) init() error {
	t.once.Do(func() {
		enc, err := tiktoken.GetEncoding(t.encoding)
		if err != nil {
			t.initErr = fmt.Errorf("init tiktoken encoding %s: %w", t.encoding, err)
			t.logger.Warn("falling back to token estimate", zap.Error(t.initErr))
			return
		}
		t.enc = enc
	})
	return t.initErr
}

// CountTokens implements types.Tokenizer.
func (t *TiktokenTokenizer) CountTokens(text string) int {
	if err := t.init(); err != nil {
		return t.fallback.CountTokens(text)
	}
	return len(t.enc.Encode(text, nil, nil))
}

// CountMessagesTokens implements types.Tokenizer.
func (t *TiktokenTokenizer) CountMessagesTokens(msgs []types.Message) int {
	if err := t.init(); err != nil {
		return t.fallback.CountMessagesTokens(msgs)
	}
	total := 0
	for _, msg := range msgs {
		// <|start|>role\ncontent<|end|>\n
		total += 4
		total += len(t.enc.Encode(msg.Content, nil, nil))
		total += len(t.enc.Encode(string(msg.Role), nil, nil))
	}
	if len(msgs) > 0 {
		total += 3
	}
	return total
}

// Name returns a label for logs and metrics.
func (t *TiktokenTokenizer) Name() string {
	return fmt.Sprintf("tiktoken[%s]", t.encoding)
}
