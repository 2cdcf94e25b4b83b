package conversation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/briefkit/briefkit/types"
)

func TestTiktokenTokenizer_FallsBackOnUnknownEncoding(t *testing.T) {
	tok := NewTiktokenTokenizer("no_such_encoding", zaptest.NewLogger(t))
	estimate := types.NewEstimateTokenizer()
	msgs := []types.Message{
		types.NewUserMessage("hello there"),
		types.NewAssistantMessage("general kenobi"),
	}

	assert.Equal(t, estimate.CountTokens("hello there"), tok.CountTokens("hello there"))
	assert.Equal(t, estimate.CountMessagesTokens(msgs), tok.CountMessagesTokens(msgs))
	assert.Error(t, tok.init())
	assert.Equal(t, "tiktoken[no_such_encoding]", tok.Name())
}

func TestNewTokenizer(t *testing.T) {
	tok, err := NewTokenizer("", "", nil)
	require.NoError(t, err)
	assert.IsType(t, &types.EstimateTokenizer{}, tok)

	tok, err = NewTokenizer(TokenizerTiktoken, "", nil)
	require.NoError(t, err)
	assert.Equal(t, "tiktoken[cl100k_base]", tok.(*TiktokenTokenizer).Name())

	_, err = NewTokenizer("bpe", "", nil)
	assert.Error(t, err)
}
