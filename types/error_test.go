package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_ChainingAndHelpers(t *testing.T) {
	t.Parallel()

	root := errors.New("root")
	err := NewError(ErrStoreUnavailable, "store failed").
		WithCause(root).
		WithHTTPStatus(503).
		WithRetryable(true)

	assert.Equal(t, ErrStoreUnavailable, GetErrorCode(err))
	assert.True(t, IsRetryable(err))
	assert.ErrorIs(t, err, root)
	assert.Contains(t, err.Error(), "STORE_UNAVAILABLE")
	assert.Contains(t, err.Error(), "root")
}

func TestError_WrappedLookup(t *testing.T) {
	t.Parallel()

	inner := NewError(ErrSessionNotFound, "missing")
	wrapped := fmt.Errorf("load: %w", inner)

	assert.True(t, IsErrorCode(wrapped, ErrSessionNotFound))
	assert.False(t, IsErrorCode(wrapped, ErrSessionExpired))
	assert.Equal(t, ErrSessionNotFound, GetErrorCode(wrapped))
	assert.Equal(t, ErrorCode(""), GetErrorCode(errors.New("plain")))
}

func TestWrapError(t *testing.T) {
	t.Parallel()

	assert.Nil(t, WrapError(nil, ErrInternalError, "x"))

	plain := errors.New("boom")
	got := WrapError(plain, ErrInternalError, "wrapped")
	assert.Equal(t, ErrInternalError, got.Code)
	assert.ErrorIs(t, got, plain)

	existing := NewError(ErrInvalidStage, "bad stage")
	assert.Same(t, existing, WrapError(existing, ErrInternalError, "ignored"))
}
