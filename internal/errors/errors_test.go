package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDerivesClassificationFromCode(t *testing.T) {
	cases := []struct {
		code      string
		category  Category
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, false},
		{ErrCodeFileNotFound, CategoryStorage, false},
		{ErrCodeStorageUnavailable, CategoryStorage, true},
		{ErrCodeNetworkTimeout, CategoryNetwork, true},
		{ErrCodeDimensionMismatch, CategoryValidation, false},
		{ErrCodeEmbeddingFailed, CategoryInternal, true},
		{ErrCodeScrubFailed, CategoryInternal, false},
		{ErrCodeChunkingFailed, CategoryInternal, false},
	}
	for _, tc := range cases {
		err := New(tc.code, "boom", nil)
		assert.Equal(t, tc.category, err.Category, tc.code)
		assert.Equal(t, tc.retryable, err.Retryable, tc.code)
	}
}

func TestSeverity(t *testing.T) {
	assert.Equal(t, SeverityFatal, New(ErrCodeCorruptIndex, "x", nil).Severity)
	assert.Equal(t, SeverityFatal, New(ErrCodeDiskFull, "x", nil).Severity)
	assert.Equal(t, SeverityWarning, New(ErrCodeNetworkTimeout, "x", nil).Severity)
	assert.Equal(t, SeverityError, New(ErrCodeInvalidInput, "x", nil).Severity)

	assert.True(t, IsFatal(New(ErrCodeCorruptIndex, "x", nil)))
	assert.False(t, IsFatal(New(ErrCodeInvalidInput, "x", nil)))
	assert.False(t, IsFatal(nil))
}

func TestErrorFormatting(t *testing.T) {
	err := New(ErrCodeDimensionMismatch, "expected 768, got 384", nil)
	assert.Equal(t, "[ERR_402_DIMENSION_MISMATCH] expected 768, got 384", err.Error())
}

func TestUnwrapAndIs(t *testing.T) {
	cause := fmt.Errorf("disk exploded")
	err := Wrap(ErrCodeStorageUnavailable, cause)

	require.NotNil(t, err)
	assert.Equal(t, cause, stderrors.Unwrap(err))
	assert.True(t, stderrors.Is(err, cause))

	// Is matches by code between KGErrors.
	sentinel := New(ErrCodeStorageUnavailable, "", nil)
	assert.True(t, stderrors.Is(err, sentinel))
	other := New(ErrCodeFileNotFound, "", nil)
	assert.False(t, stderrors.Is(err, other))
}

func TestWrapNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetailAndSuggestion(t *testing.T) {
	err := New(ErrCodeScrubFailed, "scrub failed", nil).
		WithDetail("chunk_id", "abc123def4567890").
		WithSuggestion("check the analyzer config")

	assert.Equal(t, "abc123def4567890", err.Details["chunk_id"])
	assert.Equal(t, "check the analyzer config", err.Suggestion)
}

func TestDimensionMismatchConstructor(t *testing.T) {
	err := DimensionMismatch(768, 384)
	assert.Equal(t, ErrCodeDimensionMismatch, err.Code)
	assert.Contains(t, err.Message, "768")
	assert.Contains(t, err.Message, "384")
	assert.False(t, err.Retryable)
	assert.NotEmpty(t, err.Suggestion)
}

func TestScrubErrorCarriesChunkID(t *testing.T) {
	err := ScrubError("deadbeefdeadbeef", fmt.Errorf("analyzer crashed"))
	assert.Equal(t, ErrCodeScrubFailed, err.Code)
	assert.Equal(t, "deadbeefdeadbeef", err.Details["chunk_id"])
	assert.NotNil(t, err.Cause)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(EmbeddingError("backend down", nil)))
	assert.True(t, IsRetryable(StorageUnavailable("locked", nil)))
	assert.True(t, IsRetryable(NetworkError("timeout", nil)))
	assert.False(t, IsRetryable(ChunkingError("bad parse", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestGetCodeAndCategory(t *testing.T) {
	err := ConfigError("bad yaml", nil)
	assert.Equal(t, ErrCodeConfigInvalid, GetCode(err))
	assert.Equal(t, CategoryConfig, GetCategory(err))

	assert.Equal(t, "", GetCode(stderrors.New("plain")))
	assert.Equal(t, Category(""), GetCategory(stderrors.New("plain")))
}

func TestShortCodeFallsBackToInternal(t *testing.T) {
	err := New("ERR", "odd", nil)
	assert.Equal(t, CategoryInternal, err.Category)
}
