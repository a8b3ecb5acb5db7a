package errors

import (
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatForUser(t *testing.T) {
	err := New(ErrCodeCorruptIndex, "bm25 index unreadable", nil).
		WithSuggestion("delete the data dir and reindex")

	out := FormatForUser(err, false)
	assert.Contains(t, out, "Error: bm25 index unreadable")
	assert.Contains(t, out, "Suggestion: delete the data dir and reindex")
	assert.Contains(t, out, "[ERR_205_CORRUPT_INDEX]")
}

func TestFormatForUserPlainError(t *testing.T) {
	assert.Equal(t, "plain", FormatForUser(stderrors.New("plain"), false))
	assert.Equal(t, "", FormatForUser(nil, false))
}

func TestFormatForUserDebugIncludesCause(t *testing.T) {
	cause := stderrors.New("underlying io error")
	err := Wrap(ErrCodeFileNotFound, stderrors.New("file gone"))
	err.Cause = cause

	out := FormatForUser(err, true)
	assert.Contains(t, out, "underlying io error")
}

func TestFormatForCLIWrapsPlainErrors(t *testing.T) {
	out := FormatForCLI(stderrors.New("weird failure"))
	assert.Contains(t, out, "Error: weird failure")
	assert.Contains(t, out, "Code: "+ErrCodeInternal)
}

func TestFormatJSONRoundTrips(t *testing.T) {
	err := EmbeddingError("ollama unreachable", stderrors.New("connection refused")).
		WithDetail("backend", "ollama")

	data, jerr := FormatJSON(err)
	require.NoError(t, jerr)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeEmbeddingFailed, decoded["code"])
	assert.Equal(t, "ollama unreachable", decoded["message"])
	assert.Equal(t, true, decoded["retryable"])
	assert.Equal(t, "connection refused", decoded["cause"])
}

func TestFormatForLog(t *testing.T) {
	err := StorageUnavailable("registry locked", stderrors.New("database is locked")).
		WithDetail("path", "/data/routes.db")

	attrs := FormatForLog(err)
	assert.Equal(t, ErrCodeStorageUnavailable, attrs["error_code"])
	assert.Equal(t, true, attrs["retryable"])
	assert.Equal(t, "database is locked", attrs["cause"])
	assert.Equal(t, "/data/routes.db", attrs["detail_path"])

	plain := FormatForLog(stderrors.New("x"))
	assert.Equal(t, "x", plain["error"])
	assert.Nil(t, FormatForLog(nil))
}
