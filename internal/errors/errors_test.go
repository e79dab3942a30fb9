package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsByCode(t *testing.T) {
	err := NotFoundError("collection missing")
	require.True(t, errors.Is(err, &Error{Code: CodeNotFound}))
	require.False(t, errors.Is(err, &Error{Code: CodeInvariantViolation}))
}

func TestWrapNil(t *testing.T) {
	require.Nil(t, Wrap(CodeIORead, nil))
}

func TestRetryableClassification(t *testing.T) {
	retryable := RemoteError(CodeRemoteTimeout, "timed out", nil, true)
	require.True(t, IsRetryable(retryable))

	fatal := InvariantError("bm25 not trained")
	require.True(t, IsFatal(fatal))
	require.False(t, IsRetryable(fatal))
}

func TestDimensionMismatchSuggestion(t *testing.T) {
	err := DimensionMismatch(768, 256)
	require.Equal(t, CategoryValidation, err.Category)
	require.Contains(t, err.Suggestion, "reindex")
}
