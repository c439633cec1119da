package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestWrapKeepsCause(t *testing.T) {
	cause := errors.New("boom")
	err := Wrap("dataset_not_found", "dataset missing", cause)

	require.EqualError(t, err, "dataset missing: boom")
	require.ErrorIs(t, err, cause)
	require.True(t, IsCode(err, "dataset_not_found"))
}

func TestCodeOfWrappedChain(t *testing.T) {
	err := fmt.Errorf("startup: %w", Wrap("embedding_error", "embed failed", nil))
	require.Equal(t, "embedding_error", CodeOf(err))
	require.Equal(t, "", CodeOf(errors.New("plain")))
	require.False(t, IsCode(nil, "embedding_error"))
}
