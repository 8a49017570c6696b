package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestInvalidErrorWrapping(t *testing.T) {
	err := fmt.Errorf("validate: %w", Invalid("No user message found"))
	require.True(t, IsInvalid(err))
	require.False(t, IsLLM(err))
	require.Equal(t, "No user message found", InvalidMessage(err))
}

func TestInvalidMessageFallback(t *testing.T) {
	require.Equal(t, "invalid request", InvalidMessage(ErrInvalid))
	require.Equal(t, "invalid request", InvalidMessage(errors.New("boom")))
}

func TestIsLLM(t *testing.T) {
	err := fmt.Errorf("%w: throttled", ErrLLM)
	require.True(t, IsLLM(err))
	require.False(t, IsInvalid(err))
}
