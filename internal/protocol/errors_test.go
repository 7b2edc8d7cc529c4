package protocol

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestError_IsMatchesKind(t *testing.T) {
	err := Fail(KindZeroAmount, "deposit")

	require.True(t, errors.Is(err, ErrZeroAmount))
	require.False(t, errors.Is(err, ErrInvalidAddress))
	assert.Equal(t, "deposit: zero_amount", err.Error())
}

func TestError_WrapKeepsCause(t *testing.T) {
	cause := Fail(KindInsufficientBalance, "transfer")
	err := Wrap(KindExternalCallFailed, "deposit", cause)

	require.True(t, errors.Is(err, ErrExternalCallFailed))
	require.True(t, errors.Is(err, ErrInsufficientBalance))
	assert.Equal(t, KindExternalCallFailed, KindOf(err))
}

func TestError_ThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("genesis: %w", Fail(KindUnauthorized, "setTeller"))

	require.True(t, errors.Is(err, ErrUnauthorized))
	assert.Equal(t, KindUnauthorized, KindOf(err))
	assert.Equal(t, Kind(""), KindOf(errors.New("plain")))
}

func TestError_Failf(t *testing.T) {
	err := Failf(KindExternalCallFailed, "managerCall", "no contract at %s", "0x01")
	assert.Equal(t, "managerCall: external_call_failed: no contract at 0x01", err.Error())
}
