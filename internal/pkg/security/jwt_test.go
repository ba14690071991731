package security

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionToken_RoundTrip(t *testing.T) {
	token, err := GenerateToken("s-1", "alice")
	require.NoError(t, err)

	claims, err := ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, "s-1", claims.SessionID)
	assert.Equal(t, "alice", claims.UserID)
}

func TestSessionToken_RejectsTampering(t *testing.T) {
	token, err := GenerateToken("s-1", "alice")
	require.NoError(t, err)

	_, err = ValidateToken(token + "x")
	require.Error(t, err)
	_, err = ValidateToken("not-a-token")
	require.Error(t, err)
}

func TestState_NotUsableAsSessionToken(t *testing.T) {
	state, err := GenerateState()
	require.NoError(t, err)
	require.NoError(t, ValidateState(state))

	_, err = ValidateToken(state)
	require.Error(t, err)

	token, err := GenerateToken("s-1", "alice")
	require.NoError(t, err)
	require.Error(t, ValidateState(token))
}
