package encryption

import (
	"testing"

	"github.com/stretchr/testify/require"
)

const testSystemKey = "0123456789abcdef0123456789abcdef"

func TestEscrowSealResolve(t *testing.T) {
	escrow, err := NewPasswordEscrow(testSystemKey)
	require.NoError(t, err)

	env, err := escrow.Seal("dean-password-123")
	require.NoError(t, err)

	resolved, err := escrow.Resolve(env)
	require.NoError(t, err)
	require.Equal(t, "dean-password-123", resolved)
}

func TestEscrowShortSystemKey(t *testing.T) {
	_, err := NewPasswordEscrow("too-short")
	require.ErrorIs(t, err, ErrSystemKeyMissing)

	_, err = NewPasswordEscrow("")
	require.ErrorIs(t, err, ErrSystemKeyMissing)
}

func TestEscrowSealVariesPerCall(t *testing.T) {
	escrow, err := NewPasswordEscrow(testSystemKey)
	require.NoError(t, err)

	first, err := escrow.Seal("same-password")
	require.NoError(t, err)
	second, err := escrow.Seal("same-password")
	require.NoError(t, err)
	require.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestEscrowVerify(t *testing.T) {
	escrow, err := NewPasswordEscrow(testSystemKey)
	require.NoError(t, err)

	env, err := escrow.Seal("dean-password-123")
	require.NoError(t, err)

	require.True(t, escrow.Verify("dean-password-123", env))
	require.False(t, escrow.Verify("wrong-password", env))
	require.False(t, escrow.Verify("dean-password-123", nil))

	// A corrupted envelope is a mismatch, not an error.
	env.AuthTag[0] ^= 0xff
	require.False(t, escrow.Verify("dean-password-123", env))
}

func TestEscrowResolveWithDifferentSystemKey(t *testing.T) {
	escrow, err := NewPasswordEscrow(testSystemKey)
	require.NoError(t, err)
	env, err := escrow.Seal("dean-password-123")
	require.NoError(t, err)

	other, err := NewPasswordEscrow("ffffffffffffffffffffffffffffffff")
	require.NoError(t, err)
	_, err = other.Resolve(env)
	require.ErrorIs(t, err, ErrAuthentication)
}
