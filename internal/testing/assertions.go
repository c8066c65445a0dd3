package testing

import (
	"testing"

	"github.com/stretchr/testify/require"
)

// RequireBalance asserts that an account has the expected XRP balance in drops.
func RequireBalance(t *testing.T, env *TestEnv, acc *Account, expected uint64) {
	t.Helper()
	actual := env.Balance(acc)
	require.Equal(t, expected, actual,
		"Account %s balance mismatch: expected %d drops, got %d drops",
		acc.Name, expected, actual)
}

// RequireOwnerCount asserts the number of ledger objects an account owns.
func RequireOwnerCount(t *testing.T, env *TestEnv, acc *Account, expected uint32) {
	t.Helper()
	require.Equal(t, expected, env.OwnerCount(acc),
		"Account %s owner count mismatch", acc.Name)
}

// RequireEscrowExists asserts that the escrow (owner, seq) is on ledger.
func RequireEscrowExists(t *testing.T, env *TestEnv, owner *Account, seq uint32) {
	t.Helper()
	require.True(t, env.EscrowExists(owner, seq),
		"Expected escrow %s:%d to exist", owner.Name, seq)
}

// RequireEscrowGone asserts that the escrow (owner, seq) is not on ledger.
func RequireEscrowGone(t *testing.T, env *TestEnv, owner *Account, seq uint32) {
	t.Helper()
	require.False(t, env.EscrowExists(owner, seq),
		"Expected escrow %s:%d to be gone", owner.Name, seq)
}

// RequireTxResult asserts the validated engine result of a transaction.
func RequireTxResult(t *testing.T, env *TestEnv, hash, expected string) {
	t.Helper()
	actual, ok := env.TxResult(hash)
	require.True(t, ok, "Transaction %s is not in a validated ledger", hash)
	require.Equal(t, expected, actual, "Transaction %s result mismatch", hash)
}
