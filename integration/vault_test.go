package integration

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestVaultSealThenUnlockRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	require.NoError(t, Seal(path, "correct horse battery staple", map[string]string{"API_KEY": "shh"}))

	v := NewVault(path)
	require.NoError(t, v.Unlock("correct horse battery staple"))

	val, ok := v.Resolve("API_KEY")
	require.True(t, ok)
	require.Equal(t, "shh", val)
}

func TestVaultUnlockWithWrongPassphraseFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vault.enc")
	require.NoError(t, Seal(path, "right-pass", map[string]string{"K": "V"}))

	v := NewVault(path)
	require.Error(t, v.Unlock("wrong-pass"))
}

func TestVaultMissingFileUnlocksEmpty(t *testing.T) {
	v := NewVault(filepath.Join(t.TempDir(), "missing.enc"))
	require.NoError(t, v.Unlock("anything"))
	_, ok := v.Resolve("K")
	require.False(t, ok)
}

func TestLockedVaultNeverResolves(t *testing.T) {
	v := NewVault(filepath.Join(t.TempDir(), "never-unlocked.enc"))
	_, ok := v.Resolve("K")
	require.False(t, ok)
}
