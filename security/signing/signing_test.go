package signing

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	pub, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	m := Sign("name = \"agent\"\ntools = [\"shell_exec\"]", priv, "test-signer")
	require.Equal(t, pub, ed25519.PublicKey(m.SignerPublicKey))
	require.NoError(t, Verify(m))
}

func TestVerifyDetectsManifestTamper(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	m := Sign("original", priv, "signer")
	m.Manifest = "tampered"

	err = Verify(m)
	require.Error(t, err)
	require.Contains(t, err.Error(), "content hash mismatch")
}

func TestVerifyDetectsSignatureTamper(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	m := Sign("original", priv, "signer")
	m.Signature[0] ^= 0xFF

	require.Error(t, Verify(m))
}

func TestVerifyDetectsPublicKeyTamper(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	m := Sign("original", priv, "signer")
	m.SignerPublicKey[0] ^= 0xFF

	err = Verify(m)
	require.Error(t, err)
	require.Contains(t, err.Error(), "signature verification failed")
}

func TestVerifyRejectsWrongLengthKeyOrSignature(t *testing.T) {
	_, priv, err := ed25519.GenerateKey(nil)
	require.NoError(t, err)

	m := Sign("original", priv, "signer")

	short := m
	short.SignerPublicKey = m.SignerPublicKey[:10]
	require.ErrorContains(t, Verify(short), "invalid public key length")

	shortSig := m
	shortSig.Signature = m.Signature[:10]
	require.ErrorContains(t, Verify(shortSig), "invalid signature length")
}
