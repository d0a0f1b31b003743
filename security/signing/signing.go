// Package signing implements Ed25519 signing and verification of
// agent manifests.
//
// crypto/ed25519 is used directly rather than a third-party signing
// library: no library anywhere in the example pack wraps Ed25519
// signing (filippo.io/edwards25519 is a low-level curve-arithmetic
// dependency of other packages' TLS/JWT stacks, not a signing API),
// and the stdlib package is the idiomatic choice the wider Go
// ecosystem reaches for here — see DESIGN.md.
package signing

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// SignedManifest is the envelope produced by Sign: the manifest text,
// its content hash, the signature over that hash's hex bytes, the
// signer's public key, and a human-readable signer id.
type SignedManifest struct {
	Manifest       string `json:"manifest"`
	ContentHash    string `json:"content_hash"`
	Signature      []byte `json:"signature"`
	SignerPublicKey []byte `json:"signer_public_key"`
	SignerID       string `json:"signer_id"`
}

// HashManifest returns the hex-encoded SHA-256 digest of text.
func HashManifest(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Sign produces a SignedManifest. Note that the signature is computed
// over the hex-encoded hash's bytes, not over the raw manifest bytes
// and not over the raw 32-byte digest — this matches the format
// Verify expects and must not be changed independently of it.
func Sign(manifest string, signingKey ed25519.PrivateKey, signerID string) SignedManifest {
	contentHash := HashManifest(manifest)
	signature := ed25519.Sign(signingKey, []byte(contentHash))
	pub := signingKey.Public().(ed25519.PublicKey)

	return SignedManifest{
		Manifest:        manifest,
		ContentHash:     contentHash,
		Signature:       signature,
		SignerPublicKey: append([]byte(nil), pub...),
		SignerID:        signerID,
	}
}

// Verify checks that m.Manifest still hashes to m.ContentHash and that
// m.Signature is a valid Ed25519 signature over m.ContentHash's bytes
// under m.SignerPublicKey.
func Verify(m SignedManifest) error {
	recomputed := HashManifest(m.Manifest)
	if recomputed != m.ContentHash {
		return fmt.Errorf("content hash mismatch: expected %s but manifest hashes to %s", m.ContentHash, recomputed)
	}
	if len(m.SignerPublicKey) != ed25519.PublicKeySize {
		return fmt.Errorf("invalid public key length (expected %d bytes)", ed25519.PublicKeySize)
	}
	if len(m.Signature) != ed25519.SignatureSize {
		return fmt.Errorf("invalid signature length (expected %d bytes)", ed25519.SignatureSize)
	}
	if !ed25519.Verify(ed25519.PublicKey(m.SignerPublicKey), []byte(m.ContentHash), m.Signature) {
		return fmt.Errorf("signature verification failed")
	}
	return nil
}
