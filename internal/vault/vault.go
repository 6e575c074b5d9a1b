package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"time"

	"tradegateway/internal/shared"

	"golang.org/x/crypto/pbkdf2"
)

const (
	// Algorithm tag recorded on every blob.
	Algorithm = "AES-256-GCM"

	keyBytes   = 32
	ivBytes    = 12
	kdfRounds  = 100_000
)

// Named failure kinds. Every vault error carries the CRYPTO_ERROR code and
// wraps one of these, so callers can branch with errors.Is.
var (
	ErrKeyUnavailable = errors.New("vault: master key unavailable")
	ErrCryptoFailure  = errors.New("vault: crypto failure")
	ErrTampered       = errors.New("vault: ciphertext authentication failed")
	ErrMalformed      = errors.New("vault: malformed blob")
)

// EncryptedBlob is the at-rest representation of an encrypted secret.
// Ciphertext carries the 16-byte GCM tag; IV is always 12 bytes.
type EncryptedBlob struct {
	Ciphertext string    `json:"ciphertext"` // base64
	IV         string    `json:"iv"`         // base64, 12 bytes
	Algorithm  string    `json:"algorithm"`
	KeySize    int       `json:"key_size"`
	CreatedAt  time.Time `json:"created_at"`
}

// Empty reports whether the blob holds no ciphertext.
func (b EncryptedBlob) Empty() bool {
	return b.Ciphertext == "" && b.IV == ""
}

// Vault performs authenticated encryption of broker secrets.
type Vault struct {
	aead cipher.AEAD
}

// New derives a 256-bit key from the configured master secret and builds the
// AEAD. The secret is stretched with PBKDF2-SHA256 so deployments can use a
// passphrase rather than raw key bytes.
func New(masterSecret, salt string) (*Vault, error) {
	if masterSecret == "" {
		return nil, shared.ErrCrypto.WithError(ErrKeyUnavailable)
	}

	key := pbkdf2.Key([]byte(masterSecret), []byte(salt), kdfRounds, keyBytes, sha256.New)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, shared.ErrCrypto.WithError(fmt.Errorf("%w: %w", ErrCryptoFailure, err))
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, shared.ErrCrypto.WithError(fmt.Errorf("%w: %w", ErrCryptoFailure, err))
	}

	zero(key)

	return &Vault{aead: aead}, nil
}

// Encrypt seals plaintext under a fresh 96-bit IV. The same nonce is never
// reused with the key: every call draws from crypto/rand.
func (v *Vault) Encrypt(plaintext []byte) (EncryptedBlob, error) {
	if v == nil || v.aead == nil {
		return EncryptedBlob{}, shared.ErrCrypto.WithError(ErrKeyUnavailable)
	}

	iv := make([]byte, ivBytes)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return EncryptedBlob{}, shared.ErrCrypto.WithError(fmt.Errorf("%w: %w", ErrCryptoFailure, err))
	}

	ciphertext := v.aead.Seal(nil, iv, plaintext, nil)

	return EncryptedBlob{
		Ciphertext: base64.StdEncoding.EncodeToString(ciphertext),
		IV:         base64.StdEncoding.EncodeToString(iv),
		Algorithm:  Algorithm,
		KeySize:    keyBytes * 8,
		CreatedAt:  time.Now().UTC(),
	}, nil
}

// EncryptString is a convenience wrapper for token material held as strings.
func (v *Vault) EncryptString(plaintext string) (EncryptedBlob, error) {
	buf := []byte(plaintext)
	blob, err := v.Encrypt(buf)
	zero(buf)
	return blob, err
}

// Decrypt opens a blob. GCM's tag check is constant time; a failed check
// surfaces as a tamper error, a structural problem as malformed.
func (v *Vault) Decrypt(blob EncryptedBlob) ([]byte, error) {
	if v == nil || v.aead == nil {
		return nil, shared.ErrCrypto.WithError(ErrKeyUnavailable)
	}

	iv, err := base64.StdEncoding.DecodeString(blob.IV)
	if err != nil {
		return nil, shared.ErrCrypto.WithError(fmt.Errorf("%w: iv encoding", ErrMalformed))
	}
	if len(iv) != ivBytes {
		return nil, shared.ErrCrypto.WithError(fmt.Errorf("%w: iv must be 12 bytes", ErrMalformed))
	}

	ciphertext, err := base64.StdEncoding.DecodeString(blob.Ciphertext)
	if err != nil {
		return nil, shared.ErrCrypto.WithError(fmt.Errorf("%w: ciphertext encoding", ErrMalformed))
	}

	plaintext, err := v.aead.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, shared.ErrCrypto.WithError(ErrTampered)
	}

	return plaintext, nil
}

// DecryptString decrypts a blob into a string. Callers must treat the value
// as live only for the duration of the broker call.
func (v *Vault) DecryptString(blob EncryptedBlob) (string, error) {
	buf, err := v.Decrypt(blob)
	if err != nil {
		return "", err
	}
	s := string(buf)
	zero(buf)
	return s, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
