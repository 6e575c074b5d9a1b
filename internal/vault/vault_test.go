package vault

import (
	"encoding/base64"
	"errors"
	"testing"

	"tradegateway/internal/shared"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestVault(t *testing.T) *Vault {
	t.Helper()
	v, err := New("test-master-secret", "test-salt")
	require.NoError(t, err)
	return v
}

func TestNewRequiresMasterSecret(t *testing.T) {
	_, err := New("", "salt")
	require.Error(t, err)
	assert.True(t, shared.HasCode(err, shared.ErrCodeCrypto))
	assert.True(t, errors.Is(err, ErrKeyUnavailable))
}

func TestEncryptDecryptRoundTrip(t *testing.T) {
	v := newTestVault(t)

	plaintexts := []string{
		"a",
		"access-token-xyz",
		"a much longer refresh token with spaces and symbols !@#$%^&*()",
		string(make([]byte, 4096)),
	}

	for _, plaintext := range plaintexts {
		blob, err := v.EncryptString(plaintext)
		require.NoError(t, err)

		assert.Equal(t, Algorithm, blob.Algorithm)
		assert.Equal(t, 256, blob.KeySize)
		assert.False(t, blob.CreatedAt.IsZero())

		iv, err := base64.StdEncoding.DecodeString(blob.IV)
		require.NoError(t, err)
		assert.Len(t, iv, 12)

		decrypted, err := v.DecryptString(blob)
		require.NoError(t, err)
		assert.Equal(t, plaintext, decrypted)
	}
}

func TestEncryptUsesFreshIV(t *testing.T) {
	v := newTestVault(t)

	first, err := v.EncryptString("same plaintext")
	require.NoError(t, err)
	second, err := v.EncryptString("same plaintext")
	require.NoError(t, err)

	assert.NotEqual(t, first.IV, second.IV)
	assert.NotEqual(t, first.Ciphertext, second.Ciphertext)
}

func TestDecryptRejectsTamperedCiphertext(t *testing.T) {
	v := newTestVault(t)

	blob, err := v.EncryptString("secret-token")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(blob.Ciphertext)
	require.NoError(t, err)

	// Flip one bit in every byte position; no variant may decrypt.
	for i := range raw {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[i] ^= 0x01

		bad := blob
		bad.Ciphertext = base64.StdEncoding.EncodeToString(tampered)
		_, err := v.Decrypt(bad)
		require.Error(t, err, "bit flip at byte %d must not decrypt", i)
		assert.True(t, errors.Is(err, ErrTampered))
	}
}

func TestDecryptRejectsMalformedBlob(t *testing.T) {
	v := newTestVault(t)
	blob, err := v.EncryptString("secret")
	require.NoError(t, err)

	shortIV := blob
	shortIV.IV = base64.StdEncoding.EncodeToString([]byte("too-short"))
	_, err = v.Decrypt(shortIV)
	assert.True(t, shared.HasCode(err, shared.ErrCodeCrypto))
	assert.True(t, errors.Is(err, ErrMalformed))

	badEncoding := blob
	badEncoding.Ciphertext = "not base64!!!"
	_, err = v.Decrypt(badEncoding)
	assert.True(t, shared.HasCode(err, shared.ErrCodeCrypto))
	assert.True(t, errors.Is(err, ErrMalformed))
}

func TestDecryptRejectsWrongKey(t *testing.T) {
	v := newTestVault(t)
	other, err := New("different-master-secret", "test-salt")
	require.NoError(t, err)

	blob, err := v.EncryptString("secret")
	require.NoError(t, err)

	_, err = other.Decrypt(blob)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrTampered))
}
