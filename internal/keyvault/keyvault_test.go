package keyvault

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func testMasterKey() []byte {
	key := make([]byte, 32)
	for i := range key {
		key[i] = byte(i)
	}
	return key
}

func TestSealOpenRoundTrip(t *testing.T) {
	v, err := New(testMasterKey())
	require.NoError(t, err)

	plaintext := []byte("super-secret-private-key-bytes")
	ciphertext, err := v.Seal(plaintext)
	require.NoError(t, err)
	require.NotEmpty(t, ciphertext)

	opened, err := v.Open(ciphertext)
	require.NoError(t, err)
	require.True(t, bytes.Equal(plaintext, opened))
}

func TestOpenRejectsWrongKey(t *testing.T) {
	v1, err := New(testMasterKey())
	require.NoError(t, err)
	other := testMasterKey()
	other[0] ^= 0xFF
	v2, err := New(other)
	require.NoError(t, err)

	ciphertext, err := v1.Seal([]byte("payload"))
	require.NoError(t, err)

	_, err = v2.Open(ciphertext)
	require.ErrorIs(t, err, ErrCiphertext)
}

func TestNewRejectsBadKeySize(t *testing.T) {
	_, err := New([]byte("too-short"))
	require.ErrorIs(t, err, ErrMasterKeySize)
}
