package crypto

import (
	"bytes"
	"encoding/hex"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	require.NoError(t, err)
	return b
}

// NIST SP 800-38A F.2.5 CBC-AES256.Encrypt, first block.
func TestCBCKnownAnswer(t *testing.T) {
	key := mustHex(t, "603deb1015ca71be2b73aef0857d77811f352c073b6108d72d9810a30914dff4")
	iv := mustHex(t, "000102030405060708090a0b0c0d0e0f")
	plain := mustHex(t, "6bc1bee22e409f96e93d7e117393172a")
	want := mustHex(t, "f58c4c04d6e5f1ba779eabfb5f7bfbd6")

	got, err := CBCEncrypt(plain, key, iv)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	back, err := CBCDecrypt(got, key, iv)
	require.NoError(t, err)
	assert.Equal(t, plain, back)
}

func TestCBCRejectsUnaligned(t *testing.T) {
	key := make([]byte, 32)
	iv := make([]byte, IVSize)

	_, err := CBCEncrypt(make([]byte, 17), key, iv)
	assert.ErrorIs(t, err, ErrNotAligned)

	_, err = CBCDecrypt(make([]byte, 15), key, iv)
	assert.ErrorIs(t, err, ErrNotAligned)
}

func TestCBCRejectsBadKey(t *testing.T) {
	_, err := CBCEncrypt(make([]byte, 16), make([]byte, 16), make([]byte, IVSize))
	assert.Error(t, err)
}

func TestNewIV(t *testing.T) {
	iv, err := NewIV(bytes.NewReader(bytes.Repeat([]byte{7}, 32)))
	require.NoError(t, err)
	assert.Equal(t, bytes.Repeat([]byte{7}, IVSize), iv[:])

	_, err = NewIV(bytes.NewReader([]byte{1, 2}))
	assert.Error(t, err)

	a, err := NewIV(nil)
	require.NoError(t, err)
	b, err := NewIV(nil)
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}
