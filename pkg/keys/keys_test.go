package keys

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveKeyDefault(t *testing.T) {
	Reset()
	defer Reset()

	k := SaveKey()
	require.Len(t, k, 32)
	assert.Equal(t, byte(0xde), k[0])
	assert.Equal(t, byte(0x5d), k[31])
}

func TestLoadOverridesSaveKey(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "keys.txt")
	content := "# comment\n\n" +
		"save_key = 000102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f\n" +
		"broken = zz\n" +
		"no separator\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	require.NoError(t, Load(path))

	k := SaveKey()
	require.Len(t, k, 32)
	assert.Equal(t, byte(0x00), k[0])
	assert.Equal(t, byte(0x1f), k[31])
	assert.Nil(t, Get("broken"))
}

func TestGetReturnsCopy(t *testing.T) {
	Reset()
	defer Reset()

	Set("x", []byte{1, 2, 3})
	k := Get("x")
	k[0] = 9
	assert.Equal(t, []byte{1, 2, 3}, Get("x"))
}

func TestLoadDefaultFromEnv(t *testing.T) {
	Reset()
	defer Reset()

	path := filepath.Join(t.TempDir(), "custom.keys")
	require.NoError(t, os.WriteFile(path, []byte("other = ff\n"), 0o644))
	t.Setenv(EnvKeysFile, path)

	require.NoError(t, LoadDefault())
	assert.Equal(t, []byte{0xff}, Get("other"))
}
