package zlib

import (
	"bytes"
	stdzlib "compress/zlib"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompressRoundTrip(t *testing.T) {
	src := bytes.Repeat([]byte("persona save data "), 200)

	out, err := Compress(src, BestCompression)
	require.NoError(t, err)
	assert.Less(t, len(out), len(src))

	back, err := Decompress(out)
	require.NoError(t, err)
	assert.Equal(t, src, back)
}

func TestCompressIsDeterministic(t *testing.T) {
	src := bytes.Repeat([]byte{1, 2, 3, 4, 5}, 1000)

	a, err := Compress(src, BestCompression)
	require.NoError(t, err)
	b, err := Compress(src, BestCompression)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

// Streams written by other zlib implementations with default settings must
// still inflate.
func TestDecompressForeignStream(t *testing.T) {
	src := []byte("written with the default level")

	var buf bytes.Buffer
	w := stdzlib.NewWriter(&buf)
	_, err := w.Write(src)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	back, err := Decompress(buf.Bytes())
	require.NoError(t, err)
	assert.Equal(t, src, back)

	r, err := stdzlib.NewReader(bytes.NewReader(mustCompress(t, src)))
	require.NoError(t, err)
	ours, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, src, ours)
}

func TestDecompressCorrupt(t *testing.T) {
	_, err := Decompress([]byte{0x78, 0xda, 0xff, 0xff})
	assert.Error(t, err)

	_, err = Decompress(nil)
	assert.Error(t, err)
}

func TestCompressBadLevel(t *testing.T) {
	_, err := Compress([]byte("x"), 42)
	assert.Error(t, err)
}

func mustCompress(t *testing.T, src []byte) []byte {
	t.Helper()
	out, err := Compress(src, BestCompression)
	require.NoError(t, err)
	return out
}
