package gamedata

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/zarroboogs/fiber-saveutil/pkg/save"
)

func consoleHeader() *save.Header {
	h := &save.Header{
		Playtime:     3600,
		Day:          12,
		Time:         2,
		Playthrough:  1,
		Difficulty:   3,
		Level:        27,
		Clear:        0,
		VersionMajor: 1,
		VersionMinor: 2,
		LastName:     make([]byte, save.ConsoleNameSize),
		FirstName:    make([]byte, save.ConsoleNameSize),
	}
	copy(h.LastName, "\x01\x02")
	copy(h.FirstName, "\x03\x04")
	return h
}

func playerName(full string) *PlayerName {
	var p PlayerName
	copy(p.FullNameUTF8[:], full)
	copy(p.GroupNameUTF8[:], "group")
	return &p
}

func sampleBlob(t *testing.T) []byte {
	t.Helper()
	name, err := playerName("Jon Doe").Encode()
	require.NoError(t, err)

	gd := &GameData{
		Version: VersionGameData,
		Header:  consoleHeader(),
		Blocks: []Block{
			{ID: 0x10001, Data: []byte{1, 2, 3}},
			name,
			{ID: 0x10020, Data: nil},
			{ID: BlockTerminator, Size: 0x40, Data: []byte{0x7F}},
		},
	}
	blob, err := gd.Encode()
	require.NoError(t, err)
	return blob
}

func TestClassify(t *testing.T) {
	assert.Equal(t, KindGameData, Classify([]byte{0, 0, 0, 0x2D, 9}))
	assert.Equal(t, KindSystemData, Classify([]byte{2, 0, 0, 0}))
	assert.Equal(t, KindUnrecognized, Classify([]byte("DATA")))
	assert.Equal(t, KindUnrecognized, Classify([]byte{0, 0}))
	assert.Equal(t, "game data", KindGameData.String())
	assert.Equal(t, "unrecognized", Kind(9).String())
}

func TestRead(t *testing.T) {
	blob := sampleBlob(t)

	gd, err := Read(blob)
	require.NoError(t, err)
	assert.Equal(t, VersionGameData, gd.Version)
	assert.Equal(t, consoleHeader(), gd.Header)

	ids := make([]uint32, 0, len(gd.Blocks))
	for _, b := range gd.Blocks {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []uint32{0x10001, BlockPlayerName, 0x10020, BlockTerminator}, ids)

	b, ok := gd.Block(0x10001)
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2, 3}, b.Data)

	term, ok := gd.Block(BlockTerminator)
	require.True(t, ok)
	assert.Equal(t, []byte{0x7F}, term.Data)
	assert.Equal(t, uint32(0x40), term.Size)

	p, ok := gd.PlayerName()
	require.True(t, ok)
	assert.Equal(t, []byte("Jon Doe"), bytes.TrimRight(p.FullNameUTF8[:], "\x00"))
	assert.Equal(t, []byte("group"), bytes.TrimRight(p.GroupNameUTF8[:], "\x00"))

	_, ok = gd.Block(0x99)
	assert.False(t, ok)

	// re-encoding reproduces the blob
	again, err := gd.Encode()
	require.NoError(t, err)
	assert.Equal(t, blob, again)
}

func TestReadLayout(t *testing.T) {
	blob := sampleBlob(t)

	assert.Equal(t, VersionGameData, binary.LittleEndian.Uint32(blob))
	pos := versionSize + save.ConsoleHeaderSize
	assert.Equal(t, uint32(0x10001), binary.BigEndian.Uint32(blob[pos:]))
	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(blob[pos+4:]))
	pos += descriptorSize + 3
	assert.Equal(t, BlockPlayerName, binary.BigEndian.Uint32(blob[pos:]))
	assert.Equal(t, uint32(PlayerNameSize), binary.BigEndian.Uint32(blob[pos+4:]))
	assert.Len(t, blob, pos+descriptorSize+PlayerNameSize+descriptorSize+descriptorSize+terminatorSize)
}

func TestReadIgnoresTrailingBytes(t *testing.T) {
	blob := append(sampleBlob(t), 0xEE, 0xEE, 0xEE)
	gd, err := Read(blob)
	require.NoError(t, err)
	term, _ := gd.Block(BlockTerminator)
	assert.Equal(t, []byte{0x7F}, term.Data)
}

func TestReadLastDuplicateWins(t *testing.T) {
	first, err := playerName("Ann Lee").Encode()
	require.NoError(t, err)
	second, err := playerName("Bo Kim").Encode()
	require.NoError(t, err)

	blob, err := (&GameData{
		Version: VersionGameData,
		Header:  consoleHeader(),
		Blocks:  []Block{first, second},
	}).Encode()
	require.NoError(t, err)

	gd, err := Read(blob)
	require.NoError(t, err)
	require.Len(t, gd.Blocks, 3, "terminator is appended by Encode")
	p, ok := gd.PlayerName()
	require.True(t, ok)
	assert.Equal(t, []byte("Bo Kim"), bytes.TrimRight(p.FullNameUTF8[:], "\x00"))
}

func TestReadWithoutPlayerName(t *testing.T) {
	blob, err := (&GameData{Version: VersionGameData, Header: consoleHeader()}).Encode()
	require.NoError(t, err)

	gd, err := Read(blob)
	require.NoError(t, err)
	_, ok := gd.PlayerName()
	assert.False(t, ok)
}

func TestReadErrors(t *testing.T) {
	blob := sampleBlob(t)
	headerEnd := versionSize + save.ConsoleHeaderSize

	oversized := append([]byte(nil), blob...)
	binary.BigEndian.PutUint32(oversized[headerEnd+4:], 0xFFFFFFF0)

	testCases := []struct {
		name string
		data []byte
		want error
	}{
		{"empty", nil, ErrFormat},
		{"system data", []byte{2, 0, 0, 0, 0, 0}, ErrUnsupportedVersion},
		{"unknown version", []byte("DATA...."), ErrUnsupportedVersion},
		{"truncated header", blob[:headerEnd-1], ErrFormat},
		{"no blocks", blob[:headerEnd], ErrFormat},
		{"truncated descriptor", blob[:headerEnd+5], ErrFormat},
		{"truncated block", blob[:headerEnd+descriptorSize+2], ErrFormat},
		{"missing terminator byte", blob[:len(blob)-1], ErrFormat},
		{"oversized block", oversized, ErrFormat},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Read(tc.data)
			assert.ErrorIs(t, err, tc.want)
		})
	}
}

func TestEncodeRequiresHeader(t *testing.T) {
	_, err := (&GameData{Version: VersionGameData}).Encode()
	assert.ErrorIs(t, err, ErrFormat)
}

func TestReadShortPlayerNameIsOpaque(t *testing.T) {
	blob, err := (&GameData{
		Version: VersionGameData,
		Header:  consoleHeader(),
		Blocks:  []Block{{ID: BlockPlayerName, Data: []byte("Jon Doe\x00")}},
	}).Encode()
	require.NoError(t, err)

	gd, err := Read(blob)
	require.NoError(t, err)

	b, ok := gd.Block(BlockPlayerName)
	require.True(t, ok)
	assert.Equal(t, []byte("Jon Doe\x00"), b.Data)

	_, ok = gd.PlayerName()
	assert.False(t, ok)
}
