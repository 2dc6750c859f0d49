// Package gamedata reads console save blobs: a version tag, a header record and
// a table of big-endian (id, size) blocks closed by a terminator.
package gamedata

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-restruct/restruct"

	"github.com/zarroboogs/fiber-saveutil/pkg/save"
)

// Version tags, stored little-endian at offset 0.
const (
	VersionGameData   uint32 = 0x2D000000
	VersionSystemData uint32 = 0x00000002
)

// Block ids.
const (
	BlockPlayerName uint32 = 0x1001C
	BlockTerminator uint32 = 0x2000
)

const (
	// PlayerNameSize is the part of a player-name block that is decoded.
	PlayerNameSize = 198

	versionSize    = 4
	descriptorSize = 8
	terminatorSize = 1
)

var (
	ErrFormat             = errors.New("invalid console save")
	ErrUnsupportedVersion = errors.New("unsupported console save version")
)

// Kind is the coarse classification of a console save file.
type Kind int

const (
	KindUnrecognized Kind = iota
	KindGameData
	KindSystemData
)

func (k Kind) String() string {
	switch k {
	case KindGameData:
		return "game data"
	case KindSystemData:
		return "system data"
	}
	return "unrecognized"
}

// Classify inspects the version tag of data.
func Classify(data []byte) Kind {
	if len(data) < versionSize {
		return KindUnrecognized
	}
	switch binary.LittleEndian.Uint32(data) {
	case VersionGameData:
		return KindGameData
	case VersionSystemData:
		return KindSystemData
	}
	return KindUnrecognized
}

// Descriptor precedes every block.
type Descriptor struct {
	ID   uint32
	Size uint32
}

// Block is one entry of the block table. Size is the declared size; it only
// differs from len(Data) for the terminator, which always carries one byte.
type Block struct {
	ID   uint32
	Size uint32
	Data []byte
}

// PlayerName is the decoded prefix of the player-name block. The game-internal
// fields use the game's own character table.
type PlayerName struct {
	FullNameUTF8  [56]byte
	LastName      [20]byte
	FirstName     [20]byte
	FullName      [40]byte
	GroupName     [25]byte
	GroupNameUTF8 [37]byte
}

// Encode packs p into a block.
func (p *PlayerName) Encode() (Block, error) {
	data, err := restruct.Pack(binary.BigEndian, p)
	if err != nil {
		return Block{}, err
	}
	return Block{ID: BlockPlayerName, Size: uint32(len(data)), Data: data}, nil
}

// GameData is a parsed console game data blob.
type GameData struct {
	Version uint32
	Header  *save.Header
	// Blocks are kept in file order, terminator last.
	Blocks []Block
}

// Read parses a game data blob. System data has no header or block table and
// is reported as ErrUnsupportedVersion like any other unknown tag.
func Read(data []byte) (*GameData, error) {
	if len(data) < versionSize {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the version tag", ErrFormat, len(data))
	}
	gd := &GameData{Version: binary.LittleEndian.Uint32(data)}
	if gd.Version != VersionGameData {
		return nil, fmt.Errorf("%w: 0x%08x", ErrUnsupportedVersion, gd.Version)
	}

	pos := versionSize
	if len(data) < pos+save.ConsoleHeaderSize {
		return nil, fmt.Errorf("%w: truncated header", ErrFormat)
	}
	h, err := save.DecodeHeader(data[pos:], save.FormatConsole)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	gd.Header = h
	pos += save.ConsoleHeaderSize

	for {
		if pos+descriptorSize > len(data) {
			return nil, fmt.Errorf("%w: block table ends at 0x%x without a terminator", ErrFormat, pos)
		}
		var d Descriptor
		if err := restruct.Unpack(data[pos:pos+descriptorSize], binary.BigEndian, &d); err != nil {
			return nil, fmt.Errorf("%w: block descriptor at 0x%x: %v", ErrFormat, pos, err)
		}
		pos += descriptorSize

		if d.ID == BlockTerminator {
			if pos+terminatorSize > len(data) {
				return nil, fmt.Errorf("%w: missing terminator byte", ErrFormat)
			}
			gd.Blocks = append(gd.Blocks, Block{
				ID:   d.ID,
				Size: d.Size,
				Data: append([]byte(nil), data[pos:pos+terminatorSize]...),
			})
			return gd, nil
		}

		end := pos + int(d.Size)
		if end < pos || end > len(data) {
			return nil, fmt.Errorf("%w: block 0x%x of 0x%x bytes at 0x%x runs past the end", ErrFormat, d.ID, d.Size, pos)
		}
		gd.Blocks = append(gd.Blocks, Block{
			ID:   d.ID,
			Size: d.Size,
			Data: append([]byte(nil), data[pos:end]...),
		})
		pos = end
	}
}

// Block returns the last block with the given id.
func (gd *GameData) Block(id uint32) (Block, bool) {
	for i := len(gd.Blocks) - 1; i >= 0; i-- {
		if gd.Blocks[i].ID == id {
			return gd.Blocks[i], true
		}
	}
	return Block{}, false
}

// PlayerName decodes the player-name block. A block shorter than
// PlayerNameSize is kept in Blocks but reports false here.
func (gd *GameData) PlayerName() (*PlayerName, bool) {
	b, ok := gd.Block(BlockPlayerName)
	if !ok || len(b.Data) < PlayerNameSize {
		return nil, false
	}
	var p PlayerName
	if err := restruct.Unpack(b.Data[:PlayerNameSize], binary.BigEndian, &p); err != nil {
		return nil, false
	}
	return &p, true
}

// Encode serializes gd back into its console form. Regular blocks are written
// with their data length; the terminator keeps its declared size.
func (gd *GameData) Encode() ([]byte, error) {
	if gd.Header == nil {
		return nil, fmt.Errorf("%w: game data without a header", ErrFormat)
	}

	var buf bytes.Buffer
	if err := binary.Write(&buf, binary.LittleEndian, gd.Version); err != nil {
		return nil, err
	}
	h, err := gd.Header.Encode(save.FormatConsole)
	if err != nil {
		return nil, err
	}
	buf.Write(h)

	terminated := false
	for _, b := range gd.Blocks {
		d := Descriptor{ID: b.ID, Size: uint32(len(b.Data))}
		if b.ID == BlockTerminator {
			d.Size = b.Size
		}
		if err := binary.Write(&buf, binary.BigEndian, d); err != nil {
			return nil, err
		}
		if b.ID == BlockTerminator {
			var last [terminatorSize]byte
			copy(last[:], b.Data)
			buf.Write(last[:])
			terminated = true
			break
		}
		buf.Write(b.Data)
	}
	if !terminated {
		if err := binary.Write(&buf, binary.BigEndian, Descriptor{ID: BlockTerminator}); err != nil {
			return nil, err
		}
		buf.WriteByte(0)
	}
	return buf.Bytes(), nil
}
