package save

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/go-restruct/restruct"
)

// Format selects one of the two binary encodings of a Header.
type Format int

const (
	// FormatPC is the little-endian record stored in PC containers.
	FormatPC Format = iota + 1
	// FormatConsole is the big-endian record of console game data version 0x2D000000.
	FormatConsole
)

// Encoded sizes of the header record.
const (
	PCHeaderSize      = 0x190
	ConsoleHeaderSize = 0x44
)

// Field budgets of the PC encoding.
const (
	NameSize        = 64
	DescriptionSize = 256
	// ConsoleNameSize is the width of the console's game-internal name fields.
	ConsoleNameSize = 24
)

// LangUnset marks a language id that has no console counterpart.
const LangUnset = 0xFF

func (f Format) String() string {
	switch f {
	case FormatPC:
		return "pc"
	case FormatConsole:
		return "console"
	}
	return fmt.Sprintf("Format(%d)", int(f))
}

// Size returns the encoded size of a header in this format.
func (f Format) Size() int {
	switch f {
	case FormatPC:
		return PCHeaderSize
	case FormatConsole:
		return ConsoleHeaderSize
	}
	return 0
}

func (f Format) order() binary.ByteOrder {
	if f == FormatConsole {
		return binary.BigEndian
	}
	return binary.LittleEndian
}

// Header is the save metadata shown in the load menu.
type Header struct {
	Playtime     uint32
	Day          uint16
	Time         uint8
	Playthrough  uint8
	Difficulty   uint8
	Level        uint8
	Clear        uint8
	VersionMajor uint8
	VersionMinor uint8
	Lang0        uint8
	Lang1        uint8
	LastName     []byte
	FirstName    []byte
	Description  []byte
}

type pcRecord struct {
	Playtime     uint32
	Day          uint16
	Time         uint8
	Playthrough  uint8
	Difficulty   uint8
	Level        uint8
	Padding      uint8
	Clear        uint8
	VersionMajor uint8
	VersionMinor uint8
	Lang0        uint8
	Lang1        uint8
	LastName     [NameSize]byte
	FirstName    [NameSize]byte
	Description  [DescriptionSize]byte
}

type consoleRecord struct {
	Reserved0    [2]byte
	Day          uint16
	Time         uint16
	Reserved1    [2]byte
	Playtime     uint32
	Level        uint8
	Difficulty   uint8
	Playthrough  uint8
	Clear        uint8
	LastName     [ConsoleNameSize]byte
	FirstName    [ConsoleNameSize]byte
	VersionMajor uint8
	VersionMinor uint8
	Reserved2    [2]byte
}

// Encode serializes h. Byte strings are truncated to their field budget and
// right padded with zeros.
func (h *Header) Encode(f Format) ([]byte, error) {
	var v interface{}

	switch f {
	case FormatPC:
		r := pcRecord{
			Playtime:     h.Playtime,
			Day:          h.Day,
			Time:         h.Time,
			Playthrough:  h.Playthrough,
			Difficulty:   h.Difficulty,
			Level:        h.Level,
			Clear:        h.Clear,
			VersionMajor: h.VersionMajor,
			VersionMinor: h.VersionMinor,
			Lang0:        h.Lang0,
			Lang1:        h.Lang1,
		}
		copy(r.LastName[:], h.LastName)
		copy(r.FirstName[:], h.FirstName)
		copy(r.Description[:], h.Description)
		v = &r
	case FormatConsole:
		r := consoleRecord{
			Day:          h.Day,
			Time:         uint16(h.Time),
			Playtime:     h.Playtime,
			Level:        h.Level,
			Difficulty:   h.Difficulty,
			Playthrough:  h.Playthrough,
			Clear:        h.Clear,
			VersionMajor: h.VersionMajor,
			VersionMinor: h.VersionMinor,
		}
		copy(r.LastName[:], h.LastName)
		copy(r.FirstName[:], h.FirstName)
		v = &r
	default:
		return nil, fmt.Errorf("encode header: unknown %v", f)
	}

	return restruct.Pack(f.order(), v)
}

// DecodeHeader parses a header record. PC byte strings lose their zero
// padding; console names are fixed fields and are kept verbatim. The console
// time of day is narrowed to a byte.
func DecodeHeader(data []byte, f Format) (*Header, error) {
	if f.Size() == 0 {
		return nil, fmt.Errorf("decode header: unknown %v", f)
	}
	if len(data) < f.Size() {
		return nil, fmt.Errorf("%w: %v header needs 0x%x bytes, have 0x%x", ErrFormat, f, f.Size(), len(data))
	}
	data = data[:f.Size()]

	switch f {
	case FormatPC:
		var r pcRecord
		if err := restruct.Unpack(data, f.order(), &r); err != nil {
			return nil, fmt.Errorf("%w: pc header: %v", ErrFormat, err)
		}
		return &Header{
			Playtime:     r.Playtime,
			Day:          r.Day,
			Time:         r.Time,
			Playthrough:  r.Playthrough,
			Difficulty:   r.Difficulty,
			Level:        r.Level,
			Clear:        r.Clear,
			VersionMajor: r.VersionMajor,
			VersionMinor: r.VersionMinor,
			Lang0:        r.Lang0,
			Lang1:        r.Lang1,
			LastName:     TrimZero(r.LastName[:]),
			FirstName:    TrimZero(r.FirstName[:]),
			Description:  TrimZero(r.Description[:]),
		}, nil
	default:
		var r consoleRecord
		if err := restruct.Unpack(data, f.order(), &r); err != nil {
			return nil, fmt.Errorf("%w: console header: %v", ErrFormat, err)
		}
		return &Header{
			Playtime:     r.Playtime,
			Day:          r.Day,
			Time:         uint8(r.Time),
			Playthrough:  r.Playthrough,
			Difficulty:   r.Difficulty,
			Level:        r.Level,
			Clear:        r.Clear,
			VersionMajor: r.VersionMajor,
			VersionMinor: r.VersionMinor,
			LastName:     append([]byte(nil), r.LastName[:]...),
			FirstName:    append([]byte(nil), r.FirstName[:]...),
		}, nil
	}
}

// TrimZero returns a copy of b without trailing zero bytes.
func TrimZero(b []byte) []byte {
	return append([]byte(nil), bytes.TrimRight(b, "\x00")...)
}
