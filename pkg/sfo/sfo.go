// Package sfo reads PARAM.SFO property lists that accompany console saves.
package sfo

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/go-restruct/restruct"
)

// ErrFormat is returned for buffers that are not a valid property list.
var ErrFormat = errors.New("invalid SFO")

// Magic is the four byte signature at the start of every property list.
var Magic = [4]byte{0x00, 0x50, 0x53, 0x46}

// Value formats.
const (
	FormatUTF8Special uint16 = 0x0004
	FormatUTF8        uint16 = 0x0204
	FormatInteger     uint16 = 0x0404
)

const (
	headerSize = 20
	entrySize  = 16
)

// Header is the fixed little-endian property list header.
type Header struct {
	Magic           [4]byte
	Version         uint32
	KeyTableOffset  uint32
	DataTableOffset uint32
	EntryCount      uint32
}

// IndexEntry describes one key/value pair.
type IndexEntry struct {
	KeyOffset  uint16
	Format     uint16
	Size       uint32
	MaxSize    uint32
	DataOffset uint32
}

// Entry is a resolved key/value pair. Value holds the first Size bytes of the
// stored value.
type Entry struct {
	Key    string
	Format uint16
	Value  []byte
}

// String renders text values without their terminator and integers in decimal.
func (e Entry) String() string {
	switch e.Format {
	case FormatInteger:
		if len(e.Value) >= 4 {
			return strconv.FormatUint(uint64(binary.LittleEndian.Uint32(e.Value)), 10)
		}
	case FormatUTF8:
		return string(bytes.TrimRight(e.Value, "\x00"))
	}
	return string(e.Value)
}

// File is a decoded property list.
type File struct {
	Header  Header
	Entries []Entry
}

// Lookup returns the entry stored under key.
func (f *File) Lookup(key string) (Entry, bool) {
	if f == nil {
		return Entry{}, false
	}
	for _, e := range f.Entries {
		if e.Key == key {
			return e, true
		}
	}
	return Entry{}, false
}

// Read decodes a property list. All offsets are relative to the start of data.
func Read(data []byte) (*File, error) {
	if len(data) < headerSize {
		return nil, fmt.Errorf("%w: %d byte header truncated", ErrFormat, len(data))
	}

	var f File
	if err := restruct.Unpack(data[:headerSize], binary.LittleEndian, &f.Header); err != nil {
		return nil, fmt.Errorf("%w: header: %v", ErrFormat, err)
	}
	if f.Header.Magic != Magic {
		return nil, fmt.Errorf("%w: bad magic %x", ErrFormat, f.Header.Magic)
	}

	end := uint64(headerSize) + uint64(f.Header.EntryCount)*entrySize
	if end > uint64(len(data)) {
		return nil, fmt.Errorf("%w: %d entries exceed %d byte buffer", ErrFormat, f.Header.EntryCount, len(data))
	}

	index := make([]IndexEntry, f.Header.EntryCount)
	for i := range index {
		off := headerSize + i*entrySize
		if err := restruct.Unpack(data[off:off+entrySize], binary.LittleEndian, &index[i]); err != nil {
			return nil, fmt.Errorf("%w: entry %d: %v", ErrFormat, i, err)
		}
	}

	f.Entries = make([]Entry, 0, len(index))
	for i, ie := range index {
		if ie.MaxSize < ie.Size {
			return nil, fmt.Errorf("%w: entry %d size %d exceeds max size %d", ErrFormat, i, ie.Size, ie.MaxSize)
		}

		key, err := cString(data, uint64(f.Header.KeyTableOffset)+uint64(ie.KeyOffset))
		if err != nil {
			return nil, fmt.Errorf("%w: entry %d key: %v", ErrFormat, i, err)
		}

		start := uint64(f.Header.DataTableOffset) + uint64(ie.DataOffset)
		if start+uint64(ie.Size) > uint64(len(data)) {
			return nil, fmt.Errorf("%w: entry %q value out of bounds", ErrFormat, key)
		}

		value := make([]byte, ie.Size)
		copy(value, data[start:start+uint64(ie.Size)])

		f.Entries = append(f.Entries, Entry{Key: key, Format: ie.Format, Value: value})
	}

	return &f, nil
}

// ReadFile reads and decodes a property list from disk.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Read(data)
}

// Build lays out entries as a property list. Values are stored with their
// max size rounded up to a multiple of four.
func Build(entries []Entry) ([]byte, error) {
	var keyTable, dataTable bytes.Buffer
	index := make([]IndexEntry, len(entries))

	for i, e := range entries {
		maxSize := (len(e.Value) + 3) &^ 3
		index[i] = IndexEntry{
			KeyOffset:  uint16(keyTable.Len()),
			Format:     e.Format,
			Size:       uint32(len(e.Value)),
			MaxSize:    uint32(maxSize),
			DataOffset: uint32(dataTable.Len()),
		}
		keyTable.WriteString(e.Key)
		keyTable.WriteByte(0)
		dataTable.Write(e.Value)
		dataTable.Write(make([]byte, maxSize-len(e.Value)))
	}
	for keyTable.Len()%4 != 0 {
		keyTable.WriteByte(0)
	}

	keyStart := headerSize + len(entries)*entrySize
	h := Header{
		Magic:           Magic,
		Version:         0x101,
		KeyTableOffset:  uint32(keyStart),
		DataTableOffset: uint32(keyStart + keyTable.Len()),
		EntryCount:      uint32(len(entries)),
	}

	out, err := restruct.Pack(binary.LittleEndian, &h)
	if err != nil {
		return nil, err
	}
	for i := range index {
		b, err := restruct.Pack(binary.LittleEndian, &index[i])
		if err != nil {
			return nil, err
		}
		out = append(out, b...)
	}
	out = append(out, keyTable.Bytes()...)
	return append(out, dataTable.Bytes()...), nil
}

func cString(data []byte, offset uint64) (string, error) {
	if offset >= uint64(len(data)) {
		return "", fmt.Errorf("offset 0x%x out of bounds", offset)
	}
	rest := data[offset:]
	end := bytes.IndexByte(rest, 0)
	if end < 0 {
		return "", fmt.Errorf("unterminated string at 0x%x", offset)
	}
	return string(rest[:end]), nil
}
