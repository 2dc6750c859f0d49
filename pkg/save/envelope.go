package save

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// Magic is the signature at the start of every PC container.
	Magic = "DATA"

	EnvelopeSize = 0x20
	MetadataSize = 0x20
	// SectionsOffset is where the header section starts.
	SectionsOffset = EnvelopeSize + MetadataSize
	// SectionAlign is the alignment of each section and of the encrypted region.
	SectionAlign = 0x10

	// checksumStart is the first byte covered by the file checksum.
	checksumStart = 0x08
)

// Envelope flags.
const (
	FlagEncrypted uint32 = 1 << 31
)

// Metadata flags.
const (
	FlagHeaderCompressed  uint32 = 1 << 0
	FlagPayloadCompressed uint32 = 1 << 1

	// DefaultSaveFlags is the metadata flag word of freshly created containers.
	DefaultSaveFlags uint32 = 0x02110600
)

// Envelope is the unencrypted prefix of a container.
// Offset 0x00: Magic "DATA" (4 bytes)
// Offset 0x04: Checksum of bytes 0x08..EOF (4 bytes)
// Offset 0x08: Timestamp, unix seconds (4 bytes)
// Offset 0x0C: Flags (4 bytes)
// Offset 0x10: IV (16 bytes)
type Envelope struct {
	Magic     [4]byte
	Checksum  uint32
	Timestamp uint32
	Flags     uint32
	IV        [16]byte
}

// Metadata follows the envelope and is covered by encryption. Header sizes
// are absolute offsets of the header section's end.
type Metadata struct {
	HeaderSize            uint16
	HeaderSizeCompressed  uint16
	PayloadSize           uint32
	PayloadSizeCompressed uint32
	Flags                 uint32
	PayloadChecksum       uint32
	Reserved              [12]byte
}

// Write writes the envelope to the writer.
func (e *Envelope) Write(w io.Writer) error {
	return binary.Write(w, binary.LittleEndian, e)
}

// Write writes the metadata block to the writer. Reserved bytes are always
// written as zero.
func (m *Metadata) Write(w io.Writer) error {
	c := *m
	c.Reserved = [12]byte{}
	return binary.Write(w, binary.LittleEndian, &c)
}

func readEnvelope(data []byte) (Envelope, error) {
	var e Envelope
	if len(data) < EnvelopeSize {
		return e, fmt.Errorf("%w: %d bytes is shorter than the envelope", ErrFormat, len(data))
	}
	err := binary.Read(bytes.NewReader(data[:EnvelopeSize]), binary.LittleEndian, &e)
	return e, err
}

func readMetadata(data []byte) (Metadata, error) {
	var m Metadata
	if len(data) < SectionsOffset {
		return m, fmt.Errorf("%w: %d bytes is shorter than the metadata block", ErrFormat, len(data))
	}
	err := binary.Read(bytes.NewReader(data[EnvelopeSize:SectionsOffset]), binary.LittleEndian, &m)
	return m, err
}

// Align rounds v up to a multiple of a, which must be a power of two.
func Align(v, a int) int {
	return (v + (a - 1)) &^ (a - 1)
}

// pad returns b zero-extended to n bytes.
func pad(b []byte, n int) []byte {
	out := make([]byte, n)
	copy(out, b)
	return out
}
