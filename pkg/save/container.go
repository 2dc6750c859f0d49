// Package save implements the PC save container: a checksummed envelope around
// an optionally encrypted metadata block and two optionally compressed
// sections, the header record and the game payload.
package save

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/zarroboogs/fiber-saveutil/pkg/checksum"
	"github.com/zarroboogs/fiber-saveutil/pkg/crypto"
	"github.com/zarroboogs/fiber-saveutil/pkg/zlib"
)

// Container is one PC save. Payload always holds the plain payload bytes; the
// state booleans describe the form written by the last Encode.
type Container struct {
	Timestamp uint32
	// Flags and SaveFlags keep the on-disk flag words minus the bits the
	// codec manages.
	Flags     uint32
	SaveFlags uint32
	IV        [crypto.IVSize]byte

	Header  *Header
	Payload []byte

	HeaderCompressed  bool
	PayloadCompressed bool
	PayloadEncrypted  bool

	// Warnings holds the integrity warnings raised by Decode.
	Warnings []error

	sealed [sha256.Size]byte
}

// NewContainer returns a container with the default metadata flags.
func NewContainer(h *Header, payload []byte) *Container {
	return &Container{
		SaveFlags: DefaultSaveFlags,
		Header:    h,
		Payload:   payload,
	}
}

// Verified reports whether the last decode found no checksum mismatch.
func (c *Container) Verified() bool {
	return len(c.Warnings) == 0
}

// Codec decodes and encodes containers with a fixed key. It holds no mutable
// state and may be shared between goroutines.
type Codec struct {
	key      []byte
	checksum checksum.Func
	strict   bool
	logger   hclog.Logger
	now      func() time.Time
	rand     io.Reader
}

// Option configures a Codec.
type Option func(*Codec)

// WithChecksum replaces the default checksum function.
func WithChecksum(fn checksum.Func) Option {
	return func(c *Codec) {
		c.checksum = fn
	}
}

// WithStrict makes Decode fail with ErrIntegrity on checksum mismatches
// instead of only recording them.
func WithStrict(strict bool) Option {
	return func(c *Codec) {
		c.strict = strict
	}
}

// WithLogger sets the logger used for integrity warnings and tracing.
func WithLogger(l hclog.Logger) Option {
	return func(c *Codec) {
		c.logger = l
	}
}

// WithClock sets the time source for container timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		c.now = now
	}
}

// WithRandom sets the IV source. It must be cryptographically strong.
func WithRandom(r io.Reader) Option {
	return func(c *Codec) {
		c.rand = r
	}
}

// NewCodec returns a codec sealing containers with key.
func NewCodec(key []byte, opts ...Option) *Codec {
	c := &Codec{
		key:      append([]byte(nil), key...),
		checksum: checksum.Sum,
		logger:   hclog.NewNullLogger(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Decode parses a container. Checksum mismatches are recorded in
// Container.Warnings and do not stop decoding unless the codec is strict.
// A header section shorter than a PC header decodes as an absent header.
func (c *Codec) Decode(data []byte) (*Container, error) {
	env, err := readEnvelope(data)
	if err != nil {
		return nil, err
	}
	if string(env.Magic[:]) != Magic {
		return nil, fmt.Errorf("%w: bad magic %q", ErrFormat, env.Magic[:])
	}
	if len(data) < SectionsOffset {
		return nil, fmt.Errorf("%w: %d bytes is shorter than the metadata block", ErrFormat, len(data))
	}

	ct := &Container{
		Timestamp: env.Timestamp,
		Flags:     env.Flags &^ FlagEncrypted,
		IV:        env.IV,
	}

	if sum := c.checksum(data[checksumStart:]); sum != env.Checksum {
		c.warn(ct, &ChecksumMismatch{Section: SectionFile, Stored: env.Checksum, Computed: sum})
	}

	plain := data
	if env.Flags&FlagEncrypted != 0 {
		body, err := crypto.CBCDecrypt(data[EnvelopeSize:], c.key, env.IV[:])
		if errors.Is(err, crypto.ErrNotAligned) {
			return nil, fmt.Errorf("%w: encrypted region: %v", ErrFormat, err)
		} else if err != nil {
			return nil, fmt.Errorf("decrypting container: %w", err)
		}
		plain = make([]byte, 0, len(data))
		plain = append(plain, data[:EnvelopeSize]...)
		plain = append(plain, body...)
	}

	meta, err := readMetadata(plain)
	if err != nil {
		return nil, err
	}
	ct.SaveFlags = meta.Flags &^ (FlagHeaderCompressed | FlagPayloadCompressed)

	headerEnd := int(meta.HeaderSize)
	if meta.Flags&FlagHeaderCompressed != 0 {
		headerEnd = int(meta.HeaderSizeCompressed)
	}
	section, err := slice(plain, SectionsOffset, headerEnd)
	if err != nil {
		return nil, fmt.Errorf("header section: %w", err)
	}

	raw := section
	if meta.Flags&FlagHeaderCompressed != 0 {
		if raw, err = zlib.Decompress(section); err != nil {
			return nil, fmt.Errorf("%w: header section: %v", ErrFormat, err)
		}
	}
	if len(raw) >= PCHeaderSize {
		if ct.Header, err = DecodeHeader(raw, FormatPC); err != nil {
			return nil, err
		}
	} else {
		c.logger.Debug("header section too short, treating header as absent", "length", len(raw))
	}

	payloadStart := Align(headerEnd, SectionAlign)
	if meta.Flags&FlagPayloadCompressed != 0 {
		section, err = slice(plain, payloadStart, payloadStart+int(meta.PayloadSizeCompressed))
		if err != nil {
			return nil, fmt.Errorf("payload section: %w", err)
		}
		if ct.Payload, err = zlib.Decompress(section); err != nil {
			return nil, fmt.Errorf("%w: payload section: %v", ErrFormat, err)
		}
	} else {
		section, err = slice(plain, payloadStart, payloadStart+int(meta.PayloadSize))
		if err != nil {
			return nil, fmt.Errorf("payload section: %w", err)
		}
		ct.Payload = append([]byte(nil), section...)
	}

	if sum := c.checksum(ct.Payload); sum != meta.PayloadChecksum {
		c.warn(ct, &ChecksumMismatch{Section: SectionPayload, Stored: meta.PayloadChecksum, Computed: sum})
	}

	c.logger.Debug("decoded container",
		"encrypted", env.Flags&FlagEncrypted != 0,
		"header_compressed", meta.Flags&FlagHeaderCompressed != 0,
		"payload_compressed", meta.Flags&FlagPayloadCompressed != 0,
		"header", ct.Header != nil,
		"payload", len(ct.Payload),
	)

	if c.strict && len(ct.Warnings) > 0 {
		return ct, fmt.Errorf("%w: %v", ErrIntegrity, errors.Join(ct.Warnings...))
	}
	return ct, nil
}

func (c *Codec) warn(ct *Container, w *ChecksumMismatch) {
	ct.Warnings = append(ct.Warnings, w)
	c.logger.Warn("checksum mismatch",
		"section", w.Section,
		"stored", fmt.Sprintf("%08x", w.Stored),
		"computed", fmt.Sprintf("%08x", w.Computed),
	)
}

// Encode serializes ct, compressing both sections when compress is set and
// encrypting everything after the envelope when encrypt is set.
//
// The timestamp is assigned once per container. Sections are always built from
// the plain header and payload, and re-encoding an unchanged, already encrypted
// container reuses its IV, so repeated calls yield identical bytes.
func (c *Codec) Encode(ct *Container, compress, encrypt bool) ([]byte, error) {
	if ct.Timestamp == 0 {
		ct.Timestamp = uint32(c.now().Unix())
	}
	if uint64(len(ct.Payload)) > math.MaxUint32 {
		return nil, fmt.Errorf("payload of %d bytes does not fit a container", len(ct.Payload))
	}

	meta := Metadata{
		HeaderSize:      SectionsOffset,
		Flags:           ct.SaveFlags &^ (FlagHeaderCompressed | FlagPayloadCompressed),
		PayloadChecksum: c.checksum(ct.Payload),
	}

	var header []byte
	headerEnd := SectionsOffset
	ct.HeaderCompressed = false
	if ct.Header != nil {
		raw, err := ct.Header.Encode(FormatPC)
		if err != nil {
			return nil, err
		}
		header = raw
		meta.HeaderSize = uint16(SectionsOffset + len(raw))
		headerEnd = int(meta.HeaderSize)

		if compress {
			if header, err = zlib.Compress(raw, zlib.BestCompression); err != nil {
				return nil, fmt.Errorf("compressing header: %w", err)
			}
			meta.Flags |= FlagHeaderCompressed
			meta.HeaderSizeCompressed = uint16(SectionsOffset + len(header))
			headerEnd = int(meta.HeaderSizeCompressed)
			ct.HeaderCompressed = true
		}
	}

	payload := ct.Payload
	meta.PayloadSize = uint32(len(payload))
	ct.PayloadCompressed = false
	if compress {
		var err error
		if payload, err = zlib.Compress(ct.Payload, zlib.BestCompression); err != nil {
			return nil, fmt.Errorf("compressing payload: %w", err)
		}
		meta.Flags |= FlagPayloadCompressed
		meta.PayloadSizeCompressed = uint32(len(payload))
		ct.PayloadCompressed = true
	}

	var buf bytes.Buffer
	if err := meta.Write(&buf); err != nil {
		return nil, err
	}
	buf.Write(pad(header, Align(headerEnd, SectionAlign)-SectionsOffset))
	buf.Write(pad(payload, Align(len(payload), SectionAlign)))

	body := buf.Bytes()
	flags := ct.Flags &^ FlagEncrypted
	var iv [crypto.IVSize]byte

	if encrypt {
		sum := sha256.Sum256(body)
		if ct.PayloadEncrypted && sum == ct.sealed {
			iv = ct.IV
		} else {
			var err error
			if iv, err = crypto.NewIV(c.rand); err != nil {
				return nil, err
			}
		}

		sealed, err := crypto.CBCEncrypt(body, c.key, iv[:])
		if err != nil {
			return nil, fmt.Errorf("encrypting container: %w", err)
		}
		body = sealed
		flags |= FlagEncrypted
		ct.sealed = sum
	} else {
		ct.sealed = [sha256.Size]byte{}
	}
	ct.IV = iv
	ct.PayloadEncrypted = encrypt

	env := Envelope{
		Timestamp: ct.Timestamp,
		Flags:     flags,
		IV:        iv,
	}
	copy(env.Magic[:], Magic)

	var out bytes.Buffer
	out.Grow(EnvelopeSize + len(body))
	if err := env.Write(&out); err != nil {
		return nil, err
	}
	out.Write(body)

	b := out.Bytes()
	binary.LittleEndian.PutUint32(b[4:8], c.checksum(b[checksumStart:]))
	return b, nil
}

func slice(b []byte, start, end int) ([]byte, error) {
	if start < 0 || end < start || end > len(b) {
		return nil, fmt.Errorf("%w: range 0x%x..0x%x outside %d byte container", ErrFormat, start, end, len(b))
	}
	return b[start:end], nil
}
