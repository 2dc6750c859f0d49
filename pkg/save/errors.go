package save

import (
	"errors"
	"fmt"
)

var (
	// ErrFormat marks a buffer that cannot be decoded as a container.
	ErrFormat = errors.New("invalid save format")
	// ErrIntegrity marks a checksum that does not match the stored value.
	ErrIntegrity = errors.New("integrity check failed")
)

// Checksummed sections of a container.
const (
	SectionFile    = "file"
	SectionPayload = "payload"
)

// ChecksumMismatch is an integrity warning. Decoding continues past it so
// damaged or hand-edited containers can still be inspected.
type ChecksumMismatch struct {
	Section  string
	Stored   uint32
	Computed uint32
}

func (e *ChecksumMismatch) Error() string {
	return fmt.Sprintf("%s checksum mismatch: stored %08x, computed %08x", e.Section, e.Stored, e.Computed)
}

// Is reports ChecksumMismatch as ErrIntegrity.
func (e *ChecksumMismatch) Is(target error) bool {
	return target == ErrIntegrity
}
