package convert

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zarroboogs/fiber-saveutil/pkg/save"
)

// OutSuffix is appended to the input name when no output path is given.
const OutSuffix = "--out"

// DefaultOutput returns the output path used when none is given.
func DefaultOutput(in string) string {
	in = filepath.Clean(in)
	return filepath.Join(filepath.Dir(in), filepath.Base(in)+OutSuffix)
}

// Dump decodes a PC container and encodes it again, raw or compressed and
// encrypted.
func Dump(codec *save.Codec, data []byte, raw bool) ([]byte, error) {
	ct, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return codec.Encode(ct, !raw, !raw)
}

// ConvertPaths validates the paths of a directory conversion and fills in the
// default output.
func ConvertPaths(in, out string) (string, string, error) {
	fi, err := os.Stat(in)
	if err != nil {
		return "", "", fmt.Errorf("%w: input path does not exist: %s", ErrInvalidPath, in)
	}
	if !fi.IsDir() {
		return "", "", fmt.Errorf("%w: input path is not a directory: %s", ErrInvalidPath, in)
	}
	if out == "" {
		out = DefaultOutput(in)
	}
	if isRegular(out) {
		return "", "", fmt.Errorf("%w: output path must be a directory: %s", ErrInvalidPath, out)
	}
	return in, out, nil
}

// DumpPaths validates the paths of a dump and resolves the output file. An
// existing output directory receives a file named after the input.
func DumpPaths(in, out string) (string, string, error) {
	fi, err := os.Stat(in)
	if err != nil {
		return "", "", fmt.Errorf("%w: input path does not exist: %s", ErrInvalidPath, in)
	}
	if !fi.Mode().IsRegular() {
		return "", "", fmt.Errorf("%w: input path is not a file: %s", ErrInvalidPath, in)
	}

	switch {
	case out == "":
		out = DefaultOutput(in)
	case isDir(out):
		out = filepath.Join(out, filepath.Base(in))
	case isDir(filepath.Dir(out)):
	default:
		return "", "", fmt.Errorf("%w: output directory does not exist: %s", ErrInvalidPath, out)
	}

	if samePath(in, out) {
		return "", "", ErrSamePath
	}
	return in, out, nil
}

func isDir(p string) bool {
	fi, err := os.Stat(p)
	return err == nil && fi.IsDir()
}

func samePath(a, b string) bool {
	if fa, err := os.Stat(a); err == nil {
		if fb, err := os.Stat(b); err == nil {
			return os.SameFile(fa, fb)
		}
	}
	aa, errA := filepath.Abs(a)
	bb, errB := filepath.Abs(b)
	return errA == nil && errB == nil && aa == bb
}

// DumpFile re-encodes the PC container at in into out, raw or sealed. Empty
// out selects DefaultOutput. It returns the written path.
func (c *Converter) DumpFile(in, out string, raw bool) (string, error) {
	in, out, err := DumpPaths(in, out)
	if err != nil {
		return "", err
	}

	data, err := os.ReadFile(in)
	if err != nil {
		return "", err
	}
	if !bytes.HasPrefix(data, []byte(save.Magic)) {
		return "", fmt.Errorf("%w: %s", ErrNotContainer, in)
	}

	c.logger.Info("parsing save", "path", in)
	b, err := Dump(c.codec, data, raw)
	if err != nil {
		return "", fmt.Errorf("%s: %w", in, err)
	}
	if err := writeFile(out, b); err != nil {
		return "", err
	}
	c.logger.Info("dumped save", "path", out, "raw", raw)
	return out, nil
}
