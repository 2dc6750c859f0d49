// Package convert turns console saves into PC containers and re-encodes
// existing PC containers.
package convert

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/hashicorp/go-hclog"

	"github.com/zarroboogs/fiber-saveutil/pkg/gamedata"
	"github.com/zarroboogs/fiber-saveutil/pkg/save"
	"github.com/zarroboogs/fiber-saveutil/pkg/sfo"
)

// Output file names.
const (
	GameDataFile   = "DATA.DAT"
	SystemDataFile = "SYSTEM.DAT"
)

// DescriptionKey is the property list entry carried into the header description.
const DescriptionKey = "DETAIL"

var (
	ErrNotSave      = errors.New("not a console save")
	ErrNotContainer = errors.New("not a pc save")
	ErrNoSaves      = errors.New("no saves found")
	ErrSamePath     = errors.New("input and output path must differ")
	ErrInvalidPath  = errors.New("invalid path")
)

// Converter converts saves with one codec. It is safe for concurrent use.
type Converter struct {
	codec  *save.Codec
	logger hclog.Logger
	jobs   int
}

// Option configures a Converter.
type Option func(*Converter)

func WithLogger(l hclog.Logger) Option {
	return func(c *Converter) {
		c.logger = l
	}
}

// WithJobs bounds the number of files converted at once. Values below one
// select the number of CPUs.
func WithJobs(n int) Option {
	return func(c *Converter) {
		c.jobs = n
	}
}

func New(codec *save.Codec, opts ...Option) *Converter {
	c := &Converter{
		codec:  codec,
		logger: hclog.NewNullLogger(),
	}
	for _, o := range opts {
		o(c)
	}
	if c.jobs < 1 {
		c.jobs = runtime.NumCPU()
	}
	return c
}

// SplitName splits a zero padded display name at its first space into first
// and last name.
func SplitName(full []byte) (first, last []byte) {
	name := bytes.Trim(full, "\x00")
	f, l, _ := bytes.Cut(name, []byte(" "))
	return append([]byte(nil), f...), append([]byte(nil), l...)
}

// ConvertGameData builds a PC container from a console game data blob and the
// optional property list of its save folder. The payload is the whole blob.
func (c *Converter) ConvertGameData(blob, sfoData []byte) (*save.Container, error) {
	gd, err := gamedata.Read(blob)
	if err != nil {
		return nil, err
	}

	h := *gd.Header
	if p, ok := gd.PlayerName(); ok {
		h.FirstName, h.LastName = SplitName(p.FullNameUTF8[:])
	} else {
		c.logger.Warn("player name block missing, using header names")
		h.FirstName = save.TrimZero(h.FirstName)
		h.LastName = save.TrimZero(h.LastName)
	}
	h.Description = c.description(sfoData)
	h.Lang0 = save.LangUnset

	return save.NewContainer(&h, blob), nil
}

func (c *Converter) description(sfoData []byte) []byte {
	if sfoData == nil {
		return nil
	}
	f, err := sfo.Read(sfoData)
	if err != nil {
		c.logger.Warn("ignoring unreadable property list", "error", err)
		return nil
	}
	e, ok := f.Lookup(DescriptionKey)
	if !ok {
		c.logger.Warn("property list has no description", "key", DescriptionKey)
		return nil
	}
	return save.TrimZero(e.Value)
}

// ConvertSystemData wraps a console system data blob. System data has no
// header record.
func (c *Converter) ConvertSystemData(blob []byte) *save.Container {
	return save.NewContainer(nil, blob)
}

// ParamPath returns where the property list of a console save file lives.
func ParamPath(savePath string) string {
	return filepath.Join(filepath.Dir(savePath), "sce_sys", "param.sfo")
}

// ConvertFile converts the console save at path into outDir and returns the
// written file.
func (c *Converter) ConvertFile(path, outDir string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}

	var (
		ct   *save.Container
		name string
	)
	switch gamedata.Classify(data) {
	case gamedata.KindGameData:
		c.logger.Info("found game data", "path", path)
		param, err := os.ReadFile(ParamPath(path))
		if err != nil {
			c.logger.Warn("couldn't read param.sfo for save", "path", path, "error", err)
			param = nil
		}
		if ct, err = c.ConvertGameData(data, param); err != nil {
			return "", fmt.Errorf("%s: %w", path, err)
		}
		name = GameDataFile
	case gamedata.KindSystemData:
		c.logger.Info("found system data", "path", path)
		ct = c.ConvertSystemData(data)
		name = SystemDataFile
	default:
		return "", fmt.Errorf("%w: %s", ErrNotSave, path)
	}

	out, err := c.codec.Encode(ct, true, true)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}

	dst := filepath.Join(outDir, name)
	if err := writeFile(dst, out); err != nil {
		return "", err
	}
	c.logger.Info("converted save", "from", path, "to", dst)
	return dst, nil
}

// writeFile replaces dst through a temporary file in the same directory.
func writeFile(dst string, data []byte) error {
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(dst)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dst)
}
