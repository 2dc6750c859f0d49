package zlib

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zlib"
)

// BestCompression is the level sections are written with.
const BestCompression = zlib.BestCompression

var (
	// Encoder pools by compression level
	encoderPools = make(map[int]*sync.Pool)
	poolMu       sync.RWMutex
)

func getEncoderPool(level int) *sync.Pool {
	poolMu.RLock()
	pool, ok := encoderPools[level]
	poolMu.RUnlock()
	if ok {
		return pool
	}

	poolMu.Lock()
	defer poolMu.Unlock()

	if pool, ok = encoderPools[level]; ok {
		return pool
	}

	pool = &sync.Pool{
		New: func() interface{} {
			enc, err := zlib.NewWriterLevel(io.Discard, level)
			if err != nil {
				return err
			}
			return enc
		},
	}
	encoderPools[level] = pool
	return pool
}

// Compress compresses data into a zlib stream using encoder pooling.
func Compress(src []byte, level int) ([]byte, error) {
	pool := getEncoderPool(level)
	v := pool.Get()
	enc, ok := v.(*zlib.Writer)
	if !ok {
		return nil, fmt.Errorf("zlib level %d: %v", level, v)
	}
	defer pool.Put(enc)

	var buf bytes.Buffer
	enc.Reset(&buf)
	if _, err := enc.Write(src); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Decompress inflates a complete zlib stream.
func Decompress(src []byte) ([]byte, error) {
	r, err := zlib.NewReader(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	defer r.Close()

	return io.ReadAll(r)
}
