package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"sync"
)

// IVSize is the size of a CBC initialization vector.
const IVSize = aes.BlockSize

// ErrNotAligned is returned when the data is not a whole number of blocks.
var ErrNotAligned = errors.New("data length not multiple of block size")

// Cipher cache to avoid recreating AES ciphers for the same key
var (
	cipherCache   = make(map[[32]byte]cipher.Block)
	cipherCacheMu sync.RWMutex
)

func getCachedCipher(key []byte) (cipher.Block, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be 32 bytes, got %d", len(key))
	}

	var keyArr [32]byte
	copy(keyArr[:], key)

	cipherCacheMu.RLock()
	block, ok := cipherCache[keyArr]
	cipherCacheMu.RUnlock()
	if ok {
		return block, nil
	}

	cipherCacheMu.Lock()
	defer cipherCacheMu.Unlock()

	if block, ok = cipherCache[keyArr]; ok {
		return block, nil
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	cipherCache[keyArr] = block
	return block, nil
}

func checkArgs(data, iv []byte) error {
	if len(iv) != IVSize {
		return fmt.Errorf("iv must be %d bytes, got %d", IVSize, len(iv))
	}
	if len(data)%aes.BlockSize != 0 {
		return fmt.Errorf("%w: %d bytes", ErrNotAligned, len(data))
	}
	return nil
}

// CBCEncrypt encrypts data using AES-256-CBC. No padding is added, so data
// must already be block aligned.
func CBCEncrypt(data, key, iv []byte) ([]byte, error) {
	if err := checkArgs(data, iv); err != nil {
		return nil, err
	}
	block, err := getCachedCipher(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(data))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

// CBCDecrypt decrypts data using AES-256-CBC without removing any padding.
func CBCDecrypt(data, key, iv []byte) ([]byte, error) {
	if err := checkArgs(data, iv); err != nil {
		return nil, err
	}
	block, err := getCachedCipher(key)
	if err != nil {
		return nil, err
	}

	out := make([]byte, len(data))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(out, data)
	return out, nil
}

// NewIV draws a fresh IV from r, or from crypto/rand when r is nil.
func NewIV(r io.Reader) ([IVSize]byte, error) {
	var iv [IVSize]byte
	if r == nil {
		r = rand.Reader
	}
	if _, err := io.ReadFull(r, iv[:]); err != nil {
		return iv, fmt.Errorf("reading iv: %w", err)
	}
	return iv, nil
}
