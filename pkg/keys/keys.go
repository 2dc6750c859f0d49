package keys

import (
	"bufio"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

const (
	// SaveKeyName is the key file entry that replaces the embedded save key.
	SaveKeyName = "save_key"

	// DefaultSaveKey is the AES-256 key shipped PC saves are sealed with.
	DefaultSaveKey = "3lOZS0kYSoOOtkC4c7IDfvNXnxIprUPTlUGVC3yBJF0="

	// EnvKeysFile names a key file to load before the default locations.
	EnvKeysFile = "FIBER_KEYS"
)

var (
	keys = make(map[string][]byte)
	mu   sync.RWMutex
)

// Load reads keys from a file.
// Format expected: key_name = HEXVALUE
func Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			continue
		}

		name := strings.TrimSpace(parts[0])
		val, err := hex.DecodeString(strings.TrimSpace(parts[1]))
		if err != nil {
			continue
		}

		Set(name, val)
	}

	return scanner.Err()
}

// Set stores a copy of val under name.
func Set(name string, val []byte) {
	dest := make([]byte, len(val))
	copy(dest, val)

	mu.Lock()
	keys[name] = dest
	mu.Unlock()
}

// Get retrieves a key by name. Returns nil if not found.
func Get(name string) []byte {
	mu.RLock()
	defer mu.RUnlock()
	if k, ok := keys[name]; ok {
		dest := make([]byte, len(k))
		copy(dest, k)
		return dest
	}
	return nil
}

// Reset forgets every loaded key.
func Reset() {
	mu.Lock()
	keys = make(map[string][]byte)
	mu.Unlock()
}

// LoadDefault tries to load keys from $FIBER_KEYS and then the standard locations.
func LoadDefault() error {
	if p := os.Getenv(EnvKeysFile); p != "" {
		return Load(p)
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return err
	}

	paths := []string{
		"keys.txt",
		filepath.Join(home, ".fiber", "keys.txt"),
	}

	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return Load(p)
		}
	}
	return fmt.Errorf("no keys file found")
}

// SaveKey returns the loaded save key override, or the embedded default.
func SaveKey() []byte {
	if k := Get(SaveKeyName); k != nil {
		return k
	}
	k, err := base64.StdEncoding.DecodeString(DefaultSaveKey)
	if err != nil {
		panic(err)
	}
	return k
}
