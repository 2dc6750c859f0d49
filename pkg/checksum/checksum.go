// Package checksum provides the 32-bit CRCs used by PC save containers.
package checksum

import (
	"fmt"
	"sort"
	"strings"

	"github.com/snksoft/crc"
)

// Func computes a checksum over a byte buffer.
type Func func(data []byte) uint32

// Variant is a named 32-bit CRC parameter set.
type Variant struct {
	Name   string
	Params crc.Parameters
}

var (
	// IEEE is the reflected 0x04C11DB7 CRC used by zlib and PNG.
	IEEE = Variant{"ieee", crc.Parameters{Width: 32, Polynomial: 0x04C11DB7, ReflectIn: true, ReflectOut: true, Init: 0xFFFFFFFF, FinalXor: 0xFFFFFFFF}}
	// Castagnoli is CRC-32C.
	Castagnoli = Variant{"castagnoli", crc.Parameters{Width: 32, Polynomial: 0x1EDC6F41, ReflectIn: true, ReflectOut: true, Init: 0xFFFFFFFF, FinalXor: 0xFFFFFFFF}}
	// Koopman is CRC-32K.
	Koopman = Variant{"koopman", crc.Parameters{Width: 32, Polynomial: 0x741B8CD7, ReflectIn: true, ReflectOut: true, Init: 0xFFFFFFFF, FinalXor: 0xFFFFFFFF}}
	// BZIP2 is the non-reflected IEEE polynomial.
	BZIP2 = Variant{"bzip2", crc.Parameters{Width: 32, Polynomial: 0x04C11DB7, Init: 0xFFFFFFFF, FinalXor: 0xFFFFFFFF}}
	// MPEG2 is BZIP2 without the final xor.
	MPEG2 = Variant{"mpeg2", crc.Parameters{Width: 32, Polynomial: 0x04C11DB7, Init: 0xFFFFFFFF}}
	// POSIX is the cksum(1) CRC without the length suffix.
	POSIX = Variant{"posix", crc.Parameters{Width: 32, Polynomial: 0x04C11DB7, FinalXor: 0xFFFFFFFF}}

	// Default is the variant containers are checked with unless configured.
	Default = IEEE
)

var variants = map[string]Variant{}

func init() {
	for _, v := range []Variant{IEEE, Castagnoli, Koopman, BZIP2, MPEG2, POSIX} {
		variants[v.Name] = v
	}
}

// Func returns a checksum function for the variant. The lookup table is built
// once per call to Func.
func (v Variant) Func() Func {
	params := v.Params
	table := crc.NewTable(&params)
	return func(data []byte) uint32 {
		return uint32(table.CalculateCRC(data))
	}
}

func (v Variant) String() string {
	return v.Name
}

// Lookup finds a variant by case-insensitive name.
func Lookup(name string) (Variant, error) {
	v, ok := variants[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return Variant{}, fmt.Errorf("unknown checksum variant %q (known: %s)", name, strings.Join(Names(), ", "))
	}
	return v, nil
}

// Names lists the known variant names in sorted order.
func Names() []string {
	names := make([]string, 0, len(variants))
	for n := range variants {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

var defaultFunc = Default.Func()

// Sum computes the default checksum over data.
func Sum(data []byte) uint32 {
	return defaultFunc(data)
}
