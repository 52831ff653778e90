package diskcache

import (
	"encoding/binary"
	"errors"
	"fmt"
)

// File layout:
//
//	header:  magic "FXPC" | u16 key size | u16 codec | [32]byte version
//	record:  key[key size] | u32 payload length | payload
//
// All integers are little-endian.
const (
	magic       = "FXPC"
	versionSize = 32
	headerSize  = 4 + 2 + 2 + versionSize
)

// ErrUnknownCodec is returned for an unsupported payload codec.
var ErrUnknownCodec = errors.New("diskcache: unknown codec")

// Codec selects how payloads are stored on disk.
type Codec uint16

const (
	// CodecNone stores payloads verbatim.
	CodecNone Codec = iota
	// CodecZstd compresses each payload with zstd.
	CodecZstd
)

func (c Codec) valid() bool {
	return c == CodecNone || c == CodecZstd
}

// String returns the config name of the codec.
func (c Codec) String() string {
	switch c {
	case CodecNone:
		return "none"
	case CodecZstd:
		return "zstd"
	default:
		return fmt.Sprintf("Codec(%d)", uint16(c))
	}
}

// ParseCodec parses a codec name as used in configuration files.
// The empty string selects CodecNone.
func ParseCodec(name string) (Codec, error) {
	switch name {
	case "", "none":
		return CodecNone, nil
	case "zstd":
		return CodecZstd, nil
	default:
		return CodecNone, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

func newHeader(opts *Options) [headerSize]byte {
	var h [headerSize]byte
	copy(h[0:4], magic)
	binary.LittleEndian.PutUint16(h[4:6], uint16(opts.KeySize))
	binary.LittleEndian.PutUint16(h[6:8], uint16(opts.Codec))
	copy(h[8:], opts.Version)
	return h
}
