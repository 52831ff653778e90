package shader

import (
	"bytes"
	"encoding/hex"
	"fmt"
)

// KeySize is the size of a configuration key in bytes.
const KeySize = 16

// Key is the deterministic fingerprint of the pipeline state that affects
// generated program semantics. Keys are compared bytewise.
type Key [KeySize]byte

// Compare returns -1, 0 or +1 depending on whether k sorts before, equal
// to, or after o.
func (k Key) Compare(o Key) int {
	return bytes.Compare(k[:], o[:])
}

// Less reports whether k sorts before o.
func (k Key) Less(o Key) bool {
	return k.Compare(o) < 0
}

// String returns the key as lowercase hex.
func (k Key) String() string {
	return hex.EncodeToString(k[:])
}

// KeyFromBytes converts a raw key read back from disk.
func KeyFromBytes(b []byte) (Key, bool) {
	var k Key
	if len(b) != KeySize {
		return k, false
	}
	copy(k[:], b)
	return k, true
}

// KeyBuilder packs bit fields into a Key, least significant bit first.
//
// Fields are written in call order, so two builders fed the same sequence of
// (value, width) pairs produce the same key. Overflowing the key or passing a
// value wider than its field is a programming error and panics.
type KeyBuilder struct {
	key Key
	bit int
}

// Put appends the low bits of v as a field of the given width.
func (b *KeyBuilder) Put(v uint32, bits int) {
	if bits <= 0 || bits > 32 {
		panic(fmt.Sprintf("shader: invalid key field width %d", bits))
	}
	if bits < 32 && v>>bits != 0 {
		panic(fmt.Sprintf("shader: value %d does not fit in %d bits", v, bits))
	}
	if b.bit+bits > KeySize*8 {
		panic(fmt.Sprintf("shader: key overflow at bit %d (+%d)", b.bit, bits))
	}
	for i := 0; i < bits; i++ {
		if v&(1<<i) != 0 {
			pos := b.bit + i
			b.key[pos/8] |= 1 << (pos % 8)
		}
	}
	b.bit += bits
}

// PutBool appends a single bit.
func (b *KeyBuilder) PutBool(v bool) {
	if v {
		b.Put(1, 1)
	} else {
		b.Put(0, 1)
	}
}

// Bits returns the number of bits written so far.
func (b *KeyBuilder) Bits() int {
	return b.bit
}

// Key returns the packed key.
func (b *KeyBuilder) Key() Key {
	return b.key
}
