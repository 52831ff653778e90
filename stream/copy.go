package stream

// copyBlock is the block size used by copyAligned. It is set at init from
// CPU features; 0 selects the portable byte copy.
var copyBlock int

// copyAligned copies src to the start of dst, which must begin on an
// Alignment boundary of the mapped buffer. src may have any alignment.
// It returns the number of bytes copied.
func copyAligned(dst, src []byte) int {
	return copyWith(copyBlock, dst, src)
}

func copyWith(block int, dst, src []byte) int {
	switch block {
	case 64:
		return copy64(dst, src)
	case 32:
		return copy32(dst, src)
	case Alignment:
		return copy16(dst, src)
	default:
		return copyPortable(dst, src)
	}
}

// copy64, copy32 and copy16 move whole blocks through array conversions,
// which the compiler lowers to vector moves of that width, then hand the
// tail to the next narrower copy.
func copy64(dst, src []byte) int {
	n := min(len(dst), len(src))
	i := 0
	for ; i+64 <= n; i += 64 {
		*(*[64]byte)(dst[i : i+64]) = *(*[64]byte)(src[i : i+64])
	}
	return i + copy16(dst[i:n], src[i:n])
}

func copy32(dst, src []byte) int {
	n := min(len(dst), len(src))
	i := 0
	for ; i+32 <= n; i += 32 {
		*(*[32]byte)(dst[i : i+32]) = *(*[32]byte)(src[i : i+32])
	}
	return i + copy16(dst[i:n], src[i:n])
}

func copy16(dst, src []byte) int {
	n := min(len(dst), len(src))
	i := 0
	for ; i+Alignment <= n; i += Alignment {
		*(*[Alignment]byte)(dst[i : i+Alignment]) = *(*[Alignment]byte)(src[i : i+Alignment])
	}
	copy(dst[i:n], src[i:n])
	return n
}

// copyPortable is the byte-at-a-time fallback.
func copyPortable(dst, src []byte) int {
	n := min(len(dst), len(src))
	for i := 0; i < n; i++ {
		dst[i] = src[i]
	}
	return n
}
