//go:build arm64

package stream

import "golang.org/x/sys/cpu"

func init() {
	// NEON moves 16 bytes; SVE cores get the 32-byte block.
	copyBlock = Alignment
	if cpu.ARM64.HasSVE {
		copyBlock = 32
	}
}
