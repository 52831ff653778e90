//go:build amd64

package stream

import "golang.org/x/sys/cpu"

func init() {
	switch {
	case cpu.X86.HasAVX512F:
		copyBlock = 64
	case cpu.X86.HasAVX2:
		copyBlock = 32
	}
}
