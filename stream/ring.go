package stream

import (
	"errors"
	"fmt"

	"github.com/gogpu/fxpipe/gpucore"
)

// Alignment is the required alignment of vertex and index regions in bytes.
const Alignment = 16

// Ring errors.
var (
	// ErrCapacityExceeded is returned when a single batch does not fit an
	// empty buffer. It is a configuration error: the buffer capacity must
	// be sized for the largest flush.
	ErrCapacityExceeded = errors.New("stream: batch exceeds buffer capacity")

	// ErrInvalidStride is returned for a zero vertex stride.
	ErrInvalidStride = errors.New("stream: invalid vertex stride")
)

// Placement is where one flush's geometry lives in the ring.
type Placement struct {
	// Buffer is the native buffer holding both regions.
	Buffer gpucore.BufferID

	// BufferIndex is the position of Buffer in the round-robin set.
	BufferIndex int

	// Mode is the map mode of the upload.
	Mode gpucore.MapMode

	// VertexOffset is the first vertex, in vertex units.
	VertexOffset uint32

	// VertexByteOffset is the byte offset of the vertex region.
	VertexByteOffset uint64

	// IndexOffset is the byte offset of the index region.
	IndexOffset uint64

	VertexByteLength uint64
	IndexByteLength  uint64
}

// End returns the byte offset just past the index region.
func (p *Placement) End() uint64 {
	return p.IndexOffset + p.IndexByteLength
}

// Ring is the cursor arithmetic of the streaming allocator, separate from
// any buffer so that a failed upload can leave it untouched.
//
// Invariant: 0 <= cursor <= capacity, and cursor is a multiple of Alignment.
type Ring struct {
	capacity uint64
	count    int
	active   int
	cursor   uint64
}

// NewRing returns a ring of count buffers of capacity bytes each.
// The capacity is rounded down to a multiple of Alignment.
func NewRing(capacity uint64, count int) Ring {
	return Ring{capacity: alignDown(capacity), count: max(count, 1)}
}

// Plan computes the placement of the next batch without committing it.
func (r *Ring) Plan(vertexLen uint64, stride uint32, indexLen uint64) (Placement, error) {
	if stride == 0 {
		return Placement{}, ErrInvalidStride
	}
	unit := lcm(uint64(stride), Alignment)

	p, ok := r.fit(r.active, alignUp(r.cursor, unit), vertexLen, indexLen, gpucore.MapWriteNoOverwrite)
	if !ok {
		p, ok = r.fit((r.active+1)%r.count, 0, vertexLen, indexLen, gpucore.MapWriteDiscard)
		if !ok {
			return Placement{}, fmt.Errorf("%w: %d vertex + %d index bytes, capacity %d",
				ErrCapacityExceeded, vertexLen, indexLen, r.capacity)
		}
	}
	p.VertexOffset = uint32(p.VertexByteOffset / uint64(stride))
	return p, nil
}

func (r *Ring) fit(buffer int, start, vertexLen, indexLen uint64, mode gpucore.MapMode) (Placement, bool) {
	vEnd := alignUp(start+vertexLen, Alignment)
	iEnd := alignUp(vEnd+indexLen, Alignment)
	if start > r.capacity || iEnd > r.capacity {
		return Placement{}, false
	}
	return Placement{
		BufferIndex:      buffer,
		Mode:             mode,
		VertexByteOffset: start,
		IndexOffset:      vEnd,
		VertexByteLength: vEnd - start,
		IndexByteLength:  iEnd - vEnd,
	}, true
}

// Commit advances the ring past a planned placement.
func (r *Ring) Commit(p Placement) {
	r.active = p.BufferIndex
	r.cursor = p.End()
}

// Reset returns the ring to buffer 0, cursor 0.
func (r *Ring) Reset() {
	r.active = 0
	r.cursor = 0
}

// Cursor returns the write cursor of the active buffer.
func (r *Ring) Cursor() uint64 { return r.cursor }

// Active returns the index of the active buffer.
func (r *Ring) Active() int { return r.active }

// Capacity returns the per-buffer capacity.
func (r *Ring) Capacity() uint64 { return r.capacity }

// Fits reports whether a batch fits an empty buffer.
func (r *Ring) Fits(vertexLen, indexLen uint64) bool {
	return alignUp(alignUp(vertexLen, Alignment)+indexLen, Alignment) <= r.capacity
}

func alignUp(v, a uint64) uint64 {
	return (v + a - 1) / a * a
}

func alignDown(v uint64) uint64 {
	return v &^ (Alignment - 1)
}

func gcd(a, b uint64) uint64 {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

func lcm(a, b uint64) uint64 {
	return a / gcd(a, b) * b
}
