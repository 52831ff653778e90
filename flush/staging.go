package flush

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/gogpu/fxpipe/gpucore"
)

// MaxBatchVertices is the number of vertices a u16 index can address.
const MaxBatchVertices = 1 << 16

// Staging errors.
var (
	// ErrInvalidVertices is returned for vertex data that is not a whole
	// number of vertices, or for an unknown primitive.
	ErrInvalidVertices = errors.New("flush: invalid vertex data")

	// ErrBatchBoundary is returned when vertices cannot join the staged
	// batch. The batch must be flushed first.
	ErrBatchBoundary = errors.New("flush: batch boundary")

	// ErrBatchTooLarge is returned for a single submission with more
	// vertices than a batch can hold.
	ErrBatchTooLarge = errors.New("flush: too many vertices for one batch")
)

// Staging accumulates the vertices and u16 indices of one batch on the CPU.
// Its backing memory is reused across batches.
type Staging struct {
	vertices    []byte
	indices     []uint16
	indexBytes  []byte
	stride      uint32
	vertexCount int
	topology    gpucore.Topology
}

// Empty reports whether no indices are staged. A batch whose vertices
// formed no complete primitive is empty.
func (s *Staging) Empty() bool { return len(s.indices) == 0 }

// VertexCount returns the number of staged vertices.
func (s *Staging) VertexCount() int { return s.vertexCount }

// IndexCount returns the number of staged indices.
func (s *Staging) IndexCount() int { return len(s.indices) }

// Stride returns the vertex stride of the staged batch.
func (s *Staging) Stride() uint32 { return s.stride }

// Topology returns the draw topology of the staged batch.
func (s *Staging) Topology() gpucore.Topology { return s.topology }

// Indices returns the staged indices. The slice is valid until Reset.
func (s *Staging) Indices() []uint16 { return s.indices }

// VertexBytes returns the staged vertex data. The slice is valid until Reset.
func (s *Staging) VertexBytes() []byte { return s.vertices }

// IndexBytes returns the staged indices as little-endian bytes.
// The slice is valid until the next call or Reset.
func (s *Staging) IndexBytes() []byte {
	s.indexBytes = s.indexBytes[:0]
	for _, idx := range s.indices {
		s.indexBytes = binary.LittleEndian.AppendUint16(s.indexBytes, idx)
	}
	return s.indexBytes
}

// Accepts reports whether n vertices of primitive p with the given stride
// can join the staged batch.
func (s *Staging) Accepts(p Primitive, stride uint32, n int) bool {
	if s.vertexCount == 0 {
		return true
	}
	return s.stride == stride &&
		s.topology == p.Topology() &&
		s.vertexCount+n <= MaxBatchVertices
}

// Append stages the vertices of one primitive list and generates its
// indices. vertices must hold a whole number of vertices of stride bytes.
func (s *Staging) Append(p Primitive, stride uint32, vertices []byte) error {
	if !p.valid() || stride == 0 || len(vertices)%int(stride) != 0 {
		return fmt.Errorf("%w: %s, %d bytes, stride %d", ErrInvalidVertices, p, len(vertices), stride)
	}
	n := len(vertices) / int(stride)
	if n > MaxBatchVertices {
		return fmt.Errorf("%w: %d vertices", ErrBatchTooLarge, n)
	}
	if !s.Accepts(p, stride, n) {
		return fmt.Errorf("%w: %s with stride %d after %s with stride %d",
			ErrBatchBoundary, p.Topology(), stride, s.topology, s.stride)
	}

	if s.vertexCount == 0 {
		s.stride = stride
		s.topology = p.Topology()
	}
	s.indices = appendIndices(s.indices, p, uint16(s.vertexCount), n)
	s.vertices = append(s.vertices, vertices...)
	s.vertexCount += n
	return nil
}

// Reset empties the staging buffers, keeping their memory.
func (s *Staging) Reset() {
	s.vertices = s.vertices[:0]
	s.indices = s.indices[:0]
	s.vertexCount = 0
	s.stride = 0
}
