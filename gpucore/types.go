package gpucore

import "fmt"

// Resource IDs
//
// These opaque IDs represent native GPU resources. Each adapter implementation
// maintains a mapping between IDs and actual backend resources.
// IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a GPU buffer.
type BufferID uint64

// ShaderModuleID is an opaque handle to a compiled shader module.
type ShaderModuleID uint64

// InputLayoutID is an opaque handle to a vertex input layout.
type InputLayoutID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// BufferUsage is a bitmask specifying how a buffer will be used.
type BufferUsage uint32

// Buffer usage flags.
const (
	// BufferUsageMapRead indicates the buffer can be mapped for reading.
	BufferUsageMapRead BufferUsage = 1 << 0

	// BufferUsageMapWrite indicates the buffer can be mapped for writing.
	BufferUsageMapWrite BufferUsage = 1 << 1

	// BufferUsageCopySrc indicates the buffer can be used as a copy source.
	BufferUsageCopySrc BufferUsage = 1 << 2

	// BufferUsageCopyDst indicates the buffer can be used as a copy destination.
	BufferUsageCopyDst BufferUsage = 1 << 3

	// BufferUsageIndex indicates the buffer can be used as an index buffer.
	BufferUsageIndex BufferUsage = 1 << 4

	// BufferUsageVertex indicates the buffer can be used as a vertex buffer.
	BufferUsageVertex BufferUsage = 1 << 5

	// BufferUsageUniform indicates the buffer can be used as a uniform buffer.
	BufferUsageUniform BufferUsage = 1 << 6
)

// StreamingBufferUsage is the usage of the ring buffers that hold both
// vertex and index data of a flush.
const StreamingBufferUsage = BufferUsageVertex | BufferUsageIndex | BufferUsageMapWrite | BufferUsageCopyDst

// MapMode selects how a buffer is mapped for CPU writes.
type MapMode uint8

const (
	// MapWriteNoOverwrite asserts that the write does not touch any range the
	// GPU may still be reading, so the driver does not need to synchronize.
	MapWriteNoOverwrite MapMode = iota

	// MapWriteDiscard abandons the previous contents of the whole buffer.
	MapWriteDiscard
)

// String returns the string representation of MapMode.
func (m MapMode) String() string {
	switch m {
	case MapWriteNoOverwrite:
		return "NoOverwrite"
	case MapWriteDiscard:
		return "Discard"
	default:
		return fmt.Sprintf("MapMode(%d)", int(m))
	}
}

// Topology is the primitive topology of a draw call.
type Topology uint8

const (
	// TopologyTriangles draws an indexed triangle list.
	TopologyTriangles Topology = iota
	// TopologyLines draws an indexed line list.
	TopologyLines
	// TopologyPoints draws an indexed point list.
	TopologyPoints
)

// String returns the string representation of Topology.
func (t Topology) String() string {
	switch t {
	case TopologyTriangles:
		return "Triangles"
	case TopologyLines:
		return "Lines"
	case TopologyPoints:
		return "Points"
	default:
		return fmt.Sprintf("Topology(%d)", int(t))
	}
}

// IndexSize is the size in bytes of one index. Indices are always u16.
const IndexSize = 2

// VertexFormat is the data format of a single vertex attribute.
type VertexFormat uint8

// Vertex attribute formats.
const (
	VertexFormatInvalid VertexFormat = iota
	VertexFormatUnorm8
	VertexFormatSnorm8
	VertexFormatUnorm16
	VertexFormatSnorm16
	VertexFormatFloat32
	VertexFormatUnorm8x2
	VertexFormatSnorm8x2
	VertexFormatUnorm16x2
	VertexFormatSnorm16x2
	VertexFormatFloat32x2
	VertexFormatFloat32x3
	VertexFormatUnorm8x4
	VertexFormatSnorm8x4
	VertexFormatUnorm16x4
	VertexFormatSnorm16x4
	VertexFormatFloat32x4
	VertexFormatUint8
	VertexFormatSint8
	VertexFormatUint16
	VertexFormatSint16
	VertexFormatUint8x2
	VertexFormatSint8x2
	VertexFormatUint16x2
	VertexFormatSint16x2
	VertexFormatUint8x4
	VertexFormatSint8x4
	VertexFormatUint16x4
	VertexFormatSint16x4
)

// Semantic names the role of a vertex attribute.
type Semantic uint8

// Vertex attribute semantics.
const (
	SemanticPosition Semantic = iota
	SemanticNormal
	SemanticColor
	SemanticTexCoord
	SemanticBlendIndices
)

// String returns the string representation of Semantic.
func (s Semantic) String() string {
	switch s {
	case SemanticPosition:
		return "POSITION"
	case SemanticNormal:
		return "NORMAL"
	case SemanticColor:
		return "COLOR"
	case SemanticTexCoord:
		return "TEXCOORD"
	case SemanticBlendIndices:
		return "BLENDINDICES"
	default:
		return fmt.Sprintf("Semantic(%d)", int(s))
	}
}

// VertexAttribute describes one element of an input layout.
type VertexAttribute struct {
	Semantic Semantic
	Index    uint32
	Format   VertexFormat
	Offset   uint32
}

// InputLayoutDesc describes a vertex input layout.
type InputLayoutDesc struct {
	// Label is an optional debug label.
	Label string

	// Stride is the size of one vertex in bytes.
	Stride uint32

	// Attributes are the vertex elements in declaration order.
	Attributes []VertexAttribute

	// VertexBytecode is the bytecode of a vertex program whose input
	// signature the layout is validated against.
	VertexBytecode []byte
}

// DrawCall is one indexed draw submitted after a flush.
type DrawCall struct {
	// Buffer holds both the vertex and index data.
	Buffer BufferID

	// VertexStride is the size of one vertex in bytes.
	VertexStride uint32

	// VertexOffset is the base vertex, in vertex units.
	VertexOffset uint32

	// IndexOffset is the byte offset of the first index.
	IndexOffset uint64

	VertexCount uint32
	IndexCount  uint32

	Topology Topology

	VertexShader ShaderModuleID
	PixelShader  ShaderModuleID
	InputLayout  InputLayoutID
}

// FirstIndex returns the index offset in index units.
func (d *DrawCall) FirstIndex() uint32 {
	return uint32(d.IndexOffset / IndexSize)
}
