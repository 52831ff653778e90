package flush

import (
	"fmt"

	"github.com/gogpu/fxpipe/gpucore"
)

// Primitive is the primitive type of submitted vertices.
type Primitive uint8

// Primitive types.
const (
	PrimitivePoints Primitive = iota
	PrimitiveLines
	PrimitiveLineStrip
	PrimitiveTriangles
	PrimitiveTriangleStrip
	PrimitiveTriangleFan
	PrimitiveQuads
)

// String returns the string representation of Primitive.
func (p Primitive) String() string {
	switch p {
	case PrimitivePoints:
		return "Points"
	case PrimitiveLines:
		return "Lines"
	case PrimitiveLineStrip:
		return "LineStrip"
	case PrimitiveTriangles:
		return "Triangles"
	case PrimitiveTriangleStrip:
		return "TriangleStrip"
	case PrimitiveTriangleFan:
		return "TriangleFan"
	case PrimitiveQuads:
		return "Quads"
	default:
		return fmt.Sprintf("Primitive(%d)", int(p))
	}
}

// Topology returns the draw topology the primitive is expanded into.
// Primitives with different topologies cannot share a batch.
func (p Primitive) Topology() gpucore.Topology {
	switch p {
	case PrimitivePoints:
		return gpucore.TopologyPoints
	case PrimitiveLines, PrimitiveLineStrip:
		return gpucore.TopologyLines
	default:
		return gpucore.TopologyTriangles
	}
}

func (p Primitive) valid() bool {
	return p <= PrimitiveQuads
}

// IndexCount returns the number of indices generated for n vertices.
// Vertices that do not complete a primitive produce no indices.
func (p Primitive) IndexCount(n int) int {
	switch p {
	case PrimitivePoints:
		return n
	case PrimitiveLines:
		return n / 2 * 2
	case PrimitiveLineStrip:
		return max(n-1, 0) * 2
	case PrimitiveTriangles:
		return n / 3 * 3
	case PrimitiveTriangleStrip, PrimitiveTriangleFan:
		return max(n-2, 0) * 3
	case PrimitiveQuads:
		return n / 4 * 6
	default:
		return 0
	}
}

// appendIndices appends the indices of n vertices starting at base,
// expanded into the primitive's topology.
func appendIndices(dst []uint16, p Primitive, base uint16, n int) []uint16 {
	switch p {
	case PrimitivePoints:
		for i := range n {
			dst = append(dst, base+uint16(i))
		}
	case PrimitiveLines:
		for i := 0; i+1 < n; i += 2 {
			dst = append(dst, base+uint16(i), base+uint16(i+1))
		}
	case PrimitiveLineStrip:
		for i := 0; i+1 < n; i++ {
			dst = append(dst, base+uint16(i), base+uint16(i+1))
		}
	case PrimitiveTriangles:
		for i := 0; i+2 < n; i += 3 {
			dst = append(dst, base+uint16(i), base+uint16(i+1), base+uint16(i+2))
		}
	case PrimitiveTriangleStrip:
		// Odd triangles swap their first two vertices to keep the winding.
		for i := 0; i+2 < n; i++ {
			a, b := base+uint16(i), base+uint16(i+1)
			if i&1 == 1 {
				a, b = b, a
			}
			dst = append(dst, a, b, base+uint16(i+2))
		}
	case PrimitiveTriangleFan:
		for i := 1; i+1 < n; i++ {
			dst = append(dst, base, base+uint16(i), base+uint16(i+1))
		}
	case PrimitiveQuads:
		for i := 0; i+3 < n; i += 4 {
			v0, v1, v2, v3 := base+uint16(i), base+uint16(i+1), base+uint16(i+2), base+uint16(i+3)
			dst = append(dst, v0, v1, v2, v0, v2, v3)
		}
	}
	return dst
}
