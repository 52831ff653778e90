package halgpu

import (
	"github.com/gogpu/fxpipe/gpucore"
	"github.com/gogpu/gputypes"
)

// vertexFormatSize returns the size in bytes of one attribute, or 0 for an
// invalid format.
func vertexFormatSize(f gpucore.VertexFormat) uint32 {
	switch f {
	case gpucore.VertexFormatUnorm8, gpucore.VertexFormatSnorm8,
		gpucore.VertexFormatUint8, gpucore.VertexFormatSint8:
		return 1
	case gpucore.VertexFormatUnorm16, gpucore.VertexFormatSnorm16,
		gpucore.VertexFormatUint16, gpucore.VertexFormatSint16,
		gpucore.VertexFormatUnorm8x2, gpucore.VertexFormatSnorm8x2,
		gpucore.VertexFormatUint8x2, gpucore.VertexFormatSint8x2:
		return 2
	case gpucore.VertexFormatFloat32,
		gpucore.VertexFormatUnorm16x2, gpucore.VertexFormatSnorm16x2,
		gpucore.VertexFormatUint16x2, gpucore.VertexFormatSint16x2,
		gpucore.VertexFormatUnorm8x4, gpucore.VertexFormatSnorm8x4,
		gpucore.VertexFormatUint8x4, gpucore.VertexFormatSint8x4:
		return 4
	case gpucore.VertexFormatFloat32x2,
		gpucore.VertexFormatUnorm16x4, gpucore.VertexFormatSnorm16x4,
		gpucore.VertexFormatUint16x4, gpucore.VertexFormatSint16x4:
		return 8
	case gpucore.VertexFormatFloat32x3:
		return 12
	case gpucore.VertexFormatFloat32x4:
		return 16
	default:
		return 0
	}
}

// convertVertexFormat maps a gpucore format to WebGPU. Single 8 and 16 bit
// components widen to the two-component format; shaders read only .x.
func convertVertexFormat(f gpucore.VertexFormat) gputypes.VertexFormat {
	switch f {
	case gpucore.VertexFormatUnorm8, gpucore.VertexFormatUnorm8x2:
		return gputypes.VertexFormatUnorm8x2
	case gpucore.VertexFormatSnorm8, gpucore.VertexFormatSnorm8x2:
		return gputypes.VertexFormatSnorm8x2
	case gpucore.VertexFormatUint8, gpucore.VertexFormatUint8x2:
		return gputypes.VertexFormatUint8x2
	case gpucore.VertexFormatSint8, gpucore.VertexFormatSint8x2:
		return gputypes.VertexFormatSint8x2
	case gpucore.VertexFormatUnorm16, gpucore.VertexFormatUnorm16x2:
		return gputypes.VertexFormatUnorm16x2
	case gpucore.VertexFormatSnorm16, gpucore.VertexFormatSnorm16x2:
		return gputypes.VertexFormatSnorm16x2
	case gpucore.VertexFormatUint16, gpucore.VertexFormatUint16x2:
		return gputypes.VertexFormatUint16x2
	case gpucore.VertexFormatSint16, gpucore.VertexFormatSint16x2:
		return gputypes.VertexFormatSint16x2
	case gpucore.VertexFormatUnorm8x4:
		return gputypes.VertexFormatUnorm8x4
	case gpucore.VertexFormatSnorm8x4:
		return gputypes.VertexFormatSnorm8x4
	case gpucore.VertexFormatUint8x4:
		return gputypes.VertexFormatUint8x4
	case gpucore.VertexFormatSint8x4:
		return gputypes.VertexFormatSint8x4
	case gpucore.VertexFormatUnorm16x4:
		return gputypes.VertexFormatUnorm16x4
	case gpucore.VertexFormatSnorm16x4:
		return gputypes.VertexFormatSnorm16x4
	case gpucore.VertexFormatUint16x4:
		return gputypes.VertexFormatUint16x4
	case gpucore.VertexFormatSint16x4:
		return gputypes.VertexFormatSint16x4
	case gpucore.VertexFormatFloat32x2:
		return gputypes.VertexFormatFloat32x2
	case gpucore.VertexFormatFloat32x3:
		return gputypes.VertexFormatFloat32x3
	case gpucore.VertexFormatFloat32x4:
		return gputypes.VertexFormatFloat32x4
	default:
		return gputypes.VertexFormatFloat32
	}
}
