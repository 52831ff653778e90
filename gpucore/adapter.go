package gpucore

import "errors"

// ErrDeviceLost is returned by adapters and drawers once the device is
// gone. Every resource created on it is invalid.
var ErrDeviceLost = errors.New("gpucore: device lost")

// GPUAdapter abstracts over the native graphics API.
//
// The flush path is single-threaded: implementations are called only from
// the goroutine that owns the GPU context and need not be safe for
// concurrent use.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - IDs become invalid after destruction and must not be reused
type GPUAdapter interface {
	// MaxBufferSize returns the maximum buffer size in bytes.
	MaxBufferSize() uint64

	// === Shader Programs ===

	// CreateShaderModule creates a native program from SPIR-V bytecode.
	CreateShaderModule(spirv []uint32, label string) (ShaderModuleID, error)

	// DestroyShaderModule releases a shader module.
	DestroyShaderModule(id ShaderModuleID)

	// === Buffers ===

	// CreateBuffer creates a GPU buffer.
	CreateBuffer(size int, usage BufferUsage) (BufferID, error)

	// DestroyBuffer releases a GPU buffer.
	DestroyBuffer(id BufferID)

	// MapBuffer maps the whole buffer for CPU writes using the given mode.
	// The returned slice is only valid until UnmapBuffer.
	MapBuffer(id BufferID, mode MapMode) ([]byte, error)

	// UnmapBuffer ends the mapping. The range [offset, offset+size) is the
	// part of the buffer written while mapped.
	UnmapBuffer(id BufferID, offset, size uint64)

	// === Input Layouts ===

	// CreateInputLayout creates a vertex input layout.
	CreateInputLayout(desc *InputLayoutDesc) (InputLayoutID, error)

	// DestroyInputLayout releases an input layout.
	DestroyInputLayout(id InputLayoutID)
}

// Drawer submits indexed draws. It is the rasterization collaborator of the
// flush path: topology-specific vertex expansion happens behind it.
type Drawer interface {
	// Draw submits call. It returns ErrDeviceLost after device loss.
	Draw(call *DrawCall) error
}

// DrawerFunc adapts a function to the Drawer interface.
type DrawerFunc func(call *DrawCall) error

// Draw calls f(call).
func (f DrawerFunc) Draw(call *DrawCall) error { return f(call) }
