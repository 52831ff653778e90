// Package gpucore defines the native graphics API contract used by fxpipe.
//
// The shader caches and the streaming allocator never talk to a graphics
// API directly. They go through [GPUAdapter], which exposes exactly the
// operations the flush path needs: shader module creation from SPIR-V,
// buffer creation and mapping, and input layout creation. Draw submission
// goes through [Drawer].
//
//	       +----------------------+
//	       |  fxpipe (Renderer)   |
//	       +----------+-----------+
//	                  |
//	     +------------+-------------+
//	     |                          |
//	+----v-----+             +------v------+
//	|  shader  |             |   stream    |
//	|  caches  |             |  allocator  |
//	+----+-----+             +------+------+
//	     |                          |
//	     +------------+-------------+
//	                  |
//	       +----------v-----------+
//	       | gpucore.GPUAdapter   |
//	       | (hal, in-memory, ..) |
//	       +----------------------+
//
// # Resource Management
//
// GPU resources are managed via opaque IDs ([BufferID], [ShaderModuleID],
// [InputLayoutID]). Adapters are responsible for tracking the mapping between
// IDs and actual GPU resources. The zero ID ([InvalidID]) is never a valid
// resource.
//
// # Map Modes
//
// Buffers are written through [GPUAdapter.MapBuffer] using one of two modes:
// [MapWriteDiscard] abandons the previous contents of the whole buffer, and
// [MapWriteNoOverwrite] promises that the write does not disturb any range
// the GPU may still read.
package gpucore
