// Package halgpu implements gpucore.GPUAdapter on top of gogpu/wgpu/hal.
//
// WebGPU has no persistent CPU mapping with no-overwrite semantics, so each
// buffer keeps a CPU shadow. MapBuffer hands out the shadow and UnmapBuffer
// uploads the written range through the queue. A discard map refills the
// shadow so stale bytes from an earlier pass are never observed.
package halgpu

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/gogpu/fxpipe/gpucore"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"
)

// Errors returned by Adapter.
var (
	ErrEmptyBytecode  = errors.New("halgpu: empty SPIR-V bytecode")
	ErrInvalidSize    = errors.New("halgpu: buffer size must be positive")
	ErrUnknownBuffer  = errors.New("halgpu: unknown buffer")
	ErrAlreadyMapped  = errors.New("halgpu: buffer already mapped")
	ErrInvalidLayout  = errors.New("halgpu: invalid input layout")
	ErrNoVertexSource = errors.New("halgpu: input layout needs vertex bytecode")
)

type buffer struct {
	raw    hal.Buffer
	shadow []byte
	mapped bool
}

// Adapter bridges gpucore and a hal device.
//
// Adapter is safe for concurrent use. Resource maps are guarded by a mutex.
type Adapter struct {
	mu     sync.RWMutex
	device hal.Device
	queue  hal.Queue
	limits gputypes.Limits

	nextID atomic.Uint64

	buffers map[gpucore.BufferID]*buffer
	modules map[gpucore.ShaderModuleID]hal.ShaderModule
	layouts map[gpucore.InputLayoutID]gpucore.InputLayoutDesc

	lost atomic.Bool
}

// New wraps device and queue. If limits is nil, gputypes.DefaultLimits is
// used.
func New(device hal.Device, queue hal.Queue, limits *gputypes.Limits) *Adapter {
	lim := gputypes.DefaultLimits()
	if limits != nil {
		lim = *limits
	}
	a := &Adapter{
		device:  device,
		queue:   queue,
		limits:  lim,
		buffers: make(map[gpucore.BufferID]*buffer),
		modules: make(map[gpucore.ShaderModuleID]hal.ShaderModule),
		layouts: make(map[gpucore.InputLayoutID]gpucore.InputLayoutDesc),
	}
	// 0 is gpucore.InvalidID.
	a.nextID.Store(1)
	return a
}

var _ gpucore.GPUAdapter = (*Adapter)(nil)

func (a *Adapter) newID() uint64 {
	return a.nextID.Add(1) - 1
}

// MarkLost flags the device as lost. Every later create or map fails with
// gpucore.ErrDeviceLost.
func (a *Adapter) MarkLost() {
	a.lost.Store(true)
}

// Lost reports whether MarkLost was called.
func (a *Adapter) Lost() bool {
	return a.lost.Load()
}

// MaxBufferSize implements gpucore.GPUAdapter.
func (a *Adapter) MaxBufferSize() uint64 {
	return a.limits.MaxBufferSize
}

// CreateShaderModule implements gpucore.GPUAdapter.
func (a *Adapter) CreateShaderModule(spirv []uint32, label string) (gpucore.ShaderModuleID, error) {
	if a.Lost() {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	if len(spirv) == 0 {
		return gpucore.InvalidID, ErrEmptyBytecode
	}

	module, err := a.device.CreateShaderModule(&hal.ShaderModuleDescriptor{
		Label:  label,
		Source: hal.ShaderSource{SPIRV: spirv},
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create shader module %s: %w", label, err)
	}

	id := gpucore.ShaderModuleID(a.newID())
	a.mu.Lock()
	a.modules[id] = module
	a.mu.Unlock()
	return id, nil
}

// DestroyShaderModule implements gpucore.GPUAdapter.
func (a *Adapter) DestroyShaderModule(id gpucore.ShaderModuleID) {
	a.mu.Lock()
	module, ok := a.modules[id]
	delete(a.modules, id)
	a.mu.Unlock()

	if ok {
		a.device.DestroyShaderModule(module)
	}
}

// CreateBuffer implements gpucore.GPUAdapter.
func (a *Adapter) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if a.Lost() {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	if size <= 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	raw, err := a.device.CreateBuffer(&hal.BufferDescriptor{
		Label: "fxpipe_stream",
		Size:  uint64(size),
		Usage: convertBufferUsage(usage),
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("halgpu: create buffer of %d bytes: %w", size, err)
	}

	id := gpucore.BufferID(a.newID())
	a.mu.Lock()
	a.buffers[id] = &buffer{raw: raw, shadow: make([]byte, size)}
	a.mu.Unlock()
	return id, nil
}

// DestroyBuffer implements gpucore.GPUAdapter.
func (a *Adapter) DestroyBuffer(id gpucore.BufferID) {
	a.mu.Lock()
	b, ok := a.buffers[id]
	delete(a.buffers, id)
	a.mu.Unlock()

	if ok {
		a.device.DestroyBuffer(b.raw)
	}
}

// MapBuffer implements gpucore.GPUAdapter. The returned slice is the
// buffer's CPU shadow.
func (a *Adapter) MapBuffer(id gpucore.BufferID, mode gpucore.MapMode) ([]byte, error) {
	if a.Lost() {
		return nil, gpucore.ErrDeviceLost
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	b, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownBuffer, id)
	}
	if b.mapped {
		return nil, fmt.Errorf("%w: %d", ErrAlreadyMapped, id)
	}
	if mode == gpucore.MapWriteDiscard {
		clear(b.shadow)
	}
	b.mapped = true
	return b.shadow, nil
}

// UnmapBuffer implements gpucore.GPUAdapter. The written range is copied to
// the GPU buffer.
func (a *Adapter) UnmapBuffer(id gpucore.BufferID, offset, size uint64) {
	a.mu.Lock()
	b, ok := a.buffers[id]
	if !ok || !b.mapped {
		a.mu.Unlock()
		return
	}
	b.mapped = false
	end := min(offset+size, uint64(len(b.shadow)))
	var data []byte
	if offset < end {
		data = b.shadow[offset:end]
	}
	a.mu.Unlock()

	if len(data) > 0 && !a.Lost() {
		a.queue.WriteBuffer(b.raw, offset, data)
	}
}

// CreateInputLayout implements gpucore.GPUAdapter.
//
// WebGPU binds vertex layouts at pipeline creation, so the descriptor is
// validated and stored for the drawer to build its pipelines from.
func (a *Adapter) CreateInputLayout(desc *gpucore.InputLayoutDesc) (gpucore.InputLayoutID, error) {
	if a.Lost() {
		return gpucore.InvalidID, gpucore.ErrDeviceLost
	}
	if len(desc.VertexBytecode) == 0 {
		return gpucore.InvalidID, ErrNoVertexSource
	}
	if desc.Stride == 0 || len(desc.Attributes) == 0 {
		return gpucore.InvalidID, fmt.Errorf("%w: %s: stride %d, %d attributes",
			ErrInvalidLayout, desc.Label, desc.Stride, len(desc.Attributes))
	}
	for _, attr := range desc.Attributes {
		size := vertexFormatSize(attr.Format)
		if size == 0 {
			return gpucore.InvalidID, fmt.Errorf("%w: %s: %s%d has no format",
				ErrInvalidLayout, desc.Label, attr.Semantic, attr.Index)
		}
		if attr.Offset+size > desc.Stride {
			return gpucore.InvalidID, fmt.Errorf("%w: %s: %s%d at %d overruns stride %d",
				ErrInvalidLayout, desc.Label, attr.Semantic, attr.Index, attr.Offset, desc.Stride)
		}
	}

	d := *desc
	d.Attributes = append([]gpucore.VertexAttribute(nil), desc.Attributes...)
	d.VertexBytecode = nil

	id := gpucore.InputLayoutID(a.newID())
	a.mu.Lock()
	a.layouts[id] = d
	a.mu.Unlock()
	return id, nil
}

// DestroyInputLayout implements gpucore.GPUAdapter.
func (a *Adapter) DestroyInputLayout(id gpucore.InputLayoutID) {
	a.mu.Lock()
	delete(a.layouts, id)
	a.mu.Unlock()
}

// VertexBufferLayout returns the WebGPU vertex buffer layout for an input
// layout created by this adapter.
func (a *Adapter) VertexBufferLayout(id gpucore.InputLayoutID) (gputypes.VertexBufferLayout, bool) {
	a.mu.RLock()
	d, ok := a.layouts[id]
	a.mu.RUnlock()
	if !ok {
		return gputypes.VertexBufferLayout{}, false
	}

	attrs := make([]gputypes.VertexAttribute, len(d.Attributes))
	for i, attr := range d.Attributes {
		attrs[i] = gputypes.VertexAttribute{
			Format:         convertVertexFormat(attr.Format),
			Offset:         uint64(attr.Offset),
			ShaderLocation: uint32(i),
		}
	}
	return gputypes.VertexBufferLayout{
		ArrayStride: uint64(d.Stride),
		StepMode:    gputypes.VertexStepModeVertex,
		Attributes:  attrs,
	}, true
}

// Buffer returns the hal buffer behind id.
func (a *Adapter) Buffer(id gpucore.BufferID) (hal.Buffer, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.buffers[id]
	if !ok {
		return nil, false
	}
	return b.raw, true
}

// ShaderModule returns the hal shader module behind id.
func (a *Adapter) ShaderModule(id gpucore.ShaderModuleID) (hal.ShaderModule, bool) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	m, ok := a.modules[id]
	return m, ok
}

// Counts reports live resources.
type Counts struct {
	Buffers int
	Modules int
	Layouts int
}

// Counts returns the number of live resources.
func (a *Adapter) Counts() Counts {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return Counts{Buffers: len(a.buffers), Modules: len(a.modules), Layouts: len(a.layouts)}
}

// Close destroys every resource still owned by the adapter. The device
// itself belongs to the caller.
func (a *Adapter) Close() {
	a.mu.Lock()
	buffers := a.buffers
	modules := a.modules
	a.buffers = make(map[gpucore.BufferID]*buffer)
	a.modules = make(map[gpucore.ShaderModuleID]hal.ShaderModule)
	a.layouts = make(map[gpucore.InputLayoutID]gpucore.InputLayoutDesc)
	a.mu.Unlock()

	for _, b := range buffers {
		a.device.DestroyBuffer(b.raw)
	}
	for _, m := range modules {
		a.device.DestroyShaderModule(m)
	}
}

func convertBufferUsage(usage gpucore.BufferUsage) gputypes.BufferUsage {
	var result gputypes.BufferUsage
	if usage&gpucore.BufferUsageMapRead != 0 {
		result |= gputypes.BufferUsageMapRead
	}
	// Uploads use queue writes.
	if usage&(gpucore.BufferUsageCopyDst|gpucore.BufferUsageMapWrite) != 0 {
		result |= gputypes.BufferUsageCopyDst
	}
	if usage&gpucore.BufferUsageCopySrc != 0 {
		result |= gputypes.BufferUsageCopySrc
	}
	if usage&gpucore.BufferUsageIndex != 0 {
		result |= gputypes.BufferUsageIndex
	}
	if usage&gpucore.BufferUsageVertex != 0 {
		result |= gputypes.BufferUsageVertex
	}
	if usage&gpucore.BufferUsageUniform != 0 {
		result |= gputypes.BufferUsageUniform
	}
	return result
}
