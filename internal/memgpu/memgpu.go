// Package memgpu provides an in-memory gpucore.GPUAdapter and Drawer.
//
// Buffers are plain byte slices, so tests can inspect exactly what was
// uploaded. Every call can be made to fail through the Fail* fields.
package memgpu

import (
	"errors"
	"fmt"

	"github.com/gogpu/fxpipe/gpucore"
)

// Errors returned by injected failures.
var (
	ErrInjected      = errors.New("memgpu: injected failure")
	ErrUnknownID     = errors.New("memgpu: unknown resource")
	ErrAlreadyMapped = errors.New("memgpu: buffer already mapped")
	ErrNoSignature   = errors.New("memgpu: input layout needs vertex bytecode")
)

// DiscardFill is written over a whole buffer on a discard map, standing in
// for the undefined contents a driver hands out.
const DiscardFill = 0xCD

// MapRecord records one map/unmap pair.
type MapRecord struct {
	Buffer gpucore.BufferID
	Mode   gpucore.MapMode
	Offset uint64
	Size   uint64
}

type buffer struct {
	data   []byte
	usage  gpucore.BufferUsage
	mapped bool
	mode   gpucore.MapMode
}

// Adapter is an in-memory gpucore.GPUAdapter.
type Adapter struct {
	// MaxBuffer is returned by MaxBufferSize. 0 means unlimited.
	MaxBuffer uint64

	FailBuffer bool
	FailMap    bool
	FailModule bool
	FailLayout bool

	// FailErr, when set, is wrapped by injected failures instead of
	// ErrInjected. Set it to gpucore.ErrDeviceLost to simulate device loss.
	FailErr error

	// Maps holds every completed map, oldest first.
	Maps []MapRecord

	next    uint64
	buffers map[gpucore.BufferID]*buffer
	modules map[gpucore.ShaderModuleID][]uint32
	layouts map[gpucore.InputLayoutID]gpucore.InputLayoutDesc
}

// New returns an empty adapter.
func New() *Adapter {
	return &Adapter{
		buffers: make(map[gpucore.BufferID]*buffer),
		modules: make(map[gpucore.ShaderModuleID][]uint32),
		layouts: make(map[gpucore.InputLayoutID]gpucore.InputLayoutDesc),
	}
}

var _ gpucore.GPUAdapter = (*Adapter)(nil)

func (a *Adapter) injected(format string, args ...any) error {
	cause := a.FailErr
	if cause == nil {
		cause = ErrInjected
	}
	return fmt.Errorf("%w: "+format, append([]any{cause}, args...)...)
}

func (a *Adapter) id() uint64 {
	a.next++
	return a.next
}

// MaxBufferSize implements gpucore.GPUAdapter.
func (a *Adapter) MaxBufferSize() uint64 { return a.MaxBuffer }

// CreateShaderModule implements gpucore.GPUAdapter.
func (a *Adapter) CreateShaderModule(spirv []uint32, label string) (gpucore.ShaderModuleID, error) {
	if a.FailModule {
		return gpucore.InvalidID, a.injected("module %s", label)
	}
	id := gpucore.ShaderModuleID(a.id())
	a.modules[id] = append([]uint32(nil), spirv...)
	return id, nil
}

// DestroyShaderModule implements gpucore.GPUAdapter.
func (a *Adapter) DestroyShaderModule(id gpucore.ShaderModuleID) {
	delete(a.modules, id)
}

// CreateBuffer implements gpucore.GPUAdapter.
func (a *Adapter) CreateBuffer(size int, usage gpucore.BufferUsage) (gpucore.BufferID, error) {
	if a.FailBuffer {
		return gpucore.InvalidID, a.injected("buffer of %d bytes", size)
	}
	id := gpucore.BufferID(a.id())
	a.buffers[id] = &buffer{data: make([]byte, size), usage: usage}
	return id, nil
}

// DestroyBuffer implements gpucore.GPUAdapter.
func (a *Adapter) DestroyBuffer(id gpucore.BufferID) {
	delete(a.buffers, id)
}

// MapBuffer implements gpucore.GPUAdapter.
func (a *Adapter) MapBuffer(id gpucore.BufferID, mode gpucore.MapMode) ([]byte, error) {
	if a.FailMap {
		return nil, a.injected("map buffer %d", id)
	}
	b, ok := a.buffers[id]
	if !ok {
		return nil, fmt.Errorf("%w: buffer %d", ErrUnknownID, id)
	}
	if b.mapped {
		return nil, fmt.Errorf("%w: buffer %d", ErrAlreadyMapped, id)
	}
	if mode == gpucore.MapWriteDiscard {
		for i := range b.data {
			b.data[i] = DiscardFill
		}
	}
	b.mapped = true
	b.mode = mode
	return b.data, nil
}

// UnmapBuffer implements gpucore.GPUAdapter.
func (a *Adapter) UnmapBuffer(id gpucore.BufferID, offset, size uint64) {
	b, ok := a.buffers[id]
	if !ok || !b.mapped {
		return
	}
	b.mapped = false
	a.Maps = append(a.Maps, MapRecord{Buffer: id, Mode: b.mode, Offset: offset, Size: size})
}

// CreateInputLayout implements gpucore.GPUAdapter.
func (a *Adapter) CreateInputLayout(desc *gpucore.InputLayoutDesc) (gpucore.InputLayoutID, error) {
	if a.FailLayout {
		return gpucore.InvalidID, a.injected("input layout %s", desc.Label)
	}
	if len(desc.VertexBytecode) == 0 {
		return gpucore.InvalidID, ErrNoSignature
	}
	id := gpucore.InputLayoutID(a.id())
	d := *desc
	d.Attributes = append([]gpucore.VertexAttribute(nil), desc.Attributes...)
	a.layouts[id] = d
	return id, nil
}

// DestroyInputLayout implements gpucore.GPUAdapter.
func (a *Adapter) DestroyInputLayout(id gpucore.InputLayoutID) {
	delete(a.layouts, id)
}

// Buffer returns the contents of a buffer, or nil if it does not exist.
func (a *Adapter) Buffer(id gpucore.BufferID) []byte {
	if b, ok := a.buffers[id]; ok {
		return b.data
	}
	return nil
}

// Layout returns the descriptor an input layout was created with.
func (a *Adapter) Layout(id gpucore.InputLayoutID) (gpucore.InputLayoutDesc, bool) {
	d, ok := a.layouts[id]
	return d, ok
}

// Live counts the resources that have been created and not destroyed.
type Live struct {
	Buffers int
	Modules int
	Layouts int
}

// Live returns the live resource counts.
func (a *Adapter) Live() Live {
	return Live{Buffers: len(a.buffers), Modules: len(a.modules), Layouts: len(a.layouts)}
}

// Recorder is a gpucore.Drawer that records every draw.
type Recorder struct {
	// Fail, when set, is returned by Draw and nothing is recorded.
	Fail error

	Draws []gpucore.DrawCall
}

// Draw implements gpucore.Drawer.
func (r *Recorder) Draw(call *gpucore.DrawCall) error {
	if r.Fail != nil {
		return r.Fail
	}
	r.Draws = append(r.Draws, *call)
	return nil
}
