package flush

import (
	"errors"
	"fmt"
	"slices"

	"github.com/gogpu/fxpipe/fxstate"
	"github.com/gogpu/fxpipe/gpucore"
	"github.com/gogpu/fxpipe/internal/handle"
)

// ErrNoVertexBytecode is returned when an input layout is needed but the
// active vertex program kept no bytecode.
var ErrNoVertexBytecode = errors.New("flush: vertex program has no bytecode")

// VertexFormat is the native form of a vertex declaration.
//
// Its input layout is created from the bytecode of the first vertex program
// it is drawn with. Only the program's input signature matters, so the
// layout is reused for every later program.
type VertexFormat struct {
	label      string
	stride     uint32
	attrs      []gpucore.VertexAttribute
	components fxstate.Components

	adapter gpucore.GPUAdapter
	layout  handle.Unique[gpucore.InputLayoutID]
}

// NewVertexFormat converts decl. Invalid type and size combinations and
// attributes past the stride are rejected.
func NewVertexFormat(label string, decl *fxstate.VertexDeclaration) (*VertexFormat, error) {
	if decl.Stride == 0 {
		return nil, fmt.Errorf("%w: zero stride", fxstate.ErrInvalidAttribute)
	}
	attrs, err := decl.Attributes()
	if err != nil {
		return nil, err
	}
	return &VertexFormat{
		label:      label,
		stride:     decl.Stride,
		attrs:      attrs,
		components: decl.Components(),
	}, nil
}

// Stride returns the size of one vertex in bytes.
func (f *VertexFormat) Stride() uint32 { return f.stride }

// Components returns the vertex components the format provides.
func (f *VertexFormat) Components() fxstate.Components { return f.components }

// Attributes returns the native attributes in declaration order.
func (f *VertexFormat) Attributes() []gpucore.VertexAttribute { return f.attrs }

// Equal reports whether two formats describe the same native layout.
func (f *VertexFormat) Equal(o *VertexFormat) bool {
	return f.stride == o.stride && slices.Equal(f.attrs, o.attrs)
}

// HasLayout reports whether the input layout has been created.
func (f *VertexFormat) HasLayout() bool { return f.layout.Valid() }

// InputLayout returns the input layout, creating it on adapter from
// vertexBytecode the first time.
func (f *VertexFormat) InputLayout(adapter gpucore.GPUAdapter, vertexBytecode []byte) (gpucore.InputLayoutID, error) {
	if f.layout.Valid() && f.adapter == adapter {
		return f.layout.Get(), nil
	}
	f.Release()
	if len(vertexBytecode) == 0 {
		return gpucore.InvalidID, ErrNoVertexBytecode
	}
	id, err := adapter.CreateInputLayout(&gpucore.InputLayoutDesc{
		Label:          f.label,
		Stride:         f.stride,
		Attributes:     f.attrs,
		VertexBytecode: vertexBytecode,
	})
	if err != nil {
		return gpucore.InvalidID, fmt.Errorf("flush: create input layout %q: %w", f.label, err)
	}
	f.adapter = adapter
	f.layout = handle.New(id, adapter.DestroyInputLayout)
	slogger().Debug("flush: input layout created", "label", f.label, "attributes", len(f.attrs))
	return id, nil
}

// Release destroys the input layout. The next draw recreates it.
func (f *VertexFormat) Release() {
	f.layout.Close()
	f.adapter = nil
}
