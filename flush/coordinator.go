package flush

import (
	"errors"
	"fmt"

	"github.com/gogpu/fxpipe/gpucore"
	"github.com/gogpu/fxpipe/shader"
	"github.com/gogpu/fxpipe/stream"
)

// ErrInvalidConfig is returned by New for an incomplete Config.
var ErrInvalidConfig = errors.New("flush: invalid coordinator config")

// State is the state of a Coordinator.
type State int

const (
	// StateAccumulating means staging receives geometry and nothing touches
	// the GPU.
	StateAccumulating State = iota

	// StateFlushing means a batch is being selected, uploaded and drawn.
	StateFlushing
)

// String returns the string representation of State.
func (s State) String() string {
	switch s {
	case StateAccumulating:
		return "Accumulating"
	case StateFlushing:
		return "Flushing"
	default:
		return fmt.Sprintf("Unknown(%d)", int(s))
	}
}

// Selector makes the program for a configuration active.
// *shader.Cache implements it.
type Selector[C any] interface {
	Select(cfg *C) bool
	Active() *shader.Entry

	// Err returns the error behind a failed Select that was not cached,
	// such as gpucore.ErrDeviceLost.
	Err() error
}

// Uploader places a batch into GPU memory.
// *stream.Allocator implements it.
type Uploader interface {
	PlaceAndUpload(vertices []byte, stride uint32, indices []byte) (stream.Placement, error)
	CheckCapacity(vertexLen, indexLen uint64) error
}

// Config wires a Coordinator to its collaborators.
type Config[V, P any] struct {
	Vertex  Selector[V]
	Pixel   Selector[P]
	Upload  Uploader
	Adapter gpucore.GPUAdapter
	Drawer  gpucore.Drawer
}

// Stats contains coordinator statistics.
type Stats struct {
	Flushes        uint64
	Draws          uint64
	Skipped        uint64
	Empty          uint64
	ShaderFailures uint64
	LayoutFailures uint64
	UploadFailures uint64
	DrawFailures   uint64
	Vertices       uint64
}

// Coordinator accumulates geometry and flushes it as one draw per batch.
//
// Flush selects the pixel then the vertex program, uploads the staged
// geometry and submits the draw. A batch whose programs, layout, upload or
// draw fail is dropped: the failure is logged and staging is reset, so
// nothing stale reaches the next batch. Only ErrCapacityExceeded and
// gpucore.ErrDeviceLost are returned to the caller.
//
// Coordinator is not safe for concurrent use.
type Coordinator[V, P any] struct {
	vertex  Selector[V]
	pixel   Selector[P]
	upload  Uploader
	adapter gpucore.GPUAdapter
	drawer  gpucore.Drawer

	staging Staging
	format  *VertexFormat
	formats []*VertexFormat
	state   State
	stats   Stats
}

// New creates a coordinator in the Accumulating state.
func New[V, P any](cfg Config[V, P]) (*Coordinator[V, P], error) {
	switch {
	case cfg.Vertex == nil || cfg.Pixel == nil:
		return nil, fmt.Errorf("%w: nil shader selector", ErrInvalidConfig)
	case cfg.Upload == nil:
		return nil, fmt.Errorf("%w: nil uploader", ErrInvalidConfig)
	case cfg.Adapter == nil:
		return nil, fmt.Errorf("%w: nil adapter", ErrInvalidConfig)
	case cfg.Drawer == nil:
		return nil, fmt.Errorf("%w: nil drawer", ErrInvalidConfig)
	}
	return &Coordinator[V, P]{
		vertex:  cfg.Vertex,
		pixel:   cfg.Pixel,
		upload:  cfg.Upload,
		adapter: cfg.Adapter,
		drawer:  cfg.Drawer,
	}, nil
}

// State returns the current state.
func (c *Coordinator[V, P]) State() State { return c.state }

// Staging returns the staging buffers of the current batch.
func (c *Coordinator[V, P]) Staging() *Staging { return &c.staging }

// Format returns the vertex format of the current batch, or nil.
func (c *Coordinator[V, P]) Format() *VertexFormat { return c.format }

// NeedsFlush reports whether adding vertices of primitive p in format f
// requires the staged batch to be flushed first. A topology class change,
// a vertex format change, u16 index overflow and ring capacity are batch
// boundaries.
func (c *Coordinator[V, P]) NeedsFlush(f *VertexFormat, p Primitive, vertexLen int) bool {
	if c.staging.VertexCount() == 0 || f == nil {
		return false
	}
	if c.format != nil && c.format != f && !c.format.Equal(f) {
		return true
	}
	n := vertexLen / int(f.Stride())
	if !c.staging.Accepts(p, f.Stride(), n) {
		return true
	}
	indexLen := uint64(c.staging.IndexCount()+p.IndexCount(n)) * gpucore.IndexSize
	return c.upload.CheckCapacity(uint64(len(c.staging.VertexBytes())+vertexLen), indexLen) != nil
}

// Add stages vertices of primitive p in format f. It returns
// ErrBatchBoundary when NeedsFlush is true, and ErrCapacityExceeded when
// the vertices alone could never be placed.
func (c *Coordinator[V, P]) Add(f *VertexFormat, p Primitive, vertices []byte) error {
	if f == nil {
		return fmt.Errorf("%w: nil vertex format", ErrInvalidVertices)
	}
	n := len(vertices) / int(f.Stride())
	if err := c.upload.CheckCapacity(uint64(len(vertices)), uint64(p.IndexCount(n))*gpucore.IndexSize); err != nil {
		return err
	}
	if c.NeedsFlush(f, p, len(vertices)) {
		return fmt.Errorf("%w: %s in format %q", ErrBatchBoundary, p, f.label)
	}
	if err := c.staging.Append(p, f.Stride(), vertices); err != nil {
		return err
	}
	if c.format == nil {
		c.useFormat(f)
	}
	c.stats.Vertices += uint64(n)
	return nil
}

func (c *Coordinator[V, P]) useFormat(f *VertexFormat) {
	c.format = f
	for _, known := range c.formats {
		if known == f {
			return
		}
	}
	c.formats = append(c.formats, f)
}

// Flush draws the staged batch with the programs selected for vcfg and
// pcfg, then returns to Accumulating with empty staging. An empty batch
// is discarded without a draw.
func (c *Coordinator[V, P]) Flush(vcfg *V, pcfg *P) error {
	if c.staging.Empty() {
		if c.staging.VertexCount() > 0 {
			c.stats.Empty++
		}
		c.reset()
		return nil
	}

	c.state = StateFlushing
	defer c.reset()
	c.stats.Flushes++

	if c.format == nil {
		return c.skip(&c.stats.LayoutFailures, "no vertex format", nil)
	}
	if !c.pixel.Select(pcfg) {
		return c.skip(&c.stats.ShaderFailures, "pixel program unavailable", c.pixel.Err())
	}
	if !c.vertex.Select(vcfg) {
		return c.skip(&c.stats.ShaderFailures, "vertex program unavailable", c.vertex.Err())
	}
	vs, ps := c.vertex.Active(), c.pixel.Active()

	layout, err := c.format.InputLayout(c.adapter, vs.Program.Bytecode())
	if err != nil {
		return c.skip(&c.stats.LayoutFailures, "input layout unavailable", err)
	}

	stride := c.staging.Stride()
	p, err := c.upload.PlaceAndUpload(c.staging.VertexBytes(), stride, c.staging.IndexBytes())
	if err != nil {
		if errors.Is(err, stream.ErrCapacityExceeded) {
			c.stats.Skipped++
			return err
		}
		return c.skip(&c.stats.UploadFailures, "upload failed", err)
	}

	call := gpucore.DrawCall{
		Buffer:       p.Buffer,
		VertexStride: stride,
		VertexOffset: p.VertexOffset,
		IndexOffset:  p.IndexOffset,
		VertexCount:  uint32(c.staging.VertexCount()),
		IndexCount:   uint32(c.staging.IndexCount()),
		Topology:     c.staging.Topology(),
		VertexShader: vs.Program.Module(),
		PixelShader:  ps.Program.Module(),
		InputLayout:  layout,
	}
	if err := c.drawer.Draw(&call); err != nil {
		return c.skip(&c.stats.DrawFailures, "draw failed", err)
	}
	c.stats.Draws++

	slogger().Debug("flush: draw",
		"topology", call.Topology.String(), "vertices", call.VertexCount, "indices", call.IndexCount,
		"vertexOffset", call.VertexOffset, "firstIndex", call.FirstIndex())
	return nil
}

// skip records a dropped batch. Per-batch failures never reach the caller;
// gpucore.ErrDeviceLost is returned.
func (c *Coordinator[V, P]) skip(counter *uint64, msg string, err error) error {
	c.stats.Skipped++
	if errors.Is(err, gpucore.ErrDeviceLost) {
		slogger().Warn("flush: device lost: "+msg, "err", err)
		return err
	}
	*counter++
	attrs := []any{"vertices", c.staging.VertexCount(), "topology", c.staging.Topology().String()}
	if err != nil {
		attrs = append(attrs, "err", err)
	}
	slogger().Warn("flush: batch skipped: "+msg, attrs...)
	return nil
}

func (c *Coordinator[V, P]) reset() {
	c.staging.Reset()
	c.format = nil
	c.state = StateAccumulating
}

// Discard drops the staged batch without drawing.
func (c *Coordinator[V, P]) Discard() {
	c.reset()
}

// DeviceLost drops the staged batch and releases every input layout the
// coordinator created. Layouts are recreated on adapter by later draws.
func (c *Coordinator[V, P]) DeviceLost(adapter gpucore.GPUAdapter) {
	c.reset()
	for _, f := range c.formats {
		f.Release()
	}
	c.formats = c.formats[:0]
	if adapter != nil {
		c.adapter = adapter
	}
}

// Stats returns coordinator statistics.
func (c *Coordinator[V, P]) Stats() Stats {
	return c.stats
}
