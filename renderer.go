package fxpipe

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gogpu/fxpipe/diskcache"
	"github.com/gogpu/fxpipe/flush"
	"github.com/gogpu/fxpipe/fxstate"
	"github.com/gogpu/fxpipe/gpucore"
	"github.com/gogpu/fxpipe/internal/wgslgen"
	"github.com/gogpu/fxpipe/shader"
	"github.com/gogpu/fxpipe/stream"
)

// State is the pipeline configuration of a batch.
type State struct {
	Vertex fxstate.VertexConfig
	Pixel  fxstate.PixelConfig
}

// Stats contains renderer statistics.
type Stats struct {
	Vertex shader.Stats
	Pixel  shader.Stats
	Stream stream.Stats
	Flush  flush.Stats
}

// Renderer is the rendering context. It owns the vertex and pixel shader
// caches, the streaming allocator and the flush coordinator.
//
// Geometry is submitted with Draw, which flushes the pending batch whenever
// the state, vertex format or topology changes. Flush draws whatever is
// pending.
//
// Renderer is not safe for concurrent use. All calls must come from the
// goroutine that owns the GPU context.
type Renderer struct {
	adapter gpucore.GPUAdapter
	opts    options

	vertex *shader.Cache[fxstate.VertexConfig]
	pixel  *shader.Cache[fxstate.PixelConfig]
	alloc  *stream.Allocator
	coord  *flush.Coordinator[fxstate.VertexConfig, fxstate.PixelConfig]

	pending    State
	pendingKey [2]shader.Key

	lost   bool
	closed bool
}

// New creates a renderer drawing through drawer on adapter.
//
// When a cache directory is set, both shader caches load their programs
// from disk. A disk cache that cannot be opened is logged and skipped.
func New(adapter gpucore.GPUAdapter, drawer gpucore.Drawer, opts ...Option) (*Renderer, error) {
	if adapter == nil || drawer == nil {
		return nil, fmt.Errorf("%w: nil adapter or drawer", ErrInvalidConfig)
	}
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	r := &Renderer{adapter: adapter, opts: o}

	var err error
	r.vertex, err = shader.NewCache(shader.Config[fxstate.VertexConfig]{
		Stage:          shader.StageVertex,
		Key:            (*fxstate.VertexConfig).Key,
		Generate:       wgslgen.Vertex,
		Compiler:       o.compiler,
		Modules:        adapter,
		RetainBytecode: true,
		Validate:       o.validate,
		DumpDir:        o.dumpDir,
		MaxEntries:     o.maxPermutations,
	})
	if err != nil {
		return nil, err
	}
	r.pixel, err = shader.NewCache(shader.Config[fxstate.PixelConfig]{
		Stage:      shader.StagePixel,
		Key:        (*fxstate.PixelConfig).Key,
		Generate:   wgslgen.Pixel,
		Compiler:   o.compiler,
		Modules:    adapter,
		Validate:   o.validate,
		DumpDir:    o.dumpDir,
		MaxEntries: o.maxPermutations,
	})
	if err != nil {
		return nil, err
	}

	r.alloc, err = stream.New(adapter, stream.Config{Capacity: o.bufferCapacity, BufferCount: o.bufferCount})
	if err != nil {
		return nil, err
	}

	r.coord, err = flush.New(flush.Config[fxstate.VertexConfig, fxstate.PixelConfig]{
		Vertex:  r.vertex,
		Pixel:   r.pixel,
		Upload:  r.alloc,
		Adapter: adapter,
		Drawer:  drawer,
	})
	if err != nil {
		r.alloc.Close()
		return nil, err
	}

	r.attachStores()
	return r, nil
}

// CachePath returns the disk cache file of a stage, or "" when no cache
// directory is set.
func (r *Renderer) CachePath(stage shader.Stage) string {
	if r.opts.cacheDir == "" {
		return ""
	}
	return filepath.Join(r.opts.cacheDir, shader.CacheFileName(r.opts.backend, r.opts.uniqueID, stage))
}

func (r *Renderer) attachStores() {
	if r.opts.cacheDir == "" {
		return
	}
	if err := os.MkdirAll(r.opts.cacheDir, 0o755); err != nil {
		Logger().Warn("fxpipe: shader disk cache disabled", "dir", r.opts.cacheDir, "err", err)
		return
	}
	dopts := diskcache.Options{Version: wgslgen.Version, Codec: r.opts.codec}
	if err := r.vertex.AttachStore(r.CachePath(shader.StageVertex), dopts); err != nil {
		Logger().Warn("fxpipe: vertex disk cache disabled", "err", err)
	}
	if err := r.pixel.AttachStore(r.CachePath(shader.StagePixel), dopts); err != nil {
		Logger().Warn("fxpipe: pixel disk cache disabled", "err", err)
	}
}

func (r *Renderer) usable() error {
	switch {
	case r.closed:
		return ErrClosed
	case r.lost:
		return ErrDeviceLost
	}
	return nil
}

// Draw submits vertices of primitive p in format f, drawn with state.
// The pending batch is flushed first when it cannot be extended.
func (r *Renderer) Draw(state *State, f *flush.VertexFormat, p flush.Primitive, vertices []byte) error {
	if err := r.usable(); err != nil {
		return err
	}
	key := [2]shader.Key{state.Vertex.Key(), state.Pixel.Key()}

	if r.coord.Staging().VertexCount() > 0 &&
		(key != r.pendingKey || r.coord.NeedsFlush(f, p, len(vertices))) {
		if err := r.Flush(); err != nil {
			return err
		}
	}

	if err := r.coord.Add(f, p, vertices); err != nil {
		return err
	}
	r.pending = *state
	r.pendingKey = key
	return nil
}

// Flush draws the pending batch. Shader, upload and draw failures drop
// the batch and are only logged. ErrCapacityExceeded and ErrDeviceLost
// are returned; after ErrDeviceLost the renderer refuses work until
// ResetDevice.
func (r *Renderer) Flush() error {
	if err := r.usable(); err != nil {
		return err
	}
	err := r.coord.Flush(&r.pending.Vertex, &r.pending.Pixel)
	if errors.Is(err, gpucore.ErrDeviceLost) {
		r.DeviceLost()
	}
	return err
}

// DeviceLost tears down everything that lives on the device: pending
// geometry, every cached program, input layouts and ring buffers.
func (r *Renderer) DeviceLost() {
	if r.lost || r.closed {
		return
	}
	r.coord.DeviceLost(nil)
	r.vertex.Clear()
	r.pixel.Clear()
	r.alloc.Close()
	r.lost = true
	Logger().Warn("fxpipe: device lost")
}

// ResetDevice switches to a new adapter after device loss. The shader
// caches are reloaded from disk and the ring buffers recreated.
func (r *Renderer) ResetDevice(adapter gpucore.GPUAdapter) error {
	if r.closed {
		return ErrClosed
	}
	if adapter == nil {
		return fmt.Errorf("%w: nil adapter", ErrInvalidConfig)
	}
	r.DeviceLost()

	if err := r.vertex.Reload(adapter); err != nil {
		Logger().Warn("fxpipe: vertex disk cache disabled", "err", err)
	}
	if err := r.pixel.Reload(adapter); err != nil {
		Logger().Warn("fxpipe: pixel disk cache disabled", "err", err)
	}
	if err := r.alloc.Recreate(adapter); err != nil {
		return fmt.Errorf("fxpipe: reset device: %w", err)
	}
	r.coord.DeviceLost(adapter)
	r.adapter = adapter
	r.lost = false
	Logger().Info("fxpipe: device reset",
		"vertexPrograms", r.vertex.Len(), "pixelPrograms", r.pixel.Len())
	return nil
}

// SetShaderValidation toggles key collision checking. Changing it flushes
// the pending batch and then clears both caches. The error is that of the
// flush.
func (r *Renderer) SetShaderValidation(on bool) error {
	if on == r.vertex.Validating() {
		return nil
	}
	var err error
	if !r.closed && !r.lost {
		err = r.Flush()
	}
	r.coord.Discard()
	r.vertex.SetValidation(on)
	r.pixel.SetValidation(on)
	return err
}

// Stats returns renderer statistics.
func (r *Renderer) Stats() Stats {
	return Stats{
		Vertex: r.vertex.Stats(),
		Pixel:  r.pixel.Stats(),
		Stream: r.alloc.Stats(),
		Flush:  r.coord.Stats(),
	}
}

// Close drops the pending batch and releases every GPU resource.
// The disk caches are synced and closed. Close is idempotent.
func (r *Renderer) Close() error {
	if r.closed {
		return nil
	}
	r.closed = true
	r.coord.DeviceLost(nil)
	err := errors.Join(r.vertex.Close(), r.pixel.Close())
	r.alloc.Close()
	return err
}
