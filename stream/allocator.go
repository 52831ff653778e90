package stream

import (
	"errors"
	"fmt"

	"github.com/gogpu/fxpipe/gpucore"
	"github.com/gogpu/fxpipe/internal/handle"
)

// Allocator errors.
var (
	// ErrMapFailed is returned when a ring buffer cannot be mapped for CPU
	// writes. The flush that needed it is abandoned.
	ErrMapFailed = errors.New("stream: buffer map failed")

	// ErrInvalidConfig is returned by New for unusable settings.
	ErrInvalidConfig = errors.New("stream: invalid allocator config")

	// ErrClosed is returned after Close.
	ErrClosed = errors.New("stream: allocator closed")
)

// Defaults.
const (
	DefaultCapacity    = 4 << 20
	DefaultBufferCount = 2
	MinBufferCount     = 2
)

// Config configures an Allocator.
type Config struct {
	// Capacity is the size of each ring buffer in bytes.
	// Default: DefaultCapacity.
	Capacity uint64

	// BufferCount is the number of ring buffers. A buffer is only reclaimed
	// with a discard after every other buffer has been written, so the
	// count bounds how long the GPU has to finish reading it.
	// Default: DefaultBufferCount. Minimum: MinBufferCount.
	BufferCount int
}

func (c *Config) applyDefaults() {
	if c.Capacity == 0 {
		c.Capacity = DefaultCapacity
	}
	if c.BufferCount == 0 {
		c.BufferCount = DefaultBufferCount
	}
}

// Stats contains allocator statistics.
type Stats struct {
	VertexBytes uint64
	IndexBytes  uint64
	Appends     uint64
	Discards    uint64
	MapFailures uint64
}

// Allocator places per-flush vertex and index data into a small set of
// GPU-visible ring buffers.
//
// Each batch is appended behind the previous one in the active buffer with
// a no-overwrite mapping. When it does not fit, the allocator moves to the
// next buffer in round-robin order and maps it with discard.
//
// Allocator is not safe for concurrent use.
type Allocator struct {
	adapter gpucore.GPUAdapter
	ring    Ring
	buffers []handle.Unique[gpucore.BufferID]
	stats   Stats
	closed  bool
}

// New creates the ring buffers.
func New(adapter gpucore.GPUAdapter, cfg Config) (*Allocator, error) {
	cfg.applyDefaults()
	if cfg.BufferCount < MinBufferCount {
		return nil, fmt.Errorf("%w: %d buffers, minimum %d", ErrInvalidConfig, cfg.BufferCount, MinBufferCount)
	}
	capacity := alignDown(cfg.Capacity)
	if capacity == 0 {
		return nil, fmt.Errorf("%w: capacity %d below alignment", ErrInvalidConfig, cfg.Capacity)
	}
	if limit := adapter.MaxBufferSize(); limit > 0 && capacity > limit {
		return nil, fmt.Errorf("%w: capacity %d above device limit %d", ErrInvalidConfig, capacity, limit)
	}

	a := &Allocator{
		adapter: adapter,
		ring:    NewRing(capacity, cfg.BufferCount),
	}
	if err := a.createBuffers(cfg.BufferCount); err != nil {
		return nil, err
	}
	slogger().Debug("stream: allocator created", "capacity", capacity, "buffers", cfg.BufferCount)
	return a, nil
}

func (a *Allocator) createBuffers(count int) error {
	a.buffers = make([]handle.Unique[gpucore.BufferID], count)
	for i := range a.buffers {
		id, err := a.adapter.CreateBuffer(int(a.ring.Capacity()), gpucore.StreamingBufferUsage)
		if err != nil {
			a.releaseBuffers()
			return fmt.Errorf("stream: create buffer %d: %w", i, err)
		}
		a.buffers[i] = handle.New(id, a.adapter.DestroyBuffer)
	}
	return nil
}

func (a *Allocator) releaseBuffers() {
	for i := range a.buffers {
		a.buffers[i].Close()
	}
	a.buffers = nil
}

// PlaceAndUpload copies one batch into the ring and returns its placement.
//
// The vertex region starts on a multiple of the stride and of Alignment;
// the index region follows on the next Alignment boundary. Padding bytes
// are zeroed. On error the ring state is unchanged.
func (a *Allocator) PlaceAndUpload(vertices []byte, stride uint32, indices []byte) (Placement, error) {
	if a.closed {
		return Placement{}, ErrClosed
	}

	p, err := a.ring.Plan(uint64(len(vertices)), stride, uint64(len(indices)))
	if err != nil {
		return Placement{}, err
	}
	p.Buffer = a.buffers[p.BufferIndex].Get()

	dst, err := a.adapter.MapBuffer(p.Buffer, p.Mode)
	if err != nil {
		a.stats.MapFailures++
		return Placement{}, fmt.Errorf("%w: buffer %d (%s): %w", ErrMapFailed, p.BufferIndex, p.Mode, err)
	}
	if uint64(len(dst)) < p.End() {
		a.adapter.UnmapBuffer(p.Buffer, 0, 0)
		a.stats.MapFailures++
		return Placement{}, fmt.Errorf("%w: mapped %d bytes, need %d", ErrMapFailed, len(dst), p.End())
	}

	vertexRegion := dst[p.VertexByteOffset:p.IndexOffset]
	n := copyAligned(vertexRegion, vertices)
	clear(vertexRegion[n:])

	indexRegion := dst[p.IndexOffset:p.End()]
	n = copyAligned(indexRegion, indices)
	clear(indexRegion[n:])

	a.adapter.UnmapBuffer(p.Buffer, p.VertexByteOffset, p.End()-p.VertexByteOffset)
	a.ring.Commit(p)

	a.stats.VertexBytes += uint64(len(vertices))
	a.stats.IndexBytes += uint64(len(indices))
	if p.Mode == gpucore.MapWriteDiscard {
		a.stats.Discards++
	} else {
		a.stats.Appends++
	}

	slogger().Debug("stream: placed batch",
		"buffer", p.BufferIndex, "mode", p.Mode.String(),
		"vertexOffset", p.VertexOffset, "indexOffset", p.IndexOffset)
	return p, nil
}

// CheckCapacity reports ErrCapacityExceeded when a batch of the given size
// could never be placed.
func (a *Allocator) CheckCapacity(vertexLen, indexLen uint64) error {
	if !a.ring.Fits(vertexLen, indexLen) {
		return fmt.Errorf("%w: %d vertex + %d index bytes, capacity %d",
			ErrCapacityExceeded, vertexLen, indexLen, a.ring.Capacity())
	}
	return nil
}

// Capacity returns the per-buffer capacity in bytes.
func (a *Allocator) Capacity() uint64 {
	return a.ring.Capacity()
}

// BufferCount returns the number of ring buffers.
func (a *Allocator) BufferCount() int {
	return len(a.buffers)
}

// Reset moves the ring back to buffer 0, cursor 0.
func (a *Allocator) Reset() {
	a.ring.Reset()
}

// Recreate releases the ring buffers and creates new ones on adapter,
// then resets the ring. It is used after device loss.
func (a *Allocator) Recreate(adapter gpucore.GPUAdapter) error {
	count := len(a.buffers)
	if count == 0 {
		count = a.ring.count
	}
	a.releaseBuffers()
	a.adapter = adapter
	a.ring.Reset()
	if err := a.createBuffers(count); err != nil {
		return err
	}
	a.closed = false
	return nil
}

// Stats returns allocator statistics.
func (a *Allocator) Stats() Stats {
	return a.stats
}

// Close releases the ring buffers. Close is idempotent.
func (a *Allocator) Close() {
	if a.closed {
		return
	}
	a.releaseBuffers()
	a.closed = true
}
