package fxpipe

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gogpu/fxpipe/diskcache"
	"github.com/gogpu/fxpipe/flush"
	"github.com/gogpu/fxpipe/fxstate"
	"github.com/gogpu/fxpipe/gpucore"
	"github.com/gogpu/fxpipe/internal/memgpu"
	"github.com/gogpu/fxpipe/shader"
	"github.com/gogpu/fxpipe/stream"
)

const (
	testStride     = 16
	flushTriangles = flush.PrimitiveTriangles
)

// fakeCompiler returns fixed bytecode and fails on sources containing
// failOn. calls, when set, counts compilations.
type fakeCompiler struct {
	failOn string
	calls  *int
}

func (c fakeCompiler) Compile(_ shader.Stage, source string) ([]byte, error) {
	if c.calls != nil {
		*c.calls++
	}
	if c.failOn != "" && strings.Contains(source, c.failOn) {
		return nil, fmt.Errorf("unsupported statement %q", c.failOn)
	}
	return []byte(fmt.Sprintf("%08x", len(source))), nil
}

func testState() State {
	return State{
		Vertex: fxstate.VertexConfig{
			Components:    fxstate.CompPosition | fxstate.CompColor0,
			NumColorChans: 1,
		},
		Pixel: fxstate.PixelConfig{NumTevStages: 1},
	}
}

func testFormat(t *testing.T) *flush.VertexFormat {
	t.Helper()
	decl := fxstate.VertexDeclaration{
		Stride:   testStride,
		Position: fxstate.AttributeFormat{Enable: true, Type: fxstate.VarFloat, Components: 3},
	}
	decl.Colors[0] = fxstate.AttributeFormat{Enable: true, Type: fxstate.VarUnsignedByte, Components: 4, Offset: 12}
	f, err := flush.NewVertexFormat("pos-color", &decl)
	require.NoError(t, err)
	return f
}

func tri() []byte { return make([]byte, 3*testStride) }

func newTestRenderer(t *testing.T, gpu *memgpu.Adapter, draws *memgpu.Recorder, opts ...Option) *Renderer {
	t.Helper()
	opts = append([]Option{WithCompiler(fakeCompiler{}), WithBufferCapacity(4096)}, opts...)
	r, err := New(gpu, draws, opts...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func TestRendererDrawAndFlush(t *testing.T) {
	gpu, draws := memgpu.New(), &memgpu.Recorder{}
	r := newTestRenderer(t, gpu, draws)
	format := testFormat(t)
	state := testState()

	require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
	require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
	assert.Empty(t, draws.Draws)

	require.NoError(t, r.Flush())
	require.Len(t, draws.Draws, 1)
	assert.Equal(t, uint32(6), draws.Draws[0].VertexCount)
	assert.Equal(t, gpucore.TopologyTriangles, draws.Draws[0].Topology)

	st := r.Stats()
	assert.Equal(t, uint64(1), st.Vertex.Created)
	assert.Equal(t, uint64(1), st.Pixel.Created)
	assert.Equal(t, uint64(1), st.Flush.Draws)
	assert.Equal(t, uint64(1), st.Stream.Appends)
}

func TestRendererStateChangeFlushes(t *testing.T) {
	gpu, draws := memgpu.New(), &memgpu.Recorder{}
	r := newTestRenderer(t, gpu, draws)
	format := testFormat(t)

	a := testState()
	b := testState()
	b.Pixel.NumTevStages = 2

	require.NoError(t, r.Draw(&a, format, flushTriangles, tri()))
	require.NoError(t, r.Draw(&b, format, flushTriangles, tri()))
	require.Len(t, draws.Draws, 1, "state change flushes the pending batch")

	require.NoError(t, r.Flush())
	require.Len(t, draws.Draws, 2)
	assert.NotEqual(t, draws.Draws[0].PixelShader, draws.Draws[1].PixelShader)
	assert.Equal(t, draws.Draws[0].VertexShader, draws.Draws[1].VertexShader)
}

func TestRendererTopologyChangeFlushes(t *testing.T) {
	gpu, draws := memgpu.New(), &memgpu.Recorder{}
	r := newTestRenderer(t, gpu, draws)
	format := testFormat(t)
	state := testState()

	require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
	require.NoError(t, r.Draw(&state, format, flush.PrimitiveLineStrip, make([]byte, 3*testStride)))
	require.NoError(t, r.Flush())

	require.Len(t, draws.Draws, 2)
	assert.Equal(t, gpucore.TopologyTriangles, draws.Draws[0].Topology)
	assert.Equal(t, gpucore.TopologyLines, draws.Draws[1].Topology)
	assert.Equal(t, uint32(4), draws.Draws[1].IndexCount)
}

func TestRendererCompileFailureSkips(t *testing.T) {
	gpu, draws := memgpu.New(), &memgpu.Recorder{}
	calls := 0
	r := newTestRenderer(t, gpu, draws, WithCompiler(fakeCompiler{failOn: "discard", calls: &calls}))
	format := testFormat(t)

	state := testState()
	state.Pixel.AlphaTest.Enabled = true
	for range 3 {
		require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
		require.NoError(t, r.Flush())
	}

	assert.Empty(t, draws.Draws)
	st := r.Stats()
	assert.Equal(t, uint64(3), st.Flush.ShaderFailures)
	assert.Equal(t, uint64(1), st.Pixel.Failures)
	assert.Equal(t, 1, calls, "a failed permutation is not compiled again")
}

func TestRendererDiskCache(t *testing.T) {
	for _, codec := range []diskcache.Codec{diskcache.CodecNone, diskcache.CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			dir := t.TempDir() + "/cache"
			state := testState()

			calls := 0
			opts := []Option{
				WithCacheDir(dir),
				WithUniqueID("GALE01"),
				WithCompression(codec),
				WithCompiler(fakeCompiler{calls: &calls}),
				WithBufferCapacity(4096),
			}

			r, err := New(memgpu.New(), &memgpu.Recorder{}, opts...)
			require.NoError(t, err)
			require.NoError(t, r.Draw(&state, testFormat(t), flushTriangles, tri()))
			require.NoError(t, r.Flush())
			require.NoError(t, r.Close())
			require.Equal(t, 2, calls)

			assert.Equal(t, dir+"/hal-GALE01-vs.cache", r.CachePath(shader.StageVertex))
			for _, stage := range []shader.Stage{shader.StageVertex, shader.StagePixel} {
				_, err := os.Stat(r.CachePath(stage))
				assert.NoError(t, err)
			}

			draws := &memgpu.Recorder{}
			r, err = New(memgpu.New(), draws, opts...)
			require.NoError(t, err)
			defer r.Close()

			st := r.Stats()
			assert.Equal(t, uint64(1), st.Vertex.Loaded)
			assert.Equal(t, uint64(1), st.Pixel.Loaded)

			require.NoError(t, r.Draw(&state, testFormat(t), flushTriangles, tri()))
			require.NoError(t, r.Flush())
			assert.Len(t, draws.Draws, 1)
			assert.Equal(t, 2, calls, "loaded programs are not recompiled")
		})
	}
}

func TestRendererValidationSkipsDiskPrograms(t *testing.T) {
	dir := t.TempDir()
	state := testState()

	r, err := New(memgpu.New(), &memgpu.Recorder{}, WithCacheDir(dir), WithCompiler(fakeCompiler{}))
	require.NoError(t, err)
	require.NoError(t, r.Draw(&state, testFormat(t), flushTriangles, tri()))
	require.NoError(t, r.Flush())
	require.NoError(t, r.Close())

	r = newTestRenderer(t, memgpu.New(), &memgpu.Recorder{}, WithCacheDir(dir), WithShaderValidation(true))
	st := r.Stats()
	assert.Zero(t, st.Vertex.Loaded)
	assert.Zero(t, st.Vertex.Entries)
}

func TestRendererSetShaderValidation(t *testing.T) {
	gpu, draws := memgpu.New(), &memgpu.Recorder{}
	r := newTestRenderer(t, gpu, draws)
	format := testFormat(t)
	state := testState()

	require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
	require.NoError(t, r.Flush())
	require.Equal(t, 2, gpu.Live().Modules)

	require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
	require.NoError(t, r.SetShaderValidation(true))
	assert.Len(t, draws.Draws, 2, "pending batch is drawn before the caches are cleared")
	assert.Zero(t, r.Stats().Vertex.Entries)
	assert.Zero(t, gpu.Live().Modules)
	assert.Zero(t, r.coord.Staging().VertexCount())

	require.NoError(t, r.SetShaderValidation(true))
	require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
	require.NoError(t, r.Flush())
	assert.Len(t, draws.Draws, 3)
	assert.Zero(t, r.Stats().Vertex.Collisions)
}

func TestRendererMaxPermutations(t *testing.T) {
	gpu, draws := memgpu.New(), &memgpu.Recorder{}
	r := newTestRenderer(t, gpu, draws, WithMaxPermutations(1))
	format := testFormat(t)

	for i := range 3 {
		state := testState()
		state.Vertex.NumTexGens = i
		require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
		require.NoError(t, r.Flush())
	}
	assert.Len(t, draws.Draws, 3)
	st := r.Stats()
	assert.Equal(t, 1, st.Vertex.Entries)
	assert.Equal(t, uint64(2), st.Vertex.Evictions)
	assert.Equal(t, 2, gpu.Live().Modules, "one vertex and one pixel program remain")
}

func TestRendererDeviceLost(t *testing.T) {
	gpu, draws := memgpu.New(), &memgpu.Recorder{}
	r := newTestRenderer(t, gpu, draws)
	format := testFormat(t)
	state := testState()

	draws.Fail = fmt.Errorf("submit: %w", gpucore.ErrDeviceLost)
	require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
	err := r.Flush()
	require.ErrorIs(t, err, ErrDeviceLost)

	assert.Equal(t, memgpu.Live{}, gpu.Live())
	assert.ErrorIs(t, r.Draw(&state, format, flushTriangles, tri()), ErrDeviceLost)
	assert.ErrorIs(t, r.Flush(), ErrDeviceLost)

	fresh := memgpu.New()
	draws.Fail = nil
	require.NoError(t, r.ResetDevice(fresh))
	require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
	require.NoError(t, r.Flush())

	require.Len(t, draws.Draws, 1)
	assert.Equal(t, memgpu.Live{Buffers: stream.DefaultBufferCount, Modules: 2, Layouts: 1}, fresh.Live())
	assert.Equal(t, memgpu.Live{}, gpu.Live())
}

func TestRendererAdapterDeviceLoss(t *testing.T) {
	tests := []struct {
		name   string
		inject func(*memgpu.Adapter)
	}{
		{"module", func(g *memgpu.Adapter) { g.FailModule = true }},
		{"layout", func(g *memgpu.Adapter) { g.FailLayout = true }},
		{"map", func(g *memgpu.Adapter) { g.FailMap = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gpu, draws := memgpu.New(), &memgpu.Recorder{}
			r := newTestRenderer(t, gpu, draws)
			format := testFormat(t)
			state := testState()

			gpu.FailErr = gpucore.ErrDeviceLost
			tt.inject(gpu)

			require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
			require.ErrorIs(t, r.Flush(), ErrDeviceLost)
			assert.Empty(t, draws.Draws)
			assert.Zero(t, r.Stats().Vertex.Failures+r.Stats().Pixel.Failures)
			assert.ErrorIs(t, r.Draw(&state, format, flushTriangles, tri()), ErrDeviceLost)

			require.NoError(t, r.ResetDevice(memgpu.New()))
			require.NoError(t, r.Draw(&state, format, flushTriangles, tri()))
			require.NoError(t, r.Flush())
			assert.Len(t, draws.Draws, 1)
		})
	}
}

func TestRendererCapacityExceeded(t *testing.T) {
	r := newTestRenderer(t, memgpu.New(), &memgpu.Recorder{}, WithBufferCapacity(256))
	state := testState()
	err := r.Draw(&state, testFormat(t), flush.PrimitivePoints, make([]byte, 17*testStride))
	assert.ErrorIs(t, err, stream.ErrCapacityExceeded)
}

func TestRendererClose(t *testing.T) {
	gpu := memgpu.New()
	r, err := New(gpu, &memgpu.Recorder{}, WithCompiler(fakeCompiler{}))
	require.NoError(t, err)

	state := testState()
	require.NoError(t, r.Draw(&state, testFormat(t), flushTriangles, tri()))
	require.NoError(t, r.Flush())

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	assert.Equal(t, memgpu.Live{}, gpu.Live())
	assert.ErrorIs(t, r.Draw(&state, testFormat(t), flushTriangles, tri()), ErrClosed)
	assert.ErrorIs(t, r.ResetDevice(memgpu.New()), ErrClosed)
}

func TestRendererNew(t *testing.T) {
	_, err := New(nil, &memgpu.Recorder{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = New(memgpu.New(), &memgpu.Recorder{}, WithBufferCount(1))
	assert.ErrorIs(t, err, stream.ErrInvalidConfig)

	gpu := memgpu.New()
	gpu.FailBuffer = true
	_, err = New(gpu, &memgpu.Recorder{})
	assert.True(t, errors.Is(err, memgpu.ErrInjected))
}
