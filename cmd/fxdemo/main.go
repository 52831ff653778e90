// Command fxdemo drives the fxpipe renderer with random pipeline states on
// a noop WebGPU device and prints cache and streaming statistics.
package main

import (
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand/v2"
	"os"

	"github.com/gogpu/fxpipe"
	"github.com/gogpu/fxpipe/flush"
	"github.com/gogpu/fxpipe/fxstate"
	"github.com/gogpu/fxpipe/gpucore"
	"github.com/gogpu/fxpipe/internal/halgpu"
	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal/noop"
)

const vertexStride = 16

func main() {
	var (
		configPath = flag.String("config", "", "TOML config file")
		frames     = flag.Int("frames", 60, "frames to render")
		draws      = flag.Int("draws", 200, "draws per frame")
		states     = flag.Int("states", 8, "distinct pipeline states")
		seed       = flag.Uint64("seed", 1, "random seed")
	)
	flag.Parse()

	cfg := &fxpipe.Config{}
	if *configPath != "" {
		var err error
		cfg, err = fxpipe.LoadConfig(*configPath)
		if err != nil {
			log.Fatalf("config: %v", err)
		}
	}
	level, err := cfg.LogLevel()
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	fxpipe.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))

	if err := run(cfg, *frames, *draws, *states, *seed); err != nil {
		log.Fatal(err)
	}
}

func run(cfg *fxpipe.Config, frames, draws, states int, seed uint64) error {
	api := noop.API{}
	instance, err := api.CreateInstance(nil)
	if err != nil {
		return fmt.Errorf("create instance: %w", err)
	}
	defer instance.Destroy()

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return fmt.Errorf("no adapters")
	}
	limits := gputypes.DefaultLimits()
	openDev, err := adapters[0].Adapter.Open(0, limits)
	if err != nil {
		return fmt.Errorf("open device: %w", err)
	}
	defer openDev.Device.Destroy()

	gpu := halgpu.New(openDev.Device, openDev.Queue, &limits)
	defer gpu.Close()

	var submitted int
	drawer := gpucore.DrawerFunc(func(call *gpucore.DrawCall) error {
		if _, ok := gpu.Buffer(call.Buffer); !ok {
			return fmt.Errorf("draw: unknown buffer %d", call.Buffer)
		}
		if _, ok := gpu.VertexBufferLayout(call.InputLayout); !ok {
			return fmt.Errorf("draw: unknown input layout %d", call.InputLayout)
		}
		submitted++
		return nil
	})

	r, err := fxpipe.New(gpu, drawer, cfg.Options()...)
	if err != nil {
		return err
	}
	defer r.Close()

	format, err := newFormat()
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	pool := make([]fxpipe.State, max(states, 1))
	for i := range pool {
		pool[i] = randomState(rng)
	}

	prims := []flush.Primitive{
		flush.PrimitiveTriangles, flush.PrimitiveTriangleStrip,
		flush.PrimitiveTriangleFan, flush.PrimitiveQuads,
	}
	for range frames {
		for range draws {
			st := &pool[rng.IntN(len(pool))]
			p := prims[rng.IntN(len(prims))]
			n := vertexCount(p, rng)
			if err := r.Draw(st, format, p, make([]byte, n*vertexStride)); err != nil {
				return err
			}
		}
		if err := r.Flush(); err != nil {
			return err
		}
	}

	st := r.Stats()
	fmt.Printf("frames %d, draws submitted %d\n", frames, submitted)
	fmt.Printf("vertex programs: %d created, %d hits, %d failures\n", st.Vertex.Created, st.Vertex.Hits, st.Vertex.Failures)
	fmt.Printf("pixel programs:  %d created, %d hits, %d failures\n", st.Pixel.Created, st.Pixel.Hits, st.Pixel.Failures)
	fmt.Printf("stream: %d appends, %d discards, %d vertex bytes, %d index bytes\n",
		st.Stream.Appends, st.Stream.Discards, st.Stream.VertexBytes, st.Stream.IndexBytes)
	fmt.Printf("flush: %d flushes, %d draws, %d skipped\n", st.Flush.Flushes, st.Flush.Draws, st.Flush.Skipped)
	return nil
}

func newFormat() (*flush.VertexFormat, error) {
	decl := fxstate.VertexDeclaration{
		Stride:   vertexStride,
		Position: fxstate.AttributeFormat{Enable: true, Type: fxstate.VarFloat, Components: 3},
	}
	decl.Colors[0] = fxstate.AttributeFormat{Enable: true, Type: fxstate.VarUnsignedByte, Components: 4, Offset: 12}
	return flush.NewVertexFormat("demo", &decl)
}

func randomState(rng *rand.Rand) fxpipe.State {
	var s fxpipe.State
	s.Vertex.Components = fxstate.CompPosition | fxstate.CompColor0
	s.Vertex.NumColorChans = 1
	s.Vertex.Lighting[0].Enabled = rng.IntN(2) == 0

	s.Pixel.NumTevStages = 1 + rng.IntN(4)
	for i := 0; i < s.Pixel.NumTevStages; i++ {
		s.Pixel.TevStages[i].ColorOp = fxstate.TevOp(rng.IntN(4))
		s.Pixel.TevStages[i].ColorArg = fxstate.TevArg(rng.IntN(4))
	}
	s.Pixel.Fog = fxstate.FogMode(rng.IntN(3))
	if rng.IntN(4) == 0 {
		s.Pixel.AlphaTest = fxstate.AlphaTest{Enabled: true, Comp0: fxstate.CompareFunc(rng.IntN(8))}
	}
	return s
}

func vertexCount(p flush.Primitive, rng *rand.Rand) int {
	switch p {
	case flush.PrimitiveQuads:
		return 4 * (1 + rng.IntN(8))
	case flush.PrimitiveTriangles:
		return 3 * (1 + rng.IntN(8))
	default:
		return 3 + rng.IntN(16)
	}
}
