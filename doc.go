// Package fxpipe renders a fixed-function pipeline description on a
// shader-based GPU.
//
// # Overview
//
// Every batch of geometry is drawn with a vertex and a pixel program
// generated from the current pipeline state. fxpipe keeps one permutation
// cache per stage, so each configuration is generated and compiled at most
// once, and persists compiled programs to disk across runs. Vertex and
// index data is streamed through a small set of GPU ring buffers.
//
// # Quick Start
//
//	r, err := fxpipe.New(adapter, drawer,
//	    fxpipe.WithCacheDir(cacheDir),
//	    fxpipe.WithUniqueID(gameID),
//	)
//	if err != nil {
//	    return err
//	}
//	defer r.Close()
//
//	format, _ := flush.NewVertexFormat("pos-color", &decl)
//	r.Draw(&state, format, flush.PrimitiveTriangles, vertices)
//	r.Flush()
//
// # Architecture
//
// The library is organized into:
//   - Public API: Renderer, State, Option, Config
//   - shader: permutation caches and key collision checking
//   - diskcache: append-only program store
//   - stream: ring buffer placement and upload
//   - flush: staging, index generation and the flush sequence
//   - gpucore: the native graphics API contract
//
// # Errors
//
// Per-batch failures (compile errors, map failures, draw errors) drop the
// batch and are logged. Only ErrCapacityExceeded from the stream package
// and ErrDeviceLost reach the caller.
package fxpipe

// Version is the current version of the library.
const Version = "0.1.0"
