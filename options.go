package fxpipe

import (
	"github.com/gogpu/fxpipe/diskcache"
	"github.com/gogpu/fxpipe/shader"
	"github.com/gogpu/fxpipe/stream"
)

// Option configures a Renderer during creation.
//
// Example:
//
//	r, err := fxpipe.New(adapter, drawer,
//	    fxpipe.WithCacheDir(dir),
//	    fxpipe.WithUniqueID("GALE01"),
//	    fxpipe.WithBufferCount(3),
//	)
type Option func(*options)

// options holds optional configuration for Renderer creation.
type options struct {
	cacheDir        string
	uniqueID        string
	backend         string
	bufferCapacity  uint64
	bufferCount     int
	validate        bool
	compiler        shader.Compiler
	codec           diskcache.Codec
	dumpDir         string
	maxPermutations int
}

// DefaultUniqueID names the disk caches when no content identifier is set.
const DefaultUniqueID = "default"

// DefaultBackend is the backend part of disk cache file names.
const DefaultBackend = "hal"

// defaultOptions returns the default renderer options.
func defaultOptions() options {
	return options{
		uniqueID:       DefaultUniqueID,
		backend:        DefaultBackend,
		bufferCapacity: stream.DefaultCapacity,
		bufferCount:    stream.DefaultBufferCount,
		compiler:       shader.NagaCompiler{},
		codec:          diskcache.CodecNone,
	}
}

// WithCacheDir enables the persistent program caches in dir. The directory
// is created when missing. Without it, every process start compiles from
// scratch.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// WithUniqueID sets the content identifier that names the disk caches, so
// different content does not share permutations.
func WithUniqueID(id string) Option {
	return func(o *options) {
		if id != "" {
			o.uniqueID = id
		}
	}
}

// WithBackendName sets the backend part of disk cache file names.
func WithBackendName(name string) Option {
	return func(o *options) {
		if name != "" {
			o.backend = name
		}
	}
}

// WithBufferCapacity sets the size in bytes of each streaming ring buffer.
// It bounds the largest single batch.
func WithBufferCapacity(n uint64) Option {
	return func(o *options) {
		o.bufferCapacity = n
	}
}

// WithBufferCount sets the number of streaming ring buffers. More buffers
// give the GPU longer to finish reading one before it is discarded.
// Minimum 2.
func WithBufferCount(n int) Option {
	return func(o *options) {
		o.bufferCount = n
	}
}

// WithShaderValidation enables key collision checking in both shader caches.
// Programs loaded from disk are dropped so every source is captured.
func WithShaderValidation(on bool) Option {
	return func(o *options) {
		o.validate = on
	}
}

// WithCompiler replaces the default naga WGSL compiler.
func WithCompiler(c shader.Compiler) Option {
	return func(o *options) {
		if c != nil {
			o.compiler = c
		}
	}
}

// WithCompression sets the payload codec of the disk caches.
func WithCompression(c diskcache.Codec) Option {
	return func(o *options) {
		o.codec = c
	}
}

// WithDumpDir makes the shader caches write failing and colliding sources
// to dir.
func WithDumpDir(dir string) Option {
	return func(o *options) {
		o.dumpDir = dir
	}
}

// WithMaxPermutations sets a soft limit on cached programs per stage.
// The least recently selected programs are released beyond it. 0 means
// unlimited.
func WithMaxPermutations(n int) Option {
	return func(o *options) {
		o.maxPermutations = n
	}
}
