package shader

import (
	"errors"
	"fmt"

	"github.com/gogpu/fxpipe/diskcache"
	"github.com/gogpu/fxpipe/gpucore"
	"github.com/gogpu/fxpipe/internal/cache"
)

// ErrInvalidConfig is returned by NewCache for an incomplete Config.
var ErrInvalidConfig = errors.New("shader: invalid cache config")

// KeyFunc derives the configuration key of a pipeline configuration.
type KeyFunc[C any] func(cfg *C) Key

// GenerateFunc generates program source for a pipeline configuration.
// It must be deterministic.
type GenerateFunc[C any] func(cfg *C) string

// Config configures a Cache for one stage.
type Config[C any] struct {
	Stage Stage

	// Key and Generate must agree: equal keys for two configurations
	// if and only if Generate returns equal source for them.
	Key      KeyFunc[C]
	Generate GenerateFunc[C]

	Compiler Compiler
	Modules  ModuleFactory

	// RetainBytecode keeps the bytecode of every program, for stages whose
	// bytecode is needed to build dependent objects such as input layouts.
	RetainBytecode bool

	// Validate enables the UIDChecker and keeps generated source per entry.
	Validate bool

	// DumpDir receives failing and mismatching sources. Empty disables dumps.
	DumpDir string

	// MaxEntries is a soft limit on cached permutations. 0 means unlimited.
	MaxEntries int
}

// Stats contains cache statistics.
type Stats struct {
	Entries      int
	Programs     int
	Created      uint64
	Hits         uint64
	FastPathHits uint64
	Misses       uint64
	Failures     uint64
	Loaded       uint64
	Evictions    uint64
	Collisions   int
}

// Cache maps configuration keys to compiled programs for one stage.
//
// A program is compiled at most once per key. Failures are remembered as
// entries without a program. Successful compiles are appended to the
// attached store so the next process start can skip compilation.
//
// Cache is not safe for concurrent use. It is owned by the goroutine that
// owns the GPU context.
type Cache[C any] struct {
	stage    Stage
	keyFn    KeyFunc[C]
	generate GenerateFunc[C]
	compiler Compiler
	modules  ModuleFactory
	retain   bool

	entries *cache.Map[Key, *Entry]
	last    *Entry
	err     error

	store     *diskcache.Store
	storePath string
	storeOpts diskcache.Options

	checker *UIDChecker
	dump    dumper
	stats   Stats
}

// NewCache creates an empty cache.
func NewCache[C any](cfg Config[C]) (*Cache[C], error) {
	switch {
	case cfg.Key == nil:
		return nil, fmt.Errorf("%w: nil key func", ErrInvalidConfig)
	case cfg.Generate == nil:
		return nil, fmt.Errorf("%w: nil generator", ErrInvalidConfig)
	case cfg.Compiler == nil:
		return nil, fmt.Errorf("%w: nil compiler", ErrInvalidConfig)
	case cfg.Modules == nil:
		return nil, fmt.Errorf("%w: nil module factory", ErrInvalidConfig)
	}

	c := &Cache[C]{
		stage:    cfg.Stage,
		keyFn:    cfg.Key,
		generate: cfg.Generate,
		compiler: cfg.Compiler,
		modules:  cfg.Modules,
		retain:   cfg.RetainBytecode,
		dump:     dumper{dir: cfg.DumpDir, stage: cfg.Stage},
	}
	c.entries = cache.New[Key, *Entry](cfg.MaxEntries, c.evicted)
	if cfg.Validate {
		c.checker = newUIDChecker(cfg.Stage, &c.dump)
	}
	return c, nil
}

// evicted releases the program of an entry leaving the map.
func (c *Cache[C]) evicted(_ Key, e *Entry) {
	if e.Program != nil {
		e.Program.release()
		e.Program = nil
		c.stats.Programs--
	}
	if c.last == e {
		c.last = nil
	}
}

// Select makes the program for cfg the active one and reports whether it
// is usable. A false result means the draw needing it must be skipped.
//
// A module creation that fails with gpucore.ErrDeviceLost is not cached as
// a failure: Select returns false, Active returns nil and Err returns the
// error.
func (c *Cache[C]) Select(cfg *C) bool {
	c.err = nil
	key := c.keyFn(cfg)

	var source string
	if c.checker != nil {
		source = c.generate(cfg)
		_ = c.checker.Check(key, source)
	}

	if c.last != nil && c.last.Key == key {
		c.stats.FastPathHits++
		return c.last.OK()
	}

	if e, ok := c.entries.Get(key); ok {
		c.stats.Hits++
		c.last = e
		return e.OK()
	}

	c.stats.Misses++
	if c.checker == nil {
		source = c.generate(cfg)
	}

	e := &Entry{Key: key}
	if c.checker != nil {
		e.Source = source
	}

	bytecode, err := c.compile(key, source)
	if err == nil {
		e.Program, err = newProgram(c.modules, c.label(key), bytecode, c.retain)
	}
	if errors.Is(err, gpucore.ErrDeviceLost) {
		c.last = nil
		c.err = err
		slogger().Warn("shader: device lost during module creation",
			"stage", c.stage.String(), "key", key.String())
		return false
	}
	if err != nil {
		c.stats.Failures++
		slogger().Warn("shader: permutation unavailable",
			"stage", c.stage.String(), "key", key.String(), "err", err)
	} else {
		c.stats.Created++
		c.stats.Programs++
		c.persist(key, bytecode)
	}

	c.entries.Set(key, e)
	c.last = e
	return e.OK()
}

func (c *Cache[C]) compile(key Key, source string) ([]byte, error) {
	bytecode, err := c.compiler.Compile(c.stage, source)
	if err != nil {
		cerr := &CompileError{Stage: c.stage, Key: key, Diagnostics: err.Error(), Err: err}
		if path := c.dump.compileFailure(source, err); path != "" {
			slogger().Warn("shader: dumped failing source", "path", path)
		}
		return nil, cerr
	}
	return bytecode, nil
}

func (c *Cache[C]) persist(key Key, bytecode []byte) {
	if c.store == nil {
		return
	}
	if err := c.store.Append(key[:], bytecode); err != nil {
		slogger().Warn("shader: disk cache append", "stage", c.stage.String(), "err", err)
	}
}

func (c *Cache[C]) label(key Key) string {
	return c.stage.String() + "-" + key.String()
}

// Err returns the error that made the last Select fail without caching a
// failed entry, or nil.
func (c *Cache[C]) Err() error {
	return c.err
}

// Active returns the most recently selected entry, or nil.
func (c *Cache[C]) Active() *Entry {
	return c.last
}

// Lookup returns the entry for key without changing the selection.
func (c *Cache[C]) Lookup(key Key) (*Entry, bool) {
	return c.entries.Peek(key)
}

// InsertBytecode creates a program from previously compiled bytecode and
// caches it under key, replacing any existing entry. It reports whether a
// program was created; on failure nothing is inserted.
func (c *Cache[C]) InsertBytecode(key Key, bytecode []byte) bool {
	p, err := newProgram(c.modules, c.label(key), bytecode, c.retain)
	if err != nil {
		slogger().Debug("shader: dropping cached bytecode",
			"stage", c.stage.String(), "key", key.String(), "err", err)
		return false
	}
	c.stats.Programs++
	c.entries.Set(key, &Entry{Key: key, Program: p})
	return true
}

// AttachStore opens the persistent store at path, loads its programs and
// appends every later successful compile to it. A previously attached
// store is closed first. opts.KeySize is set to KeySize.
//
// In validation mode loaded programs are dropped, so that every entry is
// regenerated with its source captured.
func (c *Cache[C]) AttachStore(path string, opts diskcache.Options) error {
	if err := c.closeStore(); err != nil {
		slogger().Warn("shader: closing previous disk cache", "err", err)
	}

	opts.KeySize = KeySize
	store, err := diskcache.OpenAndLoad(path, opts, func(raw, payload []byte) {
		key, ok := KeyFromBytes(raw)
		if !ok || c.checker != nil {
			return
		}
		if c.InsertBytecode(key, payload) {
			c.stats.Loaded++
		}
	})
	if err != nil {
		return fmt.Errorf("shader: attach store: %w", err)
	}

	c.store = store
	c.storePath = path
	c.storeOpts = opts
	slogger().Info("shader: disk cache attached",
		"stage", c.stage.String(), "path", path, "programs", c.entries.Len())
	return nil
}

// Reload clears the cache, switches to a new module factory and reloads
// the attached store. It is used after device loss, when every native
// module of the old device is gone.
func (c *Cache[C]) Reload(modules ModuleFactory) error {
	c.Clear()
	if modules != nil {
		c.modules = modules
	}
	if c.storePath == "" {
		return nil
	}
	return c.AttachStore(c.storePath, c.storeOpts)
}

// SetValidation toggles validation mode. Changing the mode clears the
// cache so every program is regenerated.
func (c *Cache[C]) SetValidation(on bool) {
	if on == (c.checker != nil) {
		return
	}
	c.Clear()
	if on {
		c.checker = newUIDChecker(c.stage, &c.dump)
	} else {
		c.checker = nil
	}
}

// Validating reports whether validation mode is on.
func (c *Cache[C]) Validating() bool {
	return c.checker != nil
}

// Clear releases every program and invalidates the last selection.
func (c *Cache[C]) Clear() {
	c.entries.Clear()
	c.last = nil
	if c.checker != nil {
		c.checker.Invalidate()
	}
}

// Len returns the number of cached entries, failures included.
func (c *Cache[C]) Len() int {
	return c.entries.Len()
}

// Stats returns cache statistics.
func (c *Cache[C]) Stats() Stats {
	s := c.stats
	s.Entries = c.entries.Len()
	s.Evictions = c.entries.Stats().Evictions
	if c.checker != nil {
		s.Collisions = c.checker.Collisions()
	}
	return s
}

// Close releases every program and closes the attached store.
func (c *Cache[C]) Close() error {
	c.Clear()
	return c.closeStore()
}

func (c *Cache[C]) closeStore() error {
	if c.store == nil {
		return nil
	}
	err := c.store.Close()
	c.store = nil
	return err
}
