package shader

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/fxpipe/diskcache"
	"github.com/gogpu/fxpipe/gpucore"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testConfig is a toy pipeline configuration. Only id and fail reach the
// generated source; noise does not.
type testConfig struct {
	id    uint8
	fail  bool
	noise int
}

func testKey(cfg *testConfig) Key {
	var b KeyBuilder
	b.Put(uint32(cfg.id), 8)
	b.PutBool(cfg.fail)
	return b.Key()
}

func testGenerate(cfg *testConfig) string {
	src := fmt.Sprintf("@fragment fn main_%d() {}", cfg.id)
	if cfg.fail {
		src += " FAIL"
	}
	return src
}

type countingCompiler struct {
	calls int
}

func (c *countingCompiler) Compile(_ Stage, source string) ([]byte, error) {
	c.calls++
	if strings.Contains(source, "FAIL") {
		return nil, errors.New("syntax error at FAIL")
	}
	// Any multiple of 4 bytes is valid bytecode for the fake factory.
	return []byte(fmt.Sprintf("%08x", len(source))), nil
}

type fakeModules struct {
	next      gpucore.ShaderModuleID
	live      map[gpucore.ShaderModuleID]string
	created   int
	destroyed int
	fail      bool
}

func newFakeModules() *fakeModules {
	return &fakeModules{live: make(map[gpucore.ShaderModuleID]string)}
}

func (f *fakeModules) CreateShaderModule(spirv []uint32, label string) (gpucore.ShaderModuleID, error) {
	if f.fail {
		return gpucore.InvalidID, errors.New("driver rejected module")
	}
	f.next++
	f.created++
	f.live[f.next] = label
	return f.next, nil
}

func (f *fakeModules) DestroyShaderModule(id gpucore.ShaderModuleID) {
	delete(f.live, id)
	f.destroyed++
}

type fixture struct {
	cache    *Cache[testConfig]
	compiler *countingCompiler
	modules  *fakeModules
}

func newFixture(t *testing.T, modify func(*Config[testConfig])) *fixture {
	t.Helper()
	f := &fixture{compiler: &countingCompiler{}, modules: newFakeModules()}
	cfg := Config[testConfig]{
		Stage:    StageVertex,
		Key:      testKey,
		Generate: testGenerate,
		Compiler: f.compiler,
		Modules:  f.modules,
	}
	if modify != nil {
		modify(&cfg)
	}
	c, err := NewCache(cfg)
	require.NoError(t, err)
	f.cache = c
	t.Cleanup(func() { _ = c.Close() })
	return f
}

func TestNewCacheRequiresCollaborators(t *testing.T) {
	_, err := NewCache(Config[testConfig]{Key: testKey, Generate: testGenerate, Compiler: &countingCompiler{}})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewCache(Config[testConfig]{Generate: testGenerate, Compiler: &countingCompiler{}, Modules: newFakeModules()})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestSelectCompilesOnce(t *testing.T) {
	f := newFixture(t, nil)
	a := &testConfig{id: 1}

	require.True(t, f.cache.Select(a))
	first := f.cache.Active()
	require.True(t, f.cache.Select(a))

	assert.Same(t, first, f.cache.Active())
	assert.Equal(t, 1, f.compiler.calls)
	assert.Equal(t, 1, f.modules.created)

	s := f.cache.Stats()
	assert.Equal(t, uint64(1), s.Misses)
	assert.Equal(t, uint64(1), s.FastPathHits)
	assert.Equal(t, uint64(0), s.Hits)
	assert.Equal(t, 1, s.Programs)
}

func TestSelectMapHit(t *testing.T) {
	f := newFixture(t, nil)
	a, b := &testConfig{id: 1}, &testConfig{id: 2}

	require.True(t, f.cache.Select(a))
	require.True(t, f.cache.Select(b))
	require.True(t, f.cache.Select(a))

	assert.Equal(t, 2, f.compiler.calls)
	assert.Equal(t, testKey(a), f.cache.Active().Key)
	assert.Equal(t, uint64(1), f.cache.Stats().Hits)
	assert.Equal(t, 2, f.cache.Len())
}

func TestSelectIgnoresUnkeyedFields(t *testing.T) {
	f := newFixture(t, nil)

	require.True(t, f.cache.Select(&testConfig{id: 3, noise: 1}))
	require.True(t, f.cache.Select(&testConfig{id: 3, noise: 2}))

	assert.Equal(t, 1, f.compiler.calls)
}

func TestSelectRemembersCompileFailure(t *testing.T) {
	f := newFixture(t, nil)
	bad := &testConfig{id: 9, fail: true}

	assert.False(t, f.cache.Select(bad))
	assert.Equal(t, 1, f.compiler.calls)

	entry, ok := f.cache.Lookup(testKey(bad))
	require.True(t, ok)
	assert.Nil(t, entry.Program)

	// Fast path.
	assert.False(t, f.cache.Select(bad))
	// Map hit after another selection.
	require.True(t, f.cache.Select(&testConfig{id: 1}))
	assert.False(t, f.cache.Select(bad))

	assert.Equal(t, 2, f.compiler.calls)
	assert.Equal(t, uint64(1), f.cache.Stats().Failures)
}

func TestSelectRemembersModuleFailure(t *testing.T) {
	f := newFixture(t, nil)
	f.modules.fail = true

	assert.False(t, f.cache.Select(&testConfig{id: 4}))
	f.modules.fail = false
	assert.False(t, f.cache.Select(&testConfig{id: 4}))

	assert.Equal(t, 1, f.compiler.calls)
	assert.Equal(t, uint64(1), f.cache.Stats().Failures)
}

func TestCompileFailureDump(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, func(c *Config[testConfig]) { c.DumpDir = dir })

	assert.False(t, f.cache.Select(&testConfig{id: 5, fail: true}))

	data, err := os.ReadFile(filepath.Join(dir, "bad_vs_0000.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "main_5")
	assert.Contains(t, string(data), "syntax error at FAIL")
}

func TestPersistAndReload(t *testing.T) {
	path := filepath.Join(t.TempDir(), CacheFileName("test", "GAME01", StageVertex))

	f := newFixture(t, nil)
	require.NoError(t, f.cache.AttachStore(path, diskcache.Options{Version: "gen-1"}))
	require.True(t, f.cache.Select(&testConfig{id: 1}))
	require.True(t, f.cache.Select(&testConfig{id: 2}))
	require.False(t, f.cache.Select(&testConfig{id: 3, fail: true}))
	require.NoError(t, f.cache.Close())

	g := newFixture(t, nil)
	require.NoError(t, g.cache.AttachStore(path, diskcache.Options{Version: "gen-1"}))

	assert.Equal(t, uint64(2), g.cache.Stats().Loaded)
	assert.Equal(t, 2, g.cache.Len())

	require.True(t, g.cache.Select(&testConfig{id: 1}))
	require.True(t, g.cache.Select(&testConfig{id: 2}))
	assert.Equal(t, 0, g.compiler.calls)

	// Failures are not persisted, so this compiles again.
	require.False(t, g.cache.Select(&testConfig{id: 3, fail: true}))
	assert.Equal(t, 1, g.compiler.calls)
}

func TestAttachStoreVersionChangeDiscards(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vs.cache")

	f := newFixture(t, nil)
	require.NoError(t, f.cache.AttachStore(path, diskcache.Options{Version: "gen-1"}))
	require.True(t, f.cache.Select(&testConfig{id: 1}))
	require.NoError(t, f.cache.Close())

	g := newFixture(t, nil)
	require.NoError(t, g.cache.AttachStore(path, diskcache.Options{Version: "gen-2"}))
	assert.Equal(t, 0, g.cache.Len())
}

func TestValidationDetectsCollision(t *testing.T) {
	dir := t.TempDir()
	f := newFixture(t, func(c *Config[testConfig]) {
		c.Validate = true
		c.DumpDir = dir
		// Broken key derivation: ignores id, which the generator reads.
		c.Key = func(cfg *testConfig) Key {
			var b KeyBuilder
			b.PutBool(cfg.fail)
			return b.Key()
		}
	})

	require.True(t, f.cache.Select(&testConfig{id: 1}))
	require.True(t, f.cache.Select(&testConfig{id: 2}))

	assert.Equal(t, 1, f.cache.Stats().Collisions)
	assert.Equal(t, "@fragment fn main_1() {}", f.cache.Active().Source)

	a, err := os.ReadFile(filepath.Join(dir, "mismatch_vs_0000_a.txt"))
	require.NoError(t, err)
	b, err := os.ReadFile(filepath.Join(dir, "mismatch_vs_0000_b.txt"))
	require.NoError(t, err)
	assert.Contains(t, string(a), "main_1")
	assert.Contains(t, string(b), "main_2")
}

func TestValidationDropsDiskEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vs.cache")

	f := newFixture(t, nil)
	require.NoError(t, f.cache.AttachStore(path, diskcache.Options{}))
	require.True(t, f.cache.Select(&testConfig{id: 1}))
	require.NoError(t, f.cache.Close())

	g := newFixture(t, func(c *Config[testConfig]) { c.Validate = true })
	require.NoError(t, g.cache.AttachStore(path, diskcache.Options{}))
	assert.Equal(t, 0, g.cache.Len())

	require.True(t, g.cache.Select(&testConfig{id: 1}))
	assert.Equal(t, 1, g.compiler.calls)
	assert.NotEmpty(t, g.cache.Active().Source)
}

func TestSetValidationClears(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.cache.Select(&testConfig{id: 1}))
	require.True(t, f.cache.Select(&testConfig{id: 2}))

	f.cache.SetValidation(true)
	assert.True(t, f.cache.Validating())
	assert.Equal(t, 0, f.cache.Len())
	assert.Nil(t, f.cache.Active())
	assert.Empty(t, f.modules.live)

	// Same mode again is a no-op.
	require.True(t, f.cache.Select(&testConfig{id: 1}))
	f.cache.SetValidation(true)
	assert.Equal(t, 1, f.cache.Len())
}

func TestMaxEntriesEvicts(t *testing.T) {
	f := newFixture(t, func(c *Config[testConfig]) { c.MaxEntries = 2 })

	for id := uint8(1); id <= 3; id++ {
		require.True(t, f.cache.Select(&testConfig{id: id}))
	}

	s := f.cache.Stats()
	assert.LessOrEqual(t, s.Entries, 2)
	assert.Positive(t, s.Evictions)
	assert.Equal(t, s.Entries, len(f.modules.live))
	assert.Equal(t, testKey(&testConfig{id: 3}), f.cache.Active().Key)

	// The oldest permutation was evicted and compiles again.
	calls := f.compiler.calls
	require.True(t, f.cache.Select(&testConfig{id: 1}))
	assert.Equal(t, calls+1, f.compiler.calls)
}

func TestInsertBytecodeReplaces(t *testing.T) {
	f := newFixture(t, func(c *Config[testConfig]) { c.RetainBytecode = true })
	key := testKey(&testConfig{id: 7})

	require.True(t, f.cache.InsertBytecode(key, []byte("abcd")))
	require.True(t, f.cache.InsertBytecode(key, []byte("efghijkl")))

	assert.Equal(t, 1, f.cache.Len())
	assert.Len(t, f.modules.live, 1)
	entry, ok := f.cache.Lookup(key)
	require.True(t, ok)
	assert.Equal(t, []byte("efghijkl"), entry.Program.Bytecode())

	assert.False(t, f.cache.InsertBytecode(key, []byte("odd")))
	assert.Equal(t, 1, f.cache.Len())
}

func TestBytecodeRetention(t *testing.T) {
	f := newFixture(t, nil)
	require.True(t, f.cache.Select(&testConfig{id: 1}))
	assert.Nil(t, f.cache.Active().Program.Bytecode())

	g := newFixture(t, func(c *Config[testConfig]) { c.RetainBytecode = true })
	require.True(t, g.cache.Select(&testConfig{id: 1}))
	assert.NotEmpty(t, g.cache.Active().Program.Bytecode())
}

func TestReloadSwitchesModules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "vs.cache")
	f := newFixture(t, nil)
	require.NoError(t, f.cache.AttachStore(path, diskcache.Options{}))
	require.True(t, f.cache.Select(&testConfig{id: 1}))

	lost := f.modules
	fresh := newFakeModules()
	require.NoError(t, f.cache.Reload(fresh))

	assert.Empty(t, lost.live)
	assert.Len(t, fresh.live, 1)
	assert.Nil(t, f.cache.Active())

	require.True(t, f.cache.Select(&testConfig{id: 1}))
	assert.Equal(t, 1, f.compiler.calls)
}

func TestCloseReleasesEverything(t *testing.T) {
	f := newFixture(t, nil)
	for id := uint8(1); id <= 4; id++ {
		f.cache.Select(&testConfig{id: id})
	}
	require.NoError(t, f.cache.Close())
	assert.Empty(t, f.modules.live)
	assert.Equal(t, 4, f.modules.destroyed)
	assert.Equal(t, 0, f.cache.Stats().Programs)
}

func TestCompileErrorUnwrap(t *testing.T) {
	cause := errors.New("driver says no")
	err := error(&CompileError{Stage: StagePixel, Diagnostics: "line 3", Err: cause})

	assert.ErrorIs(t, err, ErrCompile)
	assert.ErrorIs(t, err, cause)

	var cerr *CompileError
	require.ErrorAs(t, err, &cerr)
	assert.Equal(t, StagePixel, cerr.Stage)
	assert.Contains(t, err.Error(), "ps")
}
