package diskcache

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type record struct {
	key, payload []byte
}

func collect(out *[]record) RecordFunc {
	return func(key, payload []byte) {
		*out = append(*out, record{key: key, payload: payload})
	}
}

func key4(b byte) []byte { return []byte{b, b, b, b} }

func testOptions() Options {
	return Options{KeySize: 4, Version: "test-v1"}
}

func TestStoreColdStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing.cache")

	var got []record
	s, err := OpenAndLoad(path, testOptions(), collect(&got))
	require.NoError(t, err)
	defer s.Close()

	assert.Empty(t, got)
	assert.Equal(t, 0, s.Len())

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(headerSize), info.Size())
}

func TestStoreRoundTrip(t *testing.T) {
	for _, codec := range []Codec{CodecNone, CodecZstd} {
		t.Run(codec.String(), func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "programs.cache")
			opts := testOptions()
			opts.Codec = codec

			s, err := OpenAndLoad(path, opts, nil)
			require.NoError(t, err)
			require.NoError(t, s.Append(key4(1), []byte("vertex program one")))
			require.NoError(t, s.Append(key4(2), bytes.Repeat([]byte{0xAB}, 4096)))
			require.NoError(t, s.Append(key4(3), nil))
			require.NoError(t, s.Close())

			var got []record
			s, err = OpenAndLoad(path, opts, collect(&got))
			require.NoError(t, err)
			defer s.Close()

			require.Len(t, got, 3)
			assert.Equal(t, key4(1), got[0].key)
			assert.Equal(t, []byte("vertex program one"), got[0].payload)
			assert.Equal(t, bytes.Repeat([]byte{0xAB}, 4096), got[1].payload)
			assert.Empty(t, got[2].payload)
			assert.Equal(t, 3, s.Len())
		})
	}
}

func TestStoreDuplicateKeysLaterWins(t *testing.T) {
	path := filepath.Join(t.TempDir(), "dup.cache")

	s, err := OpenAndLoad(path, testOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Append(key4(7), []byte("old")))
	require.NoError(t, s.Append(key4(7), []byte("new")))
	require.NoError(t, s.Close())

	byKey := map[string][]byte{}
	s, err = OpenAndLoad(path, testOptions(), func(k, p []byte) { byKey[string(k)] = p })
	require.NoError(t, err)
	defer s.Close()

	assert.Equal(t, []byte("new"), byKey[string(key4(7))])
	assert.Equal(t, 2, s.Len())
}

func TestStoreTruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "torn.cache")

	s, err := OpenAndLoad(path, testOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Append(key4(1), []byte("complete")))
	require.NoError(t, s.Append(key4(2), []byte("torn record payload")))
	require.NoError(t, s.Close())

	info, err := os.Stat(path)
	require.NoError(t, err)
	// Cut the second record in the middle of its payload.
	require.NoError(t, os.Truncate(path, info.Size()-5))

	var got []record
	s, err = OpenAndLoad(path, testOptions(), collect(&got))
	require.NoError(t, err)

	require.Len(t, got, 1)
	assert.Equal(t, []byte("complete"), got[0].payload)

	// Appends continue after the last valid record.
	require.NoError(t, s.Append(key4(3), []byte("after")))
	require.NoError(t, s.Close())

	got = nil
	s, err = OpenAndLoad(path, testOptions(), collect(&got))
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, got, 2)
	assert.Equal(t, key4(3), got[1].key)
	assert.Equal(t, []byte("after"), got[1].payload)
}

func TestStoreCorruptLength(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.cache")

	s, err := OpenAndLoad(path, testOptions(), nil)
	require.NoError(t, err)
	require.NoError(t, s.Append(key4(1), []byte("ok")))
	require.NoError(t, s.Close())

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_APPEND, 0)
	require.NoError(t, err)
	// A key followed by a length far beyond the end of the file.
	_, err = f.Write([]byte{9, 9, 9, 9, 0xFF, 0xFF, 0xFF, 0x7F, 1, 2})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	var got []record
	s, err = OpenAndLoad(path, testOptions(), collect(&got))
	require.NoError(t, err)
	defer s.Close()

	require.Len(t, got, 1)
	assert.Equal(t, []byte("ok"), got[0].payload)
}

func TestStoreHeaderMismatch(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Options)
	}{
		{"version", func(o *Options) { o.Version = "test-v2" }},
		{"key size", func(o *Options) { o.KeySize = 8 }},
		{"codec", func(o *Options) { o.Codec = CodecZstd }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "versioned.cache")

			s, err := OpenAndLoad(path, testOptions(), nil)
			require.NoError(t, err)
			require.NoError(t, s.Append(key4(1), []byte("stale")))
			require.NoError(t, s.Close())

			opts := testOptions()
			tt.modify(&opts)

			var got []record
			s, err = OpenAndLoad(path, opts, collect(&got))
			require.NoError(t, err)
			defer s.Close()

			assert.Empty(t, got)
			info, err := os.Stat(path)
			require.NoError(t, err)
			assert.Equal(t, int64(headerSize), info.Size())
		})
	}
}

func TestStoreGarbageFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "garbage.cache")
	require.NoError(t, os.WriteFile(path, []byte("not a cache"), 0o644))

	var got []record
	s, err := OpenAndLoad(path, testOptions(), collect(&got))
	require.NoError(t, err)
	defer s.Close()

	assert.Empty(t, got)
}

func TestStoreAppendErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "errors.cache")

	s, err := OpenAndLoad(path, testOptions(), nil)
	require.NoError(t, err)

	assert.ErrorIs(t, s.Append([]byte{1, 2}, nil), ErrKeySize)

	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Append(key4(1), nil), ErrClosed)
	assert.ErrorIs(t, s.Sync(), ErrClosed)
}

func TestOpenInvalidOptions(t *testing.T) {
	dir := t.TempDir()

	_, err := OpenAndLoad(filepath.Join(dir, "a"), Options{KeySize: 0}, nil)
	assert.ErrorIs(t, err, ErrInvalidKeySize)

	_, err = OpenAndLoad(filepath.Join(dir, "b"), Options{KeySize: 4, Version: string(make([]byte, 33))}, nil)
	assert.ErrorIs(t, err, ErrVersionTooLong)

	_, err = OpenAndLoad(filepath.Join(dir, "c"), Options{KeySize: 4, Codec: Codec(9)}, nil)
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestParseCodec(t *testing.T) {
	c, err := ParseCodec("")
	require.NoError(t, err)
	assert.Equal(t, CodecNone, c)

	c, err = ParseCodec("zstd")
	require.NoError(t, err)
	assert.Equal(t, CodecZstd, c)

	_, err = ParseCodec("lz4")
	assert.ErrorIs(t, err, ErrUnknownCodec)
}

func TestHeaderLayout(t *testing.T) {
	assert.Equal(t, len(magic)+2+2+versionSize, headerSize)

	opts := testOptions()
	h := newHeader(&opts)
	assert.Equal(t, []byte(magic), h[:len(magic)])

	// A header-only file is exactly headerSize bytes of a 64-bit size.
	var size int64 = headerSize
	assert.Equal(t, int64(40), size)
}
