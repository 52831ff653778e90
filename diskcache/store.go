package diskcache

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/klauspost/compress/zstd"
)

// Store errors.
var (
	// ErrClosed is returned when operating on a closed store.
	ErrClosed = errors.New("diskcache: store is closed")

	// ErrInvalidKeySize is returned when Options.KeySize is out of range.
	ErrInvalidKeySize = errors.New("diskcache: invalid key size")

	// ErrKeySize is returned when an appended key does not have the store's key size.
	ErrKeySize = errors.New("diskcache: key size mismatch")

	// ErrVersionTooLong is returned when Options.Version does not fit the header.
	ErrVersionTooLong = errors.New("diskcache: version string too long")

	// ErrPayloadTooLarge is returned when a payload does not fit a u32 length.
	ErrPayloadTooLarge = errors.New("diskcache: payload too large")
)

// MaxKeySize is the largest supported key size in bytes.
const MaxKeySize = math.MaxUint16

// Options configures a Store.
type Options struct {
	// KeySize is the fixed size of every key in bytes.
	KeySize int

	// Version identifies the producer of the payloads (e.g. a generator
	// version). A file written under a different version is discarded.
	Version string

	// Codec is applied to payloads on disk.
	Codec Codec
}

func (o *Options) validate() error {
	if o.KeySize <= 0 || o.KeySize > MaxKeySize {
		return fmt.Errorf("%w: %d", ErrInvalidKeySize, o.KeySize)
	}
	if len(o.Version) > versionSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrVersionTooLong, len(o.Version), versionSize)
	}
	if !o.Codec.valid() {
		return fmt.Errorf("%w: %d", ErrUnknownCodec, o.Codec)
	}
	return nil
}

// RecordFunc receives one record read back from disk. The payload is owned
// by the callee and may be retained.
type RecordFunc func(key, payload []byte)

// Store is an append-only key to blob file used as a compile cache.
//
// The file is read once at open, then only appended to. It is never
// rewritten or compacted: duplicate keys may appear, and readers let the
// later record win. Losing the file only costs recompilation.
//
// Store is not safe for concurrent use.
type Store struct {
	path    string
	opts    Options
	file    *os.File
	w       *bufio.Writer
	enc     *zstd.Encoder
	records int
	scratch [4]byte
	closed  bool
}

// OpenAndLoad opens or creates the store file at path and replays every valid
// record through onRecord before returning.
//
// A missing file is a cold start, not an error. A file whose header does not
// match opts is truncated and restarted. Reading stops silently at the first
// truncated or malformed record; the file is cut back to the end of the last
// valid record so that later appends never follow garbage.
func OpenAndLoad(path string, opts Options, onRecord RecordFunc) (*Store, error) {
	if err := opts.validate(); err != nil {
		return nil, err
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("diskcache: open %s: %w", path, err)
	}

	s := &Store{path: path, opts: opts, file: file}

	validEnd, err := s.load(onRecord)
	if err != nil {
		_ = file.Close()
		return nil, err
	}

	if err := file.Truncate(validEnd); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("diskcache: truncate %s: %w", path, err)
	}
	if _, err := file.Seek(validEnd, io.SeekStart); err != nil {
		_ = file.Close()
		return nil, fmt.Errorf("diskcache: seek %s: %w", path, err)
	}
	s.w = bufio.NewWriter(file)

	if opts.Codec == CodecZstd {
		enc, err := zstd.NewWriter(nil)
		if err != nil {
			_ = file.Close()
			return nil, fmt.Errorf("diskcache: zstd encoder: %w", err)
		}
		s.enc = enc
	}

	return s, nil
}

// load validates the header and replays the records. It returns the offset
// at which appends continue.
func (s *Store) load(onRecord RecordFunc) (int64, error) {
	info, err := s.file.Stat()
	if err != nil {
		return 0, fmt.Errorf("diskcache: stat %s: %w", s.path, err)
	}
	size := info.Size()

	want := newHeader(&s.opts)
	if size >= headerSize {
		var raw [headerSize]byte
		if _, err := s.file.ReadAt(raw[:], 0); err != nil {
			return 0, fmt.Errorf("diskcache: read header %s: %w", s.path, err)
		}
		if bytes.Equal(raw[:], want[:]) {
			return s.replay(size, onRecord)
		}
		slogger().Warn("diskcache: header mismatch, discarding file", "path", s.path)
	}

	if _, err := s.file.WriteAt(want[:], 0); err != nil {
		return 0, fmt.Errorf("diskcache: write header %s: %w", s.path, err)
	}
	return headerSize, nil
}

func (s *Store) replay(size int64, onRecord RecordFunc) (int64, error) {
	section := io.NewSectionReader(s.file, headerSize, size-headerSize)
	r, err := NewReader(section, size-headerSize, s.opts.KeySize, s.opts.Codec)
	if err != nil {
		return 0, err
	}
	defer r.Close()

	for {
		key, payload, ok := r.Next()
		if !ok {
			break
		}
		s.records++
		if onRecord != nil {
			onRecord(key, payload)
		}
	}

	validEnd := headerSize + r.Offset()
	if validEnd < size {
		slogger().Debug("diskcache: dropping invalid tail",
			"path", s.path, "bytes", size-validEnd, "err", r.Err())
	}
	slogger().Info("diskcache: loaded", "path", s.path, "records", s.records)
	return validEnd, nil
}

// Append writes one record at the end of the file.
// Writes are buffered until Sync or Close.
func (s *Store) Append(key, payload []byte) error {
	if s.closed {
		return ErrClosed
	}
	if len(key) != s.opts.KeySize {
		return fmt.Errorf("%w: got %d bytes, want %d", ErrKeySize, len(key), s.opts.KeySize)
	}

	if s.enc != nil {
		payload = s.enc.EncodeAll(payload, nil)
	}
	if uint64(len(payload)) > math.MaxUint32 {
		return fmt.Errorf("%w: %d bytes", ErrPayloadTooLarge, len(payload))
	}

	binary.LittleEndian.PutUint32(s.scratch[:], uint32(len(payload)))
	if _, err := s.w.Write(key); err != nil {
		return fmt.Errorf("diskcache: append: %w", err)
	}
	if _, err := s.w.Write(s.scratch[:]); err != nil {
		return fmt.Errorf("diskcache: append: %w", err)
	}
	if _, err := s.w.Write(payload); err != nil {
		return fmt.Errorf("diskcache: append: %w", err)
	}
	s.records++
	return nil
}

// Sync flushes buffered records and commits the file to stable storage.
func (s *Store) Sync() error {
	if s.closed {
		return ErrClosed
	}
	if err := s.w.Flush(); err != nil {
		return fmt.Errorf("diskcache: flush %s: %w", s.path, err)
	}
	if err := s.file.Sync(); err != nil {
		return fmt.Errorf("diskcache: sync %s: %w", s.path, err)
	}
	return nil
}

// Close syncs and releases the file handle. Close is idempotent.
func (s *Store) Close() error {
	if s.closed {
		return nil
	}
	syncErr := s.Sync()
	s.closed = true
	if s.enc != nil {
		_ = s.enc.Close()
		s.enc = nil
	}
	if err := s.file.Close(); err != nil && syncErr == nil {
		syncErr = fmt.Errorf("diskcache: close %s: %w", s.path, err)
	}
	return syncErr
}

// Len returns the number of records loaded or appended since open.
// Duplicate keys are counted once per record.
func (s *Store) Len() int {
	return s.records
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}
