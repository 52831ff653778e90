package diskcache

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/klauspost/compress/zstd"
)

// Reader streams records from the body of a cache file.
//
// The reader never allocates more than the declared payload length, and the
// declared length is checked against the bytes actually remaining, so a
// corrupt length cannot trigger a huge allocation.
type Reader struct {
	r         *bufio.Reader
	remaining int64
	offset    int64
	keySize   int
	dec       *zstd.Decoder
	lenBuf    [4]byte
	err       error
}

// NewReader returns a reader over size bytes of record data from r.
func NewReader(r io.Reader, size int64, keySize int, codec Codec) (*Reader, error) {
	if keySize <= 0 || keySize > MaxKeySize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidKeySize, keySize)
	}
	if !codec.valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownCodec, codec)
	}

	rd := &Reader{
		r:         bufio.NewReader(r),
		remaining: size,
		keySize:   keySize,
	}
	if codec == CodecZstd {
		dec, err := zstd.NewReader(nil)
		if err != nil {
			return nil, fmt.Errorf("diskcache: zstd decoder: %w", err)
		}
		rd.dec = dec
	}
	return rd, nil
}

// Next returns the next record. ok is false at the end of the valid data:
// end of input, a truncated record, or a payload that fails to decode.
func (rd *Reader) Next() (key, payload []byte, ok bool) {
	if rd.err != nil {
		return nil, nil, false
	}

	fixed := int64(rd.keySize) + 4
	if rd.remaining < fixed {
		if rd.remaining > 0 {
			rd.err = io.ErrUnexpectedEOF
		} else {
			rd.err = io.EOF
		}
		return nil, nil, false
	}

	key = make([]byte, rd.keySize)
	if _, err := io.ReadFull(rd.r, key); err != nil {
		rd.err = err
		return nil, nil, false
	}
	if _, err := io.ReadFull(rd.r, rd.lenBuf[:]); err != nil {
		rd.err = err
		return nil, nil, false
	}

	n := int64(binary.LittleEndian.Uint32(rd.lenBuf[:]))
	if n > rd.remaining-fixed {
		rd.err = io.ErrUnexpectedEOF
		return nil, nil, false
	}

	payload = make([]byte, n)
	if _, err := io.ReadFull(rd.r, payload); err != nil {
		rd.err = err
		return nil, nil, false
	}

	if rd.dec != nil {
		decoded, err := rd.dec.DecodeAll(payload, nil)
		if err != nil {
			rd.err = fmt.Errorf("diskcache: decode payload: %w", err)
			return nil, nil, false
		}
		payload = decoded
	}

	rd.remaining -= fixed + n
	rd.offset += fixed + n
	return key, payload, true
}

// Offset returns the number of bytes consumed by valid records so far.
func (rd *Reader) Offset() int64 {
	return rd.offset
}

// Err returns the reason reading stopped, or nil while records remain.
// io.EOF means the data ended exactly on a record boundary.
func (rd *Reader) Err() error {
	return rd.err
}

// Close releases decoder resources.
func (rd *Reader) Close() {
	if rd.dec != nil {
		rd.dec.Close()
		rd.dec = nil
	}
}
