package journal

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"os"

	"github.com/golang/snappy"
	"github.com/google/uuid"
)

// maxRecordSize bounds the length field so a corrupted header cannot
// trigger a huge allocation
const maxRecordSize = 16 << 20

// Reader decodes records in order
type Reader struct {
	in      *bufio.Reader
	closer  io.Closer
	session uuid.UUID
	last    uint64
}

// NewReader reads and checks the header record of in
func NewReader(in io.Reader) (*Reader, error) {
	r := &Reader{in: bufio.NewReader(in)}
	if c, ok := in.(io.Closer); ok {
		r.closer = c
	}

	e, err := r.read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrMissingHeader
		}
		return nil, err
	}
	if e.Op != OpHeader || e.Seq != 0 || len(e.Data) != len(r.session) {
		return nil, ErrMissingHeader
	}
	copy(r.session[:], e.Data)
	return r, nil
}

// Open opens the journal at path
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	r, err := NewReader(f)
	if err != nil {
		f.Close()
		return nil, err
	}
	return r, nil
}

// Session returns the UUID of the session that wrote the journal
func (r *Reader) Session() uuid.UUID { return r.session }

// Next returns the next record, or io.EOF after the last one. Sequence
// numbers must increase by one.
func (r *Reader) Next() (*Entry, error) {
	e, err := r.read()
	if err != nil {
		return nil, err
	}
	if e.Op == OpHeader || e.Seq != r.last+1 {
		return nil, fmt.Errorf("%w: unexpected %s record %d after %d", ErrCorruptedEntry, e.Op, e.Seq, r.last)
	}
	r.last = e.Seq
	return e, nil
}

// ReadAll returns every remaining record
func (r *Reader) ReadAll() ([]*Entry, error) {
	var entries []*Entry
	for {
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return entries, nil
		}
		if err != nil {
			return entries, err
		}
		entries = append(entries, e)
	}
}

// Close closes the underlying reader if it is a Closer
func (r *Reader) Close() error {
	if r.closer != nil {
		return r.closer.Close()
	}
	return nil
}

func (r *Reader) read() (*Entry, error) {
	var head [13]byte
	if _, err := io.ReadFull(r.in, head[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: truncated header: %v", ErrCorruptedEntry, err)
	}
	e := &Entry{
		Seq: binary.BigEndian.Uint64(head[0:8]),
		Op:  Op(head[8]),
	}
	size := binary.BigEndian.Uint32(head[9:13])
	if size > maxRecordSize {
		return nil, fmt.Errorf("%w: record %d claims %d bytes", ErrCorruptedEntry, e.Seq, size)
	}

	compressed := make([]byte, size)
	if _, err := io.ReadFull(r.in, compressed); err != nil {
		return nil, fmt.Errorf("%w: truncated record %d: %v", ErrCorruptedEntry, e.Seq, err)
	}
	var tail [12]byte
	if _, err := io.ReadFull(r.in, tail[:]); err != nil {
		return nil, fmt.Errorf("%w: truncated record %d: %v", ErrCorruptedEntry, e.Seq, err)
	}
	if crc32.ChecksumIEEE(compressed) != binary.BigEndian.Uint32(tail[0:4]) {
		return nil, fmt.Errorf("%w: checksum mismatch for record %d", ErrCorruptedEntry, e.Seq)
	}
	e.Timestamp = int64(binary.BigEndian.Uint64(tail[4:12]))

	data, err := snappy.Decode(nil, compressed)
	if err != nil {
		return nil, fmt.Errorf("%w: record %d: %v", ErrCorruptedEntry, e.Seq, err)
	}
	e.Data = data
	return e, nil
}
